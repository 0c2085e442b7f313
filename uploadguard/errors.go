/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

package uploadguard

import (
	"fmt"

	"code.cloudfoundry.org/bytefmt"
)

// FileTooLargeError is returned when a single file exceeds the per-file size limit.
type FileTooLargeError struct {
	FileName string
	Limit    uint64
}

// Error implements the error interface.
func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("file %q is larger than the allowed %s", e.FileName, bytefmt.ByteSize(e.Limit))
}

// TotalTooLargeError is returned when the upload as a whole exceeds the total size limit.
type TotalTooLargeError struct {
	Limit uint64
}

// Error implements the error interface.
func (e *TotalTooLargeError) Error() string {
	return fmt.Sprintf("upload is larger than the allowed total of %s", bytefmt.ByteSize(e.Limit))
}

// TooManyFilesError is returned when the upload contains more files than allowed.
type TooManyFilesError struct {
	Limit int
}

// Error implements the error interface.
func (e *TooManyFilesError) Error() string {
	return fmt.Sprintf("upload contains more than the allowed %d files", e.Limit)
}

// UnsupportedTypeError is returned when a file's declared or sniffed content
// type is not in the allowed list.
type UnsupportedTypeError struct {
	FileName     string
	DeclaredType string
	SniffedType  string
}

// Error implements the error interface.
func (e *UnsupportedTypeError) Error() string {
	if e.SniffedType != "" && e.SniffedType != e.DeclaredType {
		return fmt.Sprintf("file %q has unsupported content type (declared %q, detected %q)",
			e.FileName, e.DeclaredType, e.SniffedType)
	}
	return fmt.Sprintf("file %q has unsupported content type %q", e.FileName, e.DeclaredType)
}
