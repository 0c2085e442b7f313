/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

package uploadguard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/vasayxtx/go-glob"

	"github.com/teravolt/go-corekit/config"
)

// DefaultChunkSize is the size of the read buffer used while streaming parts.
// It bounds the validator's memory use per upload.
const DefaultChunkSize = 32 * 1024

// sniffLen is how many leading bytes are fed to content type detection,
// matching what http.DetectContentType considers.
const sniffLen = 512

// Constraints describes the limits an upload must satisfy.
// Zero values mean the corresponding limit is not enforced.
type Constraints struct {
	// MaxFileBytes limits the size of each file part.
	MaxFileBytes config.ByteSize `mapstructure:"maxFileBytes" yaml:"maxFileBytes" json:"maxFileBytes"`

	// MaxTotalBytes limits the size of the whole upload, form fields included.
	MaxTotalBytes config.ByteSize `mapstructure:"maxTotalBytes" yaml:"maxTotalBytes" json:"maxTotalBytes"`

	// MaxFileCount limits the number of file parts.
	MaxFileCount int `mapstructure:"maxFileCount" yaml:"maxFileCount" json:"maxFileCount"`

	// AllowedTypes lists acceptable content types. Glob patterns are
	// supported (e.g. "image/*"). Both the declared Content-Type of a part
	// and the type sniffed from its first bytes must match the list.
	// Empty list means any type is acceptable.
	AllowedTypes []string `mapstructure:"allowedTypes" yaml:"allowedTypes" json:"allowedTypes"`
}

// PartInfo identifies one file part of the upload.
type PartInfo struct {
	FieldName   string
	FileName    string
	ContentType string
}

// Sink receives the bytes of accepted file parts.
// CreatePart is called once per file part after its content type passed
// validation; the returned writer gets the part's bytes as they are read
// and is closed when the part ends or validation fails.
type Sink interface {
	CreatePart(info PartInfo) (io.WriteCloser, error)
}

type discardSink struct{}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func (discardSink) CreatePart(PartInfo) (io.WriteCloser, error) {
	return nopWriteCloser{io.Discard}, nil
}

// DiscardSink returns a Sink that throws accepted bytes away.
// Useful when only validation is needed.
func DiscardSink() Sink {
	return discardSink{}
}

// FileResult describes one validated file part.
type FileResult struct {
	PartInfo

	// SniffedType is the content type detected from the part's first bytes.
	SniffedType string

	// Size is the part size in bytes.
	Size uint64
}

// Result describes a fully validated upload.
type Result struct {
	Files      []FileResult
	TotalBytes uint64
}

// Guard validates multipart uploads against a fixed set of constraints.
// It's safe for concurrent use.
type Guard struct {
	constraints  Constraints
	chunkSize    int
	typeMatchers []func(s string) bool
}

// Options represents options for the Guard.
type Options struct {
	// ChunkSize is the read buffer size. Zero means DefaultChunkSize.
	ChunkSize int
}

// New creates a new Guard with the provided constraints.
func New(constraints Constraints) (*Guard, error) {
	return NewWithOpts(constraints, Options{})
}

// NewWithOpts creates a new Guard with the provided constraints and options.
func NewWithOpts(constraints Constraints, opts Options) (*Guard, error) {
	chunkSize := opts.ChunkSize
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkSize < sniffLen {
		return nil, fmt.Errorf("chunk size should be at least %d, got %d", sniffLen, chunkSize)
	}
	g := &Guard{constraints: constraints, chunkSize: chunkSize}
	for _, allowedType := range constraints.AllowedTypes {
		allowedType = strings.ToLower(strings.TrimSpace(allowedType))
		if allowedType == "" {
			return nil, fmt.Errorf("empty allowed type")
		}
		if strings.ContainsAny(allowedType, "*?") {
			g.typeMatchers = append(g.typeMatchers, glob.Compile(allowedType))
			continue
		}
		exact := allowedType
		g.typeMatchers = append(g.typeMatchers, func(s string) bool { return s == exact })
	}
	return g, nil
}

// Validate reads the whole multipart stream, enforcing the constraints,
// and discards the content. See ValidateToSink for details.
func (g *Guard) Validate(ctx context.Context, mr *multipart.Reader) (*Result, error) {
	return g.ValidateToSink(ctx, mr, DiscardSink())
}

// ValidateToSink reads the whole multipart stream in fixed-size chunks,
// enforcing the constraints, and streams accepted file bytes into the sink.
// Validation stops at the first violation and the corresponding typed error
// is returned (*FileTooLargeError, *TotalTooLargeError, *TooManyFilesError,
// *UnsupportedTypeError). The wait is bounded by ctx.
func (g *Guard) ValidateToSink(ctx context.Context, mr *multipart.Reader, sink Sink) (*Result, error) {
	res := &Result{}
	buf := make([]byte, g.chunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		part, err := mr.NextPart()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return res, nil
			}
			return nil, fmt.Errorf("read next part: %w", err)
		}
		if part.FileName() == "" {
			if err = g.drainFormField(ctx, part, buf, res); err != nil {
				_ = part.Close()
				return nil, err
			}
			_ = part.Close()
			continue
		}
		fileRes, err := g.validateFilePart(ctx, part, buf, sink, res)
		_ = part.Close()
		if err != nil {
			return nil, err
		}
		res.Files = append(res.Files, *fileRes)
	}
}

func (g *Guard) validateFilePart(
	ctx context.Context, part *multipart.Part, buf []byte, sink Sink, res *Result,
) (*FileResult, error) {
	if g.constraints.MaxFileCount > 0 && len(res.Files)+1 > g.constraints.MaxFileCount {
		return nil, &TooManyFilesError{Limit: g.constraints.MaxFileCount}
	}

	info := PartInfo{
		FieldName:   part.FormName(),
		FileName:    part.FileName(),
		ContentType: part.Header.Get("Content-Type"),
	}

	// Sniff the real type from the first bytes before anything is written out.
	sniffed, err := io.ReadFull(part, buf[:sniffLen])
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("read part %q: %w", info.FileName, err)
	}
	sniffedType := http.DetectContentType(buf[:sniffed])
	if err = g.checkContentType(info, sniffedType); err != nil {
		return nil, err
	}

	fileRes := &FileResult{PartInfo: info, SniffedType: sniffedType}
	if err = g.accountBytes(fileRes, uint64(sniffed), res); err != nil {
		return nil, err
	}

	w, err := sink.CreatePart(info)
	if err != nil {
		return nil, fmt.Errorf("create sink part %q: %w", info.FileName, err)
	}
	defer func() { _ = w.Close() }()

	if _, err = w.Write(buf[:sniffed]); err != nil {
		return nil, fmt.Errorf("write part %q: %w", info.FileName, err)
	}

	for {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		n, readErr := part.Read(buf)
		if n > 0 {
			if err = g.accountBytes(fileRes, uint64(n), res); err != nil {
				return nil, err
			}
			if _, err = w.Write(buf[:n]); err != nil {
				return nil, fmt.Errorf("write part %q: %w", info.FileName, err)
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return fileRes, nil
			}
			return nil, fmt.Errorf("read part %q: %w", info.FileName, readErr)
		}
	}
}

func (g *Guard) accountBytes(fileRes *FileResult, n uint64, res *Result) error {
	fileRes.Size += n
	res.TotalBytes += n
	if g.constraints.MaxFileBytes > 0 && fileRes.Size > uint64(g.constraints.MaxFileBytes) {
		return &FileTooLargeError{FileName: fileRes.FileName, Limit: uint64(g.constraints.MaxFileBytes)}
	}
	if g.constraints.MaxTotalBytes > 0 && res.TotalBytes > uint64(g.constraints.MaxTotalBytes) {
		return &TotalTooLargeError{Limit: uint64(g.constraints.MaxTotalBytes)}
	}
	return nil
}

func (g *Guard) checkContentType(info PartInfo, sniffedType string) error {
	if len(g.typeMatchers) == 0 {
		return nil
	}
	unsupportedErr := &UnsupportedTypeError{
		FileName:     info.FileName,
		DeclaredType: info.ContentType,
		SniffedType:  sniffedType,
	}
	if info.ContentType != "" && !g.typeAllowed(info.ContentType) {
		return unsupportedErr
	}
	if !g.typeAllowed(sniffedType) {
		return unsupportedErr
	}
	return nil
}

func (g *Guard) typeAllowed(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	for _, match := range g.typeMatchers {
		if match(mediaType) {
			return true
		}
	}
	return false
}

// drainFormField reads a non-file form field, charging its bytes to the
// upload total. Field values are not passed to the sink.
func (g *Guard) drainFormField(ctx context.Context, part *multipart.Part, buf []byte, res *Result) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := part.Read(buf)
		res.TotalBytes += uint64(n)
		if g.constraints.MaxTotalBytes > 0 && res.TotalBytes > uint64(g.constraints.MaxTotalBytes) {
			return &TotalTooLargeError{Limit: uint64(g.constraints.MaxTotalBytes)}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read form field %q: %w", part.FormName(), err)
		}
	}
}
