/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

package httpmw

import (
	"errors"
	"net/http"

	"code.cloudfoundry.org/bytefmt"

	"github.com/teravolt/go-corekit/log"
	"github.com/teravolt/go-corekit/uploadguard"
)

type requestBodyLimitHandler struct {
	next         http.Handler
	maxSizeBytes uint64
	errDomain    string
}

// RequestBodyLimit is a middleware that sets the maximum allowed size for a request body.
// The body limit is determined based on both Content-Length request header and actual content read.
// Such limiting helps to prevent the server resources being wasted if a malicious client
// sends a very large request body.
func RequestBodyLimit(maxSizeBytes uint64, errDomain string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return &requestBodyLimitHandler{next, maxSizeBytes, errDomain}
	}
}

func (h *requestBodyLimitHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if r.ContentLength > int64(h.maxSizeBytes) {
		respondTooLarge(rw, h.errDomain, h.maxSizeBytes, GetLoggerFromContext(r.Context()))
		return
	}

	r.Body = http.MaxBytesReader(rw, r.Body, int64(h.maxSizeBytes))

	h.next.ServeHTTP(rw, r)
}

func respondTooLarge(rw http.ResponseWriter, errDomain string, limit uint64, logger log.FieldLogger) {
	apiErr := NewError(errDomain, ErrCodePayloadTooLarge, "Request body is too large.").
		AddContext("limit", bytefmt.ByteSize(limit))
	RespondError(rw, http.StatusRequestEntityTooLarge, apiErr, logger)
}

// HandleUpload reads the request's multipart body through the guard, streaming
// accepted file bytes into the sink (nil means discard), and responds with the
// matching status code and JSON error on any violation:
// 413 for size and count limits, 415 for content type, 400 for a body that is
// not valid multipart. It returns the validation result and whether the upload
// was accepted; on false the response has already been written.
func HandleUpload(
	rw http.ResponseWriter, r *http.Request, guard *uploadguard.Guard, sink uploadguard.Sink, errDomain string,
) (*uploadguard.Result, bool) {
	logger := GetLoggerFromContext(r.Context())

	mr, err := r.MultipartReader()
	if err != nil {
		apiErr := NewError(errDomain, ErrCodePayloadTooLarge, "Request body is not a valid multipart upload.")
		RespondError(rw, http.StatusBadRequest, apiErr, logger)
		return nil, false
	}

	if sink == nil {
		sink = uploadguard.DiscardSink()
	}
	res, err := guard.ValidateToSink(r.Context(), mr, sink)
	if err != nil {
		respondUploadError(rw, errDomain, err, logger)
		return nil, false
	}
	return res, true
}

func respondUploadError(rw http.ResponseWriter, errDomain string, err error, logger log.FieldLogger) {
	var fileTooLargeErr *uploadguard.FileTooLargeError
	var totalTooLargeErr *uploadguard.TotalTooLargeError
	var tooManyFilesErr *uploadguard.TooManyFilesError
	var unsupportedTypeErr *uploadguard.UnsupportedTypeError

	switch {
	case errors.As(err, &fileTooLargeErr):
		apiErr := NewError(errDomain, ErrCodePayloadTooLarge, "File is too large.").
			AddContext("fileName", fileTooLargeErr.FileName).
			AddContext("limit", bytefmt.ByteSize(fileTooLargeErr.Limit))
		RespondError(rw, http.StatusRequestEntityTooLarge, apiErr, logger)

	case errors.As(err, &totalTooLargeErr):
		apiErr := NewError(errDomain, ErrCodePayloadTooLarge, "Upload is too large.").
			AddContext("limit", bytefmt.ByteSize(totalTooLargeErr.Limit))
		RespondError(rw, http.StatusRequestEntityTooLarge, apiErr, logger)

	case errors.As(err, &tooManyFilesErr):
		apiErr := NewError(errDomain, ErrCodeTooManyFiles, "Upload contains too many files.").
			AddContext("limit", tooManyFilesErr.Limit)
		RespondError(rw, http.StatusRequestEntityTooLarge, apiErr, logger)

	case errors.As(err, &unsupportedTypeErr):
		apiErr := NewError(errDomain, ErrCodeUnsupportedMediaType, "Unsupported file type.").
			AddContext("fileName", unsupportedTypeErr.FileName).
			AddContext("declaredType", unsupportedTypeErr.DeclaredType).
			AddContext("detectedType", unsupportedTypeErr.SniffedType)
		RespondError(rw, http.StatusUnsupportedMediaType, apiErr, logger)

	default:
		logger.Error("upload validation failed", log.Error(err))
		RespondInternalError(rw, errDomain, logger)
	}
}
