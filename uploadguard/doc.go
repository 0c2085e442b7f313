/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

// Package uploadguard validates multipart uploads against declared
// constraints while streaming them in fixed-size chunks.
//
// The validator never buffers a whole file: memory use is bounded by the
// chunk size regardless of upload size. Each file part is checked against
// per-file and total size limits, a file count limit, and an allowed content
// type list. The declared Content-Type of the part and the type sniffed from
// its first bytes must both be allowed, so a renamed executable does not pass
// as an image.
//
// Each violated constraint has its own error type, so transports can map
// violations to precise status codes (e.g. 413 for size, 415 for type).
package uploadguard
