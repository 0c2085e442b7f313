/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

// Package httpmw provides HTTP middleware and helpers that expose the
// ratelimit and uploadguard packages over chi-compatible routers: request
// logging, tier-based rate limiting with Retry-After, request body limiting,
// and multipart upload validation with precise error responses.
package httpmw
