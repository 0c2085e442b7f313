/*
Copyright © 2025 Teravolt Labs.

Released under MIT license.
*/

package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// IdentityFn extracts the rate limiting identity from an HTTP request.
// An empty identity means the request cannot be attributed and is admitted
// without counting.
type IdentityFn func(r *http.Request) string

// KeyFromRemoteAddr returns the client IP address as the identity.
// It's the default identity source.
func KeyFromRemoteAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// KeyFromHeader returns an IdentityFn that reads the identity from the named
// request header (e.g. an authenticated client ID set by an auth middleware).
func KeyFromHeader(headerName string) IdentityFn {
	return func(r *http.Request) string {
		return strings.TrimSpace(r.Header.Get(headerName))
	}
}
