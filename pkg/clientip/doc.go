// Package clientip resolves the originating client address of an HTTP
// request behind reverse proxies.
//
// FromRequest walks the standard forwarding headers in descending priority
// until it finds a valid address:
//
//  1. X-Forwarded-For – comma-separated list, first valid IP wins
//  2. X-Real-IP       – set by reverse proxies such as Nginx
//  3. RemoteAddr      – TCP peer address as a fallback
//
// Middleware stores the resolved address in the request context so
// downstream code, such as the request logger, can fetch it with
// FromContext without repeating the resolution.
//
// # Error Handling
//
// FromRequest never returns an error. When no valid address is found it
// returns an empty string.
package clientip
