// Package jwt reads the registered claims of a bearer token on the client side and
// signs HS256 tokens for the in-process fake identity service.
//
// The client never holds the server's key, so [Inspect] parses without verifying the
// signature. Its result is advisory: it may shorten an offline session, it never
// extends one.
package jwt
