// Package middleware exposes the bearer-token HTTP guard used by identity services
// that issue goSession tokens, such as the authtest fake.
//
// # Guards
//
//   - [Bearer] reads the Authorization header, asks a [Verifier] for the subject and
//     injects it into the request context.
//
// Rejections are answered with 401, a `WWW-Authenticate: Bearer` header and a
// `{"detail": ...}` JSON body, the shape the session client parses.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to the Verifier).
//   - Make authorization decisions beyond pass/reject.
package middleware
