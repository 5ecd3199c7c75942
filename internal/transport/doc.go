// Package transport is the authenticated HTTP wrapper used by the session manager and
// the profile mutation service.
//
// Every call carries `Authorization: Bearer <token>` when the token source holds one,
// defaults `Content-Type: application/json` unless the request overrides it, and tags
// the request with an `X-Request-ID`. Failures are always classified [apierr.Error]
// values: no response means Unreachable, a non-2xx reply or a payload that fails schema
// validation means Server.
//
// # What this package must NOT do
//
//   - Mutate the session store (it only reads the token).
//   - Retry. Transient failures surface immediately.
//   - Propagate JSON parse errors from error bodies.
package transport
