// Package apierr defines the classified error returned by every session operation.
//
// A classified error is one of four kinds: Validation (rejected locally before any
// network call), Server (a reachable server answered non-2xx or sent a payload that
// failed schema validation), Unreachable (no response was obtained) and Storage (the
// local persistence layer failed). Callers branch on kind with errors.Is against the
// package sentinels, and on 401/403 with [Error.IsAuthRejection].
//
// # What this package must NOT do
//
//   - Import any other goSession package (it is the leaf of the dependency graph).
//   - Decide session policy. Only the session manager acts on auth rejections.
package apierr
