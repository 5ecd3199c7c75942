// Package goSession is a client-side authentication session manager. It establishes,
// persists, validates and recovers a user's session against a remote identity
// service, and runs the identity-mutating operations (profile edit, password change,
// avatar replacement) of that session.
//
// A [Manager] is assembled with [Builder.Build], starts in [PhaseReconciling] and is
// settled by [Manager.Reconcile]. Methods are safe to call from multiple goroutines.
//
// # Three sources of truth
//
// The in-memory [Status], the persisted (token, profile) pair in a [session.Store], and
// the identity service. The pair is written and cleared together. Only a 401/403 from
// the validation endpoint, an offline rule, or an explicit Logout ends a session;
// every other failure is returned to the caller and leaves the session alone. Store
// failures are logged and the session continues in memory.
//
// # Stale responses
//
// Every login, logout and expiry advances a session epoch. A response that arrives
// after its caller's context ended, or under an older epoch, is discarded with
// [ErrStaleResponse] instead of being applied.
//
// # Architecture boundaries
//
// goSession is the public surface. Orchestration lives in internal/flows and the
// authenticated HTTP wrapper in internal/transport; neither is exported.
//
// # What this package must NOT do
//
//   - Hold a lock across a call to the identity service.
//   - Retry failed calls.
//   - Log tokens or passwords.
//   - Import any sub-package that re-imports goSession (no import cycles).
package goSession
