// Package session provides the device-local session cache: a paired token and cached
// user profile persisted through a pluggable [Backend].
//
// # Pair invariant
//
// The token entry and the profile entry are both present or both absent. [Store.Save]
// writes the pair through [Backend.Set] (atomic on Redis and SQLite) and, if the medium
// fails mid-write, deletes both entries so a half-written pair is never observed.
// [Store.Load] treats a lone entry or an undecodable profile as poisoned: it clears the
// store and reports no session instead of returning an error.
//
// # Record encoding
//
// The profile entry is a schema version byte followed by a JSON envelope carrying the
// profile and the time it was last validated against the server. The token entry is the
// raw bearer string.
//
// # Architecture boundaries
//
// This package owns the [Store], the [Profile] model and the backends. It does NOT talk
// to the identity service or decide when a session is valid; that belongs to the
// session manager.
//
// # What this package must NOT do
//
//   - Import goSession or internal packages (no upward imports).
//   - Return partially valid sessions.
//   - Log token values.
package session
