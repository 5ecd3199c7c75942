// Package flows contains pure-function orchestrators for every Manager and
// ProfileService operation.
//
// Each flow function (RunLogin, RunRegister, RunReconcile, RunUpdateProfile, etc.)
// accepts a typed dependency struct of function fields and returns a result or a
// classified error. The root package builds the dependency structs once and keeps the
// state machine itself; flows only decide.
//
// # Architecture boundaries
//
// Flow functions coordinate the auth transport, the session store, metrics and event
// emission through the functions they are handed. They do NOT own any of these
// resources; ownership stays with the Manager.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goSession (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency functions.
//   - Let a Validation failure reach the network.
package flows
