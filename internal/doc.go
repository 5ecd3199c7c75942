// Package internal holds small helpers shared across goSession packages: secret
// generation for signing keys and log-safe token fingerprints.
package internal
