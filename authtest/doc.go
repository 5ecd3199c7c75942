// Package authtest is an in-process fake of the identity service a goSession Manager
// talks to. It implements the register, token, me, profile, password, avatar and
// billing routes with bcrypt password hashes and HS256 tokens, and lets tests inject
// failures per route: forced statuses, raw (malformed) bodies, dropped connections,
// revoked tokens and held requests.
//
// It is used by the goSession tests and by `sessionctl demo`.
package authtest
