// Package guard authorizes snapshot operations and protects them from
// replay.
//
// Two kinds of HS256 JWT are issued by a Signer. Operator credentials carry
// capabilities and authenticate HTTP callers; RequireAdmin checks them via
// the request context. Action tokens are bound to one operation ("export",
// "import", "reset", "restore") and are accepted exactly once before they
// expire.
package guard
