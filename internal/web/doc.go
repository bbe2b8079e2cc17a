// Package web serves the snapshot operations over HTTP with a chi router.
//
// Every route except /healthz requires an operator credential:
//
//	Authorization: Bearer <credential from `siteconf token --credential`>
//
// Mutating routes additionally require a single-use action token, fetched
// from GET /tokens/{action} and sent in the X-Snapshot-Token header or the
// "token" form field.
package web
