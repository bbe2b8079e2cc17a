// Package store provides the key-value configuration store that
// customization values, widget settings, menu assignments and the snapshot
// history ledger live in.
//
// Three backends implement Store: Memory for tests and ephemeral runs, File
// for a single JSON document on disk, and SQLite for a durable options
// table. Open selects one by driver name.
package store
