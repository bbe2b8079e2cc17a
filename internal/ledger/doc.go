// Package ledger keeps the bounded history of automatic snapshots.
//
// Two capacity policies apply. Append keeps the newest Retention entries
// (5 by default) after every write; MaintenanceTrim, run periodically,
// keeps the newest MaintenanceRetention entries (10 by default). The
// maintenance cap is a ceiling that only binds when the append path has
// been bypassed, for example by a ledger written with a larger retention.
//
// Entries have no stable identity: an index is a position in List at the
// moment it is read, and shifts as entries are appended or evicted.
package ledger
