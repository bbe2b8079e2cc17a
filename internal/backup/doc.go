// Package backup runs the configuration snapshot operations.
//
// A [Manager] combines the domain accessors, the history ledger and the
// guard into four operations. Each one authorizes the caller, consumes a
// single-use action token, validates its inputs, optionally captures the
// current configuration into the ledger, and only then mutates the store.
//
// # Export
//
// [Manager.Export] builds a snapshot tagged "manual", runs the
// before-export hooks, encodes it and hands it to a [Delivery] as
// config-snapshot-<timestamp>.json. Exports are never ledgered.
//
//	token, _ := signer.IssueToken(backup.ActionExport)
//	snap, err := mgr.Export(ctx, backup.ExportRequest{Token: token}, &backup.DirDelivery{Dir: "."})
//
// # Import
//
// [Manager.Import] accepts an [Upload]. A missing payload or transport
// failure is [ErrUpload]; a file that is neither named *.json nor sent with
// a JSON media type is [ErrFormat]. Decoding errors from the snapshot codec
// propagate. Each domain present in the file is written; absent domains are
// untouched, so partial files are valid.
//
// # Reset
//
// [Manager.Reset] resets all four domains after an optional before_reset
// capture.
//
// # Restore
//
// [Manager.Restore] parses an untrusted index and restores that ledger
// entry. The index is resolved against the ledger at call time, before the
// before_restore capture shifts positions.
//
// # Automatic snapshots
//
// Import, Reset and Restore ledger the current configuration first unless
// the request opts out (Restore never does). [Trigger.BeforeUpgrade] takes a
// before_upgrade snapshot once per target version, and
// [Manager.RunMaintenance] applies the ledger's maintenance retention on an
// interval.
//
// # Partial failure
//
// Writes are not transactional. If a domain write fails midway, earlier
// domains stay written and the automatic snapshot is the recovery path.
package backup
