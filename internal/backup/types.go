package backup

import (
	"github.com/thoreinstein/siteconf/internal/errors"
	"github.com/thoreinstein/siteconf/internal/snapshot"
)

// Actions name the operations an action token can be issued for.
const (
	ActionExport  = "export"
	ActionImport  = "import"
	ActionReset   = "reset"
	ActionRestore = "restore"
)

// Actions lists every action in a stable order.
var Actions = []string{ActionExport, ActionImport, ActionReset, ActionRestore}

// Sentinel errors for snapshot operations. Codec failures surface as
// snapshot.ErrDecode, ErrSchema, ErrShape and ErrEncode; bad restore
// indexes as ledger.ErrNotFound; guard failures as guard.ErrUnauthorized
// and guard.ErrReplayToken.
var (
	// ErrUpload indicates an import with no payload or a failed transfer.
	ErrUpload = errors.New("snapshot upload failed")

	// ErrFormat indicates an upload that is not JSON by name or media type.
	ErrFormat = errors.New("uploaded file is not a JSON snapshot")
)

// Upload is a snapshot file handed to Import by a transport.
type Upload struct {
	Data        []byte
	Filename    string
	ContentType string

	// TransportError is set when the transport failed to receive the file.
	TransportError error
}

// ExportRequest carries the inputs of Export.
type ExportRequest struct {
	Token string
}

// ImportRequest carries the inputs of Import.
type ImportRequest struct {
	Token  string
	Upload *Upload

	// SkipBackup disables the before_import snapshot.
	SkipBackup bool
}

// ResetRequest carries the inputs of Reset.
type ResetRequest struct {
	Token string

	// SkipBackup disables the before_reset snapshot.
	SkipBackup bool
}

// RestoreRequest carries the inputs of Restore.
type RestoreRequest struct {
	Token string

	// Index is the untrusted, 0-based ledger position as received.
	Index string
}

// ImportResult reports what Import did.
type ImportResult struct {
	// Snapshot is the decoded upload. It is never ledgered.
	Snapshot *snapshot.Snapshot

	// Backup is the before_import snapshot, nil when skipped.
	Backup *snapshot.Snapshot

	// Applied lists the domains written.
	Applied []string
}

// ResetResult reports what Reset did.
type ResetResult struct {
	// Backup is the before_reset snapshot, nil when skipped.
	Backup *snapshot.Snapshot
}

// RestoreResult reports what Restore did.
type RestoreResult struct {
	Index   int
	Target  *snapshot.Snapshot
	Backup  *snapshot.Snapshot
	Applied []string
}
