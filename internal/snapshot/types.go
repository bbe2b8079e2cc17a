package snapshot

import (
	"encoding/json"
	"time"

	"github.com/thoreinstein/siteconf/internal/errors"
)

// Reason tags why a snapshot was taken. The set is open: any string decodes.
type Reason string

// Known reasons.
const (
	ReasonManual        Reason = "manual"
	ReasonBeforeImport  Reason = "before_import"
	ReasonBeforeReset   Reason = "before_reset"
	ReasonBeforeRestore Reason = "before_restore"
	ReasonBeforeUpgrade Reason = "before_upgrade"
)

// Domain keys inside the "domains" object.
const (
	DomainCustomizationValues = "customizationValues"
	DomainWidgetData          = "widgetData"
	DomainMenuAssignments     = "menuAssignments"
	DomainAuxiliaryOptions    = "auxiliaryOptions"
)

// ContentType is the media type of an encoded snapshot.
const ContentType = "application/json"

// Sentinel errors for encoding and decoding.
var (
	// ErrDecode indicates the input is not well-formed JSON.
	ErrDecode = errors.New("snapshot is not well-formed JSON")

	// ErrSchema indicates well-formed JSON that is not a snapshot: not an
	// object, no "domains" object, or a header field of the wrong type.
	ErrSchema = errors.New("snapshot does not match the schema")

	// ErrShape indicates a present domain whose value has the wrong shape.
	ErrShape = errors.New("snapshot domain has the wrong shape")

	// ErrEncode indicates a value that cannot be serialized.
	ErrEncode = errors.New("snapshot cannot be encoded")
)

// Snapshot is a versioned, timestamped capture of the configuration domains.
// Snapshots are never mutated once they are ledgered or delivered.
type Snapshot struct {
	// SchemaVersion is the version of the system that produced the snapshot.
	SchemaVersion string `json:"schemaVersion"`

	// CreatedAt is seconds since the Unix epoch.
	CreatedAt int64 `json:"createdAt"`

	// OriginSiteIdentifier is informational only and never validated.
	OriginSiteIdentifier string `json:"originSiteIdentifier"`

	Reason Reason `json:"reason"`

	Domains Domains `json:"domains"`
}

// Time returns CreatedAt as a time.Time in UTC.
func (s *Snapshot) Time() time.Time {
	return time.Unix(s.CreatedAt, 0).UTC()
}

// Domains holds the four configuration domains. A nil field is an absent
// domain; a non-nil empty one is present and empty.
type Domains struct {
	CustomizationValues map[string]any
	WidgetData          *WidgetData
	MenuAssignments     map[string]string
	AuxiliaryOptions    map[string]any

	// Extra keeps unknown domains verbatim so they survive a round trip.
	Extra map[string]json.RawMessage
}

// Present lists the recognized domains that are set, in canonical order.
func (d Domains) Present() []string {
	var names []string
	if d.CustomizationValues != nil {
		names = append(names, DomainCustomizationValues)
	}
	if d.WidgetData != nil {
		names = append(names, DomainWidgetData)
	}
	if d.MenuAssignments != nil {
		names = append(names, DomainMenuAssignments)
	}
	if d.AuxiliaryOptions != nil {
		names = append(names, DomainAuxiliaryOptions)
	}
	return names
}

// WidgetData pairs sidebar assignments with per-type instance settings.
type WidgetData struct {
	// Sidebars maps a sidebar ID to its ordered widget instance IDs ("text-2").
	Sidebars map[string][]string `json:"sidebars"`

	// Instances maps a widget type ("text") to instance index → settings.
	Instances map[string]map[string]any `json:"instances"`
}

// Option adjusts a snapshot built by New.
type Option func(*Snapshot)

// WithSchemaVersion sets SchemaVersion.
func WithSchemaVersion(v string) Option {
	return func(s *Snapshot) { s.SchemaVersion = v }
}

// WithOrigin sets OriginSiteIdentifier.
func WithOrigin(site string) Option {
	return func(s *Snapshot) { s.OriginSiteIdentifier = site }
}

// WithCreatedAt overrides the creation time.
func WithCreatedAt(t time.Time) Option {
	return func(s *Snapshot) { s.CreatedAt = t.Unix() }
}

// New builds a snapshot of domains taken for reason, stamped with the current time.
func New(reason Reason, domains Domains, opts ...Option) *Snapshot {
	s := &Snapshot{
		CreatedAt: time.Now().Unix(),
		Reason:    reason,
		Domains:   domains,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExportFilename returns the download name for a snapshot exported at t,
// e.g. config-snapshot-2026-10-19T08-30-00Z.json. Colons are avoided so the
// name is valid on every filesystem.
func ExportFilename(t time.Time) string {
	return "config-snapshot-" + t.UTC().Format("2006-01-02T15-04-05Z") + ".json"
}
