package accessor

import (
	"context"
	"log/slog"

	"github.com/thoreinstein/siteconf/internal/errors"
	"github.com/thoreinstein/siteconf/internal/logging"
	"github.com/thoreinstein/siteconf/internal/snapshot"
	"github.com/thoreinstein/siteconf/internal/store"
)

// Store keys for the non-customization domains.
const (
	SidebarsKey        = "sidebars_widgets"
	WidgetKeyPrefix    = "widget_"
	MenuLocationsKey   = "nav_menu_locations"
	ActivationCountKey = "activation_count"
)

// AuxiliaryOptionNames is the fixed set of non-customizer options captured
// in the auxiliaryOptions domain, in the order they are read.
var AuxiliaryOptionNames = []string{
	"setup_complete",
	"setup_step",
	"notice_dismissed",
	ActivationCountKey,
}

// WidgetKey returns the store key holding the instance settings of a widget type.
func WidgetKey(widgetType string) string {
	return WidgetKeyPrefix + widgetType
}

// Accessors reads, writes and resets the four configuration domains
// against a store. It holds no state of its own.
type Accessors struct {
	store       store.Store
	logger      *slog.Logger
	legacyReset bool
}

// Option configures Accessors.
type Option func(*Accessors)

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Accessors) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithLegacyReset keeps widget instance settings and the activation counter
// when resetting, matching snapshots produced by older installations.
func WithLegacyReset() Option {
	return func(a *Accessors) { a.legacyReset = true }
}

// New returns Accessors over s.
func New(s store.Store, opts ...Option) *Accessors {
	a := &Accessors{
		store:  s,
		logger: logging.NewDiscard(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Capture reads all four domains. Every domain in the result is present,
// possibly empty.
func (a *Accessors) Capture(ctx context.Context) (snapshot.Domains, error) {
	var (
		d   snapshot.Domains
		err error
	)
	if d.CustomizationValues, err = a.ReadCustomizationValues(ctx); err != nil {
		return d, errors.Wrap(err, snapshot.DomainCustomizationValues)
	}
	if d.WidgetData, err = a.ReadWidgetData(ctx); err != nil {
		return d, errors.Wrap(err, snapshot.DomainWidgetData)
	}
	if d.MenuAssignments, err = a.ReadMenuAssignments(ctx); err != nil {
		return d, errors.Wrap(err, snapshot.DomainMenuAssignments)
	}
	if d.AuxiliaryOptions, err = a.ReadAuxiliaryOptions(ctx); err != nil {
		return d, errors.Wrap(err, snapshot.DomainAuxiliaryOptions)
	}
	return d, nil
}

// Apply writes every present domain of d and returns the names written.
// Absent domains are left untouched. A failing write stops Apply; domains
// already written stay written.
func (a *Accessors) Apply(ctx context.Context, d snapshot.Domains) ([]string, error) {
	var applied []string
	if d.CustomizationValues != nil {
		if err := a.WriteCustomizationValues(ctx, d.CustomizationValues); err != nil {
			return applied, errors.Wrap(err, snapshot.DomainCustomizationValues)
		}
		applied = append(applied, snapshot.DomainCustomizationValues)
	}
	if d.WidgetData != nil {
		if err := a.WriteWidgetData(ctx, d.WidgetData); err != nil {
			return applied, errors.Wrap(err, snapshot.DomainWidgetData)
		}
		applied = append(applied, snapshot.DomainWidgetData)
	}
	if d.MenuAssignments != nil {
		if err := a.WriteMenuAssignments(ctx, d.MenuAssignments); err != nil {
			return applied, errors.Wrap(err, snapshot.DomainMenuAssignments)
		}
		applied = append(applied, snapshot.DomainMenuAssignments)
	}
	if d.AuxiliaryOptions != nil {
		if err := a.WriteAuxiliaryOptions(ctx, d.AuxiliaryOptions); err != nil {
			return applied, errors.Wrap(err, snapshot.DomainAuxiliaryOptions)
		}
		applied = append(applied, snapshot.DomainAuxiliaryOptions)
	}
	if len(d.Extra) > 0 {
		a.logger.Debug("ignoring unrecognized domains", "count", len(d.Extra))
	}
	return applied, nil
}

// ResetAll resets every domain.
func (a *Accessors) ResetAll(ctx context.Context) error {
	if err := a.ResetCustomizationValues(ctx); err != nil {
		return errors.Wrap(err, snapshot.DomainCustomizationValues)
	}
	if err := a.ResetWidgetData(ctx); err != nil {
		return errors.Wrap(err, snapshot.DomainWidgetData)
	}
	if err := a.ResetMenuAssignments(ctx); err != nil {
		return errors.Wrap(err, snapshot.DomainMenuAssignments)
	}
	if err := a.ResetAuxiliaryOptions(ctx); err != nil {
		return errors.Wrap(err, snapshot.DomainAuxiliaryOptions)
	}
	return nil
}
