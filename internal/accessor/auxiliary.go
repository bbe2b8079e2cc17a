package accessor

import (
	"context"
	"slices"

	"github.com/thoreinstein/siteconf/internal/errors"
)

// IsAuxiliaryOption reports whether name belongs to the auxiliary domain.
func IsAuxiliaryOption(name string) bool {
	return slices.Contains(AuxiliaryOptionNames, name)
}

// ReadAuxiliaryOptions returns the known auxiliary options that are set.
func (a *Accessors) ReadAuxiliaryOptions(ctx context.Context) (map[string]any, error) {
	out := map[string]any{}
	for _, name := range AuxiliaryOptionNames {
		v, ok, err := a.store.Get(ctx, name)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", name)
		}
		if ok {
			out[name] = v
		}
	}
	return out, nil
}

// WriteAuxiliaryOptions upserts each known option in options. Unknown names
// are skipped so an imported file cannot write arbitrary store keys.
func (a *Accessors) WriteAuxiliaryOptions(ctx context.Context, options map[string]any) error {
	for _, name := range sortedKeys(options) {
		if !IsAuxiliaryOption(name) {
			a.logger.Warn("skipping unknown auxiliary option", "name", name)
			continue
		}
		if err := a.store.Set(ctx, name, options[name]); err != nil {
			return errors.Wrapf(err, "setting %s", name)
		}
	}
	return nil
}

// ResetAuxiliaryOptions removes the known options. Legacy reset keeps the
// activation counter.
func (a *Accessors) ResetAuxiliaryOptions(ctx context.Context) error {
	for _, name := range AuxiliaryOptionNames {
		if a.legacyReset && name == ActivationCountKey {
			continue
		}
		if err := a.store.Remove(ctx, name); err != nil {
			return errors.Wrapf(err, "removing %s", name)
		}
	}
	return nil
}
