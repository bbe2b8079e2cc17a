package accessor

import (
	"context"

	"github.com/thoreinstein/siteconf/internal/errors"
	"github.com/thoreinstein/siteconf/internal/store"
)

// ReadCustomizationValues returns every value in the customization namespace.
func (a *Accessors) ReadCustomizationValues(ctx context.Context) (map[string]any, error) {
	values, err := a.store.ListAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing customization values")
	}
	if values == nil {
		values = map[string]any{}
	}
	return values, nil
}

// WriteCustomizationValues sets each value. Names not in values are kept.
func (a *Accessors) WriteCustomizationValues(ctx context.Context, values map[string]any) error {
	for name, v := range values {
		if err := a.store.Set(ctx, store.CustomizationKey(name), v); err != nil {
			return errors.Wrapf(err, "setting %s", name)
		}
	}
	a.logger.Debug("wrote customization values", "count", len(values))
	return nil
}

// ResetCustomizationValues removes every customization value currently set.
// Keys outside the customization namespace are never touched.
func (a *Accessors) ResetCustomizationValues(ctx context.Context) error {
	values, err := a.store.ListAll(ctx)
	if err != nil {
		return errors.Wrap(err, "listing customization values")
	}
	for name := range values {
		if err := a.store.Remove(ctx, store.CustomizationKey(name)); err != nil {
			return errors.Wrapf(err, "removing %s", name)
		}
	}
	a.logger.Debug("reset customization values", "count", len(values))
	return nil
}
