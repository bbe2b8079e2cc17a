package accessor

import (
	"context"
	"maps"
	"slices"

	"github.com/thoreinstein/siteconf/internal/errors"
	"github.com/thoreinstein/siteconf/internal/snapshot"
)

// ReadMenuAssignments returns the menu location bindings. Menu IDs are
// normalized to decimal strings.
func (a *Accessors) ReadMenuAssignments(ctx context.Context) (map[string]string, error) {
	v, ok, err := a.store.Get(ctx, MenuLocationsKey)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", MenuLocationsKey)
	}
	out := map[string]string{}
	if !ok || v == nil {
		return out, nil
	}
	raw, isMap := v.(map[string]any)
	if !isMap {
		a.logger.Warn("ignoring menu assignments with unexpected shape")
		return out, nil
	}
	for location, id := range raw {
		menuID, valid := snapshot.MenuID(id)
		if !valid {
			a.logger.Warn("skipping menu assignment with invalid id", "location", location)
			continue
		}
		out[location] = menuID
	}
	return out, nil
}

// WriteMenuAssignments replaces the bindings mapping.
func (a *Accessors) WriteMenuAssignments(ctx context.Context, assignments map[string]string) error {
	if assignments == nil {
		assignments = map[string]string{}
	}
	if err := a.store.Set(ctx, MenuLocationsKey, assignments); err != nil {
		return errors.Wrapf(err, "setting %s", MenuLocationsKey)
	}
	return nil
}

// ResetMenuAssignments removes the bindings key.
func (a *Accessors) ResetMenuAssignments(ctx context.Context) error {
	return errors.Wrapf(a.store.Remove(ctx, MenuLocationsKey), "removing %s", MenuLocationsKey)
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
