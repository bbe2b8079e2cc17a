package accessor

import (
	"context"
	"slices"
	"strings"

	"github.com/thoreinstein/siteconf/internal/errors"
	"github.com/thoreinstein/siteconf/internal/snapshot"
)

// ParseWidgetID splits a widget instance ID such as "text-2" into its type
// ("text") and instance index ("2"). IDs without a numeric suffix are not
// instances of a multi-instance widget and report ok=false.
func ParseWidgetID(id string) (widgetType, index string, ok bool) {
	i := strings.LastIndexByte(id, '-')
	if i <= 0 || i == len(id)-1 {
		return "", "", false
	}
	for _, r := range id[i+1:] {
		if r < '0' || r > '9' {
			return "", "", false
		}
	}
	return id[:i], id[i+1:], true
}

// ReadWidgetData returns the sidebar assignments and the instance settings
// of every widget type they reference.
func (a *Accessors) ReadWidgetData(ctx context.Context) (*snapshot.WidgetData, error) {
	sidebars, err := a.readSidebars(ctx)
	if err != nil {
		return nil, err
	}

	wd := &snapshot.WidgetData{
		Sidebars:  sidebars,
		Instances: map[string]map[string]any{},
	}
	for _, widgetType := range referencedTypes(sidebars) {
		v, ok, err := a.store.Get(ctx, WidgetKey(widgetType))
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", WidgetKey(widgetType))
		}
		if !ok {
			continue
		}
		settings, isMap := v.(map[string]any)
		if !isMap {
			a.logger.Warn("skipping widget settings with unexpected shape", "type", widgetType)
			continue
		}
		wd.Instances[widgetType] = settings
	}
	return wd, nil
}

// WriteWidgetData replaces the sidebar assignments wholesale and overwrites
// the settings of every widget type those sidebars reference. Settings for
// types no sidebar references are skipped, mirroring ReadWidgetData.
func (a *Accessors) WriteWidgetData(ctx context.Context, wd *snapshot.WidgetData) error {
	sidebars := wd.Sidebars
	if sidebars == nil {
		sidebars = map[string][]string{}
	}
	if err := a.store.Set(ctx, SidebarsKey, sidebars); err != nil {
		return errors.Wrapf(err, "setting %s", SidebarsKey)
	}

	referenced := referencedTypes(sidebars)
	for _, widgetType := range sortedKeys(wd.Instances) {
		if !slices.Contains(referenced, widgetType) {
			a.logger.Warn("skipping settings for unreferenced widget type", "type", widgetType)
		}
	}

	written := 0
	for _, widgetType := range referenced {
		settings, ok := wd.Instances[widgetType]
		if !ok {
			continue
		}
		if settings == nil {
			settings = map[string]any{}
		}
		if err := a.store.Set(ctx, WidgetKey(widgetType), settings); err != nil {
			return errors.Wrapf(err, "setting %s", WidgetKey(widgetType))
		}
		written++
	}
	a.logger.Debug("wrote widget data", "sidebars", len(sidebars), "types", written)
	return nil
}

// ResetWidgetData empties every sidebar. Unless legacy reset is enabled it
// also removes the settings of the widget types the sidebars referenced.
func (a *Accessors) ResetWidgetData(ctx context.Context) error {
	var types []string
	if !a.legacyReset {
		sidebars, err := a.readSidebars(ctx)
		if err != nil {
			return err
		}
		types = referencedTypes(sidebars)
	}

	if err := a.store.Set(ctx, SidebarsKey, map[string][]string{}); err != nil {
		return errors.Wrapf(err, "setting %s", SidebarsKey)
	}
	for _, widgetType := range types {
		if err := a.store.Remove(ctx, WidgetKey(widgetType)); err != nil {
			return errors.Wrapf(err, "removing %s", WidgetKey(widgetType))
		}
	}
	a.logger.Debug("reset widget data", "types_removed", len(types))
	return nil
}

// readSidebars loads the sidebar assignments. Non-list entries (such as a
// version marker) and non-string instance IDs are dropped.
func (a *Accessors) readSidebars(ctx context.Context) (map[string][]string, error) {
	v, ok, err := a.store.Get(ctx, SidebarsKey)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", SidebarsKey)
	}
	sidebars := map[string][]string{}
	if !ok || v == nil {
		return sidebars, nil
	}
	raw, isMap := v.(map[string]any)
	if !isMap {
		a.logger.Warn("ignoring sidebar assignments with unexpected shape")
		return sidebars, nil
	}
	for sidebar, entry := range raw {
		list, isList := entry.([]any)
		if !isList {
			continue
		}
		ids := make([]string, 0, len(list))
		for _, item := range list {
			if id, isString := item.(string); isString {
				ids = append(ids, id)
			}
		}
		sidebars[sidebar] = ids
	}
	return sidebars, nil
}

// referencedTypes returns the distinct widget types in sidebars in first-seen
// order over sorted sidebar IDs.
func referencedTypes(sidebars map[string][]string) []string {
	seen := make(map[string]bool)
	var types []string
	for _, sidebar := range sortedKeys(sidebars) {
		for _, id := range sidebars[sidebar] {
			widgetType, _, ok := ParseWidgetID(id)
			if !ok || seen[widgetType] {
				continue
			}
			seen[widgetType] = true
			types = append(types, widgetType)
		}
	}
	return types
}
