package accessor

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thoreinstein/siteconf/internal/logging"
	"github.com/thoreinstein/siteconf/internal/snapshot"
	"github.com/thoreinstein/siteconf/internal/store"
)

func seed(t *testing.T, s store.Store, values map[string]any) {
	t.Helper()
	for k, v := range values {
		require.NoError(t, s.Set(context.Background(), k, v))
	}
}

func get(t *testing.T, s store.Store, key string) (any, bool) {
	t.Helper()
	v, ok, err := s.Get(context.Background(), key)
	require.NoError(t, err)
	return v, ok
}

func newFixture(t *testing.T, opts ...Option) (*Accessors, *store.Memory) {
	t.Helper()
	s := store.NewMemory()
	opts = append([]Option{WithLogger(logging.ForTest(t))}, opts...)
	return New(s, opts...), s
}

func TestParseWidgetID(t *testing.T) {
	tests := []struct {
		id        string
		wantType  string
		wantIndex string
		wantOK    bool
	}{
		{"text-2", "text", "2", true},
		{"recent-posts-12", "recent-posts", "12", true},
		{"search", "", "", false},
		{"text-", "", "", false},
		{"-3", "", "", false},
		{"text-2a", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			gotType, gotIndex, ok := ParseWidgetID(tt.id)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantType, gotType)
			assert.Equal(t, tt.wantIndex, gotIndex)
		})
	}
}

func TestCustomizationValues(t *testing.T) {
	ctx := context.Background()
	a, s := newFixture(t)
	seed(t, s, map[string]any{
		store.CustomizationKey("primary_color"): "#112233",
		store.CustomizationKey("layout"):        "wide",
		"unrelated":                             "keep",
	})

	got, err := a.ReadCustomizationValues(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"primary_color": "#112233", "layout": "wide"}, got)

	require.NoError(t, a.WriteCustomizationValues(ctx, map[string]any{"primary_color": "#000000"}))
	got, err = a.ReadCustomizationValues(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"primary_color": "#000000", "layout": "wide"}, got, "write is additive")

	require.NoError(t, a.ResetCustomizationValues(ctx))
	got, err = a.ReadCustomizationValues(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	v, ok := get(t, s, "unrelated")
	assert.True(t, ok)
	assert.Equal(t, "keep", v)
}

func TestWidgetData_Read(t *testing.T) {
	ctx := context.Background()
	a, s := newFixture(t)
	seed(t, s, map[string]any{
		SidebarsKey: map[string]any{
			"sidebar-1":     []any{"text-2", "search-3"},
			"footer":        []any{"text-4"},
			"array_version": 3,
		},
		WidgetKey("text"):   map[string]any{"2": map[string]any{"title": "Hi"}, "4": map[string]any{}},
		WidgetKey("search"): map[string]any{"3": map[string]any{"title": "Find"}},
		WidgetKey("unused"): map[string]any{"1": "x"},
	})

	wd, err := a.ReadWidgetData(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"sidebar-1": {"text-2", "search-3"},
		"footer":    {"text-4"},
	}, wd.Sidebars)
	assert.Len(t, wd.Instances, 2)
	assert.Equal(t, map[string]any{"3": map[string]any{"title": "Find"}}, wd.Instances["search"])
	assert.NotContains(t, wd.Instances, "unused")
}

func TestWidgetData_ReadEmptyStore(t *testing.T) {
	a, _ := newFixture(t)
	wd, err := a.ReadWidgetData(context.Background())
	require.NoError(t, err)
	require.NotNil(t, wd)
	assert.Empty(t, wd.Sidebars)
	assert.Empty(t, wd.Instances)
}

func TestWidgetData_WriteReplacesSidebars(t *testing.T) {
	ctx := context.Background()
	a, s := newFixture(t)
	seed(t, s, map[string]any{
		SidebarsKey: map[string]any{"old": []any{"text-1"}},
	})

	require.NoError(t, a.WriteWidgetData(ctx, &snapshot.WidgetData{
		Sidebars:  map[string][]string{"sidebar-1": {"text-2"}},
		Instances: map[string]map[string]any{"text": {"2": map[string]any{"title": "New"}}},
	}))

	v, _ := get(t, s, SidebarsKey)
	assert.Equal(t, map[string]any{"sidebar-1": []any{"text-2"}}, v)
	v, _ = get(t, s, WidgetKey("text"))
	assert.Equal(t, map[string]any{"2": map[string]any{"title": "New"}}, v)
}

func TestWidgetData_WriteSkipsUnreferencedTypes(t *testing.T) {
	ctx := context.Background()
	a, s := newFixture(t)

	require.NoError(t, a.WriteWidgetData(ctx, &snapshot.WidgetData{
		Sidebars: map[string][]string{"sidebar-1": {"text-2"}},
		Instances: map[string]map[string]any{
			"text":   {"2": map[string]any{"title": "New"}},
			"search": {"3": map[string]any{"title": "Find"}},
		},
	}))

	_, ok := get(t, s, WidgetKey("text"))
	assert.True(t, ok)
	_, ok = get(t, s, WidgetKey("search"))
	assert.False(t, ok, "types no sidebar references are never written")
}

func TestWidgetData_Reset(t *testing.T) {
	fixture := map[string]any{
		SidebarsKey:       map[string]any{"sidebar-1": []any{"text-2"}},
		WidgetKey("text"): map[string]any{"2": map[string]any{"title": "Hi"}},
	}

	t.Run("symmetric", func(t *testing.T) {
		a, s := newFixture(t)
		seed(t, s, fixture)
		require.NoError(t, a.ResetWidgetData(context.Background()))

		v, _ := get(t, s, SidebarsKey)
		assert.Equal(t, map[string]any{}, v)
		_, ok := get(t, s, WidgetKey("text"))
		assert.False(t, ok)
	})

	t.Run("legacy", func(t *testing.T) {
		a, s := newFixture(t, WithLegacyReset())
		seed(t, s, fixture)
		require.NoError(t, a.ResetWidgetData(context.Background()))

		v, _ := get(t, s, SidebarsKey)
		assert.Equal(t, map[string]any{}, v)
		_, ok := get(t, s, WidgetKey("text"))
		assert.True(t, ok, "legacy reset leaves instance settings orphaned")
	})
}

func TestMenuAssignments(t *testing.T) {
	ctx := context.Background()
	a, s := newFixture(t)
	seed(t, s, map[string]any{
		MenuLocationsKey: map[string]any{"header": 42, "footer": "7", "broken": []any{}},
	})

	got, err := a.ReadMenuAssignments(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"header": "42", "footer": "7"}, got)

	require.NoError(t, a.WriteMenuAssignments(ctx, map[string]string{"primary": "3"}))
	got, err = a.ReadMenuAssignments(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"primary": "3"}, got, "write replaces the mapping")

	require.NoError(t, a.ResetMenuAssignments(ctx))
	_, ok := get(t, s, MenuLocationsKey)
	assert.False(t, ok)
}

func TestAuxiliaryOptions(t *testing.T) {
	ctx := context.Background()
	a, s := newFixture(t)
	seed(t, s, map[string]any{
		"setup_complete":   false,
		ActivationCountKey: 3,
		"blogname":         "Example",
	})

	got, err := a.ReadAuxiliaryOptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"setup_complete": false, ActivationCountKey: json.Number("3")}, got)

	require.NoError(t, a.WriteAuxiliaryOptions(ctx, map[string]any{
		"setup_complete": true,
		"blogname":       "Hijacked",
	}))
	v, _ := get(t, s, "setup_complete")
	assert.Equal(t, true, v)
	v, _ = get(t, s, "blogname")
	assert.Equal(t, "Example", v, "unknown options are never written")
}

func TestAuxiliaryOptions_Reset(t *testing.T) {
	fixture := map[string]any{
		"setup_complete":   true,
		"setup_step":       2,
		ActivationCountKey: 5,
	}

	t.Run("symmetric", func(t *testing.T) {
		a, s := newFixture(t)
		seed(t, s, fixture)
		require.NoError(t, a.ResetAuxiliaryOptions(context.Background()))
		got, err := a.ReadAuxiliaryOptions(context.Background())
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("legacy", func(t *testing.T) {
		a, s := newFixture(t, WithLegacyReset())
		seed(t, s, fixture)
		require.NoError(t, a.ResetAuxiliaryOptions(context.Background()))
		got, err := a.ReadAuxiliaryOptions(context.Background())
		require.NoError(t, err)
		assert.Equal(t, map[string]any{ActivationCountKey: json.Number("5")}, got)
	})
}

func TestCaptureApplyRoundTrip(t *testing.T) {
	ctx := context.Background()
	src, s := newFixture(t)
	seed(t, s, map[string]any{
		store.CustomizationKey("primary_color"): "#112233",
		SidebarsKey:                             map[string]any{"sidebar-1": []any{"text-2"}},
		WidgetKey("text"):                       map[string]any{"2": map[string]any{"title": "Hi"}},
		MenuLocationsKey:                        map[string]any{"header": "42"},
		"setup_complete":                        true,
	})

	d, err := src.Capture(ctx)
	require.NoError(t, err)
	assert.Len(t, d.Present(), 4)

	dst, _ := newFixture(t)
	applied, err := dst.Apply(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, d.Present(), applied)

	again, err := dst.Capture(ctx)
	require.NoError(t, err)
	assert.Equal(t, d, again)
}

func TestApply_PartialLeavesOtherDomains(t *testing.T) {
	ctx := context.Background()
	a, s := newFixture(t)
	seed(t, s, map[string]any{
		store.CustomizationKey("primary_color"): "#112233",
		"setup_complete":                        false,
	})
	before, err := a.Capture(ctx)
	require.NoError(t, err)

	applied, err := a.Apply(ctx, snapshot.Domains{
		MenuAssignments: map[string]string{"header": "9"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{snapshot.DomainMenuAssignments}, applied)

	after, err := a.Capture(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.CustomizationValues, after.CustomizationValues)
	assert.Equal(t, before.WidgetData, after.WidgetData)
	assert.Equal(t, before.AuxiliaryOptions, after.AuxiliaryOptions)
	assert.Equal(t, map[string]string{"header": "9"}, after.MenuAssignments)
}

func TestResetAll(t *testing.T) {
	ctx := context.Background()
	a, s := newFixture(t)
	seed(t, s, map[string]any{
		store.CustomizationKey("primary_color"): "#112233",
		SidebarsKey:                             map[string]any{"sidebar-1": []any{"text-2"}},
		MenuLocationsKey:                        map[string]any{"header": "42"},
		"notice_dismissed":                      true,
	})

	require.NoError(t, a.ResetAll(ctx))

	d, err := a.Capture(ctx)
	require.NoError(t, err)
	assert.Empty(t, d.CustomizationValues)
	assert.Empty(t, d.WidgetData.Sidebars)
	assert.Empty(t, d.MenuAssignments)
	assert.Empty(t, d.AuxiliaryOptions)
}
