package monitor

import (
	"errors"
	"testing"

	"github.com/bnema/softbright/internal/config"
	"github.com/bnema/softbright/internal/shell"
	"github.com/bnema/softbright/internal/shell/shelltest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T, overrides map[string]any) (*Registry, *shelltest.Host, *config.Store, *int) {
	t.Helper()
	h := shelltest.NewHost()
	store := config.NewMemoryStore(h.Loop.Post, overrides)
	resolved := 0
	r := NewRegistry(h.Lay, h.DC, store, func() { resolved++ })
	return r, h, store, &resolved
}

func connect(r *Registry, h *shelltest.Host) {
	r.Connect()
	h.DC.CompleteConnect()
	h.Loop.Drain()
}

func indexes(ds []Descriptor) []int {
	out := make([]int, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Index)
	}
	return out
}

func TestRegistryResolvesNamesByConnector(t *testing.T) {
	r, h, _, resolved := newRegistry(t, nil)
	assert.False(t, r.Resolved())

	connect(r, h)
	require.True(t, r.Resolved())
	assert.Equal(t, 1, *resolved)

	// Outputs arrive as [HDMI-1, eDP-1]; the layout decides the indexes.
	name, ok := r.Name(0)
	require.True(t, ok)
	assert.Equal(t, "eDP-1", name)
	name, _ = r.Name(1)
	assert.Equal(t, "HDMI-1", name)

	ds := r.Descriptors()
	require.Len(t, ds, 2)
	assert.Equal(t, "HDMI-1", ds[1].Connector)
	assert.Equal(t, 2560, ds[1].Width)
}

func TestRegistrySelect(t *testing.T) {
	tests := []struct {
		name    string
		policy  string
		builtin string
		want    []int
		wantOK  bool
	}{
		{name: "all", policy: "all", want: []int{0, 1}, wantOK: true},
		{name: "built-in", policy: "built-in", builtin: "eDP-1", want: []int{0}, wantOK: true},
		{name: "external", policy: "external", builtin: "eDP-1", want: []int{1}, wantOK: true},
		{name: "unknown policy", policy: "left-only", builtin: "eDP-1", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, h, _, _ := newRegistry(t, map[string]any{
				config.KeyMonitors:       tt.policy,
				config.KeyBuiltinMonitor: tt.builtin,
			})
			connect(r, h)

			got, ok := r.Select()
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, indexes(got))
			}
		})
	}
}

func TestRegistrySelectAllWorksBeforeNames(t *testing.T) {
	r, _, _, _ := newRegistry(t, nil)

	got, ok := r.Select()
	require.True(t, ok)
	assert.Len(t, got, 2)
}

func TestRegistrySelectBuiltinWaitsForNames(t *testing.T) {
	r, _, _, _ := newRegistry(t, map[string]any{config.KeyMonitors: "external", config.KeyBuiltinMonitor: "eDP-1"})

	_, ok := r.Select()
	assert.False(t, ok)
}

func TestRegistryAssignsPrimaryAsBuiltin(t *testing.T) {
	r, h, store, _ := newRegistry(t, map[string]any{config.KeyMonitors: "built-in"})
	connect(r, h)

	notified := 0
	store.Connect(config.KeyBuiltinMonitor, func() { notified++ })

	_, ok := r.Select()
	assert.False(t, ok, "first pass is deferred")
	assert.Equal(t, "eDP-1", store.String(config.KeyBuiltinMonitor))
	assert.Equal(t, 0, notified, "notification is delivered on the next cycle")

	h.Loop.Drain()
	assert.Equal(t, 1, notified)

	got, ok := r.Select()
	require.True(t, ok)
	assert.Equal(t, []int{0}, indexes(got))
}

func TestRegistryRefreshErrorKeepsMapping(t *testing.T) {
	r, h, _, resolved := newRegistry(t, nil)
	connect(r, h)

	h.DC.Err = errors.New("no outputs in GetResources")
	r.Refresh()
	h.Loop.Drain()

	assert.Equal(t, 1, *resolved)
	name, ok := r.Name(0)
	require.True(t, ok)
	assert.Equal(t, "eDP-1", name)
}

func TestRegistryConnectFailure(t *testing.T) {
	r, h, _, resolved := newRegistry(t, nil)
	h.DC.ConnErr = errors.New("service unknown")
	connect(r, h)

	assert.False(t, r.Resolved())
	assert.Equal(t, 0, *resolved)
	assert.Equal(t, 0, h.DC.Queries)
}

func TestRegistryFollowsHotplug(t *testing.T) {
	r, h, _, resolved := newRegistry(t, nil)
	connect(r, h)

	h.DC.Names = []shell.OutputName{{DisplayName: "DELL U2720Q", Connector: "DP-2"}}
	h.Lay.Hotplug([]shell.Monitor{{Index: 0, Rect: shell.Rect{Width: 3840, Height: 2160}}}, map[string]int{"DP-2": 0})
	h.Loop.Drain()

	assert.Equal(t, 2, *resolved)
	name, _ := r.Name(0)
	assert.Equal(t, "DELL U2720Q", name)
	_, ok := r.Name(1)
	assert.False(t, ok)

	r.Disconnect()
	h.Lay.Hotplug(nil, nil)
	h.Loop.Drain()
	assert.Equal(t, 2, *resolved)
	assert.False(t, r.Resolved())
}
