package host

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bnema/softbright/internal/config"
	"github.com/bnema/softbright/internal/control"
	"github.com/bnema/softbright/internal/display"
	"github.com/bnema/softbright/internal/extension"
	"github.com/bnema/softbright/internal/mainloop"
	"github.com/bnema/softbright/internal/shell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticBackend struct {
	name     string
	monitors []display.Monitor
}

func (b *staticBackend) Name() string {
	if b.name != "" {
		return b.name
	}
	return "static"
}
func (b *staticBackend) GetMonitors() ([]*display.Monitor, error) {
	out := make([]*display.Monitor, len(b.monitors))
	for i := range b.monitors {
		m := b.monitors[i]
		out[i] = &m
	}
	return out, nil
}
func (b *staticBackend) GetCursorPosition() (int32, int32, error) { return 0, 0, display.ErrNoCursor }
func (b *staticBackend) Close() error                             { return nil }

func newTestHost(t *testing.T) (*Host, *mainloop.Loop) {
	t.Helper()
	d, err := display.NewWithBackend(&staticBackend{monitors: []display.Monitor{
		{Name: "eDP-1", Description: "BOE 0x0BCA", Width: 1920, Height: 1080, Refresh: 120},
		{Name: "HDMI-A-1", X: 1920, Width: 2560, Height: 1440},
	}})
	require.NoError(t, err)
	loop := mainloop.New()
	return New(loop, d, Options{}), loop
}

func TestSceneStacking(t *testing.T) {
	s := NewScene()
	changes := 0
	s.OnActorsChanged(func() { changes++ })

	ours := s.NewGroup("softbright-overlays")
	overlay := s.NewOverlay(shell.Rect{Width: 100, Height: 100})
	overlay.SetOpacity(153)
	ours.Add(overlay)
	cursor := s.NewCursorActor()
	cursor.SetSprite(shell.Sprite{Width: 24, Height: 24})
	cursor.SetPosition(10, 20)
	ours.Add(cursor)

	s.NewGroup("panel")
	assert.Equal(t, "panel", s.TopGroup())
	assert.Equal(t, 4, changes)

	ours.RaiseTop()
	overlay.RaiseTop()
	assert.Equal(t, "softbright-overlays", s.TopGroup())

	layers := s.Layers()
	require.Len(t, layers, 2)
	assert.Equal(t, "cursor", layers[0].Kind)
	assert.Equal(t, shell.Rect{X: 10, Y: 20, Width: 24, Height: 24}, layers[0].Rect)
	assert.Equal(t, "overlay", layers[1].Kind)
	assert.Equal(t, uint8(153), layers[1].Opacity)

	ours.Remove(cursor)
	ours.Remove(cursor)
	assert.Len(t, s.Layers(), 1)
	s.DestroyGroup(ours)
	assert.Empty(t, s.Layers())
}

func TestTrackerVisibility(t *testing.T) {
	var posted []func()
	tr := NewTracker(func(fn func()) { posted = append(posted, fn) }, nil, nil)

	notified := 0
	disconnect := tr.OnVisibilityChanged(func() { notified++ })
	assert.Equal(t, int32(1), tr.followers.Load())

	tr.PointerVisibility().Current()(false)
	tr.PointerVisibility().Current()(false)
	assert.False(t, tr.Visible())
	require.Len(t, posted, 1, "only changes notify")
	posted[0]()
	assert.Equal(t, 1, notified)

	disconnect()
	assert.Equal(t, int32(0), tr.followers.Load())
}

func TestCursorSubscriptionKeepsSampling(t *testing.T) {
	t.Setenv("XCURSOR_SIZE", "48")
	tr := NewTracker(func(fn func()) { fn() }, nil, nil)

	disconnect := tr.OnCursorChanged(func() { t.Fatal("the image never changes") })
	assert.Equal(t, int32(1), tr.followers.Load())
	assert.Equal(t, shell.Sprite{Width: 48, Height: 48}, tr.Sprite())
	disconnect()
	assert.Equal(t, int32(0), tr.followers.Load())
}

func TestThemeSprite(t *testing.T) {
	t.Setenv("XCURSOR_SIZE", "32")
	assert.Equal(t, shell.Sprite{Width: 32, Height: 32}, themeSprite())
	t.Setenv("XCURSOR_SIZE", "huge")
	assert.Equal(t, 24, themeSprite().Width)
}

func TestParseOption(t *testing.T) {
	v, err := parseOption([]byte(`{"option":"render:direct_scanout","int":1,"set":false}`))
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	v, err = parseOption([]byte(`{"option":"misc:x","float":0.5}`))
	require.NoError(t, err)
	assert.Equal(t, "0.5", v)

	_, err = parseOption([]byte(`{"option":"missing"}`))
	assert.Error(t, err)
}

// stubHyprctl records hyprctl invocations; each takes a few milliseconds.
func stubHyprctl(t *testing.T, original string) func() []string {
	t.Helper()
	var mu sync.Mutex
	var calls []string
	prev := runCommand
	runCommand = func(name string, args ...string) ([]byte, error) {
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		calls = append(calls, strings.Join(args, " "))
		mu.Unlock()
		if args[0] == "getoption" {
			return []byte(`{"int":` + original + `}`), nil
		}
		return nil, nil
	}
	t.Cleanup(func() { runCommand = prev })
	return func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), calls...)
	}
}

func TestKeywordCloseFlushesRestore(t *testing.T) {
	calls := stubHyprctl(t, "1")
	k := newKeyword("render:direct_scanout")

	k.Set("0")
	require.Eventually(t, func() bool {
		c := calls()
		return len(c) == 2 && c[1] == "keyword render:direct_scanout 0"
	}, time.Second, time.Millisecond)

	k.Restore()
	k.Close()
	c := calls()
	require.Len(t, c, 3)
	assert.Equal(t, "keyword render:direct_scanout 1", c[2])

	k.Set("0")
	k.Close()
	assert.Len(t, calls(), 3, "closed keywords ignore requests")
}

func TestPointerHidingIsOptIn(t *testing.T) {
	calls := stubHyprctl(t, "0")
	newHyprlandHost := func(opts Options) *Host {
		d, err := display.NewWithBackend(&staticBackend{name: "hyprland", monitors: []display.Monitor{
			{Name: "eDP-1", Width: 1920, Height: 1080},
		}})
		require.NoError(t, err)
		h := New(mainloop.New(), d, opts)
		t.Cleanup(func() { h.Close() })
		return h
	}

	h := newHyprlandHost(Options{})
	require.NotNil(t, h.comp.scanout)
	assert.Nil(t, h.tracker.hide)
	h.tracker.PointerVisibility().Current()(false)
	assert.False(t, h.tracker.Visible())
	assert.Empty(t, calls(), "the real pointer stays on screen")

	h = newHyprlandHost(Options{HidePointer: true})
	require.NotNil(t, h.tracker.hide)
	h.tracker.PointerVisibility().Current()(false)
	assert.Eventually(t, func() bool {
		c := calls()
		return len(c) == 2 && c[1] == "keyword cursor:invisible 1"
	}, time.Second, time.Millisecond)
}

func TestIsHotplugEvent(t *testing.T) {
	assert.True(t, isHotplugEvent("monitoradded>>DP-2"))
	assert.True(t, isHotplugEvent("monitorremovedv2>>1,DP-2,Dell"))
	assert.False(t, isHotplugEvent("workspace>>2"))
	assert.False(t, isHotplugEvent(""))
}

func TestHostRunsTheExtension(t *testing.T) {
	h, loop := newTestHost(t)
	assert.Equal(t, 120.0, h.comp.RefreshRate())

	store := config.NewMemoryStore(loop.Post, map[string]any{config.KeyCurrentBrightness: 0.4})
	svc := control.NewService(loop.Invoke, h.Shooter())
	ext := extension.New(h, store, svc)
	ext.OnStatus(func(st extension.Status) { svc.PublishState(st) })

	require.NoError(t, ext.Enable())
	loop.Drain()

	var overlays []Layer
	for _, l := range h.Scene().Layers() {
		if l.Kind == "overlay" {
			overlays = append(overlays, l)
		}
	}
	require.Len(t, overlays, 2)
	assert.Equal(t, shell.Rect{X: 1920, Width: 2560, Height: 1440}, overlays[1].Rect)
	assert.Equal(t, uint8(153), overlays[0].Opacity)
	assert.True(t, h.comp.Prevented())
	assert.Equal(t, 0.4, svc.Value())

	st := ext.Status()
	require.Len(t, st.Monitors, 2)
	assert.Equal(t, "BOE 0x0BCA", st.Monitors[0].Name)

	require.NoError(t, ext.Disable())
	loop.Drain()
	assert.Empty(t, h.Scene().Layers())
	assert.False(t, h.comp.Prevented())
}
