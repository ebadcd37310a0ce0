package brightness

import (
	"fmt"
	"math"
	"testing"

	"github.com/bnema/softbright/internal/config"
	"github.com/bnema/softbright/internal/cursor"
	"github.com/bnema/softbright/internal/intercept"
	"github.com/bnema/softbright/internal/monitor"
	"github.com/bnema/softbright/internal/overlay"
	"github.com/bnema/softbright/internal/shell"
	"github.com/bnema/softbright/internal/shell/shelltest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rig struct {
	h      *shelltest.Host
	store  *config.Store
	reg    *monitor.Registry
	rend   *overlay.Renderer
	cloner *cursor.Cloner
	ctrl   *Controller
	bridge *Bridge
	slider *shelltest.Slider
}

// newRig wires the core the way the extension does, without the startup
// delay. The backlight starts unsupported and not connected.
func newRig(t *testing.T, overrides map[string]any) *rig {
	t.Helper()
	r := &rig{h: shelltest.NewHost(), slider: &shelltest.Slider{}}
	r.store = config.NewMemoryStore(r.h.Loop.Post, overrides)

	group := r.h.Stg.NewGroup("softbright")
	r.reg = monitor.NewRegistry(r.h.Lay, r.h.DC, r.store, func() { r.ctrl.OnBrightnessChange(true) })
	r.rend = overlay.NewRenderer(group, r.h.Stg, r.h.Comp, r.store, r.reg)
	r.cloner = cursor.NewCloner(r.h.Loop, r.h.Stg, group, r.h.Curs, r.h.In, shell.Negotiate(r.h), func() { r.rend.Restack() })
	require.NoError(t, r.cloner.Enable())
	r.cloner.Arm()

	r.ctrl = NewController(r.store, r.h.BL, r.rend, r.cloner)
	r.ctrl.Enable()
	r.bridge = NewBridge(r.ctrl)
	r.bridge.Attach(r.slider)

	changed := func() { r.ctrl.OnBrightnessChange(false) }
	forced := func() { r.ctrl.OnBrightnessChange(true) }
	r.store.Connect(config.KeyCurrentBrightness, r.bridge.Sync)
	r.store.Connect(config.KeyMinBrightness, changed)
	r.store.Connect(config.KeyCloneMouse, changed)
	r.store.Connect(config.KeyMonitors, forced)
	r.store.Connect(config.KeyBuiltinMonitor, forced)
	r.store.Connect(config.KeyUseBacklight, r.ctrl.OnUseBacklightChange)
	r.h.BL.OnChanged(r.bridge.Sync)
	r.h.BL.Connect(func(err error) { r.bridge.Sync() })
	return r
}

// backlight makes the backlight connected and reporting percent.
func (r *rig) backlight(percent int) {
	r.h.BL.Percent = percent
	r.h.BL.CompleteConnect()
	r.h.Loop.Drain()
}

func (r *rig) alphas() []uint8 {
	var out []uint8
	for _, o := range r.h.Stg.Visible() {
		out = append(out, o.Alpha)
	}
	return out
}

func TestToPercent(t *testing.T) {
	tests := []struct {
		v    float64
		want int
	}{
		{0, 0},
		{0.5, 50},
		{0.125, 13},
		{0.997, 100},
		{1, 100},
		{1.3, 100},
		{-0.2, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ToPercent(tt.v), "v=%v", tt.v)
	}
}

func TestBacklightRoundTrip(t *testing.T) {
	r := newRig(t, map[string]any{config.KeyUseBacklight: true})
	r.backlight(70)

	r.ctrl.StoreLevel(0.5)
	assert.Equal(t, 50, r.h.BL.Percent)
	assert.Equal(t, 0.5, r.ctrl.Level())

	r.ctrl.StoreLevel(0.997)
	assert.Equal(t, 100, r.h.BL.Percent)
	assert.Equal(t, 1.0, r.ctrl.Level())
}

func TestUnsupportedBacklightFallsBackToSetting(t *testing.T) {
	r := newRig(t, map[string]any{config.KeyUseBacklight: true, config.KeyCurrentBrightness: 0.6})
	r.backlight(-1)

	assert.Equal(t, 0.6, r.ctrl.Level())
	r.ctrl.StoreLevel(0.7)
	assert.Empty(t, r.h.BL.Writes)
	assert.Equal(t, 0.7, r.store.Double(config.KeyCurrentBrightness))
}

func TestDimsEveryMonitor(t *testing.T) {
	r := newRig(t, map[string]any{config.KeyCurrentBrightness: 0.4})

	var states []State
	r.ctrl.SetObserver(func(s State, level float64) { states = append(states, s) })
	r.ctrl.OnBrightnessChange(false)

	assert.Equal(t, []uint8{153, 153}, r.alphas())
	assert.True(t, r.cloner.Watching())
	assert.False(t, r.h.Curs.RealVisible)
	assert.Equal(t, Dimmed, r.ctrl.State())
	assert.Equal(t, []State{Dimmed}, states)

	// The clone sits below the overlays.
	group := r.h.Stg.Groups[0]
	require.Len(t, group.Children, 3)
	assert.Equal(t, shell.Actor(r.h.Stg.Cursors[0]), group.Children[0])
}

func TestEvaluationIsIdempotent(t *testing.T) {
	r := newRig(t, map[string]any{config.KeyCurrentBrightness: 0.4})

	r.ctrl.OnBrightnessChange(false)
	r.ctrl.OnBrightnessChange(false)

	assert.Equal(t, 2, r.h.Stg.Created)
	assert.Equal(t, 0, r.h.Stg.Removed)
	assert.Equal(t, []uint8{153, 153}, r.alphas())
}

func TestFloorCorrectionBySetting(t *testing.T) {
	r := newRig(t, map[string]any{config.KeyCurrentBrightness: 0.05, config.KeyMinBrightness: 0.1})

	r.ctrl.OnBrightnessChange(false)
	assert.Empty(t, r.alphas(), "no overlay change until the correction lands")
	assert.Equal(t, 0.1, r.store.Double(config.KeyCurrentBrightness))
	assert.Equal(t, 0.1, r.slider.Val)

	r.h.Loop.Drain()
	assert.Equal(t, []uint8{overlay.Opacity(0.1)}, r.alphas()[:1])
	assert.Equal(t, AtFloor, r.ctrl.State())
	assert.Equal(t, 0.1, r.ctrl.Level())
}

func TestFloorCorrectionByBacklight(t *testing.T) {
	r := newRig(t, map[string]any{config.KeyUseBacklight: true, config.KeyMinBrightness: 0.1})
	r.backlight(3)

	assert.Equal(t, []int{10}, r.h.BL.Writes)
	assert.Equal(t, 0.1, r.ctrl.Level())
	assert.Equal(t, AtFloor, r.ctrl.State())
	assert.Equal(t, []uint8{230, 230}, r.alphas())
}

func TestFloorBetweenPercentagesConverges(t *testing.T) {
	r := newRig(t, map[string]any{config.KeyUseBacklight: true, config.KeyMinBrightness: 0.104})
	r.backlight(5)

	assert.Equal(t, []int{10}, r.h.BL.Writes)
	assert.Equal(t, AtFloor, r.ctrl.State())
	assert.Equal(t, 0, r.h.Loop.Pending())
}

func TestFullBrightTearsDown(t *testing.T) {
	r := newRig(t, map[string]any{config.KeyCurrentBrightness: 0.4})
	r.ctrl.OnBrightnessChange(false)
	require.True(t, r.rend.Visible())
	require.True(t, r.h.Comp.(*shelltest.Compositor).Prevented)

	r.store.SetDouble(config.KeyCurrentBrightness, 1.0)
	r.h.Loop.Drain()

	assert.Empty(t, r.alphas())
	assert.False(t, r.cloner.Watching())
	assert.True(t, r.h.Curs.RealVisible)
	assert.False(t, r.h.Comp.(*shelltest.Compositor).Prevented)
	assert.Equal(t, FullBright, r.ctrl.State())
	assert.Equal(t, 1.0, r.slider.Val)
}

func TestNonFiniteLevelIsFullBright(t *testing.T) {
	r := newRig(t, map[string]any{config.KeyCurrentBrightness: math.NaN()})
	assert.Equal(t, 1.0, r.ctrl.Level())

	r.ctrl.OnBrightnessChange(false)
	assert.Empty(t, r.alphas())
	assert.Equal(t, FullBright, r.ctrl.State())
}

func TestWaitsForBacklightConnection(t *testing.T) {
	r := newRig(t, map[string]any{config.KeyUseBacklight: true})

	r.ctrl.OnBrightnessChange(false)
	assert.Equal(t, Disabled, r.ctrl.State())
	assert.Empty(t, r.alphas())

	r.backlight(40)
	assert.Equal(t, Dimmed, r.ctrl.State())
	assert.Equal(t, []uint8{153, 153}, r.alphas())
	assert.Equal(t, 0.4, r.slider.Val)
}

func TestUseBacklightToggle(t *testing.T) {
	t.Run("off captures the backlight", func(t *testing.T) {
		r := newRig(t, map[string]any{config.KeyUseBacklight: true, config.KeyCurrentBrightness: 0.3})
		r.backlight(80)

		r.store.SetBool(config.KeyUseBacklight, false)
		r.h.Loop.Drain()

		assert.Equal(t, 0.8, r.store.Double(config.KeyCurrentBrightness))
		assert.Equal(t, []uint8{51, 51}, r.alphas())
	})

	t.Run("on pushes the setting", func(t *testing.T) {
		r := newRig(t, map[string]any{config.KeyCurrentBrightness: 0.3})
		r.backlight(80)

		r.store.SetBool(config.KeyUseBacklight, true)
		r.h.Loop.Drain()

		assert.Equal(t, 30, r.h.BL.Percent)
		assert.Equal(t, 0.3, r.ctrl.Level())
		assert.Equal(t, []uint8{overlay.Opacity(0.3), overlay.Opacity(0.3)}, r.alphas())
	})
}

func TestSliderDragWritesThrough(t *testing.T) {
	r := newRig(t, nil)
	setCalls := r.slider.SetCalls

	r.slider.Drag(0.6)
	r.h.Loop.Drain()

	assert.Equal(t, 0.6, r.store.Double(config.KeyCurrentBrightness))
	assert.Equal(t, []uint8{overlay.Opacity(0.6), overlay.Opacity(0.6)}, r.alphas())
	// One display refresh from the sync, and it did not write back.
	assert.Equal(t, setCalls+1, r.slider.SetCalls)
	assert.Equal(t, 0, r.h.Loop.Pending())
}

func TestCloneMouseDisabled(t *testing.T) {
	r := newRig(t, map[string]any{config.KeyCurrentBrightness: 0.4, config.KeyCloneMouse: false})

	r.ctrl.OnBrightnessChange(false)
	assert.Len(t, r.alphas(), 2)
	assert.False(t, r.cloner.Watching())
	assert.True(t, r.h.Curs.RealVisible)

	r.store.SetBool(config.KeyCloneMouse, true)
	r.h.Loop.Drain()
	assert.True(t, r.cloner.Watching())
	assert.False(t, r.h.Curs.RealVisible)
}

func TestBuiltinPolicyWaitsForNames(t *testing.T) {
	r := newRig(t, map[string]any{config.KeyCurrentBrightness: 0.4, config.KeyMonitors: "built-in"})

	r.ctrl.OnBrightnessChange(false)
	assert.Empty(t, r.alphas())
	assert.False(t, r.cloner.Engaged())
	assert.True(t, r.h.Curs.RealVisible)

	// Names resolve, the built-in monitor gets assigned, then it dims.
	r.reg.Connect()
	r.h.DC.CompleteConnect()
	r.h.Loop.Drain()

	assert.Equal(t, "eDP-1", r.store.String(config.KeyBuiltinMonitor))
	require.Len(t, r.alphas(), 1)
	assert.Equal(t, 1920, r.h.Stg.Visible()[0].Rect.Width)
	assert.True(t, r.cloner.Watching())

	r.store.SetString(config.KeyMonitors, "external")
	r.h.Loop.Drain()
	require.Len(t, r.alphas(), 1)
	assert.Equal(t, 2560, r.h.Stg.Visible()[0].Rect.Width)
}

func TestDisabledControllerIgnoresNotifications(t *testing.T) {
	r := newRig(t, map[string]any{config.KeyCurrentBrightness: 0.4})
	r.ctrl.Disable()

	r.store.SetDouble(config.KeyCurrentBrightness, 0.5)
	r.h.Loop.Drain()
	assert.Empty(t, r.alphas())
	assert.Equal(t, Disabled, r.ctrl.State())
}

func TestScreenshotGuard(t *testing.T) {
	r := newRig(t, map[string]any{config.KeyCurrentBrightness: 0.4})
	guard := NewGuard(r.h.Shots, r.rend, r.cloner, r.ctrl)
	require.NoError(t, guard.Install())
	require.NoError(t, guard.Install())

	r.ctrl.OnBrightnessChange(false)
	r.h.Shots.Observe = func() string {
		return fmt.Sprintf("overlays=%d clone=%t pointer=%t", len(r.h.Stg.Visible()), r.cloner.Watching(), r.h.Curs.RealVisible)
	}

	r.h.Shots.Capture().Current()(shell.CaptureRequest{Path: "/tmp/full.png"})
	area := &shell.Rect{X: 10, Y: 10, Width: 100, Height: 100}
	r.h.Shots.CaptureArea().Current()(shell.CaptureRequest{Area: area, Path: "/tmp/area.png"})
	assert.Equal(t, []string{
		"overlays=0 clone=false pointer=false",
		"overlays=0 clone=false pointer=false",
	}, r.h.Shots.Captured)

	r.h.Loop.Drain()
	require.Len(t, r.h.Shots.Done, 2)
	assert.Equal(t, "/tmp/full.png", r.h.Shots.Done[0].Path)
	assert.Equal(t, []uint8{153, 153}, r.alphas())
	assert.True(t, r.cloner.Watching())
	assert.False(t, r.h.Curs.RealVisible)

	require.NoError(t, guard.Uninstall())
	assert.False(t, r.h.Shots.Capture().Installed())
	assert.False(t, r.h.Shots.CaptureArea().Installed())
	assert.False(t, r.h.Shots.Completed().Installed())
}

func TestOverlappingScreenshots(t *testing.T) {
	r := newRig(t, map[string]any{config.KeyCurrentBrightness: 0.4})
	guard := NewGuard(r.h.Shots, r.rend, r.cloner, r.ctrl)
	require.NoError(t, guard.Install())
	r.ctrl.OnBrightnessChange(false)
	r.h.Loop.Drain()
	require.Len(t, r.alphas(), 2)

	r.h.Shots.Capture().Current()(shell.CaptureRequest{Path: "/tmp/a.png"})
	r.h.Shots.Capture().Current()(shell.CaptureRequest{Path: "/tmp/b.png"})

	for len(r.h.Shots.Done) == 0 && r.h.Loop.Iterate() {
	}
	require.Len(t, r.h.Shots.Done, 1)
	assert.Empty(t, r.alphas(), "second capture still running")
	assert.False(t, r.cloner.Watching())

	r.ctrl.OnBrightnessChange(true)
	assert.Empty(t, r.alphas(), "changes wait for the capture")

	r.h.Loop.Drain()
	require.Len(t, r.h.Shots.Done, 2)
	assert.Equal(t, []uint8{153, 153}, r.alphas())
	assert.True(t, r.cloner.Watching())
}

func TestScreenshotGuardRollsBack(t *testing.T) {
	r := newRig(t, nil)
	require.NoError(t, r.h.Shots.Completed().Install("someone-else", func(f func(shell.CaptureResult)) func(shell.CaptureResult) { return f }))

	guard := NewGuard(r.h.Shots, r.rend, r.cloner, r.ctrl)
	err := guard.Install()
	assert.ErrorIs(t, err, intercept.ErrAlreadyInstalled)
	assert.False(t, r.h.Shots.Capture().Installed())
	assert.False(t, r.h.Shots.CaptureArea().Installed())
}
