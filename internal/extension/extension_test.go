package extension

import (
	"testing"

	"github.com/bnema/softbright/internal/brightness"
	"github.com/bnema/softbright/internal/config"
	"github.com/bnema/softbright/internal/logger"
	"github.com/bnema/softbright/internal/shell"
	"github.com/bnema/softbright/internal/shell/shelltest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	h      *shelltest.Host
	store  *config.Store
	slider *shelltest.Slider
	ext    *Extension
}

func newEnv(t *testing.T, overrides map[string]any) *env {
	t.Helper()
	h := shelltest.NewHost()
	e := &env{
		h:      h,
		store:  config.NewMemoryStore(h.Loop.Post, overrides),
		slider: &shelltest.Slider{},
	}
	e.ext = New(h, e.store, e.slider)
	t.Cleanup(func() { logger.SetDebug(false) })
	return e
}

func (e *env) overlays() []*shelltest.Actor {
	return e.h.Stg.Visible()
}

func TestEnableDimsEveryMonitor(t *testing.T) {
	e := newEnv(t, map[string]any{config.KeyCurrentBrightness: 0.4})

	require.NoError(t, e.ext.Enable())
	e.h.Loop.Drain()

	require.Len(t, e.overlays(), 2)
	for _, o := range e.overlays() {
		assert.Equal(t, uint8(153), o.Alpha)
	}
	assert.Equal(t, 0.4, e.slider.Val)
	assert.Equal(t, brightness.Dimmed, e.ext.Controller().State())

	// Cursor cloning waits for the startup delay.
	assert.False(t, e.ext.Status().CloneActive)
	assert.True(t, e.h.Curs.RealVisible)
	require.Len(t, e.h.Loop.Timers, 1)
	assert.Equal(t, StartupDelay, e.h.Loop.Timers[0].Interval)

	e.h.Loop.Fire()
	st := e.ext.Status()
	assert.True(t, st.CloneActive)
	assert.False(t, e.h.Curs.RealVisible)
	assert.Equal(t, "dimmed", st.State)
	assert.Equal(t, uint8(153), st.Opacity)
	assert.Len(t, st.Monitors, 2)
	assert.True(t, st.UnredirectPrevented)

	// The overlay group stays on top of the stage.
	assert.Equal(t, GroupName, e.h.Stg.Top().Name)
}

func TestEnableTwiceIsNoop(t *testing.T) {
	e := newEnv(t, map[string]any{config.KeyCurrentBrightness: 0.4})

	require.NoError(t, e.ext.Enable())
	require.NoError(t, e.ext.Enable())
	e.h.Loop.Drain()

	assert.Len(t, e.h.Stg.Groups, 1)
	assert.Len(t, e.overlays(), 2)
}

func TestDisableRestoresEverything(t *testing.T) {
	e := newEnv(t, map[string]any{config.KeyCurrentBrightness: 0.4, config.KeyPreventUnredirect: "always"})
	require.NoError(t, e.ext.Enable())
	e.h.Loop.Fire()
	require.True(t, e.ext.Status().CloneActive)

	require.NoError(t, e.ext.Disable())
	e.h.Loop.Drain()

	assert.False(t, e.ext.Enabled())
	assert.Empty(t, e.overlays())
	assert.Empty(t, e.h.Stg.Groups)
	assert.False(t, e.h.Comp.(*shelltest.Compositor).Prevented)
	assert.True(t, e.h.Curs.RealVisible)
	assert.False(t, e.h.Curs.PointerVisibility().Installed())
	assert.False(t, e.h.Shots.Capture().Installed())
	assert.False(t, e.h.Shots.Completed().Installed())
	assert.Equal(t, 0, e.h.Loop.ActiveTimers())
	assert.Equal(t, 0, e.h.Curs.Subscribers())
	assert.Equal(t, "disabled", e.ext.Status().State)

	// Nothing reacts anymore.
	e.store.SetDouble(config.KeyCurrentBrightness, 0.2)
	e.h.Loop.Drain()
	assert.Empty(t, e.overlays())

	// A second disable only warns.
	assert.NoError(t, e.ext.Disable())
}

func TestDisableBeforeStartupDelay(t *testing.T) {
	e := newEnv(t, map[string]any{config.KeyCurrentBrightness: 0.4})
	require.NoError(t, e.ext.Enable())

	require.NoError(t, e.ext.Disable())
	e.h.Loop.Fire()

	assert.Equal(t, 0, e.h.Loop.ActiveTimers())
	assert.True(t, e.h.Curs.RealVisible)
	assert.Empty(t, e.overlays())
}

func TestDisableSkippedOnUnlockDialog(t *testing.T) {
	e := newEnv(t, map[string]any{config.KeyCurrentBrightness: 0.4})
	require.NoError(t, e.ext.Enable())

	e.h.Mode = shell.SessionUnlockDialog
	require.NoError(t, e.ext.Disable())
	assert.True(t, e.ext.Enabled())
	assert.Len(t, e.overlays(), 2)

	e.h.Mode = "user"
	require.NoError(t, e.ext.Disable())
	assert.Empty(t, e.overlays())
}

func TestReenable(t *testing.T) {
	e := newEnv(t, map[string]any{config.KeyCurrentBrightness: 0.4})
	require.NoError(t, e.ext.Enable())
	require.NoError(t, e.ext.Disable())

	require.NoError(t, e.ext.Enable())
	e.h.Loop.Fire()
	assert.Len(t, e.overlays(), 2)
	assert.True(t, e.ext.Status().CloneActive)
	assert.True(t, e.h.Curs.PointerVisibility().Installed())
}

func TestHotplugRebuildsOverlays(t *testing.T) {
	e := newEnv(t, map[string]any{config.KeyCurrentBrightness: 0.5})
	require.NoError(t, e.ext.Enable())
	e.h.DC.CompleteConnect()
	e.h.Loop.Drain()

	// The first name resolution forces a rebuild.
	assert.Equal(t, 4, e.h.Stg.Created)
	require.Len(t, e.overlays(), 2)

	e.h.DC.Names = []shell.OutputName{{DisplayName: "Built-in display", Connector: "eDP-1"}}
	e.h.Lay.Hotplug(
		[]shell.Monitor{{Index: 0, Rect: shell.Rect{Width: 1920, Height: 1200}}},
		map[string]int{"eDP-1": 0},
	)
	e.h.Loop.Drain()

	require.Len(t, e.overlays(), 1)
	assert.Equal(t, 1200, e.overlays()[0].Rect.Height)
	assert.Equal(t, uint8(128), e.overlays()[0].Alpha)
}

func TestForeignActorsAreRestacked(t *testing.T) {
	e := newEnv(t, map[string]any{config.KeyCurrentBrightness: 0.5})
	require.NoError(t, e.ext.Enable())
	e.h.Loop.Fire()

	e.h.Curs.RealVisible = true
	e.h.Stg.AddForeign("magnifier")

	assert.Equal(t, GroupName, e.h.Stg.Top().Name)
	assert.False(t, e.h.Curs.RealVisible)
}

func TestSettingsDriveTheScene(t *testing.T) {
	e := newEnv(t, map[string]any{config.KeyCurrentBrightness: 0.5})
	require.NoError(t, e.ext.Enable())
	e.h.Loop.Drain()

	e.store.SetString(config.KeyPreventUnredirect, "never")
	e.h.Loop.Drain()
	assert.False(t, e.h.Comp.(*shelltest.Compositor).Prevented)
	assert.Len(t, e.overlays(), 2)

	e.store.SetDouble(config.KeyMinBrightness, 0.6)
	e.h.Loop.Drain()
	assert.Equal(t, 0.6, e.store.Double(config.KeyCurrentBrightness))
	assert.Equal(t, brightness.AtFloor, e.ext.Controller().State())
	assert.Equal(t, 0.6, e.slider.Val)

	e.slider.Drag(1)
	e.h.Loop.Drain()
	assert.Empty(t, e.overlays())
	assert.Equal(t, brightness.FullBright, e.ext.Controller().State())
}

func TestDebugSetting(t *testing.T) {
	e := newEnv(t, map[string]any{config.KeyDebug: true})
	require.NoError(t, e.ext.Enable())
	assert.True(t, logger.IsDebug())

	e.store.SetBool(config.KeyDebug, false)
	e.h.Loop.Drain()
	assert.False(t, logger.IsDebug())
}

func TestStatusObserver(t *testing.T) {
	e := newEnv(t, map[string]any{config.KeyCurrentBrightness: 0.5})
	var seen []Status
	e.ext.OnStatus(func(s Status) { seen = append(seen, s) })

	require.NoError(t, e.ext.Enable())
	e.h.Loop.Drain()
	require.NotEmpty(t, seen)
	assert.Equal(t, "dimmed", seen[len(seen)-1].State)

	require.NoError(t, e.ext.Disable())
	assert.False(t, seen[len(seen)-1].Enabled)
}

func TestScreenshotWhileDimmed(t *testing.T) {
	e := newEnv(t, map[string]any{config.KeyCurrentBrightness: 0.4})
	require.NoError(t, e.ext.Enable())
	e.h.Loop.Fire()

	before := e.ext.Status()
	var during Status
	e.h.Shots.Observe = func() string {
		during = e.ext.Status()
		return during.State
	}

	e.h.Shots.Capture().Current()(shell.CaptureRequest{Path: "/tmp/shot.png"})
	assert.Empty(t, during.Monitors)
	assert.False(t, during.CloneActive)
	assert.False(t, e.h.Curs.RealVisible)

	e.h.Loop.Drain()
	after := e.ext.Status()
	assert.Equal(t, before.Opacity, after.Opacity)
	assert.Equal(t, before.CloneActive, after.CloneActive)
	assert.Len(t, e.overlays(), 2)
	require.Len(t, e.h.Shots.Done, 1)
}

func TestBacklightScenario(t *testing.T) {
	e := newEnv(t, map[string]any{config.KeyUseBacklight: true})
	require.NoError(t, e.ext.Enable())
	e.h.Loop.Drain()
	assert.Empty(t, e.overlays(), "waits for the backlight")

	e.h.BL.Percent = 80
	e.h.BL.CompleteConnect()
	e.h.Loop.Drain()
	require.Len(t, e.overlays(), 2)
	assert.Equal(t, 0.8, e.slider.Val)

	// Hardware keys.
	e.h.BL.External(30)
	e.h.Loop.Drain()
	assert.Equal(t, 0.3, e.slider.Val)

	e.store.SetBool(config.KeyUseBacklight, false)
	e.h.Loop.Drain()
	assert.Equal(t, 0.3, e.store.Double(config.KeyCurrentBrightness))
}
