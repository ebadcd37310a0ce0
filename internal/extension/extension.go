// Package extension assembles the dimming core on top of a shell host and
// owns its enable/disable lifecycle.
package extension

import (
	"errors"
	"fmt"
	"time"

	"github.com/bnema/softbright/internal/brightness"
	"github.com/bnema/softbright/internal/config"
	"github.com/bnema/softbright/internal/cursor"
	"github.com/bnema/softbright/internal/logger"
	"github.com/bnema/softbright/internal/monitor"
	"github.com/bnema/softbright/internal/overlay"
	"github.com/bnema/softbright/internal/shell"
)

// StartupDelay postpones cursor cloning after enable. Hiding the pointer
// right at session start races with the shell's own cursor setup.
const StartupDelay = 1500 * time.Millisecond

// GroupName names the overlay container on the stage.
const GroupName = "softbright-overlays"

// Status is a snapshot of what the extension currently shows.
type Status struct {
	Enabled             bool                 `json:"enabled"`
	State               string               `json:"state"`
	Level               float64              `json:"level"`
	Opacity             uint8                `json:"opacity"`
	Monitors            []monitor.Descriptor `json:"monitors"`
	CloneActive         bool                 `json:"clone_active"`
	UnredirectPrevented bool                 `json:"unredirect_prevented"`
}

// Extension is one enable/disable cycle worth of wiring.
type Extension struct {
	host     shell.Host
	settings shell.Settings
	slider   shell.Slider

	enabled bool
	caps    shell.Capabilities
	group   shell.Group

	registry *monitor.Registry
	renderer *overlay.Renderer
	cloner   *cursor.Cloner
	ctrl     *brightness.Controller
	bridge   *brightness.Bridge
	guard    *brightness.Guard

	startup     shell.Source
	disconnects []func()
	onStatus    func(Status)
}

// New creates a disabled extension. slider may be nil.
func New(host shell.Host, settings shell.Settings, slider shell.Slider) *Extension {
	return &Extension{host: host, settings: settings, slider: slider}
}

// OnStatus registers a callback run after every evaluation.
func (e *Extension) OnStatus(fn func(Status)) {
	e.onStatus = fn
}

// Enabled reports whether Enable ran without a matching Disable.
func (e *Extension) Enabled() bool { return e.enabled }

// Capabilities returns what was negotiated at enable time.
func (e *Extension) Capabilities() shell.Capabilities { return e.caps }

// Controller returns the brightness controller, nil while disabled.
func (e *Extension) Controller() *brightness.Controller { return e.ctrl }

// Bridge returns the slider bridge, nil while disabled.
func (e *Extension) Bridge() *brightness.Bridge { return e.bridge }

// Enable builds the core and starts following every notification source.
func (e *Extension) Enable() error {
	if e.enabled {
		logger.Debugf("extension: enable skipped, already enabled (session mode %s)", e.host.SessionMode())
		return nil
	}
	logger.SetDebug(e.settings.Bool(config.KeyDebug))
	logger.Debugf("extension: enable, session mode %s", e.host.SessionMode())

	e.caps = shell.Negotiate(e.host)
	logger.Debugf("extension: capabilities %+v", e.caps)

	stage := e.host.Stage()
	e.group = stage.NewGroup(GroupName)
	e.registry = monitor.NewRegistry(e.host.Layout(), e.host.DisplayConfig(), e.settings, e.forcedChange)
	e.renderer = overlay.NewRenderer(e.group, stage, e.host.Compositor(), e.settings, e.registry)
	e.cloner = cursor.NewCloner(e.host.Scheduler(), stage, e.group, e.host.Cursor(), e.host.Input(), e.caps, e.restack)
	e.ctrl = brightness.NewController(e.settings, e.host.Backlight(), e.renderer, e.cloner)
	e.ctrl.SetObserver(func(brightness.State, float64) { e.publish() })
	e.bridge = brightness.NewBridge(e.ctrl)
	e.guard = brightness.NewGuard(e.host.Screenshots(), e.renderer, e.cloner, e.ctrl)

	e.track(stage.OnActorsChanged(e.restack))

	if err := e.cloner.Enable(); err != nil {
		e.teardown()
		return fmt.Errorf("failed to enable cursor cloning: %w", err)
	}
	e.startup = e.host.Scheduler().Timeout(StartupDelay, func() bool {
		e.startup = nil
		e.cloner.Arm()
		e.ctrl.OnBrightnessChange(false)
		return false
	})

	if e.slider != nil {
		e.bridge.Attach(e.slider)
	}

	e.ctrl.Enable()
	e.registry.Connect()
	e.connectBacklight()
	e.connectSettings()

	// With the backlight still connecting, its completion evaluates instead.
	if !e.settings.Bool(config.KeyUseBacklight) || e.host.Backlight().Ready() {
		e.bridge.Sync()
	}

	if err := e.guard.Install(); err != nil {
		logger.Errorf("extension: screenshot guard not installed: %v", err)
	}

	e.enabled = true
	logger.Debug("extension: enabled")
	return nil
}

// Disable tears everything down, except while the unlock dialog is up where
// the screen must stay dimmed.
func (e *Extension) Disable() error {
	if e.host.SessionMode() == shell.SessionUnlockDialog {
		logger.Debug("extension: disable skipped in unlock-dialog session mode")
		return nil
	}
	if !e.enabled {
		logger.Warn("extension: disable called when not enabled")
		return nil
	}
	logger.Debugf("extension: disable, session mode %s", e.host.SessionMode())

	err := e.teardown()
	e.enabled = false
	logger.Debug("extension: disabled")
	return err
}

func (e *Extension) teardown() error {
	var errs []error

	if e.startup != nil {
		e.startup.Cancel()
		e.startup = nil
	}
	e.bridge.Detach()
	e.registry.Disconnect()
	for _, disconnect := range e.disconnects {
		disconnect()
	}
	e.disconnects = nil
	e.ctrl.Disable()

	e.renderer.Hide(true)
	e.cloner.StopShowMouse()
	errs = append(errs, e.cloner.Disable())
	errs = append(errs, e.guard.Uninstall())

	e.host.Stage().DestroyGroup(e.group)
	e.group = nil
	e.publish()
	return errors.Join(errs...)
}

func (e *Extension) track(disconnect func()) {
	e.disconnects = append(e.disconnects, disconnect)
}

func (e *Extension) connectBacklight() {
	bl := e.host.Backlight()
	ctrl := e.ctrl
	bl.Connect(func(err error) {
		if ctrl != e.ctrl || !e.enabled {
			return
		}
		if err != nil {
			logger.Errorf("extension: backlight unavailable: %v", err)
		}
		e.bridge.Sync()
	})
	e.track(bl.OnChanged(e.bridge.Sync))
}

func (e *Extension) connectSettings() {
	changed := func() { e.ctrl.OnBrightnessChange(false) }

	e.track(e.settings.Connect(config.KeyDebug, e.onDebugChange))
	e.track(e.settings.Connect(config.KeyMinBrightness, changed))
	e.track(e.settings.Connect(config.KeyCurrentBrightness, e.bridge.Sync))
	e.track(e.settings.Connect(config.KeyCloneMouse, changed))
	e.track(e.settings.Connect(config.KeyMonitors, e.forcedChange))
	e.track(e.settings.Connect(config.KeyBuiltinMonitor, e.forcedChange))
	e.track(e.settings.Connect(config.KeyPreventUnredirect, e.forcedChange))
	e.track(e.settings.Connect(config.KeyUseBacklight, e.ctrl.OnUseBacklightChange))
}

func (e *Extension) onDebugChange() {
	logger.SetDebug(e.settings.Bool(config.KeyDebug))
	logger.Infof("debug = %t", logger.IsDebug())
}

func (e *Extension) forcedChange() {
	e.ctrl.OnBrightnessChange(true)
}

// restack keeps the overlays above whatever else was added to the stage.
func (e *Extension) restack() {
	if e.renderer.Restack() && e.cloner.Engaged() {
		e.cloner.HidePointer()
	}
}

// Status reports the current scene.
func (e *Extension) Status() Status {
	if e.ctrl == nil {
		return Status{State: brightness.Disabled.String()}
	}
	st := Status{
		Enabled:             e.group != nil,
		State:               e.ctrl.State().String(),
		Level:               e.ctrl.Level(),
		Monitors:            e.renderer.Monitors(),
		CloneActive:         e.cloner.Watching(),
		UnredirectPrevented: e.renderer.UnredirectPrevented(),
	}
	if e.renderer.Visible() {
		st.Opacity = overlay.Opacity(st.Level)
	}
	return st
}

func (e *Extension) publish() {
	if e.onStatus != nil {
		e.onStatus(e.Status())
	}
}
