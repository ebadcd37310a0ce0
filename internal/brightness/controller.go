// Package brightness holds the control loop that maps the stored brightness
// to overlays and the cursor clone, plus the slider and screenshot adapters
// that feed it.
package brightness

import (
	"math"

	"github.com/bnema/softbright/internal/config"
	"github.com/bnema/softbright/internal/logger"
	"github.com/bnema/softbright/internal/shell"
)

// State is the controller's observable state.
type State int

const (
	Disabled State = iota
	AtFloor
	Dimmed
	FullBright
)

func (s State) String() string {
	switch s {
	case AtFloor:
		return "at-floor"
	case Dimmed:
		return "dimmed"
	case FullBright:
		return "full-bright"
	default:
		return "disabled"
	}
}

// Renderer shows and hides the overlays.
type Renderer interface {
	Show(brightness float64, force bool) bool
	Hide(forceUnprevent bool)
	Visible() bool
}

// Cloner drives the cursor clone.
type Cloner interface {
	Start()
	Stop()
	StopShowMouse()
	HidePointer()
	WantedVisible() bool
}

// ToPercent converts a brightness to the backlight's integer percentage,
// rounding half up and clamping to [0,100].
func ToPercent(v float64) int {
	p := int(math.Floor(v*100 + 0.5))
	return max(0, min(100, p))
}

// Controller is the brightness state machine. All methods run on the loop.
type Controller struct {
	settings  shell.Settings
	backlight shell.Backlight
	renderer  Renderer
	cloner    Cloner

	enabled  bool
	held     int
	heldSync bool
	state    State
	display  func(v float64)
	observer func(state State, level float64)
}

// NewController wires the controller to its stores and outputs.
func NewController(settings shell.Settings, backlight shell.Backlight, renderer Renderer, cloner Cloner) *Controller {
	return &Controller{
		settings:  settings,
		backlight: backlight,
		renderer:  renderer,
		cloner:    cloner,
	}
}

// Enable lets notifications drive the overlays.
func (c *Controller) Enable() {
	c.enabled = true
	c.held = 0
	c.heldSync = false
}

// Hold keeps the overlays and the clone as they are until the matching
// Release. Holds nest.
func (c *Controller) Hold() {
	c.held++
}

// Release ends one Hold. The last one evaluates, forced when a forced change
// arrived in between.
func (c *Controller) Release() {
	if c.held > 0 {
		c.held--
	}
	if c.held > 0 {
		return
	}
	force := c.heldSync
	c.heldSync = false
	c.OnBrightnessChange(force)
}

// Disable ignores further notifications. Callers tear down the overlays.
func (c *Controller) Disable() {
	c.enabled = false
	c.setState(Disabled)
}

// State returns the state reached by the last evaluation.
func (c *Controller) State() State {
	return c.state
}

// SetDisplay registers the display-only slider update.
func (c *Controller) SetDisplay(fn func(v float64)) {
	c.display = fn
}

// SetObserver registers a callback run after every completed evaluation.
func (c *Controller) SetObserver(fn func(state State, level float64)) {
	c.observer = fn
}

func (c *Controller) useBacklight() bool {
	return c.settings.Bool(config.KeyUseBacklight)
}

// Level returns the brightness from the authoritative store.
func (c *Controller) Level() float64 {
	if c.useBacklight() {
		if p, ok := c.backlight.Brightness(); ok {
			logger.Debugf("brightness: level by backlight = %d%%", p)
			return float64(p) / 100
		}
	}
	v := c.settings.Double(config.KeyCurrentBrightness)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		logger.Warnf("brightness: stored level %v is not a number, using full brightness", v)
		return 1
	}
	logger.Debugf("brightness: level by setting = %.3f", v)
	return v
}

// StoreLevel writes v to the authoritative store. The store's change
// notification re-triggers the evaluation.
func (c *Controller) StoreLevel(v float64) {
	if c.useBacklight() {
		if _, ok := c.backlight.Brightness(); ok {
			p := ToPercent(v)
			logger.Debugf("brightness: store %.3f by backlight -> %d%%", v, p)
			c.backlight.SetBrightness(p)
			return
		}
	}
	logger.Debugf("brightness: store %.3f by setting", v)
	c.settings.SetDouble(config.KeyCurrentBrightness, v)
}

// floor returns the minimum brightness as the authoritative store can hold it.
func (c *Controller) floor() float64 {
	floor := c.settings.Double(config.KeyMinBrightness)
	if c.useBacklight() {
		if _, ok := c.backlight.Brightness(); ok {
			return float64(ToPercent(floor)) / 100
		}
	}
	return floor
}

// OnBrightnessChange re-evaluates the scene. force rebuilds the overlays for
// a changed monitor set or policy.
func (c *Controller) OnBrightnessChange(force bool) {
	if !c.enabled {
		return
	}
	if c.held > 0 {
		logger.Debugf("brightness: change held by %d capture(s)", c.held)
		c.heldSync = c.heldSync || force
		return
	}
	if c.useBacklight() && !c.backlight.Ready() {
		logger.Debug("brightness: backlight not connected yet, deferring")
		return
	}

	cur := c.Level()
	floor := c.floor()
	logger.Debugf("brightness: change current=%.3f min=%.3f force=%t", cur, floor, force)

	if cur < floor {
		c.StoreLevel(floor)
		if !c.useBacklight() && c.display != nil {
			c.display(c.Level())
		}
		return
	}

	if cur >= 1 {
		c.renderer.Hide(false)
		c.cloner.StopShowMouse()
		c.setState(FullBright)
		c.notify(cur)
		return
	}

	if c.settings.Bool(config.KeyCloneMouse) {
		if c.cloner.WantedVisible() {
			// Before the overlays, so they stack above the clone.
			c.cloner.Start()
		}
	} else {
		c.cloner.StopShowMouse()
	}

	if !c.renderer.Show(cur, force) {
		c.cloner.StopShowMouse()
		c.notify(cur)
		return
	}
	if cur == floor {
		c.setState(AtFloor)
	} else {
		c.setState(Dimmed)
	}
	c.notify(cur)
}

// OnUseBacklightChange carries the brightness across a store switch so the
// screen does not jump.
func (c *Controller) OnUseBacklightChange() {
	if !c.enabled {
		return
	}
	if c.useBacklight() {
		c.StoreLevel(c.settings.Double(config.KeyCurrentBrightness))
	} else if p, ok := c.backlight.Brightness(); ok {
		logger.Debugf("brightness: capturing backlight %d%% into setting", p)
		c.settings.SetDouble(config.KeyCurrentBrightness, float64(p)/100)
	}
	c.OnBrightnessChange(false)
}

func (c *Controller) setState(s State) {
	if c.state != s {
		logger.Debugf("brightness: state %s -> %s", c.state, s)
		c.state = s
	}
}

func (c *Controller) notify(level float64) {
	if c.observer != nil {
		c.observer(c.state, level)
	}
}
