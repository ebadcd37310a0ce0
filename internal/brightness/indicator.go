package brightness

import (
	"github.com/bnema/softbright/internal/logger"
	"github.com/bnema/softbright/internal/shell"
)

// Bridge connects the host's brightness slider to the controller.
type Bridge struct {
	ctrl       *Controller
	slider     shell.Slider
	updating   bool
	disconnect func()
}

// NewBridge creates a bridge for ctrl.
func NewBridge(ctrl *Controller) *Bridge {
	return &Bridge{ctrl: ctrl}
}

// Attach binds slider and shows the current level on it.
func (b *Bridge) Attach(slider shell.Slider) {
	if b.slider != nil {
		b.Detach()
	}
	b.slider = slider
	b.disconnect = slider.OnValueChanged(b.onSliderChanged)
	b.ctrl.SetDisplay(b.SetSliderValue)
	b.SetSliderValue(b.ctrl.Level())
}

// Detach releases the slider.
func (b *Bridge) Detach() {
	if b.slider == nil {
		return
	}
	b.disconnect()
	b.disconnect = nil
	b.slider = nil
	b.ctrl.SetDisplay(nil)
}

// GetBrightness returns the level from the authoritative store.
func (b *Bridge) GetBrightness() float64 {
	return b.ctrl.Level()
}

// SetBrightness writes v through the controller.
func (b *Bridge) SetBrightness(v float64) {
	logger.Debugf("indicator: set brightness %.3f", v)
	b.ctrl.StoreLevel(v)
}

// SetSliderValue updates the slider without writing the value back.
func (b *Bridge) SetSliderValue(v float64) {
	if b.slider == nil {
		return
	}
	b.updating = true
	defer func() { b.updating = false }()
	b.slider.SetValue(v)
}

// Sync re-evaluates after an external change and refreshes the slider.
func (b *Bridge) Sync() {
	b.ctrl.OnBrightnessChange(false)
	b.SetSliderValue(b.ctrl.Level())
}

func (b *Bridge) onSliderChanged(v float64) {
	if b.updating {
		return
	}
	b.SetBrightness(v)
}
