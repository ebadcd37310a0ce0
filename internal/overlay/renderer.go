// Package overlay manages the black per-monitor surfaces that dim the screen
// and the compositor unredirection switch that keeps them visible above
// full-screen clients.
package overlay

import (
	"math"

	"github.com/bnema/softbright/internal/config"
	"github.com/bnema/softbright/internal/logger"
	"github.com/bnema/softbright/internal/monitor"
	"github.com/bnema/softbright/internal/shell"
)

// Selector resolves the monitors that should be dimmed.
type Selector interface {
	Select() ([]monitor.Descriptor, bool)
}

// Opacity maps a brightness in [0,1] to the overlay alpha.
func Opacity(brightness float64) uint8 {
	b := math.Max(0, math.Min(1, brightness))
	return uint8(math.Round((1 - b) * 255))
}

// Renderer owns the overlay surfaces. All methods run on the loop.
type Renderer struct {
	group    shell.Group
	stage    shell.Stage
	comp     shell.Compositor
	settings shell.Settings
	selector Selector

	overlays  []shell.Actor
	monitors  []monitor.Descriptor
	prevented bool
}

// NewRenderer creates a renderer drawing into group.
func NewRenderer(group shell.Group, stage shell.Stage, comp shell.Compositor, settings shell.Settings, selector Selector) *Renderer {
	return &Renderer{
		group:    group,
		stage:    stage,
		comp:     comp,
		settings: settings,
		selector: selector,
	}
}

// Show creates the overlays if none exist (or force is set) and applies the
// opacity for brightness to every overlay. It returns false when the monitor
// set could not be resolved; nothing changes in that case.
func (r *Renderer) Show(brightness float64, force bool) bool {
	logger.Debugf("overlay: show(%.3f, force=%t)", brightness, force)
	if r.overlays == nil || force {
		monitors, ok := r.selector.Select()
		if !ok {
			logger.Debug("overlay: monitor set not resolved, skipping")
			return r.overlays != nil
		}
		if force {
			r.Hide(false)
		}

		policy := r.settings.String(config.KeyPreventUnredirect)
		switch p, _ := config.ParseUnredirectPolicy(policy); p {
		case config.UnredirectAlways, config.UnredirectWhenCorrecting:
			r.preventUnredirect()
		case config.UnredirectNever:
			r.allowUnredirect()
		default:
			logger.Errorf("overlay: unexpected prevent-unredirect=%q", policy)
		}

		r.overlays = make([]shell.Actor, 0, len(monitors))
		for i, m := range monitors {
			logger.Debugf("overlay: create #%d on %s", i, m)
			o := r.stage.NewOverlay(m.Rect)
			r.group.Add(o)
			r.overlays = append(r.overlays, o)
		}
		r.monitors = monitors
	}

	alpha := Opacity(brightness)
	for _, o := range r.overlays {
		o.SetOpacity(alpha)
	}
	return true
}

// Hide destroys every overlay and re-evaluates the unredirect policy. With
// forceUnprevent the policy is treated as "never".
func (r *Renderer) Hide(forceUnprevent bool) {
	if r.overlays != nil {
		logger.Debugf("overlay: drop overlays, count=%d", len(r.overlays))
		for _, o := range r.overlays {
			r.group.Remove(o)
		}
		r.overlays = nil
		r.monitors = nil
	}

	policy := r.settings.String(config.KeyPreventUnredirect)
	if forceUnprevent {
		policy = string(config.UnredirectNever)
	}
	switch p, _ := config.ParseUnredirectPolicy(policy); p {
	case config.UnredirectAlways:
		r.preventUnredirect()
	case config.UnredirectWhenCorrecting, config.UnredirectNever:
		r.allowUnredirect()
	default:
		logger.Errorf("overlay: unexpected prevent-unredirect=%q", policy)
	}
}

// Restack raises the overlay group to the top of the stage and every overlay
// to the top of the group. It reports whether overlays are shown.
func (r *Renderer) Restack() bool {
	r.group.RaiseTop()
	for _, o := range r.overlays {
		o.RaiseTop()
	}
	return r.overlays != nil
}

// Visible reports whether overlays exist.
func (r *Renderer) Visible() bool {
	return r.overlays != nil
}

// Count returns the number of overlays.
func (r *Renderer) Count() int {
	return len(r.overlays)
}

// Monitors returns the monitors currently covered.
func (r *Renderer) Monitors() []monitor.Descriptor {
	return append([]monitor.Descriptor(nil), r.monitors...)
}

// UnredirectPrevented reports the cached compositor state.
func (r *Renderer) UnredirectPrevented() bool {
	return r.prevented
}

func (r *Renderer) preventUnredirect() {
	if r.prevented {
		return
	}
	logger.Debug("overlay: disabling unredirect")
	r.comp.DisableUnredirect()
	r.prevented = true
}

func (r *Renderer) allowUnredirect() {
	if !r.prevented {
		return
	}
	logger.Debug("overlay: enabling unredirect")
	r.comp.EnableUnredirect()
	r.prevented = false
}
