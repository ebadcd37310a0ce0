// Package cursor replaces the real pointer with a clone drawn in the overlay
// group while the screen is dimmed, so it is dimmed like everything else
// instead of being drawn unaltered by the hardware cursor plane.
package cursor

import (
	"time"

	"github.com/bnema/softbright/internal/logger"
	"github.com/bnema/softbright/internal/shell"
)

const owner = "softbright-cursor"

// Cloner tracks the hardware cursor and mirrors it into a clone actor.
type Cloner struct {
	sched   shell.Scheduler
	stage   shell.Stage
	group   shell.Group
	tracker shell.CursorTracker
	input   any
	caps    shell.Capabilities
	restack func()

	actor    shell.CursorActor
	original func(visible bool)
	hotX     int
	hotY     int

	enabled       bool
	armed         bool
	engaged       bool
	watching      bool
	wantedVisible bool

	poll                 shell.Source
	idle                 shell.Source
	disconnectSprite     func()
	disconnectVisibility func()
}

// NewCloner creates a cloner drawing into group. restack is invoked when the
// shell shows the pointer while cloning, to keep the overlays on top.
func NewCloner(sched shell.Scheduler, stage shell.Stage, group shell.Group, tracker shell.CursorTracker, input any, caps shell.Capabilities, restack func()) *Cloner {
	if restack == nil {
		restack = func() {}
	}
	return &Cloner{
		sched:   sched,
		stage:   stage,
		group:   group,
		tracker: tracker,
		input:   input,
		caps:    caps,
		restack: restack,
	}
}

// Enable substitutes the pointer-visibility primitive.
func (c *Cloner) Enable() error {
	if err := c.tracker.PointerVisibility().Install(owner, c.wrap); err != nil {
		return err
	}
	c.enabled = true
	c.wantedVisible = true
	c.actor = c.stage.NewCursorActor()
	return nil
}

// Disable stops cloning and restores the original primitive.
func (c *Cloner) Disable() error {
	if !c.enabled {
		return nil
	}
	c.Stop()
	c.cancelIdle()
	err := c.tracker.PointerVisibility().Uninstall(owner)
	c.enabled = false
	c.armed = false
	c.original = nil
	c.actor = nil
	return err
}

func (c *Cloner) wrap(original func(bool)) func(bool) {
	c.original = original
	return func(visible bool) {
		if visible {
			if c.engaged {
				c.startWatching()
				// Leaving the magnifier swaps the clone and overlay order.
				c.restack()
			} else {
				original(true)
			}
		} else {
			c.stopWatching()
			original(false)
		}
		c.wantedVisible = visible
	}
}

// Arm allows Start to engage. Until then cloning requests are ignored.
func (c *Cloner) Arm() {
	if !c.enabled {
		return
	}
	logger.Debug("cursor: armed")
	c.armed = true
}

// Armed reports whether the startup delay has elapsed.
func (c *Cloner) Armed() bool { return c.armed }

// Engaged reports whether cloning was requested.
func (c *Cloner) Engaged() bool { return c.engaged }

// Watching reports whether the clone is on stage and tracking the cursor.
func (c *Cloner) Watching() bool { return c.watching }

// WantedVisible is the pointer visibility the rest of the shell last asked for.
func (c *Cloner) WantedVisible() bool { return c.wantedVisible }

// Start engages cloning and hides the real cursor.
func (c *Cloner) Start() {
	if !c.enabled || !c.armed {
		logger.Debug("cursor: start ignored, not armed yet")
		return
	}
	logger.Debug("cursor: start cloning")
	c.engaged = true
	if c.wantedVisible {
		c.startWatching()
	}
	c.setPointerVisible(false)
}

// Stop disengages cloning without showing the real cursor.
func (c *Cloner) Stop() {
	c.engaged = false
	c.stopWatching()
	c.cancelIdle()
}

// StopShowMouse disengages cloning and gives the real cursor back the
// visibility the shell wants.
func (c *Cloner) StopShowMouse() {
	logger.Debug("cursor: stop cloning, show mouse")
	c.Stop()
	c.setPointerVisible(c.wantedVisible)
}

// HidePointer hides the real cursor through the original primitive.
func (c *Cloner) HidePointer() {
	c.setPointerVisible(false)
}

// Interval is the position poll period derived from the refresh rate.
func (c *Cloner) Interval() time.Duration {
	rate := c.caps.RefreshRate
	if rate <= 0 {
		rate = shell.DefaultRefreshRate
	}
	return time.Duration(float64(time.Second) / rate)
}

func (c *Cloner) startWatching() {
	if c.watching || c.actor == nil {
		return
	}
	logger.Debugf("cursor: watching, poll every %s", c.Interval())
	c.watching = true
	c.group.Add(c.actor)
	c.disconnectSprite = c.tracker.OnCursorChanged(c.updateSprite)
	c.disconnectVisibility = c.tracker.OnVisibilityChanged(c.scheduleHide)
	c.poll = c.sched.Timeout(c.Interval(), func() bool {
		c.updatePosition()
		return true
	})
	c.setFocusQuirks(true)

	c.updateSprite()
	c.updatePosition()
}

func (c *Cloner) stopWatching() {
	if !c.watching {
		return
	}
	logger.Debug("cursor: stop watching")
	c.watching = false
	c.poll.Cancel()
	c.poll = nil
	c.disconnectSprite()
	c.disconnectVisibility()
	c.disconnectSprite = nil
	c.disconnectVisibility = nil
	c.setFocusQuirks(false)
	c.group.Remove(c.actor)
	c.cancelIdle()
}

func (c *Cloner) setFocusQuirks(on bool) {
	if c.caps.KeepFocusWhileHidden {
		if fk, ok := c.input.(shell.FocusKeeper); ok {
			fk.SetKeepFocusWhileHidden(on)
		}
	}
	if c.caps.InhibitUnfocus {
		if ui, ok := c.input.(shell.UnfocusInhibitor); ok {
			if on {
				ui.InhibitUnfocus()
			} else {
				ui.UninhibitUnfocus()
			}
		}
	}
}

func (c *Cloner) updatePosition() {
	x, y := c.tracker.Position()
	c.actor.SetPosition(x-c.hotX, y-c.hotY)
	c.scheduleHide()
}

func (c *Cloner) updateSprite() {
	s := c.tracker.Sprite()
	c.hotX, c.hotY = s.HotX, s.HotY
	c.actor.SetSprite(s)
	c.scheduleHide()
}

// scheduleHide hides the real cursor now and once more on the next idle
// iteration, since some redraw paths show it again behind our back.
func (c *Cloner) scheduleHide() {
	c.setPointerVisible(false)
	if c.idle != nil {
		return
	}
	c.idle = c.sched.Idle(func() {
		c.idle = nil
		c.setPointerVisible(false)
	})
}

func (c *Cloner) cancelIdle() {
	if c.idle != nil {
		c.idle.Cancel()
		c.idle = nil
	}
}

func (c *Cloner) setPointerVisible(visible bool) {
	if c.original == nil {
		return
	}
	c.original(visible)
}
