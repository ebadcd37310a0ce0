// Package host implements the shell collaborators for a standalone daemon:
// an in-memory scene graph whose state is published for an external
// renderer, the compositor's IPC for geometry, cursor and unredirection, and
// the GNOME services when they are on the session bus.
package host

import (
	"context"
	"errors"

	"github.com/bnema/softbright/internal/display"
	"github.com/bnema/softbright/internal/gnome"
	"github.com/bnema/softbright/internal/logger"
	"github.com/bnema/softbright/internal/mainloop"
	"github.com/bnema/softbright/internal/screenshot"
	"github.com/bnema/softbright/internal/shell"
)

// SessionUser is the regular session mode.
const SessionUser = "user"

// Compositor toggles direct scanout, the wlroots counterpart of full-screen
// unredirection.
type Compositor struct {
	rate      float64
	scanout   *keyword
	prevented bool
}

func (c *Compositor) DisableUnredirect() {
	c.prevented = true
	if c.scanout != nil {
		c.scanout.Set("0")
	}
}

func (c *Compositor) EnableUnredirect() {
	c.prevented = false
	if c.scanout != nil {
		c.scanout.Restore()
	}
}

// Prevented reports whether unredirection is currently disabled.
func (c *Compositor) Prevented() bool { return c.prevented }

func (c *Compositor) RefreshRate() float64 { return c.rate }

// noBacklight stands in when the settings daemon is not on the bus.
type noBacklight struct {
	post func(func())
}

func (b noBacklight) Connect(cb func(err error)) {
	logger.Debug("host: no backlight service, dimming in software only")
	b.post(func() { cb(nil) })
}

func (noBacklight) Ready() bool             { return true }
func (noBacklight) Brightness() (int, bool) { return 0, false }
func (noBacklight) SetBrightness(int)       {}
func (noBacklight) OnChanged(func()) func() { return func() {} }
func (noBacklight) Close() error            { return nil }

// Options selects optional integrations.
type Options struct {
	// Dial opens session bus connections; nil disables every bus service.
	Dial gnome.Dialer
	// HidePointer lets the cursor clone hide the real pointer. Only set it
	// when a renderer draws the published scene, otherwise the pointer
	// disappears with nothing in its place.
	HidePointer bool
}

// Host is a shell.Host for the standalone daemon.
type Host struct {
	loop    *mainloop.Loop
	scene   *Scene
	comp    *Compositor
	tracker *Tracker
	display *display.Display
	layout  *display.Layout
	dc      shell.DisplayConfig
	bl      shell.Backlight
	shots   *screenshot.Service

	hyprland bool
	keywords []*keyword
	unwatch  []func()
}

// New assembles a host over d. It probes the session bus and must run
// before the loop starts.
func New(loop *mainloop.Loop, d *display.Display, opts Options) *Host {
	h := &Host{
		loop:     loop,
		scene:    NewScene(),
		display:  d,
		layout:   display.NewLayout(d, loop.Post),
		shots:    screenshot.New(loop.Post),
		hyprland: d.Backend().Name() == "hyprland",
	}

	h.comp = &Compositor{rate: shell.DefaultRefreshRate}
	if m := d.GetPrimaryMonitor(); m != nil && m.Refresh > 0 {
		h.comp.rate = m.Refresh
	}

	var hide *keyword
	if h.hyprland {
		h.comp.scanout = newKeyword("render:direct_scanout")
		h.keywords = append(h.keywords, h.comp.scanout)
		if opts.HidePointer {
			hide = newKeyword("cursor:invisible")
			h.keywords = append(h.keywords, hide)
		}
	}
	h.tracker = NewTracker(loop.Post, d.Backend().GetCursorPosition, hide)

	h.bl = noBacklight{post: loop.Post}
	h.dc = display.NewNames(h.layout, loop.Post)
	if opts.Dial != nil {
		if gnome.HasOwner(opts.Dial, gnome.PowerService) {
			logger.Info("host: using the settings daemon backlight")
			h.bl = gnome.NewBacklight(opts.Dial, loop.Post)
		}
		if gnome.HasOwner(opts.Dial, gnome.MutterService) {
			logger.Info("host: using Mutter display names")
			dc := gnome.NewDisplayConfig(opts.Dial, loop.Post)
			h.unwatch = append(h.unwatch, dc.OnMonitorsChanged(h.layout.Refresh))
			h.dc = dc
		}
	}
	return h
}

// Start launches the background watchers: cursor sampling and hotplug.
func (h *Host) Start(ctx context.Context) {
	go h.tracker.Run(ctx)
	if !h.hyprland {
		return
	}
	path := hyprlandEventSocket()
	err := watchHotplug(ctx, path, func() { h.loop.Post(h.layout.Refresh) })
	if err != nil {
		logger.Warnf("host: no hotplug events: %v", err)
	}
}

// Close releases the bus connections and compositor helpers.
func (h *Host) Close() error {
	for _, fn := range h.unwatch {
		fn()
	}
	for _, k := range h.keywords {
		k.Close()
	}
	return errors.Join(h.bl.Close(), h.dc.Close(), h.display.Close())
}

// Scene returns the scene graph.
func (h *Host) Scene() *Scene { return h.scene }

// Shooter returns the screenshot service.
func (h *Host) Shooter() *screenshot.Service { return h.shots }

func (h *Host) Scheduler() shell.Scheduler           { return h.loop }
func (h *Host) Stage() shell.Stage                   { return h.scene }
func (h *Host) Compositor() shell.Compositor         { return h.comp }
func (h *Host) Cursor() shell.CursorTracker          { return h.tracker }
func (h *Host) Input() any                           { return nil }
func (h *Host) Layout() shell.Layout                 { return h.layout }
func (h *Host) DisplayConfig() shell.DisplayConfig   { return h.dc }
func (h *Host) Backlight() shell.Backlight           { return h.bl }
func (h *Host) Screenshots() shell.ScreenshotService { return h.shots }
func (h *Host) SessionMode() string                  { return SessionUser }
