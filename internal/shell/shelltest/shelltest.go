// Package shelltest provides in-memory fakes of the shell collaborators for
// tests. Everything runs on a manually driven loop.
package shelltest

import (
	"time"

	"github.com/bnema/softbright/internal/intercept"
	"github.com/bnema/softbright/internal/mainloop"
	"github.com/bnema/softbright/internal/shell"
)

// subscribers is a small ordered handler list.
type subscribers struct {
	next int
	fns  map[int]func()
	ids  []int
}

func (s *subscribers) add(fn func()) func() {
	if s.fns == nil {
		s.fns = make(map[int]func())
	}
	s.next++
	id := s.next
	s.fns[id] = fn
	s.ids = append(s.ids, id)
	return func() { delete(s.fns, id) }
}

func (s *subscribers) emit() {
	for _, id := range s.ids {
		if fn, ok := s.fns[id]; ok {
			fn()
		}
	}
}

func (s *subscribers) count() int {
	return len(s.fns)
}

// Timer is a timeout registered on the fake scheduler.
type Timer struct {
	Interval  time.Duration
	fn        func() bool
	cancelled bool
	done      bool
}

func (t *Timer) Cancel() { t.cancelled = true }

// Active reports whether the timer will fire again.
func (t *Timer) Active() bool { return !t.cancelled && !t.done }

// Loop is a deterministic scheduler: posted and idle work runs on Drain,
// timeouts only run on Fire.
type Loop struct {
	*mainloop.Loop
	Timers []*Timer
}

func NewLoop() *Loop {
	return &Loop{Loop: mainloop.New()}
}

func (l *Loop) Timeout(d time.Duration, fn func() bool) shell.Source {
	t := &Timer{Interval: d, fn: fn}
	l.Timers = append(l.Timers, t)
	return t
}

func (l *Loop) Idle(fn func()) shell.Source {
	return l.Loop.Idle(fn)
}

// Fire runs every active timer once, then drains the loop.
func (l *Loop) Fire() {
	for _, t := range append([]*Timer(nil), l.Timers...) {
		if !t.Active() {
			continue
		}
		if !t.fn() {
			t.done = true
		}
	}
	l.Drain()
}

// ActiveTimers counts timers that have not finished or been cancelled.
func (l *Loop) ActiveTimers() int {
	n := 0
	for _, t := range l.Timers {
		if t.Active() {
			n++
		}
	}
	return n
}

// Actor is a fake scene-graph node.
type Actor struct {
	Name    string
	Rect    shell.Rect
	Alpha   uint8
	Raised  int
	Parent  *Group
	X, Y    int
	Sprite  shell.Sprite
	OnStage bool
}

func (a *Actor) SetGeometry(r shell.Rect)  { a.Rect = r }
func (a *Actor) SetOpacity(opacity uint8)  { a.Alpha = opacity }
func (a *Actor) Opacity() uint8            { return a.Alpha }
func (a *Actor) SetPosition(x, y int)      { a.X, a.Y = x, y }
func (a *Actor) SetSprite(s shell.Sprite)  { a.Sprite = s }
func (a *Actor) RaiseTop() {
	a.Raised++
	if a.Parent != nil {
		a.Parent.raise(a)
	}
}

// Group is a fake container; Children is ordered bottom to top.
type Group struct {
	Actor
	stage    *Stage
	Children []shell.Actor
}

func (g *Group) Add(child shell.Actor) {
	g.Children = append(g.Children, child)
	if a := asActor(child); a != nil {
		a.Parent = g
		a.OnStage = true
	}
	g.stage.changed()
}

func (g *Group) Remove(child shell.Actor) {
	for i, c := range g.Children {
		if c == child {
			g.Children = append(g.Children[:i:i], g.Children[i+1:]...)
			if a := asActor(child); a != nil {
				a.Parent = nil
				a.OnStage = false
			}
			g.stage.Removed++
			g.stage.changed()
			return
		}
	}
}

func (g *Group) raise(a *Actor) {
	for i, c := range g.Children {
		if asActor(c) == a {
			g.Children = append(append(g.Children[:i:i], g.Children[i+1:]...), c)
			return
		}
	}
}

// RaiseTop on a group moves it to the top of the stage.
func (g *Group) RaiseTop() {
	g.Raised++
	g.stage.raise(g)
}

func asActor(a shell.Actor) *Actor {
	switch v := a.(type) {
	case *Actor:
		return v
	case *Group:
		return &v.Actor
	}
	return nil
}

// Stage is a fake stage. Top is the last element of Groups.
type Stage struct {
	Groups   []*Group
	Overlays []*Actor
	Cursors  []*Actor
	Created  int
	Removed  int
	actors   subscribers
	emitting bool
}

func (s *Stage) NewGroup(name string) shell.Group {
	g := &Group{Actor: Actor{Name: name, OnStage: true}, stage: s}
	s.Groups = append(s.Groups, g)
	return g
}

func (s *Stage) DestroyGroup(g shell.Group) {
	for i, cur := range s.Groups {
		if cur == g {
			s.Groups = append(s.Groups[:i:i], s.Groups[i+1:]...)
			cur.OnStage = false
			return
		}
	}
}

func (s *Stage) NewOverlay(r shell.Rect) shell.Actor {
	a := &Actor{Name: "overlay", Rect: r}
	s.Overlays = append(s.Overlays, a)
	s.Created++
	return a
}

func (s *Stage) NewCursorActor() shell.CursorActor {
	a := &Actor{Name: "cursor"}
	s.Cursors = append(s.Cursors, a)
	return a
}

func (s *Stage) OnActorsChanged(fn func()) func() {
	return s.actors.add(fn)
}

// AddForeign simulates third-party UI adding a group above everything.
func (s *Stage) AddForeign(name string) *Group {
	g := s.NewGroup(name).(*Group)
	s.changed()
	return g
}

// Top returns the topmost group.
func (s *Stage) Top() *Group {
	if len(s.Groups) == 0 {
		return nil
	}
	return s.Groups[len(s.Groups)-1]
}

// Visible returns the overlays currently attached to a group.
func (s *Stage) Visible() []*Actor {
	var out []*Actor
	for _, o := range s.Overlays {
		if o.OnStage {
			out = append(out, o)
		}
	}
	return out
}

func (s *Stage) changed() {
	// Restacking adds no actors, but guard against handler recursion.
	if s.emitting {
		return
	}
	s.emitting = true
	s.actors.emit()
	s.emitting = false
}

func (s *Stage) raise(g *Group) {
	for i, cur := range s.Groups {
		if cur == g {
			s.Groups = append(append(s.Groups[:i:i], s.Groups[i+1:]...), g)
			return
		}
	}
}

// Compositor records unredirect calls.
type Compositor struct {
	Prevented    bool
	DisableCalls int
	EnableCalls  int
}

func (c *Compositor) DisableUnredirect() {
	c.DisableCalls++
	c.Prevented = true
}

func (c *Compositor) EnableUnredirect() {
	c.EnableCalls++
	c.Prevented = false
}

// RatedCompositor also reports a refresh rate.
type RatedCompositor struct {
	Compositor
	Rate float64
}

func (c *RatedCompositor) RefreshRate() float64 { return c.Rate }

// Cursor is a fake cursor tracker. RealVisible tracks the real pointer.
type Cursor struct {
	RealVisible bool
	RealCalls   int
	X, Y        int
	Current     shell.Sprite
	point       *intercept.Point[func(bool)]
	changed     subscribers
	visibility  subscribers
}

func NewCursor() *Cursor {
	c := &Cursor{RealVisible: true, Current: shell.Sprite{Width: 24, Height: 24, HotX: 2, HotY: 3}}
	c.point = intercept.NewPoint("set-pointer-visible", func(visible bool) {
		c.RealCalls++
		c.RealVisible = visible
	})
	return c
}

func (c *Cursor) PointerVisibility() *intercept.Point[func(bool)] { return c.point }
func (c *Cursor) Position() (int, int)                            { return c.X, c.Y }
func (c *Cursor) Sprite() shell.Sprite                            { return c.Current }
func (c *Cursor) OnCursorChanged(fn func()) func()                { return c.changed.add(fn) }
func (c *Cursor) OnVisibilityChanged(fn func()) func()            { return c.visibility.add(fn) }

// ShellSetVisible simulates the rest of the shell toggling the pointer.
func (c *Cursor) ShellSetVisible(v bool) {
	c.point.Current()(v)
	c.visibility.emit()
}

// ChangeSprite simulates a cursor image change.
func (c *Cursor) ChangeSprite(s shell.Sprite) {
	c.Current = s
	c.changed.emit()
}

// Subscribers counts active cursor subscriptions.
func (c *Cursor) Subscribers() int {
	return c.changed.count() + c.visibility.count()
}

// Input implements both optional input capabilities.
type Input struct {
	KeepFocus bool
	Inhibited bool
}

func (i *Input) SetKeepFocusWhileHidden(keep bool) { i.KeepFocus = keep }
func (i *Input) InhibitUnfocus()                   { i.Inhibited = true }
func (i *Input) UninhibitUnfocus()                 { i.Inhibited = false }

// Layout is a fake geometry enumeration.
type Layout struct {
	Mons       []shell.Monitor
	Primary    int
	Connectors map[string]int
	changed    subscribers
}

func (l *Layout) Monitors() []shell.Monitor { return l.Mons }
func (l *Layout) PrimaryIndex() int         { return l.Primary }
func (l *Layout) MonitorForConnector(connector string) int {
	if i, ok := l.Connectors[connector]; ok {
		return i
	}
	return -1
}
func (l *Layout) OnMonitorsChanged(fn func()) func() { return l.changed.add(fn) }

// Hotplug replaces the monitor set and notifies.
func (l *Layout) Hotplug(mons []shell.Monitor, connectors map[string]int) {
	l.Mons = mons
	l.Connectors = connectors
	l.changed.emit()
}

// DisplayConfig is a fake configuration-protocol service. Replies are posted
// to the loop like real D-Bus completions.
type DisplayConfig struct {
	Loop      *Loop
	Names     []shell.OutputName
	Err       error
	ConnErr   error
	Queries   int
	connectCB func(error)
	connected bool
}

func (d *DisplayConfig) Connect(cb func(err error)) {
	d.connectCB = cb
}

// CompleteConnect finishes the asynchronous bring-up.
func (d *DisplayConfig) CompleteConnect() {
	if d.connectCB == nil {
		return
	}
	cb := d.connectCB
	d.connectCB = nil
	d.connected = d.ConnErr == nil
	err := d.ConnErr
	d.Loop.Post(func() { cb(err) })
}

func (d *DisplayConfig) Outputs(cb func([]shell.OutputName, error)) {
	d.Queries++
	names := append([]shell.OutputName(nil), d.Names...)
	err := d.Err
	d.Loop.Post(func() {
		if err != nil {
			cb(nil, err)
			return
		}
		cb(names, nil)
	})
}

func (d *DisplayConfig) Close() error { return nil }

// Backlight is a fake backlight proxy; Percent < 0 means unsupported.
type Backlight struct {
	Loop      *Loop
	Percent   int
	Writes    []int
	ConnErr   error
	ready     bool
	connectCB func(error)
	changed   subscribers
}

func (b *Backlight) Connect(cb func(err error)) { b.connectCB = cb }

// CompleteConnect finishes the asynchronous bring-up.
func (b *Backlight) CompleteConnect() {
	if b.connectCB == nil {
		return
	}
	cb := b.connectCB
	b.connectCB = nil
	b.ready = true
	err := b.ConnErr
	b.Loop.Post(func() { cb(err) })
}

func (b *Backlight) Ready() bool { return b.ready }

func (b *Backlight) Brightness() (int, bool) {
	if !b.ready || b.Percent < 0 {
		return 0, false
	}
	return b.Percent, true
}

// SetBrightness stores the value and posts the property-changed signal.
func (b *Backlight) SetBrightness(percent int) {
	b.Writes = append(b.Writes, percent)
	if b.Percent == percent {
		return
	}
	b.Percent = percent
	b.Loop.Post(b.changed.emit)
}

// External simulates a change from outside (hardware keys).
func (b *Backlight) External(percent int) {
	b.Percent = percent
	b.Loop.Post(b.changed.emit)
}

func (b *Backlight) OnChanged(fn func()) func() { return b.changed.add(fn) }
func (b *Backlight) Close() error               { return nil }

// Slider is a fake slider that, like many toolkits, fires its change
// notification even for programmatic SetValue calls.
type Slider struct {
	Val      float64
	SetCalls int
	changed  []func(float64)
}

func (s *Slider) Value() float64 { return s.Val }

func (s *Slider) SetValue(v float64) {
	s.SetCalls++
	s.Val = v
	for _, fn := range s.changed {
		if fn != nil {
			fn(v)
		}
	}
}

func (s *Slider) OnValueChanged(fn func(float64)) func() {
	s.changed = append(s.changed, fn)
	i := len(s.changed) - 1
	return func() { s.changed[i] = nil }
}

// Drag simulates the user moving the slider.
func (s *Slider) Drag(v float64) {
	s.Val = v
	for _, fn := range s.changed {
		if fn != nil {
			fn(v)
		}
	}
}

// Screenshots is a fake screenshot service. Capture records what the stage
// looked like at capture time through Observe.
type Screenshots struct {
	Loop     *Loop
	Observe  func() string
	Captured []string
	Done     []shell.CaptureResult
	capture  *intercept.Point[func(shell.CaptureRequest)]
	area     *intercept.Point[func(shell.CaptureRequest)]
	complete *intercept.Point[func(shell.CaptureResult)]
}

func NewScreenshots(loop *Loop) *Screenshots {
	s := &Screenshots{Loop: loop}
	shoot := func(req shell.CaptureRequest) {
		if s.Observe != nil {
			s.Captured = append(s.Captured, s.Observe())
		}
		s.Loop.Post(func() { s.complete.Current()(shell.CaptureResult{Path: req.Path}) })
	}
	s.capture = intercept.NewPoint("screenshot", shoot)
	s.area = intercept.NewPoint("screenshot-area", shoot)
	s.complete = intercept.NewPoint("screenshot-complete", func(res shell.CaptureResult) {
		s.Done = append(s.Done, res)
	})
	return s
}

func (s *Screenshots) Capture() *intercept.Point[func(shell.CaptureRequest)]     { return s.capture }
func (s *Screenshots) CaptureArea() *intercept.Point[func(shell.CaptureRequest)] { return s.area }
func (s *Screenshots) Completed() *intercept.Point[func(shell.CaptureResult)]    { return s.complete }

// Host bundles the fakes.
type Host struct {
	Loop   *Loop
	Stg    *Stage
	Comp   shell.Compositor
	Curs   *Cursor
	In     any
	Lay    *Layout
	DC     *DisplayConfig
	BL     *Backlight
	Shots  *Screenshots
	Mode   string
}

// NewHost returns a host with two monitors, eDP-1 (primary) and HDMI-1, and
// an unsupported backlight.
func NewHost() *Host {
	loop := NewLoop()
	return &Host{
		Loop: loop,
		Stg:  &Stage{},
		Comp: &Compositor{},
		Curs: NewCursor(),
		In:   &Input{},
		Lay: &Layout{
			Mons: []shell.Monitor{
				{Index: 0, Rect: shell.Rect{X: 0, Y: 0, Width: 1920, Height: 1080}},
				{Index: 1, Rect: shell.Rect{X: 1920, Y: 0, Width: 2560, Height: 1440}},
			},
			Primary:    0,
			Connectors: map[string]int{"eDP-1": 0, "HDMI-1": 1},
		},
		DC: &DisplayConfig{Loop: loop, Names: []shell.OutputName{
			{DisplayName: "HDMI-1", Connector: "HDMI-1"},
			{DisplayName: "eDP-1", Connector: "eDP-1"},
		}},
		BL:    &Backlight{Loop: loop, Percent: -1},
		Shots: NewScreenshots(loop),
		Mode:  "user",
	}
}

func (h *Host) Scheduler() shell.Scheduler            { return h.Loop }
func (h *Host) Stage() shell.Stage                    { return h.Stg }
func (h *Host) Compositor() shell.Compositor          { return h.Comp }
func (h *Host) Cursor() shell.CursorTracker           { return h.Curs }
func (h *Host) Input() any                            { return h.In }
func (h *Host) Layout() shell.Layout                  { return h.Lay }
func (h *Host) DisplayConfig() shell.DisplayConfig    { return h.DC }
func (h *Host) Backlight() shell.Backlight            { return h.BL }
func (h *Host) Screenshots() shell.ScreenshotService  { return h.Shots }
func (h *Host) SessionMode() string                   { return h.Mode }
