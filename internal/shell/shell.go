// Package shell declares the host collaborators the dimming core consumes: the
// scene graph, compositor, cursor tracker, monitor layout, backlight and
// display-configuration services, the brightness slider and the screenshot
// service. Hosts implement these; the core never reaches past them.
package shell

import (
	"time"

	"github.com/bnema/softbright/internal/intercept"
	"github.com/bnema/softbright/internal/mainloop"
)

// Source is a cancellable scheduled callback.
type Source = mainloop.Source

// Scheduler schedules work on the event loop.
type Scheduler interface {
	// Timeout runs fn after d, repeating while fn returns true.
	Timeout(d time.Duration, fn func() bool) Source
	// Idle runs fn once on a later loop iteration.
	Idle(fn func()) Source
}

// Settings is the persisted key/value store.
type Settings interface {
	Bool(key string) bool
	Double(key string) float64
	String(key string) string
	SetBool(key string, value bool)
	SetDouble(key string, value float64)
	SetString(key string, value string)
	// Connect subscribes to changes of key; the notification is delivered on
	// a later loop iteration. It returns the disconnect function.
	Connect(key string, fn func()) func()
}

// Rect is a rectangle in global (device) coordinates.
type Rect struct {
	X, Y          int
	Width, Height int
}

// Actor is a visual node of the scene graph.
type Actor interface {
	SetGeometry(r Rect)
	SetOpacity(opacity uint8)
	Opacity() uint8
	RaiseTop()
}

// Group is a container actor.
type Group interface {
	Actor
	Add(child Actor)
	Remove(child Actor)
}

// CursorActor renders the cursor clone.
type CursorActor interface {
	Actor
	SetPosition(x, y int)
	SetSprite(s Sprite)
}

// Sprite is the cursor image and its hot spot.
type Sprite struct {
	Image  []byte
	Width  int
	Height int
	HotX   int
	HotY   int
	// Empty is set when the tracker has no sprite (hidden cursor theme).
	Empty bool
}

// Stage is the root of the scene graph.
type Stage interface {
	// NewGroup creates a named container stacked on top of the stage.
	NewGroup(name string) Group
	// DestroyGroup removes a group created by NewGroup.
	DestroyGroup(g Group)
	// NewOverlay creates a black, click-through surface.
	NewOverlay(r Rect) Actor
	// NewCursorActor creates the actor used for the cursor clone.
	NewCursorActor() CursorActor
	// OnActorsChanged fires when any actor is added to or removed from the
	// stage by anyone.
	OnActorsChanged(fn func()) func()
}

// Compositor exposes the unredirection switch.
type Compositor interface {
	DisableUnredirect()
	EnableUnredirect()
}

// RefreshRater is implemented by compositors that know their frame rate.
type RefreshRater interface {
	RefreshRate() float64
}

// CursorTracker reports the hardware cursor and owns the pointer-visibility
// primitive.
type CursorTracker interface {
	// PointerVisibility is the process-wide "set pointer visible" entry point.
	PointerVisibility() *intercept.Point[func(visible bool)]
	Position() (x, y int)
	Sprite() Sprite
	OnCursorChanged(fn func()) func()
	OnVisibilityChanged(fn func()) func()
}

// FocusKeeper is implemented by input backends that can keep keyboard focus
// while the pointer is hidden.
type FocusKeeper interface {
	SetKeepFocusWhileHidden(keep bool)
}

// UnfocusInhibitor is implemented by input backends that can inhibit
// focus-follows-mouse unfocusing.
type UnfocusInhibitor interface {
	InhibitUnfocus()
	UninhibitUnfocus()
}

// Monitor is one entry of the geometry enumeration.
type Monitor struct {
	Index int
	Rect
}

// Layout is the ordered geometry enumeration of the compositor.
type Layout interface {
	Monitors() []Monitor
	PrimaryIndex() int
	// MonitorForConnector returns the logical index of connector, or -1.
	MonitorForConnector(connector string) int
	OnMonitorsChanged(fn func()) func()
}

// OutputName pairs a human-readable display name with its connector.
type OutputName struct {
	DisplayName string
	Connector   string
}

// DisplayConfig is the display-configuration query service.
type DisplayConfig interface {
	// Connect brings the service up asynchronously; cb runs on the loop.
	Connect(cb func(err error))
	// Outputs queries the current outputs; cb runs on the loop.
	Outputs(cb func(outputs []OutputName, err error))
	Close() error
}

// Backlight is the hardware backlight service.
type Backlight interface {
	// Connect brings the proxy up asynchronously; cb runs on the loop.
	Connect(cb func(err error))
	// Ready reports whether the proxy finished connecting.
	Ready() bool
	// Brightness returns the percentage, ok=false when unsupported or unknown.
	Brightness() (percent int, ok bool)
	SetBrightness(percent int)
	OnChanged(fn func()) func()
	Close() error
}

// Slider is the brightness slider widget.
type Slider interface {
	Value() float64
	// SetValue updates the display. Implementations may fire OnValueChanged.
	SetValue(v float64)
	OnValueChanged(fn func(v float64)) func()
}

// CaptureRequest describes one screenshot.
type CaptureRequest struct {
	// Area is nil for full-screen captures.
	Area *Rect
	Path string
}

// CaptureResult reports a finished capture.
type CaptureResult struct {
	Path string
	Err  error
}

// ScreenshotService exposes the hookable entry points of the screenshot
// service.
type ScreenshotService interface {
	Capture() *intercept.Point[func(req CaptureRequest)]
	CaptureArea() *intercept.Point[func(req CaptureRequest)]
	Completed() *intercept.Point[func(res CaptureResult)]
}

// SessionUnlockDialog is the session mode in which softbright keeps running.
const SessionUnlockDialog = "unlock-dialog"

// Host bundles every collaborator of a running shell.
type Host interface {
	Scheduler() Scheduler
	Stage() Stage
	Compositor() Compositor
	Cursor() CursorTracker
	// Input returns the input backend; it may implement FocusKeeper and
	// UnfocusInhibitor, or neither.
	Input() any
	Layout() Layout
	DisplayConfig() DisplayConfig
	Backlight() Backlight
	Screenshots() ScreenshotService
	SessionMode() string
}
