// Package control exports the daemon on the session bus. The exported object
// plays the brightness slider of the dimming core and publishes its state;
// the client side is used by the CLI.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/bnema/softbright/internal/logger"
	"github.com/bnema/softbright/internal/shell"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
)

const (
	ServiceName = "io.github.bnema.SoftBright"
	ObjectPath  = dbus.ObjectPath("/io/github/bnema/SoftBright")
	Interface   = ServiceName

	errInvalidArgs = "org.freedesktop.DBus.Error.InvalidArgs"
	errFailed      = "org.freedesktop.DBus.Error.Failed"
)

// ErrAlreadyRunning is returned when another daemon owns the bus name.
var ErrAlreadyRunning = errors.New("softbright is already running")

// callTimeout bounds how long a bus method waits for the event loop.
const callTimeout = 5 * time.Second

// shotTimeout bounds a screenshot request.
const shotTimeout = 15 * time.Second

// Invoker runs fn on the event loop and waits for it.
type Invoker func(ctx context.Context, fn func()) error

// Shooter takes screenshots; done runs on the loop.
type Shooter interface {
	Shoot(req shell.CaptureRequest, done func(shell.CaptureResult))
}

// Service is the slider the core attaches to and the exported bus object.
// Slider methods run on the loop; bus methods hop onto it through invoke.
type Service struct {
	invoke  Invoker
	shooter Shooter

	conn     *dbus.Conn
	value    float64
	state    []byte
	next     int
	handlers map[int]func(float64)
}

// NewService creates an unexported service.
func NewService(invoke Invoker, shooter Shooter) *Service {
	return &Service{
		invoke:   invoke,
		shooter:  shooter,
		value:    1,
		state:    []byte("{}"),
		handlers: make(map[int]func(float64)),
	}
}

// Value returns the last value shown.
func (s *Service) Value() float64 { return s.value }

// SetValue updates the shown value and emits BrightnessChanged. Programmatic
// updates do not fire OnValueChanged handlers.
func (s *Service) SetValue(v float64) {
	if v == s.value {
		return
	}
	s.value = v
	s.emit("BrightnessChanged", v)
}

func (s *Service) OnValueChanged(fn func(v float64)) func() {
	s.next++
	id := s.next
	s.handlers[id] = fn
	return func() { delete(s.handlers, id) }
}

// drag applies a value coming from a remote client, as a user moving the
// slider would.
func (s *Service) drag(v float64) {
	s.value = v
	ids := make([]int, 0, len(s.handlers))
	for id := range s.handlers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if fn, ok := s.handlers[id]; ok {
			fn(v)
		}
	}
}

// PublishState stores the JSON encoding of state for GetState and emits
// StateChanged when it differs from the previous one.
func (s *Service) PublishState(state any) {
	data, err := json.Marshal(state)
	if err != nil {
		logger.Warnf("control: cannot encode state: %v", err)
		return
	}
	if string(data) == string(s.state) {
		return
	}
	s.state = data
	s.emit("StateChanged", string(data))
}

func (s *Service) emit(member string, value any) {
	if s.conn == nil {
		return
	}
	if err := s.conn.Emit(ObjectPath, Interface+"."+member, value); err != nil {
		logger.Debugf("control: emit %s: %v", member, err)
	}
}

// Export claims the bus name and exports the object on conn. It must run
// before the loop handles bus traffic.
func (s *Service) Export(conn *dbus.Conn) error {
	reply, err := conn.RequestName(ServiceName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request %s: %w", ServiceName, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return ErrAlreadyRunning
	}

	h := &handler{svc: s}
	if err := conn.Export(h, ObjectPath, Interface); err != nil {
		return fmt.Errorf("failed to export %s: %w", ObjectPath, err)
	}
	node := &introspect.Node{
		Name: string(ObjectPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			introspectIface(),
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), ObjectPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		logger.Warnf("control: failed to export introspection: %v", err)
	}
	s.conn = conn
	logger.Infof("control: claimed %s on session bus", ServiceName)
	return nil
}

// Unexport releases the bus name.
func (s *Service) Unexport() {
	if s.conn == nil {
		return
	}
	conn := s.conn
	s.conn = nil
	conn.Export(nil, ObjectPath, Interface)
	conn.Export(nil, ObjectPath, "org.freedesktop.DBus.Introspectable")
	if _, err := conn.ReleaseName(ServiceName); err != nil {
		logger.Debugf("control: release name: %v", err)
	}
}

func introspectIface() introspect.Interface {
	return introspect.Interface{
		Name: Interface,
		Methods: []introspect.Method{
			{Name: "GetBrightness", Args: []introspect.Arg{{Name: "value", Type: "d", Direction: "out"}}},
			{Name: "SetBrightness", Args: []introspect.Arg{{Name: "value", Type: "d", Direction: "in"}}},
			{Name: "GetState", Args: []introspect.Arg{{Name: "state", Type: "s", Direction: "out"}}},
			{Name: "Screenshot", Args: []introspect.Arg{
				{Name: "path", Type: "s", Direction: "in"},
				{Name: "saved", Type: "s", Direction: "out"},
			}},
			{Name: "ScreenshotArea", Args: []introspect.Arg{
				{Name: "x", Type: "i", Direction: "in"},
				{Name: "y", Type: "i", Direction: "in"},
				{Name: "width", Type: "i", Direction: "in"},
				{Name: "height", Type: "i", Direction: "in"},
				{Name: "path", Type: "s", Direction: "in"},
				{Name: "saved", Type: "s", Direction: "out"},
			}},
		},
		Signals: []introspect.Signal{
			{Name: "BrightnessChanged", Args: []introspect.Arg{{Name: "value", Type: "d"}}},
			{Name: "StateChanged", Args: []introspect.Arg{{Name: "state", Type: "s"}}},
		},
	}
}

// handler holds the exported bus methods. They run on godbus goroutines.
type handler struct {
	svc *Service
}

func (h *handler) onLoop(fn func()) *dbus.Error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	if err := h.svc.invoke(ctx, fn); err != nil {
		return dbus.NewError(errFailed, []any{err.Error()})
	}
	return nil
}

func (h *handler) GetBrightness() (float64, *dbus.Error) {
	var v float64
	if derr := h.onLoop(func() { v = h.svc.value }); derr != nil {
		return 0, derr
	}
	return v, nil
}

func (h *handler) SetBrightness(v float64) *dbus.Error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return dbus.NewError(errInvalidArgs, []any{fmt.Sprintf("brightness %v is outside [0,1]", v)})
	}
	return h.onLoop(func() { h.svc.drag(v) })
}

func (h *handler) GetState() (string, *dbus.Error) {
	var state string
	if derr := h.onLoop(func() { state = string(h.svc.state) }); derr != nil {
		return "", derr
	}
	return state, nil
}

func (h *handler) Screenshot(path string) (string, *dbus.Error) {
	return h.shoot(shell.CaptureRequest{Path: path})
}

func (h *handler) ScreenshotArea(x, y, width, height int32, path string) (string, *dbus.Error) {
	if width <= 0 || height <= 0 {
		return "", dbus.NewError(errInvalidArgs, []any{"area must have a positive size"})
	}
	area := &shell.Rect{X: int(x), Y: int(y), Width: int(width), Height: int(height)}
	return h.shoot(shell.CaptureRequest{Path: path, Area: area})
}

func (h *handler) shoot(req shell.CaptureRequest) (string, *dbus.Error) {
	if h.svc.shooter == nil {
		return "", dbus.NewError(errFailed, []any{"screenshots are not available"})
	}
	results := make(chan shell.CaptureResult, 1)
	if derr := h.onLoop(func() {
		h.svc.shooter.Shoot(req, func(res shell.CaptureResult) { results <- res })
	}); derr != nil {
		return "", derr
	}
	select {
	case res := <-results:
		if res.Err != nil {
			return "", dbus.NewError(errFailed, []any{res.Err.Error()})
		}
		return res.Path, nil
	case <-time.After(shotTimeout):
		return "", dbus.NewError(errFailed, []any{"screenshot timed out"})
	}
}
