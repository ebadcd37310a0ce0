package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bnema/softbright/internal/shell"
	"github.com/godbus/dbus/v5"
)

// ErrNotRunning is returned when no daemon owns the bus name.
var ErrNotRunning = errors.New("softbright daemon is not running")

// Client talks to a running daemon.
type Client struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// Dial connects to the session bus and checks that the daemon is up.
func Dial() (*Client, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	var owned bool
	if err := conn.BusObject().Call("org.freedesktop.DBus.NameHasOwner", 0, ServiceName).Store(&owned); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to query %s: %w", ServiceName, err)
	}
	if !owned {
		conn.Close()
		return nil, ErrNotRunning
	}
	return &Client{conn: conn, obj: conn.Object(ServiceName, ObjectPath)}, nil
}

// Close releases the bus connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) call(ctx context.Context, method string, args ...any) *dbus.Call {
	return c.obj.CallWithContext(ctx, Interface+"."+method, 0, args...)
}

// Brightness returns the level shown by the daemon.
func (c *Client) Brightness(ctx context.Context) (float64, error) {
	var v float64
	if err := c.call(ctx, "GetBrightness").Store(&v); err != nil {
		return 0, fmt.Errorf("GetBrightness: %w", err)
	}
	return v, nil
}

// SetBrightness asks the daemon to change the level.
func (c *Client) SetBrightness(ctx context.Context, v float64) error {
	if err := c.call(ctx, "SetBrightness", v).Err; err != nil {
		return fmt.Errorf("SetBrightness: %w", err)
	}
	return nil
}

// State decodes the daemon's published state into out.
func (c *Client) State(ctx context.Context, out any) error {
	var data string
	if err := c.call(ctx, "GetState").Store(&data); err != nil {
		return fmt.Errorf("GetState: %w", err)
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return fmt.Errorf("failed to decode state: %w", err)
	}
	return nil
}

// Screenshot captures the screen, or area when it is not nil, and returns
// the saved path. An empty path lets the daemon pick one.
func (c *Client) Screenshot(ctx context.Context, path string, area *shell.Rect) (string, error) {
	var call *dbus.Call
	if area == nil {
		call = c.call(ctx, "Screenshot", path)
	} else {
		call = c.call(ctx, "ScreenshotArea", int32(area.X), int32(area.Y), int32(area.Width), int32(area.Height), path)
	}
	var saved string
	if err := call.Store(&saved); err != nil {
		return "", fmt.Errorf("screenshot: %w", err)
	}
	return saved, nil
}

// WatchBrightness delivers BrightnessChanged values until ctx is done. The
// returned channel is closed afterwards.
func (c *Client) WatchBrightness(ctx context.Context) (<-chan float64, error) {
	err := c.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(ObjectPath),
		dbus.WithMatchInterface(Interface),
		dbus.WithMatchMember("BrightnessChanged"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to watch brightness: %w", err)
	}
	signals := make(chan *dbus.Signal, 16)
	c.conn.Signal(signals)

	out := make(chan float64, 16)
	go func() {
		defer close(out)
		defer c.conn.RemoveSignal(signals)
		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-signals:
				if !ok {
					return
				}
				if v, ok := brightnessFromSignal(sig); ok {
					select {
					case out <- v:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out, nil
}

func brightnessFromSignal(sig *dbus.Signal) (float64, bool) {
	if sig == nil || sig.Path != ObjectPath || sig.Name != Interface+".BrightnessChanged" || len(sig.Body) != 1 {
		return 0, false
	}
	v, ok := sig.Body[0].(float64)
	return v, ok
}
