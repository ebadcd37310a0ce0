package gnome

import (
	"errors"
	"fmt"

	"github.com/bnema/softbright/internal/logger"
	"github.com/bnema/softbright/internal/shell"
	"github.com/godbus/dbus/v5"
)

const mutterPath = dbus.ObjectPath("/org/gnome/Mutter/DisplayConfig")

var (
	errNotConnected = errors.New("display config not connected")
	// ErrMalformedResources is returned for GetResources replies that do not
	// have the expected shape.
	ErrMalformedResources = errors.New("malformed GetResources reply")
)

// DisplayConfig queries output names from Mutter and follows its
// MonitorsChanged signal.
type DisplayConfig struct {
	post func(func())
	dial Dialer

	conn    *dbus.Conn
	obj     dbus.BusObject
	changed handlers
	closed  bool
}

// NewDisplayConfig creates a disconnected client. post schedules work on the
// loop.
func NewDisplayConfig(dial Dialer, post func(func())) *DisplayConfig {
	if dial == nil {
		dial = DefaultDialer
	}
	return &DisplayConfig{post: post, dial: dial}
}

func (d *DisplayConfig) Connect(cb func(err error)) {
	if d.obj != nil {
		d.post(func() { cb(nil) })
		return
	}
	go func() {
		conn, err := d.dial()
		if err == nil {
			err = conn.AddMatchSignal(
				dbus.WithMatchObjectPath(mutterPath),
				dbus.WithMatchInterface(MutterService),
				dbus.WithMatchMember("MonitorsChanged"),
			)
			if err != nil {
				conn.Close()
				err = fmt.Errorf("failed to watch monitors: %w", err)
			}
		}
		d.post(func() {
			if err != nil {
				cb(err)
				return
			}
			if d.closed {
				conn.Close()
				return
			}
			d.conn = conn
			d.obj = conn.Object(MutterService, mutterPath)
			d.watch()
			cb(nil)
		})
	}()
}

func (d *DisplayConfig) watch() {
	signals := make(chan *dbus.Signal, 8)
	d.conn.Signal(signals)
	go func() {
		for sig := range signals {
			if sig.Path != mutterPath || sig.Name != MutterService+".MonitorsChanged" {
				continue
			}
			d.post(func() {
				if d.closed {
					return
				}
				logger.Debug("gnome: monitors changed")
				d.changed.emit()
			})
		}
	}()
}

// OnMonitorsChanged subscribes to Mutter's hotplug signal.
func (d *DisplayConfig) OnMonitorsChanged(fn func()) func() {
	return d.changed.add(fn)
}

func (d *DisplayConfig) Outputs(cb func(outputs []shell.OutputName, err error)) {
	obj := d.obj
	if obj == nil {
		d.post(func() { cb(nil, errNotConnected) })
		return
	}
	go func() {
		call := obj.Call(MutterService+".GetResources", 0)
		if call.Err != nil {
			err := fmt.Errorf("GetResources failed: %w", call.Err)
			d.post(func() { cb(nil, err) })
			return
		}
		outputs, err := parseResources(call.Body)
		d.post(func() { cb(outputs, err) })
	}()
}

func (d *DisplayConfig) Close() error {
	d.closed = true
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn, d.obj = nil, nil
	return err
}

// parseResources extracts (display-name, connector) pairs from a GetResources
// reply: serial, crtcs, outputs, modes, max width, max height. Each output is
// (id, winsys id, crtc, possible crtcs, connector, modes, clones, properties).
func parseResources(body []any) ([]shell.OutputName, error) {
	if len(body) <= 2 {
		return nil, fmt.Errorf("%w: %d values", ErrMalformedResources, len(body))
	}
	outputs, ok := body[2].([][]any)
	if !ok {
		return nil, fmt.Errorf("%w: outputs have type %T", ErrMalformedResources, body[2])
	}

	names := make([]shell.OutputName, 0, len(outputs))
	for i, out := range outputs {
		if len(out) <= 7 {
			return nil, fmt.Errorf("%w: output %d has %d fields", ErrMalformedResources, i, len(out))
		}
		connector, ok := out[4].(string)
		if !ok {
			return nil, fmt.Errorf("%w: output %d connector has type %T", ErrMalformedResources, i, out[4])
		}
		name := ""
		if props, ok := out[7].(map[string]dbus.Variant); ok {
			if v, ok := props["display-name"]; ok {
				name, _ = v.Value().(string)
			}
		}
		if name == "" {
			name = "Monitor on output " + connector
		}
		names = append(names, shell.OutputName{DisplayName: name, Connector: connector})
	}
	return names, nil
}
