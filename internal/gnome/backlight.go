package gnome

import (
	"fmt"

	"github.com/bnema/softbright/internal/logger"
	"github.com/godbus/dbus/v5"
)

const (
	powerPath        = dbus.ObjectPath("/org/gnome/SettingsDaemon/Power")
	screenIface      = "org.gnome.SettingsDaemon.Power.Screen"
	brightnessMember = "Brightness"
)

// Backlight is a proxy for the settings daemon's screen brightness property.
// All methods except Connect must be called on the event loop.
type Backlight struct {
	post func(func())
	dial Dialer

	conn    *dbus.Conn
	obj     dbus.BusObject
	signals chan *dbus.Signal

	ready   bool
	percent int
	valid   bool
	changed handlers
	closed  bool
}

// NewBacklight creates a disconnected proxy. post schedules work on the loop.
func NewBacklight(dial Dialer, post func(func())) *Backlight {
	if dial == nil {
		dial = DefaultDialer
	}
	return &Backlight{post: post, dial: dial}
}

// Connect dials the bus, reads the initial value and subscribes to
// PropertiesChanged. cb runs on the loop. A failed bring-up still marks the
// proxy ready, with the brightness unsupported.
func (b *Backlight) Connect(cb func(err error)) {
	go func() {
		conn, obj, percent, valid, err := b.bringUp()
		b.post(func() {
			b.ready = true
			if err != nil {
				cb(err)
				return
			}
			if b.closed {
				conn.Close()
				return
			}
			b.conn = conn
			b.obj = obj
			b.percent, b.valid = percent, valid
			b.watch()
			logger.Debugf("gnome: backlight connected, brightness=%d valid=%t", percent, valid)
			cb(nil)
		})
	}()
}

func (b *Backlight) bringUp() (*dbus.Conn, dbus.BusObject, int, bool, error) {
	conn, err := b.dial()
	if err != nil {
		return nil, nil, 0, false, err
	}
	obj := conn.Object(PowerService, powerPath)

	percent, valid := -1, false
	v, err := obj.GetProperty(screenIface + "." + brightnessMember)
	if err != nil {
		logger.Debugf("gnome: brightness property unavailable: %v", err)
	} else {
		percent, valid = parseBrightness(v)
	}

	err = conn.AddMatchSignal(
		dbus.WithMatchObjectPath(powerPath),
		dbus.WithMatchInterface(propertiesIface),
		dbus.WithMatchMember("PropertiesChanged"),
	)
	if err != nil {
		conn.Close()
		return nil, nil, 0, false, fmt.Errorf("failed to watch backlight: %w", err)
	}
	return conn, obj, percent, valid, nil
}

func (b *Backlight) watch() {
	b.signals = make(chan *dbus.Signal, 16)
	b.conn.Signal(b.signals)
	obj := b.obj
	go func() {
		for sig := range b.signals {
			percent, valid, touched := parsePropertiesChanged(sig)
			if !touched {
				continue
			}
			if percent == invalidated {
				v, err := obj.GetProperty(screenIface + "." + brightnessMember)
				if err != nil {
					percent, valid = -1, false
				} else {
					percent, valid = parseBrightness(v)
				}
			}
			b.post(func() { b.update(percent, valid) })
		}
	}()
}

func (b *Backlight) update(percent int, valid bool) {
	if b.closed {
		return
	}
	b.percent, b.valid = percent, valid
	b.changed.emit()
}

func (b *Backlight) Ready() bool { return b.ready }

func (b *Backlight) Brightness() (int, bool) {
	if !b.ready || !b.valid {
		return 0, false
	}
	return b.percent, true
}

// SetBrightness writes the property. The cached value is updated at once; the
// daemon's PropertiesChanged signal triggers the change notification.
func (b *Backlight) SetBrightness(percent int) {
	if b.obj == nil {
		logger.Warn("gnome: backlight write before connect ignored")
		return
	}
	b.percent, b.valid = percent, true
	obj := b.obj
	go func() {
		call := obj.Call(propertiesIface+".Set", 0, screenIface, brightnessMember, dbus.MakeVariant(int32(percent)))
		if call.Err != nil {
			b.post(func() { logger.Warnf("gnome: failed to set brightness to %d%%: %v", percent, call.Err) })
		}
	}()
}

func (b *Backlight) OnChanged(fn func()) func() {
	return b.changed.add(fn)
}

func (b *Backlight) Close() error {
	b.closed = true
	if b.conn == nil {
		return nil
	}
	// Closing the connection also closes the signal channel.
	err := b.conn.Close()
	b.conn, b.obj = nil, nil
	return err
}

// invalidated marks a property listed without a value.
const invalidated = -2

// parseBrightness converts the property value; negative means unsupported.
func parseBrightness(v dbus.Variant) (int, bool) {
	var p int
	switch n := v.Value().(type) {
	case int32:
		p = int(n)
	case int64:
		p = int(n)
	case uint32:
		p = int(n)
	case int:
		p = n
	default:
		return -1, false
	}
	return p, p >= 0
}

// parsePropertiesChanged extracts the brightness from a PropertiesChanged
// signal. touched is false when the signal does not concern it.
func parsePropertiesChanged(sig *dbus.Signal) (percent int, valid, touched bool) {
	if sig == nil || sig.Path != powerPath || sig.Name != propertiesIface+".PropertiesChanged" || len(sig.Body) < 2 {
		return 0, false, false
	}
	if iface, ok := sig.Body[0].(string); !ok || iface != screenIface {
		return 0, false, false
	}
	if changed, ok := sig.Body[1].(map[string]dbus.Variant); ok {
		if v, ok := changed[brightnessMember]; ok {
			p, valid := parseBrightness(v)
			return p, valid, true
		}
	}
	if len(sig.Body) > 2 {
		if names, ok := sig.Body[2].([]string); ok {
			for _, n := range names {
				if n == brightnessMember {
					return invalidated, false, true
				}
			}
		}
	}
	return 0, false, false
}
