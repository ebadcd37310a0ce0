// Package gnome talks to the GNOME session services softbright depends on:
// the settings daemon's backlight and Mutter's display configuration. Bus
// calls run on their own goroutines; results and signals are posted to the
// event loop.
package gnome

import (
	"fmt"
	"slices"

	"github.com/godbus/dbus/v5"
)

const (
	PowerService  = "org.gnome.SettingsDaemon.Power"
	MutterService = "org.gnome.Mutter.DisplayConfig"

	propertiesIface = "org.freedesktop.DBus.Properties"
)

// Dialer opens a session bus connection.
type Dialer func() (*dbus.Conn, error)

// DefaultDialer connects a new session bus connection owned by the caller.
func DefaultDialer() (*dbus.Conn, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return conn, nil
}

// HasOwner reports whether name currently has an owner on the session bus.
// It blocks and must not be called from the event loop.
func HasOwner(dial Dialer, name string) bool {
	conn, err := dial()
	if err != nil {
		return false
	}
	defer conn.Close()

	var owned bool
	if err := conn.BusObject().Call("org.freedesktop.DBus.NameHasOwner", 0, name).Store(&owned); err != nil {
		return false
	}
	return owned
}

// handlers is an ordered set of change callbacks.
type handlers struct {
	next int
	fns  map[int]func()
}

func (h *handlers) add(fn func()) func() {
	if h.fns == nil {
		h.fns = make(map[int]func())
	}
	h.next++
	id := h.next
	h.fns[id] = fn
	return func() { delete(h.fns, id) }
}

func (h *handlers) emit() {
	ids := make([]int, 0, len(h.fns))
	for id := range h.fns {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if fn, ok := h.fns[id]; ok {
			fn()
		}
	}
}
