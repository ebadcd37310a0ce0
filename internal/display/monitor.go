// Package display handles monitor detection and cursor tracking
package display

import (
	"errors"
	"fmt"
	"os/exec"
	"sync"

	"github.com/bnema/softbright/internal/logger"
	"github.com/bnema/softbright/internal/shell"
)

// ErrNoCursor is returned by backends that cannot report the cursor position.
var ErrNoCursor = errors.New("cursor position not available")

var errNoMonitors = errors.New("no active monitors found")

// Monitor represents a physical display
type Monitor struct {
	ID          string
	Name        string // connector, e.g. "eDP-1"
	Description string // human-readable make and model
	X           int32  // Position in global coordinate space
	Y           int32
	Width       int32 // Logical size, after scale and transform
	Height      int32
	Primary     bool
	Scale       float64
	Refresh     float64 // Hz, 0 when unknown
}

// Contains checks if a point is within this monitor
func (m *Monitor) Contains(x, y int32) bool {
	return x >= m.X && x < m.X+m.Width && y >= m.Y && y < m.Y+m.Height
}

// Rect returns the monitor geometry in shell coordinates.
func (m *Monitor) Rect() shell.Rect {
	return shell.Rect{X: int(m.X), Y: int(m.Y), Width: int(m.Width), Height: int(m.Height)}
}

// DisplayName returns the description, falling back to the connector.
func (m *Monitor) DisplayName() string {
	if m.Description != "" {
		return m.Description
	}
	return m.Name
}

// Backend interface for different display detection methods
type Backend interface {
	Name() string
	GetMonitors() ([]*Monitor, error)
	GetCursorPosition() (x, y int32, err error)
	Close() error
}

// runCommand executes an external tool and returns its stdout.
var runCommand = func(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).Output()
}

// Display manages monitor configuration and cursor tracking
type Display struct {
	mu       sync.RWMutex
	monitors []*Monitor
	backend  Backend
}

// New creates a new display manager
func New() (*Display, error) {
	logger.Debug("Display.New: Starting display manager creation")

	// Try different backends in order of preference
	backends := []func() (Backend, error){
		newCompositorBackend, // hyprctl / swaymsg
		newWlrRandrBackend,   // wlr-randr command (fallback)
	}

	var errs []error
	for _, createBackend := range backends {
		backend, err := createBackend()
		if err != nil {
			logger.Debugf("Display.New: backend unavailable: %v", err)
			errs = append(errs, err)
			continue
		}
		d, err := NewWithBackend(backend)
		if err != nil {
			logger.Debugf("Display.New: backend %s failed: %v", backend.Name(), err)
			errs = append(errs, err)
			continue
		}
		logger.Debugf("Display.New: using backend %s", backend.Name())
		return d, nil
	}
	return nil, fmt.Errorf("no display backend available: %w", errors.Join(errs...))
}

// NewWithBackend creates a display manager on an explicit backend.
func NewWithBackend(backend Backend) (*Display, error) {
	d := &Display{backend: backend}
	if err := d.Refresh(); err != nil {
		backend.Close()
		return nil, err
	}
	return d, nil
}

// Backend returns the backend in use.
func (d *Display) Backend() Backend {
	return d.backend
}

// Refresh re-reads the monitor list from the backend.
func (d *Display) Refresh() error {
	monitors, err := d.backend.GetMonitors()
	if err != nil {
		return err
	}
	if len(monitors) == 0 {
		return errNoMonitors
	}
	ensurePrimaryMonitor(monitors)
	d.setMonitors(monitors)
	return nil
}

func (d *Display) setMonitors(monitors []*Monitor) {
	d.mu.Lock()
	d.monitors = monitors
	d.mu.Unlock()
}

// GetMonitors returns all detected monitors
func (d *Display) GetMonitors() []*Monitor {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.monitors
}

// GetPrimaryMonitor returns the primary monitor
func (d *Display) GetPrimaryMonitor() *Monitor {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, m := range d.monitors {
		if m.Primary {
			return m
		}
	}
	// Fallback to first monitor
	if len(d.monitors) > 0 {
		return d.monitors[0]
	}
	return nil
}

// GetMonitorAt returns the monitor containing the given coordinates
func (d *Display) GetMonitorAt(x, y int32) *Monitor {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, m := range d.monitors {
		if m.Contains(x, y) {
			return m
		}
	}
	return nil
}

// GetCursorPosition returns the current cursor position
func (d *Display) GetCursorPosition() (x, y int32, monitor *Monitor, err error) {
	x, y, err = d.backend.GetCursorPosition()
	if err != nil {
		return 0, 0, nil, err
	}

	monitor = d.GetMonitorAt(x, y)
	return x, y, monitor, nil
}

// Close cleans up resources
func (d *Display) Close() error {
	if d.backend != nil {
		return d.backend.Close()
	}
	return nil
}

// ensurePrimaryMonitor keeps an explicit primary, otherwise the monitor at
// (0,0) is primary, with fallback to the first monitor.
func ensurePrimaryMonitor(monitors []*Monitor) {
	for _, m := range monitors {
		if m.Primary {
			return
		}
	}
	determinePrimaryMonitor(monitors)
}

// determinePrimaryMonitor sets the primary monitor based on position
// The monitor at position (0,0) is considered primary, with fallback to first monitor
func determinePrimaryMonitor(monitors []*Monitor) {
	for _, monitor := range monitors {
		monitor.Primary = false
	}

	for _, monitor := range monitors {
		if monitor.X == 0 && monitor.Y == 0 {
			monitor.Primary = true
			return
		}
	}

	if len(monitors) > 0 {
		monitors[0].Primary = true
	}
}
