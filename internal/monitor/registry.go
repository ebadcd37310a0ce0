// Package monitor joins the compositor's geometry enumeration with the
// display-configuration names and resolves the monitor selection policy.
package monitor

import (
	"fmt"

	"github.com/bnema/softbright/internal/config"
	"github.com/bnema/softbright/internal/logger"
	"github.com/bnema/softbright/internal/shell"
)

// Descriptor identifies one monitor of the current layout.
type Descriptor struct {
	Index     int
	Name      string
	Connector string
	shell.Rect
}

func (d Descriptor) String() string {
	return fmt.Sprintf("#%d %q (%s) %dx%d@%d,%d", d.Index, d.Name, d.Connector, d.Width, d.Height, d.X, d.Y)
}

// Registry keeps the name-by-index mapping of the current layout. The mapping
// is only available after the first asynchronous refresh completes.
type Registry struct {
	layout     shell.Layout
	dc         shell.DisplayConfig
	settings   shell.Settings
	onResolved func()

	names      map[int]string
	connectors map[int]string

	connected         bool
	ready             bool
	disconnectChanged func()
}

// NewRegistry creates a registry. onResolved runs on the loop every time a
// refresh produced a new mapping.
func NewRegistry(layout shell.Layout, dc shell.DisplayConfig, settings shell.Settings, onResolved func()) *Registry {
	return &Registry{
		layout:     layout,
		dc:         dc,
		settings:   settings,
		onResolved: onResolved,
	}
}

// Connect starts the display-configuration bring-up and follows hotplug.
func (r *Registry) Connect() {
	if r.connected {
		return
	}
	r.connected = true
	r.dc.Connect(func(err error) {
		if !r.connected {
			return
		}
		if err != nil {
			logger.Errorf("monitor: cannot get display config: %v", err)
			return
		}
		logger.Debug("monitor: display config connected")
		r.ready = true
		r.Refresh()
	})
	r.disconnectChanged = r.layout.OnMonitorsChanged(r.Refresh)
}

// Disconnect stops following hotplug and forgets the mapping.
func (r *Registry) Disconnect() {
	if !r.connected {
		return
	}
	if r.disconnectChanged != nil {
		r.disconnectChanged()
		r.disconnectChanged = nil
	}
	r.connected = false
	r.ready = false
	r.names = nil
	r.connectors = nil
}

// Refresh re-queries the output names. Replies that fail leave the previous
// mapping untouched.
func (r *Registry) Refresh() {
	if !r.ready {
		logger.Debug("monitor: skipping refresh, display config not connected yet")
		return
	}
	r.dc.Outputs(func(outputs []shell.OutputName, err error) {
		if !r.connected {
			return
		}
		if err != nil {
			logger.Errorf("monitor: cannot get monitor config: %v", err)
			return
		}
		names := make(map[int]string, len(outputs))
		connectors := make(map[int]string, len(outputs))
		for _, out := range outputs {
			idx := r.layout.MonitorForConnector(out.Connector)
			logger.Debugf("monitor: name=%q connector=%q index=%d", out.DisplayName, out.Connector, idx)
			if idx < 0 {
				continue
			}
			names[idx] = out.DisplayName
			connectors[idx] = out.Connector
		}
		r.names = names
		r.connectors = connectors
		if r.onResolved != nil {
			r.onResolved()
		}
	})
}

// Resolved reports whether a name mapping exists.
func (r *Registry) Resolved() bool {
	return r.names != nil
}

// Name returns the display name of the monitor at index.
func (r *Registry) Name(index int) (string, bool) {
	name, ok := r.names[index]
	return name, ok
}

// Descriptors returns every monitor of the layout with its resolved identity.
func (r *Registry) Descriptors() []Descriptor {
	mons := r.layout.Monitors()
	out := make([]Descriptor, 0, len(mons))
	for _, m := range mons {
		out = append(out, Descriptor{
			Index:     m.Index,
			Name:      r.names[m.Index],
			Connector: r.connectors[m.Index],
			Rect:      m.Rect,
		})
	}
	return out
}

// Select resolves the monitors policy. ok is false when the selection cannot
// be made yet or the policy is not recognized; callers retry on the next
// notification.
func (r *Registry) Select() (selected []Descriptor, ok bool) {
	setting := r.settings.String(config.KeyMonitors)
	policy, err := config.ParseMonitorPolicy(setting)
	if err != nil {
		logger.Errorf("monitor: unhandled monitors setting %q", setting)
		return nil, false
	}

	if policy == config.MonitorsAll {
		return r.Descriptors(), true
	}

	if !r.Resolved() {
		logger.Debug("monitor: skipping selection, names not resolved yet")
		return nil, false
	}

	builtin := r.settings.String(config.KeyBuiltinMonitor)
	if builtin == "" {
		builtin = r.names[r.layout.PrimaryIndex()]
		logger.Debugf("monitor: no built-in monitor, assigning %q and skipping run", builtin)
		r.settings.SetString(config.KeyBuiltinMonitor, builtin)
		return nil, false
	}

	for _, d := range r.Descriptors() {
		isBuiltin := d.Name == builtin
		if (policy == config.MonitorsBuiltin && isBuiltin) || (policy == config.MonitorsExternal && !isBuiltin) {
			selected = append(selected, d)
		}
	}
	return selected, true
}
