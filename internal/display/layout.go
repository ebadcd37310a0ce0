package display

import (
	"slices"

	"github.com/bnema/softbright/internal/logger"
	"github.com/bnema/softbright/internal/shell"
)

// Layout exposes a Display as the shell's monitor enumeration. Backend
// queries run on their own goroutine and results are posted to the loop.
type Layout struct {
	display  *Display
	post     func(func())
	monitors []*Monitor
	next     int
	handlers map[int]func()
}

// NewLayout wraps display; post schedules work on the loop.
func NewLayout(display *Display, post func(func())) *Layout {
	return &Layout{
		display:  display,
		post:     post,
		monitors: display.GetMonitors(),
		handlers: make(map[int]func()),
	}
}

func (l *Layout) Monitors() []shell.Monitor {
	out := make([]shell.Monitor, len(l.monitors))
	for i, m := range l.monitors {
		out[i] = shell.Monitor{Index: i, Rect: m.Rect()}
	}
	return out
}

func (l *Layout) PrimaryIndex() int {
	for i, m := range l.monitors {
		if m.Primary {
			return i
		}
	}
	return 0
}

func (l *Layout) MonitorForConnector(connector string) int {
	for i, m := range l.monitors {
		if m.Name == connector {
			return i
		}
	}
	return -1
}

// Monitor returns the detected monitor at index.
func (l *Layout) Monitor(index int) *Monitor {
	if index < 0 || index >= len(l.monitors) {
		return nil
	}
	return l.monitors[index]
}

func (l *Layout) OnMonitorsChanged(fn func()) func() {
	l.next++
	id := l.next
	l.handlers[id] = fn
	return func() { delete(l.handlers, id) }
}

// Refresh re-reads the backend and notifies when the geometry changed.
func (l *Layout) Refresh() {
	backend := l.display.backend
	go func() {
		monitors, err := backend.GetMonitors()
		l.post(func() {
			if err == nil && len(monitors) == 0 {
				err = errNoMonitors
			}
			if err != nil {
				logger.Warnf("display: refresh failed: %v", err)
				return
			}
			ensurePrimaryMonitor(monitors)
			l.display.setMonitors(monitors)
			l.apply(monitors)
		})
	}()
}

func (l *Layout) apply(monitors []*Monitor) {
	if slices.EqualFunc(l.monitors, monitors, func(a, b *Monitor) bool { return *a == *b }) {
		return
	}
	logger.Debugf("display: layout changed, %d monitors", len(monitors))
	l.monitors = monitors
	ids := make([]int, 0, len(l.handlers))
	for id := range l.handlers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if fn, ok := l.handlers[id]; ok {
			fn()
		}
	}
}

// Names is a display-configuration service backed by the detection backend,
// used when no compositor configuration service is reachable.
type Names struct {
	layout *Layout
	post   func(func())
}

// NewNames creates the fallback name service.
func NewNames(layout *Layout, post func(func())) *Names {
	return &Names{layout: layout, post: post}
}

func (n *Names) Connect(cb func(err error)) {
	n.post(func() { cb(nil) })
}

func (n *Names) Outputs(cb func(outputs []shell.OutputName, err error)) {
	n.post(func() {
		out := make([]shell.OutputName, 0, len(n.layout.monitors))
		for _, m := range n.layout.monitors {
			out = append(out, shell.OutputName{DisplayName: m.DisplayName(), Connector: m.Name})
		}
		cb(out, nil)
	})
}

func (n *Names) Close() error { return nil }
