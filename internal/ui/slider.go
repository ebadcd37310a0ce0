package ui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
)

// Slider steps
const (
	SmallStep = 0.01
	LargeStep = 0.1
)

// requestTimeout bounds one brightness write.
const requestTimeout = 3 * time.Second

// BrightnessSetter writes the brightness to the daemon.
type BrightnessSetter interface {
	SetBrightness(ctx context.Context, v float64) error
}

type sliderKeys struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Max      key.Binding
	Min      key.Binding
	Quit     key.Binding
}

func (k sliderKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.PageUp, k.PageDown, k.Quit}
}

func (k sliderKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down, k.PageUp, k.PageDown}, {k.Max, k.Min, k.Quit}}
}

func defaultSliderKeys() sliderKeys {
	return sliderKeys{
		Up:       key.NewBinding(key.WithKeys("right", "l", "up", "k", "+"), key.WithHelp("→/+", "brighter")),
		Down:     key.NewBinding(key.WithKeys("left", "h", "down", "j", "-"), key.WithHelp("←/-", "dimmer")),
		PageUp:   key.NewBinding(key.WithKeys("pgup", "L"), key.WithHelp("pgup", "+10%")),
		PageDown: key.NewBinding(key.WithKeys("pgdown", "H"), key.WithHelp("pgdn", "-10%")),
		Max:      key.NewBinding(key.WithKeys("end"), key.WithHelp("end", "100%")),
		Min:      key.NewBinding(key.WithKeys("home"), key.WithHelp("home", "0%")),
		Quit:     key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// BrightnessMsg reports a value published by the daemon.
type BrightnessMsg float64

type setResultMsg struct {
	value float64
	err   error
}

// SliderModel is an interactive brightness slider.
type SliderModel struct {
	setter  BrightnessSetter
	updates <-chan float64

	value   float64
	pending bool
	err     error

	bar  progress.Model
	keys sliderKeys
	help help.Model
}

// NewSlider creates a slider starting at value. updates, when not nil,
// carries values changed by someone else.
func NewSlider(setter BrightnessSetter, value float64, updates <-chan float64) *SliderModel {
	bar := progress.New(progress.WithGradient("#5A3E00", "#FFD166"), progress.WithoutPercentage())
	bar.Width = 40
	return &SliderModel{
		setter:  setter,
		updates: updates,
		value:   clamp01(value),
		bar:     bar,
		keys:    defaultSliderKeys(),
		help:    help.New(),
	}
}

// Value returns the slider position.
func (m *SliderModel) Value() float64 { return m.value }

func (m *SliderModel) Init() tea.Cmd {
	return m.waitForUpdate()
}

func (m *SliderModel) waitForUpdate() tea.Cmd {
	if m.updates == nil {
		return nil
	}
	updates := m.updates
	return func() tea.Msg {
		v, ok := <-updates
		if !ok {
			return nil
		}
		return BrightnessMsg(v)
	}
}

func (m *SliderModel) set(v float64) tea.Cmd {
	v = clamp01(math.Round(v*100) / 100)
	if v == m.value && !m.pending {
		return nil
	}
	m.value = v
	m.pending = true
	setter := m.setter
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return setResultMsg{value: v, err: setter.SetBrightness(ctx, v)}
	}
}

func (m *SliderModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			return m, m.set(m.value + SmallStep)
		case key.Matches(msg, m.keys.Down):
			return m, m.set(m.value - SmallStep)
		case key.Matches(msg, m.keys.PageUp):
			return m, m.set(m.value + LargeStep)
		case key.Matches(msg, m.keys.PageDown):
			return m, m.set(m.value - LargeStep)
		case key.Matches(msg, m.keys.Max):
			return m, m.set(1)
		case key.Matches(msg, m.keys.Min):
			return m, m.set(0)
		}
	case tea.WindowSizeMsg:
		m.bar.Width = max(10, min(60, msg.Width-16))
		m.help.Width = msg.Width
	case setResultMsg:
		if msg.value == m.value {
			m.pending = false
		}
		m.err = msg.err
	case BrightnessMsg:
		// The daemon clamps to the floor, so its value wins.
		if !m.pending {
			m.value = clamp01(float64(msg))
		}
		return m, m.waitForUpdate()
	}
	return m, nil
}

func (m *SliderModel) View() string {
	var b strings.Builder
	b.WriteString(FormatAppHeader("brightness", ""))
	b.WriteString("\n\n")
	b.WriteString(IconSun + " " + m.bar.ViewAs(m.value))
	b.WriteString(fmt.Sprintf(" %3.0f%%", m.value*100))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(ErrorStyle.Render(IconError+" "+m.err.Error()) + "\n\n")
	}
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
