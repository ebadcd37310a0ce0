package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// killTimeout is how long a program gets to quit after its context is done.
const killTimeout = 2 * time.Second

// Run runs model until it quits or ctx is cancelled and returns the final
// model.
func Run(ctx context.Context, model tea.Model, opts ...tea.ProgramOption) (tea.Model, error) {
	program := tea.NewProgram(model, opts...)

	type result struct {
		model tea.Model
		err   error
	}
	done := make(chan result, 1)
	go func() {
		m, err := program.Run()
		done <- result{m, err}
	}()

	select {
	case r := <-done:
		return r.model, r.err
	case <-ctx.Done():
		program.Quit()
		select {
		case r := <-done:
			return r.model, r.err
		case <-time.After(killTimeout):
			// Force kill the program if it's not responding
			program.Kill()
			r := <-done
			return r.model, r.err
		}
	}
}
