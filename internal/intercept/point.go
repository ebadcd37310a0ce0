// Package intercept models process-wide entry points that softbright
// temporarily substitutes while it is enabled, such as the pointer-visibility
// primitive or the screenshot service methods.
package intercept

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyInstalled is returned when a second substitution is attempted.
	ErrAlreadyInstalled = errors.New("interceptor already installed")
	// ErrNotInstalled is returned when uninstalling a point nobody substituted.
	ErrNotInstalled = errors.New("interceptor not installed")
)

// Point holds the current implementation of an entry point of type F.
// At most one substitution can be active at a time; the implementation it
// replaced is captured exactly once and restored by Uninstall.
type Point[F any] struct {
	name     string
	current  F
	original F
	owner    string
	active   bool
}

// NewPoint creates a point whose implementation is impl.
func NewPoint[F any](name string, impl F) *Point[F] {
	return &Point[F]{name: name, current: impl}
}

// Name returns the entry point name used in logs.
func (p *Point[F]) Name() string {
	return p.name
}

// Current returns the implementation callers should invoke.
func (p *Point[F]) Current() F {
	return p.current
}

// Install replaces the implementation with wrap(original). The original is
// handed to wrap so the substitute can forward to it.
func (p *Point[F]) Install(owner string, wrap func(original F) F) error {
	if p.active {
		return fmt.Errorf("%s: %w (owner %s)", p.name, ErrAlreadyInstalled, p.owner)
	}
	p.original = p.current
	p.current = wrap(p.original)
	p.owner = owner
	p.active = true
	return nil
}

// Uninstall restores the implementation captured by Install.
func (p *Point[F]) Uninstall(owner string) error {
	if !p.active {
		return fmt.Errorf("%s: %w", p.name, ErrNotInstalled)
	}
	if owner != p.owner {
		return fmt.Errorf("%s: installed by %s, not %s: %w", p.name, p.owner, owner, ErrNotInstalled)
	}
	p.current = p.original
	var zero F
	p.original = zero
	p.owner = ""
	p.active = false
	return nil
}

// Installed reports whether a substitution is active.
func (p *Point[F]) Installed() bool {
	return p.active
}
