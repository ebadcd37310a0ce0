package brightness

import (
	"errors"

	"github.com/bnema/softbright/internal/logger"
	"github.com/bnema/softbright/internal/shell"
)

const guardOwner = "softbright-screenshot"

// Guard keeps overlays and the cursor clone out of screenshots.
type Guard struct {
	svc      shell.ScreenshotService
	renderer Renderer
	cloner   Cloner
	ctrl     *Controller

	installed []func() error
}

// NewGuard creates a guard for svc.
func NewGuard(svc shell.ScreenshotService, renderer Renderer, cloner Cloner, ctrl *Controller) *Guard {
	return &Guard{svc: svc, renderer: renderer, cloner: cloner, ctrl: ctrl}
}

// Install wraps the capture entry points and the completion callback.
func (g *Guard) Install() error {
	if len(g.installed) > 0 {
		return nil
	}

	wrapCapture := func(original func(shell.CaptureRequest)) func(shell.CaptureRequest) {
		return func(req shell.CaptureRequest) {
			logger.Debugf("screenshot: capture %q, suspending overlays", req.Path)
			g.ctrl.Hold()
			g.suspend()
			original(req)
		}
	}
	wrapCompleted := func(original func(shell.CaptureResult)) func(shell.CaptureResult) {
		return func(res shell.CaptureResult) {
			logger.Debugf("screenshot: %q complete", res.Path)
			g.ctrl.Release()
			original(res)
		}
	}

	for _, p := range []struct {
		install   func() error
		uninstall func() error
	}{
		{
			install:   func() error { return g.svc.Capture().Install(guardOwner, wrapCapture) },
			uninstall: func() error { return g.svc.Capture().Uninstall(guardOwner) },
		},
		{
			install:   func() error { return g.svc.CaptureArea().Install(guardOwner, wrapCapture) },
			uninstall: func() error { return g.svc.CaptureArea().Uninstall(guardOwner) },
		},
		{
			install:   func() error { return g.svc.Completed().Install(guardOwner, wrapCompleted) },
			uninstall: func() error { return g.svc.Completed().Uninstall(guardOwner) },
		},
	} {
		if err := p.install(); err != nil {
			return errors.Join(err, g.Uninstall())
		}
		g.installed = append(g.installed, p.uninstall)
	}
	return nil
}

// Uninstall restores the originals in reverse order.
func (g *Guard) Uninstall() error {
	var errs []error
	for i := len(g.installed) - 1; i >= 0; i-- {
		errs = append(errs, g.installed[i]())
	}
	g.installed = nil
	return errors.Join(errs...)
}

func (g *Guard) suspend() {
	g.renderer.Hide(false)
	g.cloner.Stop()
	g.cloner.HidePointer()
}
