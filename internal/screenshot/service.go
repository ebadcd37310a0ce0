// Package screenshot captures the screen with grim. Its capture entry points
// and completion callback are interception points so the dimming overlay can
// step aside while a capture runs.
package screenshot

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/bnema/softbright/internal/intercept"
	"github.com/bnema/softbright/internal/logger"
	"github.com/bnema/softbright/internal/shell"
)

// DefaultSettle is how long a capture waits after its entry point ran, so a
// renderer following the published state can drop the overlays first.
const DefaultSettle = 50 * time.Millisecond

// captureTimeout bounds a single grim run.
const captureTimeout = 10 * time.Second

// runGrim executes grim with args.
var runGrim = func(ctx context.Context, args ...string) error {
	out, err := exec.CommandContext(ctx, "grim", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("grim failed: %w: %s", err, out)
	}
	return nil
}

// Service is a grim-backed screenshot service. Entry points run on the event
// loop; grim runs on its own goroutine and completion is posted back.
type Service struct {
	post   func(func())
	settle time.Duration

	capture  *intercept.Point[func(shell.CaptureRequest)]
	area     *intercept.Point[func(shell.CaptureRequest)]
	complete *intercept.Point[func(shell.CaptureResult)]

	waiters map[string][]func(shell.CaptureResult)
}

// New creates the service. post schedules work on the loop.
func New(post func(func())) *Service {
	s := &Service{
		post:    post,
		settle:  DefaultSettle,
		waiters: make(map[string][]func(shell.CaptureResult)),
	}
	s.capture = intercept.NewPoint("screenshot", s.run)
	s.area = intercept.NewPoint("screenshot-area", s.run)
	s.complete = intercept.NewPoint("screenshot-complete", s.finish)
	return s
}

// SetSettle overrides the delay between the entry point and grim.
func (s *Service) SetSettle(d time.Duration) {
	s.settle = d
}

func (s *Service) Capture() *intercept.Point[func(shell.CaptureRequest)]     { return s.capture }
func (s *Service) CaptureArea() *intercept.Point[func(shell.CaptureRequest)] { return s.area }
func (s *Service) Completed() *intercept.Point[func(shell.CaptureResult)]    { return s.complete }

// Shoot captures req through the current entry point and calls done on the
// loop once the completion callback chain reached the service. An empty path
// is replaced by DefaultPath.
func (s *Service) Shoot(req shell.CaptureRequest, done func(shell.CaptureResult)) {
	if req.Path == "" {
		req.Path = DefaultPath(time.Now())
	}
	if done != nil {
		s.waiters[req.Path] = append(s.waiters[req.Path], done)
	}
	if req.Area != nil {
		s.area.Current()(req)
		return
	}
	s.capture.Current()(req)
}

func (s *Service) run(req shell.CaptureRequest) {
	args := Args(req)
	settle := s.settle
	go func() {
		time.Sleep(settle)
		ctx, cancel := context.WithTimeout(context.Background(), captureTimeout)
		defer cancel()

		err := os.MkdirAll(filepath.Dir(req.Path), 0o755)
		if err == nil {
			err = runGrim(ctx, args...)
		}
		res := shell.CaptureResult{Path: req.Path, Err: err}
		s.post(func() { s.complete.Current()(res) })
	}()
}

func (s *Service) finish(res shell.CaptureResult) {
	if res.Err != nil {
		logger.Warnf("screenshot: %v", res.Err)
	} else {
		logger.Infof("screenshot saved to %s", res.Path)
	}
	waiters := s.waiters[res.Path]
	if len(waiters) == 0 {
		return
	}
	done := waiters[0]
	if len(waiters) == 1 {
		delete(s.waiters, res.Path)
	} else {
		s.waiters[res.Path] = waiters[1:]
	}
	done(res)
}

// Args builds the grim command line for req.
func Args(req shell.CaptureRequest) []string {
	if req.Area == nil {
		return []string{req.Path}
	}
	a := req.Area
	return []string{"-g", fmt.Sprintf("%d,%d %dx%d", a.X, a.Y, a.Width, a.Height), req.Path}
}

// DefaultPath returns where a capture taken at t is stored when no path was
// requested: $XDG_PICTURES_DIR, else ~/Pictures.
func DefaultPath(t time.Time) string {
	dir := os.Getenv("XDG_PICTURES_DIR")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		dir = filepath.Join(home, "Pictures")
	}
	return filepath.Join(dir, "Screenshot-"+t.Format("2006-01-02_15-04-05")+".png")
}
