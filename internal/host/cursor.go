package host

import (
	"context"
	"errors"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/bnema/softbright/internal/display"
	"github.com/bnema/softbright/internal/intercept"
	"github.com/bnema/softbright/internal/logger"
	"github.com/bnema/softbright/internal/shell"
)

// PollInterval is how often the cursor position is sampled while someone
// follows the cursor.
const PollInterval = 33 * time.Millisecond

// Locator reports the global cursor position.
type Locator func() (x, y int32, err error)

// Tracker follows the hardware cursor through the compositor's IPC. It owns
// the process-wide pointer-visibility entry point.
type Tracker struct {
	post   func(func())
	locate Locator
	hide   *keyword

	point      *intercept.Point[func(bool)]
	visible    bool
	x, y       int
	sprite     shell.Sprite
	changed    subscribers
	visibility subscribers
	followers  atomic.Int32
}

// NewTracker creates a tracker. hide is nil when the compositor cannot hide
// the pointer on request.
func NewTracker(post func(func()), locate Locator, hide *keyword) *Tracker {
	t := &Tracker{
		post:    post,
		locate:  locate,
		hide:    hide,
		visible: true,
		sprite:  themeSprite(),
	}
	t.point = intercept.NewPoint("set-pointer-visible", t.setVisible)
	return t
}

func themeSprite() shell.Sprite {
	size := 24
	if v, err := strconv.Atoi(os.Getenv("XCURSOR_SIZE")); err == nil && v > 0 {
		size = v
	}
	return shell.Sprite{Width: size, Height: size}
}

func (t *Tracker) setVisible(visible bool) {
	if visible == t.visible {
		return
	}
	t.visible = visible
	logger.Debugf("host: pointer visible = %t", visible)
	if t.hide != nil {
		if visible {
			t.hide.Restore()
		} else {
			t.hide.Set("1")
		}
	}
	t.post(t.visibility.emit)
}

func (t *Tracker) PointerVisibility() *intercept.Point[func(visible bool)] { return t.point }

// Visible reports the real pointer's state.
func (t *Tracker) Visible() bool { return t.visible }

func (t *Tracker) Position() (int, int) { return t.x, t.y }

func (t *Tracker) Sprite() shell.Sprite { return t.sprite }

// OnCursorChanged subscribes to cursor image changes. The compositor IPC
// does not expose the cursor image, so the sprite stays the theme-sized box
// and fn never runs; the subscription still keeps position sampling on.
func (t *Tracker) OnCursorChanged(fn func()) func() {
	return t.follow(&t.changed, fn)
}

func (t *Tracker) OnVisibilityChanged(fn func()) func() {
	return t.follow(&t.visibility, fn)
}

func (t *Tracker) follow(s *subscribers, fn func()) func() {
	remove := s.add(fn)
	t.followers.Add(1)
	return func() {
		remove()
		t.followers.Add(-1)
	}
}

// Run samples the position while anyone follows the cursor, until ctx is
// done or the compositor turns out not to report it.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if t.followers.Load() == 0 {
			continue
		}
		x, y, err := t.locate()
		if errors.Is(err, display.ErrNoCursor) {
			logger.Infof("host: %v, the cursor clone stays in place", err)
			return
		}
		if err != nil {
			logger.Debugf("host: cursor position: %v", err)
			continue
		}
		t.post(func() { t.x, t.y = int(x), int(y) })
	}
}
