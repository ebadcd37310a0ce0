package host

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bnema/softbright/internal/logger"
)

// runCommand executes an external tool and returns its stdout.
var runCommand = func(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).Output()
}

// keywordFlushTimeout bounds how long Close waits for queued hyprctl calls.
const keywordFlushTimeout = 2 * time.Second

// keyword drives one Hyprland config option from the loop without blocking
// it. Only the latest requested value is applied; Restore puts back the value
// the option had before the first change.
type keyword struct {
	name string

	mu       sync.Mutex
	want     *string
	closed   bool
	kick     chan struct{}
	done     chan struct{}
	original string
	applied  string
}

func newKeyword(name string) *keyword {
	k := &keyword{name: name, kick: make(chan struct{}, 1), done: make(chan struct{})}
	go k.run()
	return k
}

func (k *keyword) Set(value string) {
	k.request(&value)
}

func (k *keyword) Restore() {
	k.request(nil)
}

func (k *keyword) request(value *string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return
	}
	k.want = value
	select {
	case k.kick <- struct{}{}:
	default:
	}
}

// Close stops accepting requests and waits for the pending one to reach the
// compositor, so a Restore issued right before Close is not lost on exit.
func (k *keyword) Close() {
	k.mu.Lock()
	if !k.closed {
		k.closed = true
		close(k.kick)
	}
	k.mu.Unlock()

	select {
	case <-k.done:
	case <-time.After(keywordFlushTimeout):
		logger.Warnf("host: gave up waiting for hyprctl to set %s", k.name)
	}
}

func (k *keyword) run() {
	defer close(k.done)
	for range k.kick {
		k.mu.Lock()
		want := k.want
		k.mu.Unlock()

		if want == nil && k.original == "" {
			continue
		}
		if want != nil && k.original == "" {
			orig, err := readOption(k.name)
			if err != nil {
				logger.Debugf("host: cannot read %s: %v", k.name, err)
				continue
			}
			k.original = orig
			k.applied = orig
		}
		value := k.original
		if want != nil {
			value = *want
		}
		if value == k.applied {
			continue
		}
		if _, err := runCommand("hyprctl", "keyword", k.name, value); err != nil {
			logger.Warnf("host: hyprctl keyword %s %s: %v", k.name, value, err)
			continue
		}
		k.applied = value
	}
}

func readOption(name string) (string, error) {
	out, err := runCommand("hyprctl", "getoption", name, "-j")
	if err != nil {
		return "", err
	}
	return parseOption(out)
}

// parseOption extracts the value of a `hyprctl getoption -j` reply.
func parseOption(data []byte) (string, error) {
	var opt struct {
		Int   *int64   `json:"int"`
		Float *float64 `json:"float"`
		Str   *string  `json:"str"`
	}
	if err := json.Unmarshal(data, &opt); err != nil {
		return "", fmt.Errorf("failed to parse option: %w", err)
	}
	switch {
	case opt.Int != nil:
		return strconv.FormatInt(*opt.Int, 10), nil
	case opt.Float != nil:
		return strconv.FormatFloat(*opt.Float, 'f', -1, 64), nil
	case opt.Str != nil:
		return *opt.Str, nil
	}
	return "", fmt.Errorf("option has no value: %s", data)
}

func hyprlandEventSocket() string {
	sig := os.Getenv("HYPRLAND_INSTANCE_SIGNATURE")
	if sig == "" {
		return ""
	}
	runtime := os.Getenv("XDG_RUNTIME_DIR")
	if runtime == "" {
		runtime = "/tmp"
	}
	return filepath.Join(runtime, "hypr", sig, ".socket2.sock")
}

// isHotplugEvent reports whether a socket2 line announces an output change.
func isHotplugEvent(line string) bool {
	name, _, _ := strings.Cut(line, ">>")
	switch name {
	case "monitoradded", "monitoraddedv2", "monitorremoved", "monitorremovedv2":
		return true
	}
	return false
}

// watchHotplug calls onChange (from its own goroutine) for every output
// change announced on Hyprland's event socket, until ctx is done.
func watchHotplug(ctx context.Context, path string, onChange func()) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return fmt.Errorf("failed to connect event socket %s: %w", path, err)
	}
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go func() {
		sc := bufio.NewScanner(conn)
		for sc.Scan() {
			if isHotplugEvent(sc.Text()) {
				logger.Debugf("host: %s", sc.Text())
				onChange()
			}
		}
	}()
	return nil
}
