package display

import (
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strings"

	"github.com/bnema/softbright/internal/logger"
)

// wlrRandrBackend uses wlr-randr for display detection
type wlrRandrBackend struct{}

func newWlrRandrBackend() (Backend, error) {
	// Check if wlr-randr is available
	if _, err := exec.LookPath("wlr-randr"); err != nil {
		return nil, fmt.Errorf("wlr-randr not found. Please install wlr-randr: https://gitlab.freedesktop.org/emersion/wlr-randr")
	}

	return &wlrRandrBackend{}, nil
}

func (w *wlrRandrBackend) Name() string { return "wlr-randr" }

type wlrRandrMode struct {
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Refresh   float64 `json:"refresh"`
	Preferred bool    `json:"preferred"`
	Current   bool    `json:"current"`
}

type wlrRandrOutput struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Make        string         `json:"make"`
	Model       string         `json:"model"`
	Enabled     bool           `json:"enabled"`
	Modes       []wlrRandrMode `json:"modes"`
	Position    struct {
		X int `json:"x"`
		Y int `json:"y"`
	} `json:"position"`
	Transform string  `json:"transform"`
	Scale     float64 `json:"scale"`
}

func (w *wlrRandrBackend) GetMonitors() ([]*Monitor, error) {
	output, err := runCommand("wlr-randr", "--json")
	if err != nil {
		return nil, fmt.Errorf("failed to run wlr-randr: %w", err)
	}
	logger.Debugf("wlr-randr --json output: %s", string(output))
	return parseWlrRandrJSON(output)
}

func parseWlrRandrJSON(data []byte) ([]*Monitor, error) {
	var outputs []wlrRandrOutput
	if err := json.Unmarshal(data, &outputs); err != nil {
		return nil, fmt.Errorf("failed to parse wlr-randr output: %w", err)
	}

	var monitors []*Monitor
	for i, out := range outputs {
		if !out.Enabled {
			continue
		}

		var mode *wlrRandrMode
		for j := range out.Modes {
			if out.Modes[j].Current {
				mode = &out.Modes[j]
				break
			}
		}
		if mode == nil || mode.Width == 0 || mode.Height == 0 {
			logger.Warnf("Skipping monitor %s without a current mode", out.Name)
			continue
		}

		scale := out.Scale
		if scale == 0 {
			scale = 1.0
		}
		width, height := logicalSize(mode.Width, mode.Height, scale, out.Transform)

		description := strings.TrimSpace(out.Make + " " + out.Model)
		if description == "" {
			description = out.Description
		}

		monitors = append(monitors, &Monitor{
			ID:          fmt.Sprintf("%d", i),
			Name:        out.Name,
			Description: description,
			X:           int32(out.Position.X),
			Y:           int32(out.Position.Y),
			Width:       int32(width),
			Height:      int32(height),
			Scale:       scale,
			Refresh:     mode.Refresh,
		})
	}

	if len(monitors) == 0 {
		return nil, fmt.Errorf("no active monitors found")
	}
	return monitors, nil
}

// logicalSize converts a mode to layout coordinates.
func logicalSize(width, height int, scale float64, transform string) (int, int) {
	switch transform {
	case "90", "270", "flipped-90", "flipped-270":
		width, height = height, width
	}
	return int(math.Round(float64(width) / scale)), int(math.Round(float64(height) / scale))
}

func (w *wlrRandrBackend) GetCursorPosition() (x, y int32, err error) {
	// wlr-randr doesn't provide cursor position
	return 0, 0, fmt.Errorf("wlr-randr: %w", ErrNoCursor)
}

func (w *wlrRandrBackend) Close() error {
	return nil
}
