package display

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// compositorBackend detects the compositor and uses its own IPC tool
type compositorBackend struct {
	compositor string
}

func newCompositorBackend() (Backend, error) {
	compositor := detectCompositor()
	if compositor == "" {
		return nil, fmt.Errorf("unable to detect a compositor with monitor IPC")
	}
	tool := map[string]string{"hyprland": "hyprctl", "sway": "swaymsg"}[compositor]
	if _, err := exec.LookPath(tool); err != nil {
		return nil, fmt.Errorf("%s not found: %w", tool, err)
	}
	return &compositorBackend{compositor: compositor}, nil
}

func detectCompositor() string {
	if getEnv("HYPRLAND_INSTANCE_SIGNATURE") != "" {
		return "hyprland"
	}
	if getEnv("SWAYSOCK") != "" {
		return "sway"
	}
	switch strings.ToLower(getEnv("XDG_CURRENT_DESKTOP")) {
	case "hyprland":
		return "hyprland"
	case "sway":
		return "sway"
	}
	return ""
}

func getEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func (c *compositorBackend) Name() string { return c.compositor }

func (c *compositorBackend) GetMonitors() ([]*Monitor, error) {
	switch c.compositor {
	case "hyprland":
		output, err := runCommand("hyprctl", "monitors", "-j")
		if err != nil {
			return nil, fmt.Errorf("failed to run hyprctl: %w", err)
		}
		return parseHyprlandMonitors(output)
	case "sway":
		output, err := runCommand("swaymsg", "-t", "get_outputs", "-r")
		if err != nil {
			return nil, fmt.Errorf("failed to run swaymsg: %w", err)
		}
		return parseSwayOutputs(output)
	default:
		return nil, fmt.Errorf("unsupported compositor: %s", c.compositor)
	}
}

type hyprlandMonitor struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Make        string  `json:"make"`
	Model       string  `json:"model"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	RefreshRate float64 `json:"refreshRate"`
	X           int     `json:"x"`
	Y           int     `json:"y"`
	Scale       float64 `json:"scale"`
	Transform   int     `json:"transform"`
	Disabled    bool    `json:"disabled"`
}

func parseHyprlandMonitors(data []byte) ([]*Monitor, error) {
	var hyprMonitors []hyprlandMonitor
	if err := json.Unmarshal(data, &hyprMonitors); err != nil {
		return nil, fmt.Errorf("failed to parse hyprctl output: %w", err)
	}

	var monitors []*Monitor
	for _, hm := range hyprMonitors {
		if hm.Disabled {
			continue
		}
		scale := hm.Scale
		if scale == 0 {
			scale = 1.0
		}
		// Hyprland transforms 1, 3, 5 and 7 rotate by 90 degrees.
		transform := ""
		if hm.Transform%2 == 1 {
			transform = "90"
		}
		width, height := logicalSize(hm.Width, hm.Height, scale, transform)

		description := strings.TrimSpace(hm.Make + " " + hm.Model)
		if description == "" {
			description = hm.Description
		}
		monitors = append(monitors, &Monitor{
			ID:          strconv.Itoa(hm.ID),
			Name:        hm.Name,
			Description: description,
			X:           int32(hm.X),
			Y:           int32(hm.Y),
			Width:       int32(width),
			Height:      int32(height),
			Scale:       scale,
			Refresh:     hm.RefreshRate,
		})
	}
	return monitors, nil
}

type swayOutput struct {
	Name   string `json:"name"`
	Make   string `json:"make"`
	Model  string `json:"model"`
	Active bool   `json:"active"`
	Rect   struct {
		X      int `json:"x"`
		Y      int `json:"y"`
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"rect"`
	Scale       float64 `json:"scale"`
	CurrentMode struct {
		Width   int `json:"width"`
		Height  int `json:"height"`
		Refresh int `json:"refresh"` // mHz
	} `json:"current_mode"`
}

func parseSwayOutputs(data []byte) ([]*Monitor, error) {
	var swayOutputs []swayOutput
	if err := json.Unmarshal(data, &swayOutputs); err != nil {
		return nil, fmt.Errorf("failed to parse sway output: %w", err)
	}

	var monitors []*Monitor
	for i, so := range swayOutputs {
		if !so.Active {
			continue
		}
		// rect is already in layout coordinates
		monitors = append(monitors, &Monitor{
			ID:          strconv.Itoa(i),
			Name:        so.Name,
			Description: strings.TrimSpace(so.Make + " " + so.Model),
			X:           int32(so.Rect.X),
			Y:           int32(so.Rect.Y),
			Width:       int32(so.Rect.Width),
			Height:      int32(so.Rect.Height),
			Scale:       so.Scale,
			Refresh:     float64(so.CurrentMode.Refresh) / 1000,
		})
	}
	return monitors, nil
}

func (c *compositorBackend) GetCursorPosition() (x, y int32, err error) {
	if c.compositor != "hyprland" {
		return 0, 0, fmt.Errorf("%s: %w", c.compositor, ErrNoCursor)
	}
	output, err := runCommand("hyprctl", "cursorpos", "-j")
	if err != nil {
		return 0, 0, err
	}
	return parseHyprlandCursor(output)
}

func parseHyprlandCursor(data []byte) (x, y int32, err error) {
	var pos struct {
		X int `json:"x"`
		Y int `json:"y"`
	}
	if err := json.Unmarshal(data, &pos); err != nil {
		// Older hyprctl prints "x, y"
		parts := strings.Split(strings.TrimSpace(string(data)), ",")
		if len(parts) == 2 {
			x64, errX := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 32)
			y64, errY := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 32)
			if errX == nil && errY == nil {
				return int32(x64), int32(y64), nil
			}
		}
		return 0, 0, fmt.Errorf("failed to parse cursor position: %w", err)
	}
	return int32(pos.X), int32(pos.Y), nil
}

func (c *compositorBackend) Close() error {
	return nil
}
