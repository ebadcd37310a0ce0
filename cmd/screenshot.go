package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/softbright/internal/control"
	"github.com/bnema/softbright/internal/shell"
	"github.com/bnema/softbright/internal/ui"
	"github.com/spf13/cobra"
)

var screenshotCmd = &cobra.Command{
	Use:   "screenshot [path]",
	Short: "Take a screenshot without the dimming overlay",
	Long: `Ask the daemon for a screenshot. The overlay and the cloned cursor are hidden
while the picture is taken and restored right after.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScreenshot,
}

func init() {
	screenshotCmd.Flags().String("area", "", "Capture only this region, as x,y,width,height")
	rootCmd.AddCommand(screenshotCmd)
}

// parseArea parses "x,y,w,h".
func parseArea(s string) (*shell.Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("area %q: want x,y,width,height", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("area %q: %w", s, err)
		}
		v[i] = n
	}
	if v[2] <= 0 || v[3] <= 0 {
		return nil, fmt.Errorf("area %q: empty region", s)
	}
	return &shell.Rect{X: v[0], Y: v[1], Width: v[2], Height: v[3]}, nil
}

func runScreenshot(cmd *cobra.Command, args []string) error {
	var area *shell.Rect
	if s, _ := cmd.Flags().GetString("area"); s != "" {
		var err error
		if area, err = parseArea(s); err != nil {
			return err
		}
	}
	path := ""
	if len(args) == 1 {
		path = args[0]
	}

	client, err := control.Dial()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 20*time.Second)
	defer cancel()
	saved, err := client.Screenshot(ctx, path, area)
	if err != nil {
		fmt.Println(ui.FormatResult(false, err.Error()))
		return err
	}
	fmt.Println(ui.FormatResult(true, "saved "+saved))
	return nil
}
