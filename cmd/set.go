package cmd

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bnema/softbright/internal/config"
	"github.com/bnema/softbright/internal/control"
	"github.com/bnema/softbright/internal/logger"
	"github.com/bnema/softbright/internal/ui"
	"github.com/spf13/cobra"
)

var setCmd = &cobra.Command{
	Use:   "set <value>",
	Short: "Set the brightness",
	Long: `Set the brightness, either as a fraction between 0 and 1 or as a percentage
("40%"). A leading + or - adjusts relative to the current value.

When the daemon is not running the value is written to the settings file and
applied on the next start.`,
	Example: `  softbright set 0.4
  softbright set 65%
  softbright set -- -10%`,
	Args: cobra.ExactArgs(1),
	RunE: runSet,
}

func init() {
	rootCmd.AddCommand(setCmd)
}

// parseLevel parses an absolute or relative brightness argument.
func parseLevel(arg string) (value float64, relative bool, err error) {
	s := strings.TrimSpace(arg)
	relative = strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-")
	percent := strings.HasSuffix(s, "%")
	s = strings.TrimSuffix(s, "%")
	value, err = strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false, fmt.Errorf("%w: %q is not a brightness", config.ErrInvalidValue, arg)
	}
	if percent {
		value /= 100
	}
	if !relative && (value < 0 || value > 1) {
		return 0, false, fmt.Errorf("%w: %q is outside 0..1", config.ErrInvalidValue, arg)
	}
	return value, relative, nil
}

func clampLevel(v float64) float64 {
	return min(max(v, 0), 1)
}

func runSet(cmd *cobra.Command, args []string) error {
	value, relative, err := parseLevel(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
	defer cancel()

	client, err := control.Dial()
	if errors.Is(err, control.ErrNotRunning) {
		return setOffline(value, relative)
	}
	if err != nil {
		return err
	}
	defer client.Close()

	if relative {
		current, err := client.Brightness(ctx)
		if err != nil {
			return err
		}
		value = current + value
	}
	value = clampLevel(value)
	if err := client.SetBrightness(ctx, value); err != nil {
		return err
	}
	fmt.Println(ui.FormatResult(true, fmt.Sprintf("brightness set to %.0f%%", value*100)))
	return nil
}

func setOffline(value float64, relative bool) error {
	if relative {
		snap, err := config.Load()
		if err != nil {
			return err
		}
		value += snap.Double(config.KeyCurrentBrightness)
	}
	value = clampLevel(value)
	if err := config.SaveValues(map[string]any{config.KeyCurrentBrightness: value}); err != nil {
		return err
	}
	logger.Debugf("daemon not running, stored %.2f in %s", value, config.GetConfigPath())
	fmt.Println(ui.FormatResult(true, fmt.Sprintf("brightness will be %.0f%% on next start", value*100)))
	return nil
}
