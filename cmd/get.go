package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/softbright/internal/config"
	"github.com/bnema/softbright/internal/control"
	"github.com/bnema/softbright/internal/extension"
	"github.com/bnema/softbright/internal/ui"
	"github.com/spf13/cobra"
)

// callTimeout bounds a single request to the daemon.
const callTimeout = 5 * time.Second

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current brightness",
	Long: `Print the current brightness as a percentage. When the daemon is not running
the value stored in the settings file is printed instead.`,
	Args: cobra.NoArgs,
	RunE: runGet,
}

func init() {
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
	defer cancel()

	client, err := control.Dial()
	if errors.Is(err, control.ErrNotRunning) {
		snap, err := config.Load()
		if err != nil {
			return err
		}
		fmt.Printf("%.0f%% %s\n", snap.Double(config.KeyCurrentBrightness)*100, ui.FormatState("not running"))
		return nil
	}
	if err != nil {
		return err
	}
	defer client.Close()

	value, err := client.Brightness(ctx)
	if err != nil {
		return err
	}
	var st extension.Status
	if err := client.State(ctx, &st); err != nil {
		return err
	}
	fmt.Printf("%.0f%% %s\n", value*100, ui.FormatState(st.State))
	return nil
}
