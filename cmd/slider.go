package cmd

import (
	"context"

	"github.com/bnema/softbright/internal/control"
	"github.com/bnema/softbright/internal/ui"
	"github.com/spf13/cobra"
)

var sliderCmd = &cobra.Command{
	Use:   "slider",
	Short: "Adjust the brightness interactively",
	Long: `Open a brightness slider in the terminal. The slider follows changes made
elsewhere, for example by the hardware brightness keys.`,
	Args: cobra.NoArgs,
	RunE: runSlider,
}

func init() {
	rootCmd.AddCommand(sliderCmd)
}

func runSlider(cmd *cobra.Command, args []string) error {
	client, err := control.Dial()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	reqCtx, reqCancel := context.WithTimeout(ctx, callTimeout)
	value, err := client.Brightness(reqCtx)
	reqCancel()
	if err != nil {
		return err
	}
	updates, err := client.WatchBrightness(ctx)
	if err != nil {
		return err
	}

	_, err = ui.Run(ctx, ui.NewSlider(client, value, updates))
	return err
}
