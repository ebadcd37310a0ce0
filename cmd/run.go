package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/bnema/softbright/internal/config"
	"github.com/bnema/softbright/internal/control"
	"github.com/bnema/softbright/internal/display"
	"github.com/bnema/softbright/internal/extension"
	"github.com/bnema/softbright/internal/gnome"
	"github.com/bnema/softbright/internal/host"
	"github.com/bnema/softbright/internal/logger"
	"github.com/bnema/softbright/internal/mainloop"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the softbright daemon",
	Long: `Run the dimming daemon in the foreground. It follows the settings file, the
monitor layout and, on GNOME, the hardware backlight, and exports
io.github.bnema.SoftBright on the session bus for the other commands.`,
	RunE: runDaemon,
}

func init() {
	runCmd.Flags().Bool("hide-pointer", false, "Let the cursor clone hide the real pointer (needs a renderer drawing the published scene)")
	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loop := mainloop.New()

	store, err := config.NewStore(config.GetConfigPath(), loop.Post)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	defer store.Close()
	if err := store.Watch(); err != nil {
		logger.Warnf("settings file changes will not be picked up: %v", err)
	}

	disp, err := display.New()
	if err != nil {
		return fmt.Errorf("failed to initialize display detection: %w", err)
	}
	hidePointer, _ := cmd.Flags().GetBool("hide-pointer")
	h := host.New(loop, disp, host.Options{Dial: gnome.DefaultDialer, HidePointer: hidePointer})
	defer h.Close()

	conn, err := gnome.DefaultDialer()
	if err != nil {
		return err
	}
	defer conn.Close()

	svc := control.NewService(loop.Invoke, h.Shooter())
	if err := svc.Export(conn); err != nil {
		return err
	}
	defer svc.Unexport()

	ext := extension.New(h, store, svc)
	ext.OnStatus(func(st extension.Status) { svc.PublishState(st) })

	h.Start(ctx)
	loop.Post(func() {
		if err := ext.Enable(); err != nil {
			logger.Errorf("failed to enable: %v", err)
			stop()
		}
	})

	logger.Infof("softbright running, settings in %s", store.Path())
	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	// The loop has stopped; finish on this goroutine.
	logger.Info("shutting down")
	err = ext.Disable()
	loop.Drain()
	return err
}
