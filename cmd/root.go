package cmd

import (
	"github.com/bnema/softbright/internal/config"
	"github.com/bnema/softbright/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version is set during build
	Version = "0.1.0-dev"

	rootCmd = &cobra.Command{
		Use:   "softbright",
		Short: "softbright - software brightness for Wayland",
		Long: `softbright dims your screens below what the backlight allows, or on monitors
without any backlight control, by drawing a translucent black overlay on top of
everything. The mouse cursor is cloned above the overlay so it stays dimmed with
the rest of the picture, and the overlay steps aside for screenshots.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
)

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s\n" .Version}}`)

	rootCmd.PersistentFlags().String("config", "", "Settings file (default $XDG_CONFIG_HOME/softbright/softbright.toml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.SetEnvPrefix("SOFTBRIGHT")
	viper.AutomaticEnv()
}

func setup(cmd *cobra.Command, args []string) error {
	if path := viper.GetString("config"); path != "" {
		config.SetConfigPath(path)
	}
	if viper.GetBool("verbose") {
		logger.SetVerbose(true)
	}
	return nil
}
