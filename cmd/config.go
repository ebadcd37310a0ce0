package cmd

import (
	"fmt"
	"strings"

	"github.com/bnema/softbright/internal/config"
	"github.com/bnema/softbright/internal/ui"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings",
	Long: `Show or change the settings. Without a subcommand an interactive form is
opened. A running daemon picks up changes to the settings file immediately.`,
	Args: cobra.NoArgs,
	RunE: runConfigEdit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show every setting",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:       "get <key>",
	Short:     "Print one setting",
	Args:      cobra.ExactArgs(1),
	ValidArgs: configKeys(),
	RunE:      runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the settings file path",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.GetConfigPath())
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func configKeys() []string {
	keys := make([]string, len(config.Schema))
	for i, f := range config.Schema {
		keys[i] = f.Key
	}
	return keys
}

func formatValue(v any) string {
	switch x := v.(type) {
	case float64:
		return fmt.Sprintf("%.2f", x)
	case string:
		if x == "" {
			return `""`
		}
		return x
	default:
		return fmt.Sprint(x)
	}
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	snap, err := config.Load()
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(config.Schema))
	for _, f := range config.Schema {
		rows = append(rows, []string{f.Key, formatValue(snap[f.Key]), f.Kind.String(), f.Summary})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ui.ColorSubtle)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Foreground(ui.ColorPrimary).Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Foreground(ui.ColorText).Padding(0, 1)
		}).
		Headers("KEY", "VALUE", "TYPE", "DESCRIPTION").
		Rows(rows...)

	fmt.Println(ui.FormatAppHeader("softbright", config.GetConfigPath()))
	fmt.Println(t.String())
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	if _, ok := config.Lookup(args[0]); !ok {
		return fmt.Errorf("%w: %s (known keys: %s)", config.ErrUnknownKey, args[0], strings.Join(configKeys(), ", "))
	}
	snap, err := config.Load()
	if err != nil {
		return err
	}
	fmt.Println(formatValue(snap[args[0]]))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	value, err := config.ParseValue(args[0], args[1])
	if err != nil {
		return err
	}
	if err := config.SaveValues(map[string]any{args[0]: value}); err != nil {
		return err
	}
	fmt.Println(ui.FormatResult(true, fmt.Sprintf("%s = %s", args[0], formatValue(value))))
	return nil
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	snap, err := config.Load()
	if err != nil {
		return err
	}
	changes, err := ui.EditSettings(snap)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		fmt.Println(ui.FormatResult(true, "nothing changed"))
		return nil
	}
	if err := config.SaveValues(changes); err != nil {
		return err
	}
	fmt.Println(ui.FormatResult(true, fmt.Sprintf("saved %d setting(s) to %s", len(changes), config.GetConfigPath())))
	return nil
}
