package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/bnema/softbright/internal/control"
	"github.com/bnema/softbright/internal/display"
	"github.com/bnema/softbright/internal/extension"
	"github.com/bnema/softbright/internal/logger"
	"github.com/bnema/softbright/internal/ui"
	"github.com/spf13/cobra"
)

var monitorsCmd = &cobra.Command{
	Use:   "monitors",
	Short: "List monitors",
	Long: `List the monitors of the current layout. When the daemon is running the
DIMMED column shows which of them carry an overlay.`,
	Args: cobra.NoArgs,
	RunE: runMonitors,
}

func init() {
	monitorsCmd.Flags().Bool("json", false, "Print the listing as JSON")
	rootCmd.AddCommand(monitorsCmd)
}

// dimmedConnectors asks the daemon which monitors are dimmed. It returns
// nil when no daemon is running.
func dimmedConnectors(ctx context.Context) map[string]bool {
	client, err := control.Dial()
	if err != nil {
		logger.Debugf("no daemon state: %v", err)
		return nil
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	var st extension.Status
	if err := client.State(ctx, &st); err != nil {
		logger.Warnf("failed to read daemon state: %v", err)
		return nil
	}
	dimmed := make(map[string]bool, len(st.Monitors))
	if st.State != "dimmed" {
		return dimmed
	}
	for _, m := range st.Monitors {
		dimmed[m.Connector] = true
	}
	return dimmed
}

func monitorRows(monitors []*display.Monitor, dimmed map[string]bool) []ui.MonitorRow {
	rows := make([]ui.MonitorRow, len(monitors))
	for i, m := range monitors {
		rows[i] = ui.MonitorRow{
			Index:     i,
			Connector: m.Name,
			Name:      m.DisplayName(),
			X:         int(m.X),
			Y:         int(m.Y),
			Width:     int(m.Width),
			Height:    int(m.Height),
			Refresh:   m.Refresh,
			Primary:   m.Primary,
			Dimmed:    dimmed[m.Name],
		}
	}
	return rows
}

func runMonitors(cmd *cobra.Command, args []string) error {
	disp, err := display.New()
	if err != nil {
		return fmt.Errorf("failed to detect monitors: %w", err)
	}
	defer disp.Close()

	rows := monitorRows(disp.GetMonitors(), dimmedConnectors(cmd.Context()))

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	fmt.Println(ui.RenderMonitors(rows))
	return nil
}
