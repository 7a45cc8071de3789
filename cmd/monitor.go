package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/renaud/comptoir/internal/config"
	"github.com/renaud/comptoir/internal/netmon"
	"github.com/renaud/comptoir/internal/output"
	"github.com/renaud/comptoir/internal/tui/monitor"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live TUI dashboard for sync state",
	Long: `Launch a live-updating TUI dashboard showing:
- Queue: pending and in-flight actions, in send order
- Failed: terminal failures awaiting retry or ack
- Reconciliations: temporary → server identity mappings

While the monitor runs it probes the server and drains the queue on every
online transition.

Key bindings:
  Tab/Shift+Tab  Switch panels
  1/2/3          Jump to panel
  j/k            Scroll active panel
  r              Force refresh
  ?              Toggle help
  q              Quit`,
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer database.Close()

		eng, client, err := newEngine(database)
		if err != nil {
			return err
		}

		// Probe connectivity in the background and drain on every online
		// transition while the dashboard is up.
		mon := netmon.New(client, config.GetPollInterval())
		stop := make(chan struct{})
		eng.Watch(mon.Events(), stop)
		mon.Start()
		defer func() {
			close(stop)
			mon.Stop()
		}()

		interval, _ := cmd.Flags().GetDuration("interval")
		if interval < 500*time.Millisecond {
			interval = 2 * time.Second
		}

		model := monitor.NewModel(database, mon.Online, interval)

		p := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("error running monitor: %w", err)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().Duration("interval", 2*time.Second, "Refresh interval (default 2s)")
}
