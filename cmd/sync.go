package cmd

import (
	"errors"
	"fmt"

	"github.com/renaud/comptoir/internal/db"
	"github.com/renaud/comptoir/internal/engine"
	"github.com/renaud/comptoir/internal/models"
	"github.com/renaud/comptoir/internal/output"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	Short:   "Drain the action queue against the server",
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		eng, client, err := newEngine(database)
		if err != nil {
			return err
		}

		if client.HealthCheck() != nil {
			output.Warning("Server unreachable (%s). Queue will drain when back online.", client.BaseURL)
			return printQueueSummary(database)
		}

		rep, err := eng.Drain()
		if errors.Is(err, engine.ErrOrderingViolation) {
			output.Error("sync halted: %v", err)
			output.Info("Inspect the queue with 'comptoir queue list'.")
			return err
		}
		if err != nil {
			output.Error("sync: %v", err)
			return err
		}

		if rep.Processed == 0 {
			output.Info("Nothing to sync.")
			return nil
		}

		output.Success("Synced %d action(s).", rep.Completed)
		if rep.Requeued > 0 {
			output.Warning("%d action(s) hit transient failures and will retry.", rep.Requeued)
		}
		if rep.Failed > 0 {
			output.Error("%d action(s) failed permanently (%d dependent(s) cascaded).", rep.Failed, rep.Cascaded)
			output.Info("Inspect with 'comptoir queue list --failed', then retry or ack.")
		}
		return nil
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync state",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		client, err := newRemote()
		if err != nil {
			return err
		}
		online := client.HealthCheck() == nil

		fmt.Printf("Server: %s  %s\n", client.BaseURL, output.ConnectivityBadge(online))
		return printQueueSummary(database)
	},
}

// printQueueSummary prints queue depths and any terminally failed actions.
func printQueueSummary(database *db.DB) error {
	counts, err := database.CountByStatus()
	if err != nil {
		return err
	}

	fmt.Printf("Queue: %d pending, %d in flight, %d failed, %d done\n",
		counts[models.StatusPending],
		counts[models.StatusInFlight],
		counts[models.StatusFailed],
		counts[models.StatusDone])

	if counts[models.StatusFailed] > 0 {
		failed, err := database.ListActions(models.StatusFailed)
		if err != nil {
			return err
		}
		fmt.Print(output.SectionHeader("failed actions"))
		for _, a := range failed {
			fmt.Println("  " + output.FormatActionLine(a))
		}
	}
	return nil
}

func init() {
	syncCmd.AddCommand(syncStatusCmd)
	rootCmd.AddCommand(syncCmd)
}
