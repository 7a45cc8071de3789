package cmd

import (
	"fmt"
	"strconv"

	"github.com/renaud/comptoir/internal/models"
	"github.com/renaud/comptoir/internal/output"
	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:     "queue",
	Short:   "Inspect and manage the action queue",
	GroupID: "sync",
}

var queueListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List queued actions",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		var statuses []models.ActionStatus
		failedOnly, _ := cmd.Flags().GetBool("failed")
		all, _ := cmd.Flags().GetBool("all")
		switch {
		case failedOnly:
			statuses = []models.ActionStatus{models.StatusFailed}
		case all:
			// every status, including done
		default:
			statuses = []models.ActionStatus{models.StatusPending, models.StatusInFlight, models.StatusFailed}
		}

		actions, err := database.ListActions(statuses...)
		if err != nil {
			return err
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			return output.JSON(actions)
		}

		if len(actions) == 0 {
			output.Info("Queue is empty.")
			return nil
		}
		for _, a := range actions {
			fmt.Println(output.FormatActionLine(a))
		}
		return nil
	},
}

var queueRetryCmd = &cobra.Command{
	Use:   "retry <seq-id>",
	Short: "Return a failed action to the queue",
	Long: `Re-queues a terminally failed action with a fresh retry budget. The action
keeps its original position in the send order.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seqID, err := parseSeqID(args[0])
		if err != nil {
			return err
		}

		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		if err := database.RetryAction(seqID); err != nil {
			output.Error("retry: %v", err)
			return err
		}

		output.Success("Action #%d re-queued.", seqID)
		drainAfterMutation(database)
		return nil
	},
}

var queueAckCmd = &cobra.Command{
	Use:   "ack <seq-id>",
	Short: "Acknowledge a failed action and discard it",
	Long: `Marks a terminally failed action as handled. The local mirror keeps the
optimistic state; reconcile it manually if the server rejected the change.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seqID, err := parseSeqID(args[0])
		if err != nil {
			return err
		}

		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		if err := database.AckAction(seqID); err != nil {
			output.Error("ack: %v", err)
			return err
		}

		output.Success("Action #%d acknowledged.", seqID)
		return nil
	},
}

var queuePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Prune reconciliation map entries with no live references",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		n, err := database.PruneReconciliations()
		if err != nil {
			output.Error("prune: %v", err)
			return err
		}

		output.Success("Pruned %d reconciliation entr%s.", n, pluralY(n))
		return nil
	},
}

var queueMapCmd = &cobra.Command{
	Use:   "map",
	Short: "List temporary → server identity mappings",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		entries, err := database.ListReconciliations()
		if err != nil {
			return err
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			return output.JSON(entries)
		}

		if len(entries) == 0 {
			output.Info("No reconciliations recorded.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s  %s → %s  (%s)\n", e.Kind, e.TempID, e.ServerID, output.FormatTimeAgo(e.RecordedAt))
		}
		return nil
	},
}

func parseSeqID(s string) (int64, error) {
	seqID, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid sequence id %q", s)
	}
	return seqID, nil
}

func pluralY(n int64) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}

func init() {
	queueListCmd.Flags().Bool("failed", false, "Show only failed actions")
	queueListCmd.Flags().Bool("all", false, "Include done actions")
	queueListCmd.Flags().Bool("json", false, "Output as JSON")
	queueMapCmd.Flags().Bool("json", false, "Output as JSON")

	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueRetryCmd)
	queueCmd.AddCommand(queueAckCmd)
	queueCmd.AddCommand(queuePruneCmd)
	queueCmd.AddCommand(queueMapCmd)
	rootCmd.AddCommand(queueCmd)
}
