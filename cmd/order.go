package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/renaud/comptoir/internal/models"
	"github.com/renaud/comptoir/internal/output"
	"github.com/spf13/cobra"
)

var orderCmd = &cobra.Command{
	Use:     "order",
	Short:   "Manage orders",
	GroupID: "entities",
}

var orderAddCmd = &cobra.Command{
	Use:   "add <reference>",
	Short: "Add an order",
	Long: `Queues a new order. --client may be a server identity or the temporary
identity of a client added offline; the reference is rewritten automatically
once the client is confirmed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		clientID, _ := cmd.Flags().GetString("client")
		totalCents, _ := cmd.Flags().GetInt64("total-cents")
		status, _ := cmd.Flags().GetString("status")
		note, _ := cmd.Flags().GetString("note")

		if clientID != "" {
			if rec, err := database.GetRecord(models.KindClients, clientID); err != nil {
				return err
			} else if rec == nil {
				return fmt.Errorf("no client with id %s", clientID)
			}
		}

		payload := models.OrderPayload{
			ClientID:   clientID,
			Reference:  args[0],
			TotalCents: totalCents,
			Status:     status,
			Note:       note,
		}
		id, err := enqueueCreate(database, models.KindOrders, payload)
		if err != nil {
			output.Error("add order: %v", err)
			return err
		}

		output.Success("Added order %s (%s)", args[0], output.ShortID(id))
		drainAfterMutation(database)
		return nil
	},
}

var orderListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List orders",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listRecords(cmd, models.KindOrders, func(rec models.Record) string {
			var p models.OrderPayload
			json.Unmarshal(rec.Data, &p)
			line := fmt.Sprintf("%s  %s", p.Reference, formatCents(p.TotalCents))
			if p.Status != "" {
				line += "  [" + p.Status + "]"
			}
			if p.ClientID != "" {
				line += "  client:" + output.ShortID(p.ClientID)
			}
			return line
		})
	},
}

var orderShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return showRecord(models.KindOrders, args[0])
	},
}

var orderUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update an order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		err = enqueueUpdate(database, models.KindOrders, args[0], func(data json.RawMessage) (json.RawMessage, error) {
			return mergeJSON(data, func(p *models.OrderPayload) {
				if cmd.Flags().Changed("client") {
					p.ClientID, _ = cmd.Flags().GetString("client")
				}
				if cmd.Flags().Changed("reference") {
					p.Reference, _ = cmd.Flags().GetString("reference")
				}
				if cmd.Flags().Changed("total-cents") {
					p.TotalCents, _ = cmd.Flags().GetInt64("total-cents")
				}
				if cmd.Flags().Changed("status") {
					p.Status, _ = cmd.Flags().GetString("status")
				}
				if cmd.Flags().Changed("note") {
					p.Note, _ = cmd.Flags().GetString("note")
				}
			})
		})
		if err != nil {
			output.Error("update order: %v", err)
			return err
		}

		output.Success("Updated order %s", output.ShortID(args[0]))
		drainAfterMutation(database)
		return nil
	},
}

var orderDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete an order",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		if err := enqueueDelete(database, models.KindOrders, args[0]); err != nil {
			output.Error("delete order: %v", err)
			return err
		}

		output.Success("Deleted order %s", output.ShortID(args[0]))
		drainAfterMutation(database)
		return nil
	},
}

// formatCents renders a cent amount as a decimal string, e.g. 4250 -> "42.50"
func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

func init() {
	orderAddCmd.Flags().String("client", "", "Client identity (server or temporary)")
	orderAddCmd.Flags().Int64("total-cents", 0, "Order total in cents")
	orderAddCmd.Flags().String("status", "", "Order status")
	orderAddCmd.Flags().String("note", "", "Free-form note")

	orderUpdateCmd.Flags().String("client", "", "New client identity")
	orderUpdateCmd.Flags().String("reference", "", "New reference")
	orderUpdateCmd.Flags().Int64("total-cents", 0, "New total in cents")
	orderUpdateCmd.Flags().String("status", "", "New status")
	orderUpdateCmd.Flags().String("note", "", "New note")

	orderListCmd.Flags().Bool("json", false, "Output as JSON")

	orderCmd.AddCommand(orderAddCmd)
	orderCmd.AddCommand(orderListCmd)
	orderCmd.AddCommand(orderShowCmd)
	orderCmd.AddCommand(orderUpdateCmd)
	orderCmd.AddCommand(orderDeleteCmd)
	rootCmd.AddCommand(orderCmd)
}
