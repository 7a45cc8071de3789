package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/renaud/comptoir/internal/models"
	"github.com/renaud/comptoir/internal/output"
	"github.com/spf13/cobra"
)

var paymentCmd = &cobra.Command{
	Use:     "payment",
	Short:   "Manage payments",
	GroupID: "entities",
}

var paymentAddCmd = &cobra.Command{
	Use:   "add <order-id>",
	Short: "Record a payment against an order",
	Long: `Queues a payment. The order may still carry a temporary identity from an
offline 'order add'; the reference is rewritten automatically once the order
is confirmed by the server.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		orderID := args[0]
		amount, _ := cmd.Flags().GetInt64("amount-cents")
		method, _ := cmd.Flags().GetString("method")
		if amount <= 0 {
			return fmt.Errorf("--amount-cents must be positive")
		}
		if rec, err := database.GetRecord(models.KindOrders, orderID); err != nil {
			return err
		} else if rec == nil {
			return fmt.Errorf("no order with id %s", orderID)
		}

		payload := models.PaymentPayload{
			OrderID:     orderID,
			AmountCents: amount,
			Method:      method,
			PaidAt:      time.Now().UTC().Format(time.RFC3339),
		}
		id, err := enqueueCreate(database, models.KindPayments, payload)
		if err != nil {
			output.Error("add payment: %v", err)
			return err
		}

		output.Success("Recorded payment of %s on order %s (%s)",
			formatCents(amount), output.ShortID(orderID), output.ShortID(id))
		drainAfterMutation(database)
		return nil
	},
}

var paymentListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List payments",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listRecords(cmd, models.KindPayments, func(rec models.Record) string {
			var p models.PaymentPayload
			json.Unmarshal(rec.Data, &p)
			line := fmt.Sprintf("%s  order:%s", formatCents(p.AmountCents), output.ShortID(p.OrderID))
			if p.Method != "" {
				line += "  " + p.Method
			}
			return line
		})
	},
}

var paymentShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a payment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return showRecord(models.KindPayments, args[0])
	},
}

var paymentDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a payment",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		if err := enqueueDelete(database, models.KindPayments, args[0]); err != nil {
			output.Error("delete payment: %v", err)
			return err
		}

		output.Success("Deleted payment %s", output.ShortID(args[0]))
		drainAfterMutation(database)
		return nil
	},
}

func init() {
	paymentAddCmd.Flags().Int64("amount-cents", 0, "Payment amount in cents (required)")
	paymentAddCmd.Flags().String("method", "", "Payment method (cash, card, ...)")

	paymentListCmd.Flags().Bool("json", false, "Output as JSON")

	paymentCmd.AddCommand(paymentAddCmd)
	paymentCmd.AddCommand(paymentListCmd)
	paymentCmd.AddCommand(paymentShowCmd)
	paymentCmd.AddCommand(paymentDeleteCmd)
	rootCmd.AddCommand(paymentCmd)
}
