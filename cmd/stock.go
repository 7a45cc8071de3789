package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/renaud/comptoir/internal/models"
	"github.com/renaud/comptoir/internal/output"
	"github.com/spf13/cobra"
)

var stockCmd = &cobra.Command{
	Use:     "stock",
	Short:   "Manage stock items",
	GroupID: "entities",
}

var stockAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a stock item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		sku, _ := cmd.Flags().GetString("sku")
		qty, _ := cmd.Flags().GetInt64("qty")
		price, _ := cmd.Flags().GetInt64("price-cents")
		if sku == "" {
			return fmt.Errorf("--sku is required")
		}

		payload := models.StockItemPayload{
			Name:           args[0],
			SKU:            sku,
			QuantityOnHand: qty,
			UnitPriceCents: price,
		}
		id, err := enqueueCreate(database, models.KindStock, payload)
		if err != nil {
			output.Error("add stock item: %v", err)
			return err
		}

		output.Success("Added stock item %s (%s)", sku, output.ShortID(id))
		drainAfterMutation(database)
		return nil
	},
}

var stockListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List stock items",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listRecords(cmd, models.KindStock, func(rec models.Record) string {
			var p models.StockItemPayload
			json.Unmarshal(rec.Data, &p)
			return fmt.Sprintf("%s  %s  x%d @ %s", p.SKU, p.Name, p.QuantityOnHand, formatCents(p.UnitPriceCents))
		})
	},
}

var stockShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a stock item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return showRecord(models.KindStock, args[0])
	},
}

var stockUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a stock item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		err = enqueueUpdate(database, models.KindStock, args[0], func(data json.RawMessage) (json.RawMessage, error) {
			return mergeJSON(data, func(p *models.StockItemPayload) {
				if cmd.Flags().Changed("name") {
					p.Name, _ = cmd.Flags().GetString("name")
				}
				if cmd.Flags().Changed("sku") {
					p.SKU, _ = cmd.Flags().GetString("sku")
				}
				if cmd.Flags().Changed("qty") {
					p.QuantityOnHand, _ = cmd.Flags().GetInt64("qty")
				}
				if cmd.Flags().Changed("price-cents") {
					p.UnitPriceCents, _ = cmd.Flags().GetInt64("price-cents")
				}
			})
		})
		if err != nil {
			output.Error("update stock item: %v", err)
			return err
		}

		output.Success("Updated stock item %s", output.ShortID(args[0]))
		drainAfterMutation(database)
		return nil
	},
}

var stockDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a stock item",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		if err := enqueueDelete(database, models.KindStock, args[0]); err != nil {
			output.Error("delete stock item: %v", err)
			return err
		}

		output.Success("Deleted stock item %s", output.ShortID(args[0]))
		drainAfterMutation(database)
		return nil
	},
}

func init() {
	stockAddCmd.Flags().String("sku", "", "Stock-keeping unit (required)")
	stockAddCmd.Flags().Int64("qty", 0, "Quantity on hand")
	stockAddCmd.Flags().Int64("price-cents", 0, "Unit price in cents")

	stockUpdateCmd.Flags().String("name", "", "New name")
	stockUpdateCmd.Flags().String("sku", "", "New SKU")
	stockUpdateCmd.Flags().Int64("qty", 0, "New quantity on hand")
	stockUpdateCmd.Flags().Int64("price-cents", 0, "New unit price in cents")

	stockListCmd.Flags().Bool("json", false, "Output as JSON")

	stockCmd.AddCommand(stockAddCmd)
	stockCmd.AddCommand(stockListCmd)
	stockCmd.AddCommand(stockShowCmd)
	stockCmd.AddCommand(stockUpdateCmd)
	stockCmd.AddCommand(stockDeleteCmd)
	rootCmd.AddCommand(stockCmd)
}
