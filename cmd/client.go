package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/renaud/comptoir/internal/models"
	"github.com/renaud/comptoir/internal/output"
	"github.com/spf13/cobra"
)

var clientCmd = &cobra.Command{
	Use:     "client",
	Short:   "Manage clients",
	GroupID: "entities",
}

var clientAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a client",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		email, _ := cmd.Flags().GetString("email")
		phone, _ := cmd.Flags().GetString("phone")

		payload := models.ClientPayload{Name: args[0], Email: email, Phone: phone}
		id, err := enqueueCreate(database, models.KindClients, payload)
		if err != nil {
			output.Error("add client: %v", err)
			return err
		}

		output.Success("Added client %s (%s)", args[0], output.ShortID(id))
		drainAfterMutation(database)
		return nil
	},
}

var clientListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List clients",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listRecords(cmd, models.KindClients, func(rec models.Record) string {
			var p models.ClientPayload
			json.Unmarshal(rec.Data, &p)
			line := p.Name
			if p.Email != "" {
				line += "  " + p.Email
			}
			if p.Phone != "" {
				line += "  " + p.Phone
			}
			return line
		})
	},
}

var clientShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a client",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return showRecord(models.KindClients, args[0])
	},
}

var clientUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a client",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		err = enqueueUpdate(database, models.KindClients, args[0], func(data json.RawMessage) (json.RawMessage, error) {
			return mergeJSON(data, func(p *models.ClientPayload) {
				if cmd.Flags().Changed("name") {
					p.Name, _ = cmd.Flags().GetString("name")
				}
				if cmd.Flags().Changed("email") {
					p.Email, _ = cmd.Flags().GetString("email")
				}
				if cmd.Flags().Changed("phone") {
					p.Phone, _ = cmd.Flags().GetString("phone")
				}
			})
		})
		if err != nil {
			output.Error("update client: %v", err)
			return err
		}

		output.Success("Updated client %s", output.ShortID(args[0]))
		drainAfterMutation(database)
		return nil
	},
}

var clientDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a client",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		if err := enqueueDelete(database, models.KindClients, args[0]); err != nil {
			output.Error("delete client: %v", err)
			return err
		}

		output.Success("Deleted client %s", output.ShortID(args[0]))
		drainAfterMutation(database)
		return nil
	},
}

// listRecords fetches and prints records of a kind through the read merge
// layer, one line each, with pending markers.
func listRecords(cmd *cobra.Command, kind models.EntityKind, summarize func(models.Record) string) error {
	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	eng, _, err := newEngine(database)
	if err != nil {
		return err
	}

	recs, err := eng.Fetch(kind)
	if err != nil {
		output.Error("list %s: %v", kind, err)
		return err
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		return output.JSON(recs)
	}

	if len(recs) == 0 {
		output.Info("No %s.", kind)
		return nil
	}
	for _, rec := range recs {
		fmt.Println(output.FormatRecordLine(rec, summarize(rec)))
	}
	return nil
}

// showRecord prints a single mirror record as JSON.
func showRecord(kind models.EntityKind, id string) error {
	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	rec, err := database.GetRecord(kind, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("no %s with id %s", kind, id)
	}
	return output.JSON(rec)
}

func init() {
	clientAddCmd.Flags().String("email", "", "Client email")
	clientAddCmd.Flags().String("phone", "", "Client phone number")

	clientUpdateCmd.Flags().String("name", "", "New name")
	clientUpdateCmd.Flags().String("email", "", "New email")
	clientUpdateCmd.Flags().String("phone", "", "New phone number")

	clientListCmd.Flags().Bool("json", false, "Output as JSON")

	clientCmd.AddCommand(clientAddCmd)
	clientCmd.AddCommand(clientListCmd)
	clientCmd.AddCommand(clientShowCmd)
	clientCmd.AddCommand(clientUpdateCmd)
	clientCmd.AddCommand(clientDeleteCmd)
	rootCmd.AddCommand(clientCmd)
}
