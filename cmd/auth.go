package cmd

import (
	"fmt"

	"github.com/renaud/comptoir/internal/config"
	"github.com/renaud/comptoir/internal/output"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:     "auth",
	Short:   "Manage server authentication",
	GroupID: "system",
}

var authSetKeyCmd = &cobra.Command{
	Use:   "set-key <api-key>",
	Short: "Store the server API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		serverURL, _ := cmd.Flags().GetString("server")

		creds, err := config.LoadAuth()
		if err != nil {
			return err
		}
		if creds == nil {
			creds = &config.AuthCredentials{}
		}
		creds.APIKey = args[0]
		if serverURL != "" {
			creds.ServerURL = serverURL
		}

		if err := config.SaveAuth(creds); err != nil {
			output.Error("save credentials: %v", err)
			return err
		}

		output.Success("API key stored.")
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ClearAuth(); err != nil {
			output.Error("logout: %v", err)
			return err
		}
		fmt.Println("Logged out.")
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status",
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := config.LoadAuth()
		if err != nil {
			output.Error("load auth: %v", err)
			return err
		}

		if creds == nil || creds.APIKey == "" {
			fmt.Println("Not authenticated.")
			return nil
		}

		keyPrefix := creds.APIKey
		if len(keyPrefix) > 12 {
			keyPrefix = keyPrefix[:12] + "..."
		}

		fmt.Printf("Server: %s\n", config.GetServerURL())
		fmt.Printf("Key:    %s\n", keyPrefix)
		if creds.DeviceID != "" {
			fmt.Printf("Device: %s\n", creds.DeviceID)
		}
		return nil
	},
}

func init() {
	authSetKeyCmd.Flags().String("server", "", "Server base URL to store alongside the key")

	authCmd.AddCommand(authSetKeyCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}
