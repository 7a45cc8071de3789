package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/renaud/comptoir/internal/db"
	"github.com/renaud/comptoir/internal/output"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:     "init",
	Short:   "Initialize a comptoir workspace",
	Long:    `Creates the local .comptoir directory and SQLite database.`,
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		baseDir := getBaseDir()

		if _, err := os.Stat(filepath.Join(baseDir, ".comptoir")); err == nil {
			output.Warning(".comptoir/ already exists")
			return nil
		}

		database, err := db.Initialize(baseDir)
		if err != nil {
			output.Error("failed to initialize database: %v", err)
			return err
		}
		defer database.Close()

		fmt.Println("INITIALIZED .comptoir/")

		addToGitignore(filepath.Join(baseDir, ".gitignore"))
		return nil
	},
}

func addToGitignore(path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		return // no .gitignore, probably not a repo
	}
	contentStr := string(content)

	if strings.Contains(contentStr, ".comptoir/") {
		return
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()

	if len(contentStr) > 0 && !strings.HasSuffix(contentStr, "\n") {
		f.WriteString("\n")
	}
	f.WriteString(".comptoir/\n")
	fmt.Println("Added .comptoir/ to .gitignore")
}

func init() {
	rootCmd.AddCommand(initCmd)
}
