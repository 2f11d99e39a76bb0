package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ledgerlite/ledgerlite/internal/cli"
	"github.com/ledgerlite/ledgerlite/internal/model"
)

func migrateCmd() *cobra.Command {
	var legacyFile string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and import legacy data",
		Long: `Apply any pending schema migrations. Migrations also run automatically
on every command; this exists to run them explicitly and to import the
legacy JSON ledger from before the SQLite store.

The legacy file is consumed at most once: it is deleted after a
successful import, and rows already present in the store are left alone.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			fmt.Println(cli.FormatSuccess("Schema is up to date"))

			path := legacyFile
			if path == "" {
				path = defaultLegacyPath()
			}
			if path == "" {
				return nil
			}

			userID := viper.GetString("user.id")
			if userID == "" {
				userID = model.LocalUserID
			}

			imported, err := store.ImportLegacyFile(ctx, path, userID)
			if err != nil {
				return fmt.Errorf("legacy import failed: %w", err)
			}
			if imported > 0 {
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("Imported %d legacy transaction(s)", imported)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&legacyFile, "legacy-file", "", "path to the legacy JSON ledger (default: next to the database)")

	return cmd
}

// defaultLegacyPath looks for the pre-SQLite JSON ledger in the data
// directory.
func defaultLegacyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "ledgerlite", "transactions.json")
}
