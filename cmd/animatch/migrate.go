package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nyaadere/animatch/internal/app"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate-cache",
	Short: "Migrate a legacy HTML cache into the SQLite database",
	Long: `Migrate reads every scraped MAL character page from the legacy HTML
cache directory, extracts the character and people links, and prewarms
the SQLite cache with them. This is a one-time migration; afterwards the
old directory can be kept for backup or removed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cacheDir := viper.GetString("cache_dir")
		rootPath := viper.GetString("root_path")

		application, err := app.NewApp()
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}

		if err := application.MigrateCache(rootPath, cacheDir); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		fmt.Printf("\n✓ Cache migration complete!\n")
		fmt.Printf("  Old cache directory (%s) can be kept for backup or removed.\n\n", cacheDir)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
