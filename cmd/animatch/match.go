package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nyaadere/animatch/internal/app"
)

var matchCmd = &cobra.Command{
	Use:   "match <anilist-id>",
	Short: "Reconcile one anime's character roster with MAL links",
	Long: `Match fetches the character roster for an AniList id, scrapes the
matching MyAnimeList character page, and assigns character and voice
actor links by fuzzy name matching.

The MAL id is resolved from AniList unless --mal-id overrides it. With
--anidb-id the show title is cross-checked against the AniDB title dump
before scraping, so a mistyped id fails instead of matching the wrong
show.

Output goes to <root-path>/animatch/: matched-<id>.json with the linked
roster, and unmatched-<id>.yaml listing characters left for manual
review.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		anilistID, err := strconv.Atoi(args[0])
		if err != nil || anilistID <= 0 {
			return fmt.Errorf("invalid anilist id %q", args[0])
		}

		malID, _ := cmd.Flags().GetInt("mal-id")
		anidbID, _ := cmd.Flags().GetInt("anidb-id")
		rootPath := viper.GetString("root_path")

		application, err := app.NewApp()
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}

		if err := application.Run(rootPath, anilistID, malID, anidbID); err != nil {
			return fmt.Errorf("match failed: %w", err)
		}

		return nil
	},
}

func init() {
	matchCmd.Flags().Int("mal-id", 0, "MAL id override; 0 resolves it from AniList")
	matchCmd.Flags().Int("anidb-id", 0, "AniDB id for title verification; 0 skips the check")
	rootCmd.AddCommand(matchCmd)
}
