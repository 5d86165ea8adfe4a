package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nyaadere/animatch/internal/app"
)

var ratingsCmd = &cobra.Command{
	Use:   "ratings <anilist-id>",
	Short: "Show aggregated community ratings for one anime",
	Long: `Ratings prints the AniList average score, the MAL score via Jikan, and
the SeaDex release entry for an anime, using the same persisted cache as
the match command.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		anilistID, err := strconv.Atoi(args[0])
		if err != nil || anilistID <= 0 {
			return fmt.Errorf("invalid anilist id %q", args[0])
		}

		malID, _ := cmd.Flags().GetInt("mal-id")
		rootPath := viper.GetString("root_path")

		application, err := app.NewApp()
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}

		if err := application.Ratings(rootPath, anilistID, malID); err != nil {
			return fmt.Errorf("ratings failed: %w", err)
		}

		return nil
	},
}

func init() {
	ratingsCmd.Flags().Int("mal-id", 0, "MAL id override; 0 resolves it from AniList")
	rootCmd.AddCommand(ratingsCmd)
}
