package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/sw33tLie/lifescore/internal/utils"
	"github.com/sw33tLie/lifescore/pkg/scoring"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Compute a user's lifetime score from stored progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := userFlag(cmd)
		if err != nil {
			return err
		}
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		rows, err := a.DB.ListProgress(ctx, user)
		if err != nil {
			return err
		}
		bonus, err := a.DB.GetBonus(ctx, user)
		if err != nil {
			return err
		}

		b := scoring.NewEngine(a.Settings.Scoring).Compute(rows, bonus)
		if err := a.DB.SaveScoreSnapshot(ctx, user, b, time.Now().UTC()); err != nil {
			utils.Log.Warnf("Could not save score snapshot: %v", err)
		}

		if wantJSON(cmd) {
			return printJSON(b)
		}
		printBreakdown(b)
		return nil
	},
}

func printBreakdown(b scoring.Breakdown) {
	fmt.Printf("Score: %d   Confidence: %d/100\n", b.ScoreTotal, b.Confidence)
	fmt.Printf("%d titles, %.1f hours across %d sources\n\n", b.Stats.Titles, b.Stats.Hours, len(b.Stats.Sources))

	rows := make([][]string, 0, len(b.Explain))
	for _, l := range b.Explain {
		rows = append(rows, []string{l.Label, strconv.Itoa(l.Points), l.Detail})
	}
	fmt.Println(renderTable([]string{"COMPONENT", "POINTS", "DETAIL"}, rows, []columnAlignment{alignLeft, alignRight}))

	if len(b.Stats.StatusCounts) > 0 {
		statuses := make([]string, 0, len(b.Stats.StatusCounts))
		for s := range b.Stats.StatusCounts {
			statuses = append(statuses, s)
		}
		sort.Strings(statuses)
		for _, s := range statuses {
			fmt.Printf("  %-12s %d\n", s, b.Stats.StatusCounts[s])
		}
	}
}

var bonusCmd = &cobra.Command{
	Use:   "bonus",
	Short: "Manage the self-reported bonus input",
}

// bonusSetCmd implements: lifescore bonus set --user <id> --points 25 --note "..."
// A non-empty note counts as historical context for confidence.
var bonusSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set a user's self-reported bonus",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := userFlag(cmd)
		if err != nil {
			return err
		}
		points, _ := cmd.Flags().GetInt("points")
		note, _ := cmd.Flags().GetString("note")
		if points < 0 {
			return fmt.Errorf("--points must be >= 0")
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DB.SetBonus(cmd.Context(), user, scoring.Bonus{Points: points, Note: note}, time.Now().UTC()); err != nil {
			return err
		}
		utils.Log.Infof("Bonus for %s set to %d", user, points)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)
	scoreCmd.Flags().StringP("user", "u", "", "User id")

	rootCmd.AddCommand(bonusCmd)
	bonusCmd.AddCommand(bonusSetCmd)
	bonusSetCmd.Flags().StringP("user", "u", "", "User id")
	bonusSetCmd.Flags().Int("points", 0, "Bonus points")
	bonusSetCmd.Flags().String("note", "", "Historical context (e.g. platforms played before tracking)")
}
