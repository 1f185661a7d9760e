package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sw33tLie/lifescore/internal/utils"
	"github.com/sw33tLie/lifescore/pkg/catalog"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match provider titles against the canonical catalog",
}

// matchTitleCmd implements: lifescore match title "<title>" --platform snes
var matchTitleCmd = &cobra.Command{
	Use:   "title <title>",
	Short: "Resolve one title to a catalog release",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		platform, _ := cmd.Flags().GetString("platform")
		if strings.TrimSpace(platform) == "" {
			return fmt.Errorf("--platform is required")
		}
		source, _ := cmd.Flags().GetString("source")
		nativeID, _ := cmd.Flags().GetString("native-id")

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.matcher().Resolve(cmd.Context(), catalog.Query{
			Source:         strings.ToLower(source),
			NativeID:       nativeID,
			Title:          args[0],
			PlatformFields: []string{platform},
		})
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(res)
		}
		if res.Mapped {
			fmt.Printf("Matched release %d (score %.3f)\n", res.ReleaseID, res.Score)
			return nil
		}
		fmt.Printf("No match: %s\n", res.Reason)
		if res.BestGuess != nil {
			fmt.Printf("Best guess: %q (release %d, score %.3f)\n", res.BestGuess.Title, res.BestGuess.ReleaseID, res.BestGuess.Score)
		}
		return nil
	},
}

// matchBatchCmd implements: lifescore match batch --provider retroachievements
// Prints the cursor to pass with --cursor to continue an interrupted run.
var matchBatchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Map catalog releases to a provider's titles",
	RunE: func(cmd *cobra.Command, args []string) error {
		source, _ := cmd.Flags().GetString("provider")
		cursor, _ := cmd.Flags().GetString("cursor")
		platform, _ := cmd.Flags().GetString("platform")
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.provider(source)
		if err != nil {
			return err
		}

		res, err := a.matcher().MapBatch(cmd.Context(), catalog.BatchOptions{
			Searcher: p,
			Cursor:   cursor,
			Platform: strings.ToLower(platform),
			Limit:    limit,
		})
		if res == nil {
			return err
		}
		if err != nil {
			utils.Log.Errorf("Batch stopped early: %v", err)
		}

		if wantJSON(cmd) {
			if perr := printJSON(res); perr != nil {
				return perr
			}
			return err
		}
		fmt.Printf("Processed %d: %d mapped, %d already mapped, %d unmatched, %d errors\n",
			res.Processed, res.Mapped, res.AlreadyMapped, res.Unmatched, res.ErrorCount)
		for _, e := range res.Errors {
			fmt.Printf("  %s: %s\n", e.Title, e.Reason)
		}
		if res.Cursor != "" {
			fmt.Printf("Resume with: --cursor %s\n", res.Cursor)
		}
		return err
	},
}

var matchReviewCmd = &cobra.Command{
	Use:   "review",
	Short: "List titles that could not be matched confidently",
	RunE: func(cmd *cobra.Command, args []string) error {
		source, _ := cmd.Flags().GetString("source")
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		reviews, err := a.DB.ListReviews(cmd.Context(), strings.ToLower(source), limit)
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(reviews)
		}
		if len(reviews) == 0 {
			fmt.Println("Nothing to review.")
			return nil
		}
		rows := make([][]string, 0, len(reviews))
		for _, r := range reviews {
			rows = append(rows, []string{
				r.Source,
				r.RawTitle,
				r.GuessTitle,
				strconv.FormatFloat(r.Score, 'f', 3, 64),
				r.Reason,
				formatWhen(r.CreatedAt),
			})
		}
		fmt.Println(renderTable(
			[]string{"SOURCE", "TITLE", "BEST GUESS", "SCORE", "REASON", "WHEN"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
		))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)
	matchCmd.AddCommand(matchTitleCmd, matchBatchCmd, matchReviewCmd)

	matchTitleCmd.Flags().String("platform", "", "Platform label, e.g. \"SNES\" or \"PlayStation 4\"")
	matchTitleCmd.Flags().String("source", "manual", "Source recorded with the mapping")
	matchTitleCmd.Flags().String("native-id", "", "Provider id to persist with a confident match")

	matchBatchCmd.Flags().StringP("provider", "p", "", "Provider whose titles are searched")
	matchBatchCmd.Flags().String("cursor", "", "Resume after the cursor printed by a previous run")
	matchBatchCmd.Flags().String("platform", "", "Only map releases of this platform id")
	matchBatchCmd.Flags().Int("limit", 100, "Maximum releases to process")
	matchBatchCmd.MarkFlagRequired("provider")

	matchReviewCmd.Flags().String("source", "", "Only show reviews from this source")
	matchReviewCmd.Flags().Int("limit", 50, "Maximum rows")
}
