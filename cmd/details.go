package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sw33tLie/lifescore/internal/utils"
)

var detailsCmd = &cobra.Command{
	Use:   "details",
	Short: "Show per-achievement details for one release, served from cache when fresh",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := userFlag(cmd)
		if err != nil {
			return err
		}
		releaseID, _ := cmd.Flags().GetInt64("release")
		if releaseID <= 0 {
			return fmt.Errorf("--release is required")
		}
		force, _ := cmd.Flags().GetBool("force")

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		release, err := a.DB.GetRelease(cmd.Context(), releaseID)
		if err != nil {
			return err
		}
		if release == nil {
			return fmt.Errorf("release %d is not in the catalog", releaseID)
		}

		svc, err := a.detailService()
		if err != nil {
			return err
		}
		res, err := svc.GetOrFetch(cmd.Context(), user, releaseID, force)
		if err != nil {
			return err
		}
		if res.Warning != "" {
			utils.Log.Warn(res.Warning)
		}
		if wantJSON(cmd) {
			return printJSON(res)
		}

		source := "fetched"
		if res.Cached {
			source = "cached"
		}
		fmt.Printf("%s [%s]: %d items (%s %s)\n", release.Title, release.Platform, len(res.Items), source, formatWhen(res.FetchedAt))
		rows := make([][]string, 0, len(res.Items))
		for _, it := range res.Items {
			earned := ""
			if it.Earned {
				earned = "yes"
				if it.EarnedAt != nil {
					earned = formatWhen(*it.EarnedAt)
				}
			}
			rarity := "-"
			if it.Rarity != nil {
				rarity = strconv.FormatFloat(*it.Rarity, 'f', 1, 64) + "%"
			}
			rows = append(rows, []string{it.Name, strconv.Itoa(it.Points), earned, rarity})
		}
		fmt.Println(renderTable([]string{"NAME", "POINTS", "EARNED", "RARITY"}, rows,
			[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight}))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(detailsCmd)
	detailsCmd.Flags().StringP("user", "u", "", "User id")
	detailsCmd.Flags().Int64P("release", "r", 0, "Catalog release id")
	detailsCmd.Flags().Bool("force", false, "Bypass the cache and refetch")
}
