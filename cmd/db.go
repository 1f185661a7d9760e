package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sw33tLie/lifescore/internal/config"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Interact with the lifescore database",
}

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints statistics about the catalog and stored progress.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.DB.GetStats(cmd.Context())
		if err != nil {
			return err
		}
		if wantJSON(cmd) {
			return printJSON(stats)
		}

		fmt.Printf("Releases: %d   Pending reviews: %d   Score snapshots: %d\n", stats.Releases, stats.Reviews, stats.Snapshots)
		if len(stats.Sources) == 0 {
			fmt.Println("No progress in the database yet.")
			return nil
		}

		rows := make([][]string, 0, len(stats.Sources)+1)
		var users, titles, matched, mappings int
		for _, s := range stats.Sources {
			rows = append(rows, []string{s.Source, strconv.Itoa(s.Users), strconv.Itoa(s.Titles), strconv.Itoa(s.Matched), strconv.Itoa(s.Mappings)})
			users += s.Users
			titles += s.Titles
			matched += s.Matched
			mappings += s.Mappings
		}
		rows = append(rows, []string{"TOTAL", strconv.Itoa(users), strconv.Itoa(titles), strconv.Itoa(matched), strconv.Itoa(mappings)})

		fmt.Println(renderTable(
			[]string{"SOURCE", "USERS", "TITLES", "MATCHED", "MAPPINGS"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
		))

		if a.Settings.Cache.Backend == config.BackendBadger {
			if _, err := a.detailStore(); err == nil && a.kv != nil {
				if n, err := a.kv.CountDetails(); err == nil {
					fmt.Printf("Cached detail sets (badger): %d\n", n)
				}
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(statsCmd)
}
