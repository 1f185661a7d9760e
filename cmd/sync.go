package cmd

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sw33tLie/lifescore/internal/utils"
	"github.com/sw33tLie/lifescore/pkg/errs"
	"github.com/sw33tLie/lifescore/pkg/polling"
	"github.com/sw33tLie/lifescore/pkg/reconcile"
)

// syncCmd implements: lifescore sync --user <id> [--provider steam,psn]
// Without --provider every provider the user has linked is synced, one
// after the other. A provider that fails with a credential problem stops
// only its own run.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Import a user's libraries from the linked providers",
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

		sources, _ := cmd.Flags().GetStringSlice("provider")
		if len(sources) == 0 {
			sources = a.Settings.Authorizer().Linked(user)
			sort.Strings(sources)
		}
		if len(sources) == 0 {
			return fmt.Errorf("user %q has no linked providers (see users.%s in the config file)", user, user)
		}

		runner := &syncRunner{app: a, onItemDone: func(p reconcile.Progress, o reconcile.Outcome) {
			utils.Log.Debugf("%s %s (%d min)", o, p.Title, p.PlaytimeMinutes)
		}}

		results := make(map[string]*polling.SyncResult, len(sources))
		var failed []string
		for _, source := range sources {
			source = strings.ToLower(strings.TrimSpace(source))
			res, err := runner.Sync(cmd.Context(), user, source)
			if err != nil {
				if errors.Is(err, utils.ErrSyncInProgress) {
					return err
				}
				utils.Log.Errorf("Sync of %s failed: %v", source, err)
				failed = append(failed, source)
				if res == nil {
					continue
				}
			}
			results[source] = res
			for _, w := range res.Warnings {
				utils.Log.Warn(w)
			}
		}

		if wantJSON(cmd) {
			if err := printJSON(results); err != nil {
				return err
			}
		} else {
			printSyncSummary(sources, results)
		}
		if len(failed) > 0 {
			return fmt.Errorf("sync failed for: %s", strings.Join(failed, ", "))
		}
		return nil
	},
}

func printSyncSummary(sources []string, results map[string]*polling.SyncResult) {
	rows := make([][]string, 0, len(sources))
	var itemErrors []errs.ItemError
	for _, source := range sources {
		res, ok := results[source]
		if !ok {
			rows = append(rows, []string{source, "-", "-", "-", "failed"})
			continue
		}
		rows = append(rows, []string{
			source,
			strconv.Itoa(res.Imported),
			strconv.Itoa(res.Updated),
			strconv.Itoa(res.Skipped),
			strconv.Itoa(res.ErrorCount),
		})
		itemErrors = append(itemErrors, res.Errors...)
	}
	fmt.Println(renderTable(
		[]string{"PROVIDER", "IMPORTED", "UPDATED", "SKIPPED", "ERRORS"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
	))
	for _, e := range itemErrors {
		fmt.Printf("  %s: %s\n", e.Title, e.Reason)
	}
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().StringP("user", "u", "", "User id, as configured under users.<id>")
	syncCmd.Flags().StringSliceP("provider", "p", nil, "Comma-separated providers to sync (default: all linked)")
}
