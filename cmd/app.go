package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sw33tLie/lifescore/internal/config"
	"github.com/sw33tLie/lifescore/internal/utils"
	"github.com/sw33tLie/lifescore/pkg/catalog"
	"github.com/sw33tLie/lifescore/pkg/detailcache"
	"github.com/sw33tLie/lifescore/pkg/polling"
	"github.com/sw33tLie/lifescore/pkg/providers"
	"github.com/sw33tLie/lifescore/pkg/providers/psn"
	"github.com/sw33tLie/lifescore/pkg/providers/retroachievements"
	"github.com/sw33tLie/lifescore/pkg/providers/steam"
	"github.com/sw33tLie/lifescore/pkg/reconcile"
	"github.com/sw33tLie/lifescore/pkg/storage"
	"github.com/sw33tLie/lifescore/pkg/whttp"
)

// app bundles what most commands need. Close releases everything it opened.
type app struct {
	Settings  *config.Settings
	DBPath    string
	DB        *storage.DB
	Providers map[string]providers.Provider

	kv *storage.KV
}

func openApp() (*app, error) {
	settings, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	dbPath, err := utils.GetAbsDBPath(settings.DB.Path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := storage.Open(dbPath)
	if err != nil {
		return nil, err
	}

	client, err := whttp.NewClient(whttp.ClientOptions{
		RetryMax: settings.HTTP.RetryMax,
		Timeout:  settings.HTTP.Timeout,
		Proxy:    settings.HTTP.Proxy,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &app{
		Settings:  settings,
		DBPath:    dbPath,
		DB:        db,
		Providers: buildProviders(settings, client),
	}, nil
}

func (a *app) Close() {
	if a.kv != nil {
		if err := a.kv.Close(); err != nil {
			utils.Log.Warnf("Closing detail cache: %v", err)
		}
	}
	a.DB.Close()
}

// buildProviders registers every provider. Steam and RetroAchievements need
// an API key; PSN authenticates per user.
func buildProviders(s *config.Settings, client *retryablehttp.Client) map[string]providers.Provider {
	out := map[string]providers.Provider{
		psn.Name: psn.New(client),
	}
	if s.Providers.Steam.APIKey != "" {
		out[steam.Name] = steam.New(s.Providers.Steam.APIKey, client)
	} else {
		utils.Log.Debug("Skipping Steam: providers.steam.api_key not found in config.")
	}
	if s.Providers.RetroAchievements.APIKey != "" {
		out[retroachievements.Name] = retroachievements.New(s.Providers.RetroAchievements.APIKey, client)
	} else {
		utils.Log.Debug("Skipping RetroAchievements: providers.retroachievements.api_key not found in config.")
	}
	return out
}

func (a *app) provider(name string) (providers.Provider, error) {
	p, ok := a.Providers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown or unconfigured provider %q", name)
	}
	return p, nil
}

func (a *app) matcher() *catalog.Matcher {
	m := catalog.NewMatcher(a.DB)
	m.Threshold = a.Settings.Match.Threshold
	m.Log = utils.Log
	return m
}

func (a *app) writer() *reconcile.Writer {
	return &reconcile.Writer{Store: a.DB, Log: utils.Log}
}

// detailStore picks the cache backend from cache.backend.
func (a *app) detailStore() (detailcache.Store, error) {
	if a.Settings.Cache.Backend != config.BackendBadger {
		return a.DB, nil
	}
	if a.kv != nil {
		return a.kv, nil
	}
	dir := a.Settings.Cache.Dir
	if dir == "" {
		dir = filepath.Join(filepath.Dir(a.DBPath), "details")
	}
	var logger badger.Logger
	if utils.Log.IsLevelEnabled(logrus.DebugLevel) {
		logger = utils.Log
	}
	kv, err := storage.OpenKV(storage.KVOptions{Dir: dir, Logger: logger})
	if err != nil {
		return nil, err
	}
	a.kv = kv
	return kv, nil
}

func (a *app) detailService() (*detailcache.Service, error) {
	store, err := a.detailStore()
	if err != nil {
		return nil, err
	}
	fetcher := &providers.DetailFetcher{
		Mappings:   a.DB,
		Providers:  a.Providers,
		Authorizer: a.Settings.Authorizer(),
		Preference: a.Settings.Providers.Preference,
	}
	return detailcache.New(store, fetcher,
		detailcache.WithTTL(a.Settings.Cache.TTL),
		detailcache.WithLogger(utils.Log),
	), nil
}

// syncRunner takes the user's lease around one provider sync.
type syncRunner struct {
	app        *app
	onItemDone func(reconcile.Progress, reconcile.Outcome)
}

func (r *syncRunner) Sync(ctx context.Context, userID, source string) (*polling.SyncResult, error) {
	p, err := r.app.provider(source)
	if err != nil {
		return nil, err
	}
	lease, err := utils.AcquireSyncLease(r.app.DBPath, userID)
	if err != nil {
		return nil, err
	}
	defer lease.Release()
	utils.WithUser(userID).Debugf("Acquired sync lease %s for %s", lease.Token, source)

	return polling.SyncProvider(ctx, polling.SyncConfig{
		Provider:   p,
		UserID:     userID,
		Lease:      lease,
		Authorizer: r.app.Settings.Authorizer(),
		Matcher:    r.app.matcher(),
		Writer:     r.app.writer(),
		Stamps:     r.app.DB,
		Log:        utils.Log,
		OnItemDone: r.onItemDone,
	})
}

func userFlag(cmd *cobra.Command) (string, error) {
	user, _ := cmd.Flags().GetString("user")
	user = strings.ToLower(strings.TrimSpace(user))
	if user == "" {
		return "", fmt.Errorf("--user is required")
	}
	return user, nil
}

func wantJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
