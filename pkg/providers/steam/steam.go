package steam

import (
	"context"
	"net/url"
	"strconv"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/sw33tLie/lifescore/pkg/catalog"
	"github.com/sw33tLie/lifescore/pkg/detailcache"
	"github.com/sw33tLie/lifescore/pkg/errs"
	"github.com/sw33tLie/lifescore/pkg/providers"
	"github.com/sw33tLie/lifescore/pkg/reconcile"
	"github.com/sw33tLie/lifescore/pkg/whttp"
)

const (
	Name           = "steam"
	DefaultBaseURL = "https://api.steampowered.com"
	platformLabel  = "Steam PC"
)

var ownedFields = providers.FieldMap{
	"id":       {Paths: []string{"appid"}},
	"title":    {Paths: []string{"name"}},
	"playtime": {Paths: []string{"playtime_forever"}},
	"last":     {Paths: []string{"rtime_last_played"}},
}

var achievementFields = providers.FieldMap{
	"id":          {Paths: []string{"apiname"}},
	"name":        {Paths: []string{"name", "displayName", "apiname"}},
	"description": {Paths: []string{"description"}},
	"earned":      {Paths: []string{"achieved"}},
	"earned_at":   {Paths: []string{"unlocktime"}},
}

// Client reads the Steam Web API. The API key is service-wide; the
// account id is the user's 64-bit steam id.
type Client struct {
	APIKey  string
	BaseURL string
	HTTP    *retryablehttp.Client
}

func New(apiKey string, client *retryablehttp.Client) *Client {
	return &Client{APIKey: apiKey, BaseURL: DefaultBaseURL, HTTP: client}
}

func (c *Client) Name() string { return Name }

func (c *Client) SystemFor(platform string) (string, bool) {
	if platform == "pc" {
		return "steam", true
	}
	return "", false
}

func (c *Client) ListOwned(ctx context.Context, auth providers.Authorization) ([]reconcile.Signal, error) {
	body, err := providers.Send(ctx, &whttp.WHTTPReq{
		URL: c.BaseURL + "/IPlayerService/GetOwnedGames/v1/",
		Query: url.Values{
			"key":                       {c.key(auth)},
			"steamid":                   {auth.AccountID},
			"include_appinfo":           {"1"},
			"include_played_free_games": {"1"},
			"format":                    {"json"},
		},
	}, c.HTTP, Name, "list owned games")
	if err != nil {
		return nil, err
	}

	games := gjson.Get(body, "response.games")
	if !gjson.Get(body, "response").Exists() {
		return nil, errs.Wrap(errs.ErrMalformedPayload, Name, "owned games: no response object", nil)
	}

	signals := make([]reconcile.Signal, 0, len(games.Array()))
	games.ForEach(func(_, g gjson.Result) bool {
		signals = append(signals, reconcile.Signal{
			Source:          Name,
			NativeID:        ownedFields.String(g, "id"),
			Title:           ownedFields.String(g, "title"),
			PlatformLabel:   platformLabel,
			PlaytimeMinutes: ownedFields.Int(g, "playtime"),
			LastActivity:    ownedFields.Time(g, "last"),
		})
		return true
	})
	return signals, nil
}

func (c *Client) FetchDetails(ctx context.Context, auth providers.Authorization, nativeID string) ([]detailcache.RawItem, error) {
	body, err := providers.Send(ctx, &whttp.WHTTPReq{
		URL: c.BaseURL + "/ISteamUserStats/GetPlayerAchievements/v1/",
		Query: url.Values{
			"key":     {c.key(auth)},
			"steamid": {auth.AccountID},
			"appid":   {nativeID},
			"l":       {"english"},
		},
	}, c.HTTP, Name, "player achievements")
	if err != nil {
		return nil, err
	}
	if !gjson.Get(body, "playerstats.success").Bool() {
		return nil, errs.Wrap(errs.ErrMalformedPayload, Name, "player achievements: "+gjson.Get(body, "playerstats.error").String(), nil)
	}

	var items []detailcache.RawItem
	gjson.Get(body, "playerstats.achievements").ForEach(func(_, a gjson.Result) bool {
		items = append(items, detailcache.RawItem{
			ID:          achievementFields.String(a, "id"),
			Name:        achievementFields.String(a, "name"),
			Description: achievementFields.String(a, "description"),
			EarnedFlag:  achievementFields.Bool(a, "earned"),
			EarnedAt:    achievementFields.Time(a, "earned_at"),
		})
		return true
	})
	return items, nil
}

// SearchSystem lists every app Steam knows about.
func (c *Client) SearchSystem(ctx context.Context, system string) ([]catalog.Candidate, error) {
	if system != "steam" {
		return nil, errs.Wrap(errs.ErrUnsupportedPlatform, Name, system, nil)
	}
	body, err := providers.Send(ctx, &whttp.WHTTPReq{URL: c.BaseURL + "/ISteamApps/GetAppList/v2/"}, c.HTTP, Name, "app list")
	if err != nil {
		return nil, err
	}

	var out []catalog.Candidate
	gjson.Get(body, "applist.apps").ForEach(func(_, a gjson.Result) bool {
		title := a.Get("name").String()
		if title == "" {
			return true
		}
		out = append(out, catalog.Candidate{NativeID: strconv.FormatInt(a.Get("appid").Int(), 10), Title: title})
		return true
	})
	return out, nil
}

// key prefers a per-user key when one was linked.
func (c *Client) key(auth providers.Authorization) string {
	if auth.Token != "" {
		return auth.Token
	}
	return c.APIKey
}
