package retroachievements

import (
	"context"
	"net/url"
	"strconv"
	"strings"

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
	Name           = "retroachievements"
	DefaultBaseURL = "https://retroachievements.org/API"
	pageSize       = 500
)

// consoleIDs maps catalog platform ids to RetroAchievements console ids.
var consoleIDs = map[string]string{
	"genesis":      "1",
	"n64":          "2",
	"snes":         "3",
	"gb":           "4",
	"gba":          "5",
	"gbc":          "6",
	"nes":          "7",
	"mastersystem": "11",
	"ps1":          "12",
	"gamecube":     "16",
	"nds":          "18",
	"wii":          "19",
	"ps2":          "21",
	"saturn":       "39",
	"dreamcast":    "40",
	"psp":          "41",
	"3ds":          "62",
}

// Older API versions used different names for the same counters.
var progressFields = providers.FieldMap{
	"id":       {Paths: []string{"GameID", "ID"}},
	"title":    {Paths: []string{"Title", "GameTitle"}},
	"console":  {Paths: []string{"ConsoleName", "Console"}},
	"earned":   {Paths: []string{"NumAwarded", "NumAchieved"}},
	"hardcore": {Paths: []string{"NumAwardedHardcore", "NumAchievedHardcore"}},
	"total":    {Paths: []string{"MaxPossible", "NumPossibleAchievements"}},
	"award":    {Paths: []string{"HighestAwardKind"}},
	"last":     {Paths: []string{"MostRecentAwardedDate", "LastPlayed"}},
}

var achievementFields = providers.FieldMap{
	"id":          {Paths: []string{"ID"}},
	"name":        {Paths: []string{"Title"}},
	"description": {Paths: []string{"Description"}},
	"points":      {Paths: []string{"Points"}},
	"earned_at":   {Paths: []string{"DateEarnedHardcore", "DateEarned"}},
	"awarded":     {Paths: []string{"NumAwarded"}},
}

// Client reads the RetroAchievements web API. The API key is service-wide;
// the account id is the RetroAchievements username.
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
	id, ok := consoleIDs[platform]
	return id, ok
}

func (c *Client) ListOwned(ctx context.Context, auth providers.Authorization) ([]reconcile.Signal, error) {
	var signals []reconcile.Signal
	offset := 0
	for {
		body, err := providers.Send(ctx, &whttp.WHTTPReq{
			URL: c.BaseURL + "/API_GetUserCompletionProgress.php",
			Query: url.Values{
				"u": {auth.AccountID},
				"y": {c.key(auth)},
				"c": {strconv.Itoa(pageSize)},
				"o": {strconv.Itoa(offset)},
			},
		}, c.HTTP, Name, "completion progress")
		if err != nil {
			return nil, err
		}

		results := gjson.Get(body, "Results")
		if !results.IsArray() {
			return nil, errs.Wrap(errs.ErrMalformedPayload, Name, "completion progress: no Results", nil)
		}
		page := results.Array()
		for _, g := range page {
			signals = append(signals, reconcile.Signal{
				Source:        Name,
				NativeID:      progressFields.String(g, "id"),
				Title:         progressFields.String(g, "title"),
				PlatformLabel: progressFields.String(g, "console"),
				Earned:        progressFields.Int(g, "earned"),
				Hardcore:      progressFields.Int(g, "hardcore"),
				Total:         progressFields.Int(g, "total"),
				Status:        statusFromAward(progressFields.String(g, "award")),
				LastActivity:  progressFields.Time(g, "last"),
			})
		}

		offset += len(page)
		total := int(gjson.Get(body, "Total").Int())
		if len(page) == 0 || offset >= total {
			break
		}
	}
	return signals, nil
}

// statusFromAward maps the highest award on a game to a completion status.
// Games without an award report no status.
func statusFromAward(kind string) *string {
	var status string
	switch strings.ToLower(kind) {
	case "mastered", "completed", "beaten-hardcore", "beaten-softcore":
		status = "completed"
	default:
		return nil
	}
	return &status
}

func (c *Client) FetchDetails(ctx context.Context, auth providers.Authorization, nativeID string) ([]detailcache.RawItem, error) {
	body, err := providers.Send(ctx, &whttp.WHTTPReq{
		URL: c.BaseURL + "/API_GetGameInfoAndUserProgress.php",
		Query: url.Values{
			"u": {auth.AccountID},
			"y": {c.key(auth)},
			"g": {nativeID},
		},
	}, c.HTTP, Name, "game progress")
	if err != nil {
		return nil, err
	}

	achievements := gjson.Get(body, "Achievements")
	if !achievements.Exists() {
		return nil, errs.Wrap(errs.ErrMalformedPayload, Name, "game progress: no Achievements", nil)
	}
	players := gjson.Get(body, "NumDistinctPlayers").Float()

	var items []detailcache.RawItem
	achievements.ForEach(func(_, a gjson.Result) bool {
		item := detailcache.RawItem{
			ID:          achievementFields.String(a, "id"),
			Name:        achievementFields.String(a, "name"),
			Description: achievementFields.String(a, "description"),
			EarnedAt:    achievementFields.Time(a, "earned_at"),
		}
		if pts := achievementFields.Int(a, "points"); pts != nil {
			item.Points = *pts
		}
		if awarded := achievementFields.Float(a, "awarded"); awarded != nil && players > 0 {
			rarity := *awarded / players * 100
			item.Rarity = &rarity
		}
		items = append(items, item)
		return true
	})
	return items, nil
}

func (c *Client) SearchSystem(ctx context.Context, system string) ([]catalog.Candidate, error) {
	body, err := providers.Send(ctx, &whttp.WHTTPReq{
		URL: c.BaseURL + "/API_GetGameList.php",
		Query: url.Values{
			"i": {system},
			"y": {c.APIKey},
			"f": {"1"},
		},
	}, c.HTTP, Name, "game list")
	if err != nil {
		return nil, err
	}

	parsed := gjson.Parse(body)
	if !parsed.IsArray() {
		return nil, errs.Wrap(errs.ErrMalformedPayload, Name, "game list: expected an array", nil)
	}
	var out []catalog.Candidate
	parsed.ForEach(func(_, g gjson.Result) bool {
		out = append(out, catalog.Candidate{
			NativeID: progressFields.String(g, "id"),
			Title:    progressFields.String(g, "title"),
		})
		return true
	})
	return out, nil
}

func (c *Client) key(auth providers.Authorization) string {
	if auth.Token != "" {
		return auth.Token
	}
	return c.APIKey
}
