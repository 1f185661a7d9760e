package psn

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
	Name           = "psn"
	DefaultBaseURL = "https://m.np.playstation.com/api/trophy/v1"
	pageSize       = 800
)

// trophyPoints are the per-grade values PlayStation uses for trophy level.
var trophyPoints = map[string]int{
	"bronze":   15,
	"silver":   30,
	"gold":     90,
	"platinum": 300,
}

var titleFields = providers.FieldMap{
	"id":       {Paths: []string{"npCommunicationId"}},
	"title":    {Paths: []string{"trophyTitleName"}},
	"platform": {Paths: []string{"trophyTitlePlatform"}},
	"earned":   {Sum: []string{"earnedTrophies.bronze", "earnedTrophies.silver", "earnedTrophies.gold", "earnedTrophies.platinum"}},
	"total":    {Sum: []string{"definedTrophies.bronze", "definedTrophies.silver", "definedTrophies.gold", "definedTrophies.platinum"}},
	"progress": {Paths: []string{"progress"}},
	"last":     {Paths: []string{"lastUpdatedDateTime", "lastUpdatedDate"}},
}

var trophyFields = providers.FieldMap{
	"id":          {Paths: []string{"trophyId"}},
	"name":        {Paths: []string{"trophyName"}},
	"description": {Paths: []string{"trophyDetail"}},
	"type":        {Paths: []string{"trophyType"}},
	"earned":      {Paths: []string{"earned"}},
	"earned_at":   {Paths: []string{"earnedDateTime"}},
	"progress":    {Paths: []string{"progressRate"}},
	"rarity":      {Paths: []string{"trophyEarnedRate"}},
}

// Client reads PlayStation trophy data. The token is the user's short-lived
// bearer token handed out by the authorizer; the account id is the numeric
// PSN account id or "me".
type Client struct {
	BaseURL string
	HTTP    *retryablehttp.Client
}

func New(client *retryablehttp.Client) *Client {
	return &Client{BaseURL: DefaultBaseURL, HTTP: client}
}

func (c *Client) Name() string { return Name }

// SystemFor always fails: PSN has no public title search.
func (c *Client) SystemFor(string) (string, bool) { return "", false }

func (c *Client) SearchSystem(_ context.Context, system string) ([]catalog.Candidate, error) {
	return nil, errs.Wrap(errs.ErrUnsupportedPlatform, Name, "title search is not available for "+system, nil)
}

func (c *Client) ListOwned(ctx context.Context, auth providers.Authorization) ([]reconcile.Signal, error) {
	if auth.Token == "" {
		return nil, errs.Wrap(errs.ErrNotAuthenticated, Name, "no access token", nil)
	}
	var signals []reconcile.Signal
	offset := 0
	for {
		body, err := providers.Send(ctx, &whttp.WHTTPReq{
			URL:     c.BaseURL + "/users/" + url.PathEscape(auth.AccountID) + "/trophyTitles",
			Query:   url.Values{"limit": {strconv.Itoa(pageSize)}, "offset": {strconv.Itoa(offset)}},
			Headers: bearer(auth),
		}, c.HTTP, Name, "trophy titles")
		if err != nil {
			return nil, err
		}

		titles := gjson.Get(body, "trophyTitles")
		if !titles.IsArray() {
			return nil, errs.Wrap(errs.ErrMalformedPayload, Name, "trophy titles: no trophyTitles", nil)
		}
		page := titles.Array()
		for _, t := range page {
			signals = append(signals, reconcile.Signal{
				Source:        Name,
				NativeID:      titleFields.String(t, "id"),
				Title:         titleFields.String(t, "title"),
				PlatformLabel: titleFields.String(t, "platform"),
				Earned:        titleFields.Int(t, "earned"),
				Total:         titleFields.Int(t, "total"),
				Status:        statusFromProgress(titleFields.Int(t, "progress")),
				LastActivity:  titleFields.Time(t, "last"),
			})
		}

		offset += len(page)
		total := int(gjson.Get(body, "totalItemCount").Int())
		if len(page) == 0 || offset >= total {
			break
		}
	}
	return signals, nil
}

func statusFromProgress(progress *int) *string {
	if progress == nil {
		return nil
	}
	status := "owned"
	switch {
	case *progress >= 100:
		status = "completed"
	case *progress > 0:
		status = "playing"
	}
	return &status
}

// FetchDetails joins the title's trophy definitions with the user's earn
// state by trophy id.
func (c *Client) FetchDetails(ctx context.Context, auth providers.Authorization, nativeID string) ([]detailcache.RawItem, error) {
	if auth.Token == "" {
		return nil, errs.Wrap(errs.ErrNotAuthenticated, Name, "no access token", nil)
	}
	defs, err := providers.Send(ctx, &whttp.WHTTPReq{
		URL:     c.BaseURL + "/npCommunicationIds/" + url.PathEscape(nativeID) + "/trophyGroups/all/trophies",
		Headers: bearer(auth),
	}, c.HTTP, Name, "trophy definitions")
	if err != nil {
		return nil, err
	}
	earned, err := providers.Send(ctx, &whttp.WHTTPReq{
		URL:     c.BaseURL + "/users/" + url.PathEscape(auth.AccountID) + "/npCommunicationIds/" + url.PathEscape(nativeID) + "/trophyGroups/all/trophies",
		Headers: bearer(auth),
	}, c.HTTP, Name, "earned trophies")
	if err != nil {
		return nil, err
	}

	state := map[string]gjson.Result{}
	gjson.Get(earned, "trophies").ForEach(func(_, t gjson.Result) bool {
		state[trophyFields.String(t, "id")] = t
		return true
	})

	var items []detailcache.RawItem
	gjson.Get(defs, "trophies").ForEach(func(_, t gjson.Result) bool {
		id := trophyFields.String(t, "id")
		item := detailcache.RawItem{
			ID:          id,
			Name:        trophyFields.String(t, "name"),
			Description: trophyFields.String(t, "description"),
			Points:      trophyPoints[trophyFields.String(t, "type")],
		}
		if s, ok := state[id]; ok {
			item.EarnedFlag = trophyFields.Bool(s, "earned")
			item.EarnedAt = trophyFields.Time(s, "earned_at")
			item.ProgressPct = trophyFields.Float(s, "progress")
			item.Rarity = trophyFields.Float(s, "rarity")
		}
		items = append(items, item)
		return true
	})
	return items, nil
}

func bearer(auth providers.Authorization) []whttp.WHTTPHeader {
	return []whttp.WHTTPHeader{{Name: "Authorization", Value: "Bearer " + auth.Token}}
}
