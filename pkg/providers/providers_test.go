package providers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/sw33tLie/lifescore/pkg/catalog"
	"github.com/sw33tLie/lifescore/pkg/detailcache"
	"github.com/sw33tLie/lifescore/pkg/errs"
	"github.com/sw33tLie/lifescore/pkg/reconcile"
	"github.com/sw33tLie/lifescore/pkg/whttp"
)

func TestFieldMapFallbacksAndSums(t *testing.T) {
	m := FieldMap{
		"earned": {Paths: []string{"NumAwarded", "NumAchieved"}},
		"total":  {Sum: []string{"defined.bronze", "defined.gold"}},
		"when":   {Paths: []string{"date"}},
		"flag":   {Paths: []string{"achieved"}},
		"rate":   {Paths: []string{"rate"}},
	}

	old := gjson.Parse(`{"NumAchieved": 7, "defined": {"bronze": 3}, "date": "2024-01-05 18:22:01", "achieved": 1, "rate": "12.5"}`)
	require.NotNil(t, m.Int(old, "earned"))
	assert.Equal(t, 7, *m.Int(old, "earned"))
	assert.Equal(t, 3, *m.Int(old, "total"))
	assert.Equal(t, time.Date(2024, 1, 5, 18, 22, 1, 0, time.UTC), *m.Time(old, "when"))
	assert.True(t, *m.Bool(old, "flag"))
	assert.Equal(t, 12.5, *m.Float(old, "rate"))

	cur := gjson.Parse(`{"NumAwarded": 9, "NumAchieved": 7, "date": 0, "achieved": null}`)
	assert.Equal(t, 9, *m.Int(cur, "earned"), "first present path wins")
	assert.Nil(t, m.Int(cur, "total"), "no summed field present means not reported")
	assert.Nil(t, m.Time(cur, "when"), "zero unix time means never")
	assert.Nil(t, m.Bool(cur, "flag"))
}

func TestCheckResponse(t *testing.T) {
	_, err := CheckResponse(&whttp.WHTTPRes{StatusCode: 401}, "steam", "list")
	assert.ErrorIs(t, err, errs.ErrNotAuthenticated)

	_, err = CheckResponse(&whttp.WHTTPRes{StatusCode: 503}, "steam", "list")
	assert.ErrorIs(t, err, errs.ErrUpstreamUnavailable)

	_, err = CheckResponse(&whttp.WHTTPRes{StatusCode: 200, BodyString: "<html>"}, "steam", "list")
	assert.ErrorIs(t, err, errs.ErrMalformedPayload)

	body, err := CheckResponse(&whttp.WHTTPRes{StatusCode: 200, BodyString: ` {"ok": true} `}, "steam", "list")
	require.NoError(t, err)
	assert.Equal(t, `{"ok": true}`, body)
}

func TestConfigAuthorizer(t *testing.T) {
	a := ConfigAuthorizer{Accounts: map[string]map[string]Account{
		"alice": {"steam": {AccountID: "7656119"}},
	}}
	auth, err := a.Authorize(context.Background(), "alice", "steam")
	require.NoError(t, err)
	assert.Equal(t, "7656119", auth.AccountID)

	_, err = a.Authorize(context.Background(), "alice", "psn")
	assert.ErrorIs(t, err, errs.ErrMissingCredential)
	assert.True(t, errs.IsFatal(err))
}

type stubProvider struct {
	name  string
	gotID string
	items []detailcache.RawItem
}

func (s *stubProvider) Name() string { return s.name }
func (s *stubProvider) ListOwned(context.Context, Authorization) ([]reconcile.Signal, error) {
	return nil, nil
}
func (s *stubProvider) FetchDetails(_ context.Context, _ Authorization, nativeID string) ([]detailcache.RawItem, error) {
	s.gotID = nativeID
	return s.items, nil
}
func (s *stubProvider) SystemFor(string) (string, bool) { return "", false }
func (s *stubProvider) SearchSystem(context.Context, string) ([]catalog.Candidate, error) {
	return nil, nil
}

type stubMappings []catalog.Mapping

func (m stubMappings) ListMappings(context.Context, int64) ([]catalog.Mapping, error) { return m, nil }

func TestDetailFetcherFollowsPreferenceAndLinks(t *testing.T) {
	steam := &stubProvider{name: "steam", items: []detailcache.RawItem{{ID: "a"}}}
	psn := &stubProvider{name: "psn", items: []detailcache.RawItem{{ID: "b"}}}
	f := &DetailFetcher{
		Mappings: stubMappings{
			{ReleaseID: 1, Source: "psn", NativeID: "NPWR1"},
			{ReleaseID: 1, Source: "steam", NativeID: "620"},
		},
		Providers:  map[string]Provider{"steam": steam, "psn": psn},
		Authorizer: ConfigAuthorizer{Accounts: map[string]map[string]Account{"u": {"steam": {AccountID: "1"}, "psn": {AccountID: "me", Token: "t"}}}},
		Preference: []string{"steam"},
	}
	items, err := f.FetchDetails(context.Background(), "u", 1)
	require.NoError(t, err)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, "620", steam.gotID)

	// Without a steam link the psn mapping is used.
	f.Authorizer = ConfigAuthorizer{Accounts: map[string]map[string]Account{"u": {"psn": {AccountID: "me", Token: "t"}}}}
	items, err = f.FetchDetails(context.Background(), "u", 1)
	require.NoError(t, err)
	assert.Equal(t, "b", items[0].ID)

	f.Authorizer = ConfigAuthorizer{}
	_, err = f.FetchDetails(context.Background(), "u", 1)
	assert.ErrorIs(t, err, errs.ErrMissingCredential)

	f.Mappings = stubMappings{}
	_, err = f.FetchDetails(context.Background(), "u", 1)
	assert.ErrorIs(t, err, errs.ErrNoSearchResults)
}
