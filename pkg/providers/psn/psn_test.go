package psn

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sw33tLie/lifescore/pkg/errs"
	"github.com/sw33tLie/lifescore/pkg/providers"
	"github.com/sw33tLie/lifescore/pkg/whttp"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	hc, err := whttp.NewClient(whttp.ClientOptions{})
	require.NoError(t, err)
	c := New(hc)
	c.BaseURL = srv.URL
	return c
}

var auth = providers.Authorization{AccountID: "me", Token: "tok"}

func TestListOwnedSumsTrophies(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/me/trophyTitles", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"totalItemCount":1,"trophyTitles":[{
			"npCommunicationId":"NPWR08661_00","trophyTitleName":"Bloodborne™","trophyTitlePlatform":"PS4",
			"progress":100,"lastUpdatedDateTime":"2023-03-01T10:00:00Z",
			"earnedTrophies":{"bronze":28,"silver":4,"gold":1,"platinum":1},
			"definedTrophies":{"bronze":28,"silver":4,"gold":1,"platinum":1}}]}`))
	})
	signals, err := c.ListOwned(context.Background(), auth)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	s := signals[0]
	assert.Equal(t, 34, *s.Earned)
	assert.Equal(t, 34, *s.Total)
	assert.Equal(t, "completed", *s.Status)
	assert.Equal(t, "PS4", s.PlatformLabel)
	assert.Nil(t, s.PlaytimeMinutes)
}

func TestListOwnedNeedsToken(t *testing.T) {
	_, err := New(nil).ListOwned(context.Background(), providers.Authorization{AccountID: "me"})
	assert.ErrorIs(t, err, errs.ErrNotAuthenticated)
}

func TestFetchDetailsJoinsDefinitionsAndState(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/npCommunicationIds/NPWR1/trophyGroups/all/trophies":
			w.Write([]byte(`{"trophies":[
				{"trophyId":0,"trophyName":"All Done","trophyType":"platinum"},
				{"trophyId":1,"trophyName":"Collector","trophyType":"bronze"}]}`))
		case "/users/me/npCommunicationIds/NPWR1/trophyGroups/all/trophies":
			w.Write([]byte(`{"trophies":[
				{"trophyId":0,"earned":false,"trophyEarnedRate":"3.1"},
				{"trophyId":1,"earned":false,"progressRate":100}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	items, err := c.FetchDetails(context.Background(), auth, "NPWR1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 300, items[0].Points)
	assert.Equal(t, 3.1, *items[0].Rarity)
	assert.Equal(t, 100.0, *items[1].ProgressPct)
}

func TestSearchUnsupported(t *testing.T) {
	c := New(nil)
	_, ok := c.SystemFor("ps4")
	assert.False(t, ok)
	_, err := c.SearchSystem(context.Background(), "ps4")
	assert.ErrorIs(t, err, errs.ErrUnsupportedPlatform)
}
