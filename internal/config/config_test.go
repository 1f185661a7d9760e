package config

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, yaml string) (*Settings, error) {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))
	return Load(v)
}

func TestDefaults(t *testing.T) {
	s, err := load(t, "")
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, s.Cache.Backend)
	assert.Equal(t, 24*time.Hour, s.Cache.TTL)
	assert.Equal(t, 0.72, s.Match.Threshold)
	assert.Equal(t, 100.0, s.Scoring.PlaytimeWeight)
	assert.Equal(t, 40, s.Scoring.StatusPoints["completed"])
	assert.Equal(t, 0, s.HTTP.RetryMax)
}

func TestOverridesAndUsers(t *testing.T) {
	s, err := load(t, `
cache:
  backend: Badger
  ttl: 6h
match:
  threshold: 0.8
scoring:
  playtime_weight: 120
  status_points:
    completed: 50
users:
  Alice:
    steam:
      account_id: "76561198000000000"
      token: abc
`)
	require.NoError(t, err)
	assert.Equal(t, BackendBadger, s.Cache.Backend)
	assert.Equal(t, 6*time.Hour, s.Cache.TTL)
	assert.Equal(t, 0.8, s.Match.Threshold)
	assert.Equal(t, 120.0, s.Scoring.PlaytimeWeight)
	assert.Equal(t, 50, s.Scoring.StatusPoints["completed"])
	assert.Equal(t, 20, s.Scoring.StatusPoints["playing"], "unlisted weights keep their defaults")
	assert.Equal(t, 150.0, s.Scoring.SecondaryWeight)

	auth, err := s.Authorizer().Authorize(context.Background(), "alice", "steam")
	require.NoError(t, err)
	assert.Equal(t, "abc", auth.Token)
}

func TestValidation(t *testing.T) {
	_, err := load(t, "cache:\n  backend: redis\n")
	assert.Error(t, err)

	_, err = load(t, "match:\n  threshold: 1.5\n")
	assert.Error(t, err)
}
