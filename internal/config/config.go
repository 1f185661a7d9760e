// Package config turns viper state into typed settings for the commands and
// the API server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sw33tLie/lifescore/pkg/catalog"
	"github.com/sw33tLie/lifescore/pkg/detailcache"
	"github.com/sw33tLie/lifescore/pkg/providers"
	"github.com/sw33tLie/lifescore/pkg/scoring"
)

const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

type DBSettings struct {
	Path string `mapstructure:"path"`
}

type CacheSettings struct {
	Backend string        `mapstructure:"backend"`
	Dir     string        `mapstructure:"dir"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type MatchSettings struct {
	Threshold float64 `mapstructure:"threshold"`
}

type ProviderKeys struct {
	APIKey string `mapstructure:"api_key"`
}

type ProviderSettings struct {
	Steam             ProviderKeys `mapstructure:"steam"`
	RetroAchievements ProviderKeys `mapstructure:"retroachievements"`
	// Preference orders sources when more than one can serve details.
	Preference []string `mapstructure:"preference"`
}

type HTTPSettings struct {
	RetryMax int           `mapstructure:"retry_max"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Proxy    string        `mapstructure:"proxy"`
}

type ServerSettings struct {
	Listen    string        `mapstructure:"listen"`
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// Settings is the typed view of ~/.lifescore.yaml.
type Settings struct {
	DB        DBSettings       `mapstructure:"db"`
	Cache     CacheSettings    `mapstructure:"cache"`
	Match     MatchSettings    `mapstructure:"match"`
	Scoring   scoring.Weights  `mapstructure:"scoring"`
	Providers ProviderSettings `mapstructure:"providers"`
	HTTP      HTTPSettings     `mapstructure:"http"`
	Server    ServerSettings   `mapstructure:"server"`

	// Users maps user id -> source -> linked account. Viper lowercases
	// keys, so user ids from configuration are lowercase.
	Users map[string]map[string]providers.Account `mapstructure:"users"`
}

// SetDefaults registers every default on v. They also end up in the config
// file written on first run.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("db.path", "")
	v.SetDefault("cache.backend", BackendSQLite)
	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.ttl", detailcache.DefaultTTL)
	v.SetDefault("match.threshold", catalog.DefaultThreshold)
	v.SetDefault("providers.steam.api_key", "")
	v.SetDefault("providers.retroachievements.api_key", "")
	v.SetDefault("providers.preference", []string{"retroachievements", "steam", "psn"})
	v.SetDefault("http.retry_max", 0)
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.proxy", "")
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.token_ttl", 24*time.Hour)
}

// Load reads v into Settings. Scoring weights start from the shipped
// defaults, so a config file only needs the values it changes.
func Load(v *viper.Viper) (*Settings, error) {
	s := &Settings{Scoring: scoring.DefaultWeights()}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("could not parse configuration: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) validate() error {
	s.Cache.Backend = strings.ToLower(strings.TrimSpace(s.Cache.Backend))
	switch s.Cache.Backend {
	case "":
		s.Cache.Backend = BackendSQLite
	case BackendSQLite, BackendBadger:
	default:
		return fmt.Errorf("cache.backend must be %q or %q, got %q", BackendSQLite, BackendBadger, s.Cache.Backend)
	}
	if s.Match.Threshold <= 0 || s.Match.Threshold > 1 {
		return fmt.Errorf("match.threshold must be in (0, 1], got %v", s.Match.Threshold)
	}
	if s.Cache.TTL <= 0 {
		s.Cache.TTL = detailcache.DefaultTTL
	}
	if s.Scoring.MultiplierMin > s.Scoring.MultiplierMax {
		return fmt.Errorf("scoring.multiplier_min (%v) is above multiplier_max (%v)", s.Scoring.MultiplierMin, s.Scoring.MultiplierMax)
	}
	return nil
}

// Authorizer exposes the linked accounts to the sync pipeline.
func (s *Settings) Authorizer() providers.ConfigAuthorizer {
	return providers.ConfigAuthorizer{Accounts: s.Users}
}
