// Package config loads the jobradar configuration once at startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"github.com/spigell/jobradar/internal/feed"
	"github.com/spigell/jobradar/internal/posting"
	"github.com/spigell/jobradar/internal/scoring"
	"github.com/spigell/jobradar/internal/secrets"
	"github.com/spigell/jobradar/internal/storage"
)

const (
	// App is the binary name and the default config file name.
	App = "jobradar"

	SourceTypeFile = "file"
	SourceTypeHTTP = "http"
)

type Config struct {
	Database      DatabaseConfig      `mapstructure:"database"`
	Scoring       ScoringConfig       `mapstructure:"scoring"`
	AI            AIConfig            `mapstructure:"ai"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Ingest        IngestConfig        `mapstructure:"ingest"`
	Schedule      ScheduleConfig      `mapstructure:"schedule"`
	Server        ServerConfig        `mapstructure:"server"`

	// ProfileFile points to a YAML profile. It replaces the inline profile.
	ProfileFile string          `mapstructure:"profile_file"`
	Profile     scoring.Profile `mapstructure:"profile"`
}

type DatabaseConfig struct {
	Driver      string        `mapstructure:"driver"`
	Path        string        `mapstructure:"path"`
	DSN         string        `mapstructure:"dsn"`
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
}

// StorageOptions converts the section for storage.Open.
func (d DatabaseConfig) StorageOptions() storage.Options {
	return storage.Options{Driver: d.Driver, Path: d.Path, DSN: d.DSN, BusyTimeout: d.BusyTimeout}
}

type ScoringConfig struct {
	Engine                string         `mapstructure:"engine"`
	MinKeywordScoreForAI  float64        `mapstructure:"min_keyword_score_for_ai"`
	Weights               ScoringWeights `mapstructure:"weights"`
	NotificationThreshold float64        `mapstructure:"notification_threshold"`
}

type ScoringWeights struct {
	AI      float64 `mapstructure:"ai"`
	Keyword float64 `mapstructure:"keyword"`
}

// Options converts the section for the scoring orchestrator.
func (s ScoringConfig) Options() (scoring.Options, error) {
	engine, err := scoring.ParseEngine(s.Engine)
	if err != nil {
		return scoring.Options{}, err
	}
	return scoring.Options{
		Engine:          engine,
		MinKeywordForAI: s.MinKeywordScoreForAI,
		AIWeight:        s.Weights.AI,
		KeywordWeight:   s.Weights.Keyword,
	}, nil
}

type AIConfig struct {
	Provider string       `mapstructure:"provider"`
	Gemini   GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	APIKeyFile   string        `mapstructure:"api_key_file"`
	Model        string        `mapstructure:"model"`
	MaxRetries   int           `mapstructure:"max_retries"`
	MaxLogLength int           `mapstructure:"max_log_length"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type NotificationsConfig struct {
	Discord DiscordConfig `mapstructure:"discord"`
	Email   EmailConfig   `mapstructure:"email"`
}

type DiscordConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	WebhookURL     string   `mapstructure:"webhook_url"`
	WebhookURLFile string   `mapstructure:"webhook_url_file"`
	MinScore       *float64 `mapstructure:"min_score"`
	CallsPerMinute int      `mapstructure:"calls_per_minute"`
}

type EmailConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	SMTPHost     string   `mapstructure:"smtp_host"`
	SMTPPort     int      `mapstructure:"smtp_port"`
	Username     string   `mapstructure:"smtp_username"`
	Password     string   `mapstructure:"smtp_password"`
	PasswordFile string   `mapstructure:"smtp_password_file"`
	From         string   `mapstructure:"from_address"`
	To           string   `mapstructure:"to_address"`
	MinScore     *float64 `mapstructure:"min_score"`
}

type IngestConfig struct {
	Sources     []SourceConfig        `mapstructure:"sources"`
	QueryGroups map[string]QueryGroup `mapstructure:"query_groups"`
	// Queries is the flat legacy list. It is used only without query groups
	// and lands in the priority group.
	Queries           []QuerySpec `mapstructure:"queries"`
	ExcludedTitles    []string    `mapstructure:"excluded_titles"`
	ExcludedCompanies []string    `mapstructure:"excluded_companies"`
	ExcludeFile       string      `mapstructure:"exclude_file"`
}

type QueryGroup struct {
	Queries []QuerySpec `mapstructure:"queries"`
}

type QuerySpec struct {
	Text      string   `mapstructure:"text"`
	Locations []string `mapstructure:"locations"`
}

type SourceConfig struct {
	Name           string `mapstructure:"name"`
	Type           string `mapstructure:"type"`
	Enabled        bool   `mapstructure:"enabled"`
	Path           string `mapstructure:"path"`
	URL            string `mapstructure:"url"`
	APIKey         string `mapstructure:"api_key"`
	APIKeyFile     string `mapstructure:"api_key_file"`
	APIKeyEnv      string `mapstructure:"api_key_env"`
	APIKeyHeader   string `mapstructure:"api_key_header"`
	MaxPages       int    `mapstructure:"max_pages"`
	PerPage        int    `mapstructure:"per_page"`
	CallsPerMinute int    `mapstructure:"calls_per_minute"`
}

type ScheduleConfig struct {
	Cron       string `mapstructure:"cron"`
	Timezone   string `mapstructure:"timezone"`
	RunOnStart bool   `mapstructure:"run_on_start"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/jobradar.db")
	v.SetDefault("database.busy_timeout", 30*time.Second)

	v.SetDefault("scoring.engine", "hybrid")
	v.SetDefault("scoring.min_keyword_score_for_ai", 0.2)
	v.SetDefault("scoring.weights.ai", 0.7)
	v.SetDefault("scoring.weights.keyword", 0.3)
	v.SetDefault("scoring.notification_threshold", 0.5)

	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	v.SetDefault("ai.gemini.max_retries", 3)
	v.SetDefault("ai.gemini.max_log_length", 300)
	v.SetDefault("ai.gemini.timeout", 60*time.Second)

	v.SetDefault("notifications.discord.calls_per_minute", 30)
	v.SetDefault("notifications.email.smtp_host", "smtp.gmail.com")
	v.SetDefault("notifications.email.smtp_port", 587)

	v.SetDefault("schedule.cron", "0 8,20 * * *")
	v.SetDefault("schedule.run_on_start", true)

	v.SetDefault("server.addr", ":8080")
}

// Load unmarshals v, resolves secrets and the profile file and validates the
// result. The returned config is not modified afterwards.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.ProfileFile != "" {
		profile, err := LoadProfile(cfg.ProfileFile)
		if err != nil {
			return nil, err
		}
		cfg.Profile = profile
	}

	if err := cfg.resolveSecrets(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) resolveSecrets() error {
	var err error

	if c.AI.Gemini.APIKey, err = secrets.LoadOptional(secrets.Source{
		Name: "gemini api key", Value: c.AI.Gemini.APIKey, File: c.AI.Gemini.APIKeyFile, Env: "GEMINI_API_KEY",
	}); err != nil {
		return err
	}

	d := &c.Notifications.Discord
	if d.WebhookURL, err = secrets.LoadOptional(secrets.Source{
		Name: "discord webhook url", Value: d.WebhookURL, File: d.WebhookURLFile, Env: "DISCORD_WEBHOOK_URL",
	}); err != nil {
		return err
	}

	e := &c.Notifications.Email
	if e.Password, err = secrets.LoadOptional(secrets.Source{
		Name: "smtp password", Value: e.Password, File: e.PasswordFile, Env: "SMTP_PASSWORD",
	}); err != nil {
		return err
	}
	e.Username = envOr(e.Username, "SMTP_USERNAME")
	e.From = envOr(e.From, "EMAIL_FROM")
	e.To = envOr(e.To, "EMAIL_TO")

	for i := range c.Ingest.Sources {
		s := &c.Ingest.Sources[i]
		if s.APIKey, err = secrets.LoadOptional(secrets.Source{
			Name: s.Name + " api key", Value: s.APIKey, File: s.APIKeyFile, Env: s.APIKeyEnv,
		}); err != nil {
			return err
		}
	}

	return nil
}

func envOr(value, env string) string {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		return v
	}
	return strings.TrimSpace(value)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch dialect, err := storage.ParseDialect(c.Database.Driver); {
	case err != nil:
		errs = append(errs, err)
	case dialect == storage.DialectPostgres && c.Database.DSN == "":
		errs = append(errs, errors.New("database.dsn is required for postgres"))
	case dialect == storage.DialectSQLite && c.Database.Path == "":
		errs = append(errs, errors.New("database.path is required for sqlite"))
	}

	if _, err := scoring.ParseEngine(c.Scoring.Engine); err != nil {
		errs = append(errs, fmt.Errorf("scoring.engine: %w", err))
	}
	checkUnit := func(key string, v float64) {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s must be within [0, 1], got %v", key, v))
		}
	}
	checkUnit("scoring.min_keyword_score_for_ai", c.Scoring.MinKeywordScoreForAI)
	checkUnit("scoring.weights.ai", c.Scoring.Weights.AI)
	checkUnit("scoring.weights.keyword", c.Scoring.Weights.Keyword)
	checkUnit("scoring.notification_threshold", c.Scoring.NotificationThreshold)
	if c.Notifications.Discord.MinScore != nil {
		checkUnit("notifications.discord.min_score", *c.Notifications.Discord.MinScore)
	}
	if c.Notifications.Email.MinScore != nil {
		checkUnit("notifications.email.min_score", *c.Notifications.Email.MinScore)
	}

	if p := c.AI.Provider; p != "" && p != "gemini" {
		errs = append(errs, fmt.Errorf("ai.provider %q is not supported", p))
	}

	seen := map[string]bool{}
	for i, s := range c.Ingest.Sources {
		switch {
		case s.Name == "":
			errs = append(errs, fmt.Errorf("ingest.sources[%d].name is required", i))
		case seen[s.Name]:
			errs = append(errs, fmt.Errorf("ingest.sources[%d]: duplicate name %q", i, s.Name))
		}
		seen[s.Name] = true

		switch s.Type {
		case SourceTypeFile:
			if s.Path == "" {
				errs = append(errs, fmt.Errorf("ingest.sources[%d].path is required for file sources", i))
			}
		case SourceTypeHTTP:
			if s.URL == "" {
				errs = append(errs, fmt.Errorf("ingest.sources[%d].url is required for http sources", i))
			}
		default:
			errs = append(errs, fmt.Errorf("ingest.sources[%d].type %q must be %q or %q", i, s.Type, SourceTypeFile, SourceTypeHTTP))
		}
	}

	if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
		errs = append(errs, fmt.Errorf("schedule.cron: %w", err))
	}

	return errors.Join(errs...)
}

// Queries expands query groups into individual searches, one per location.
// The priority group comes first, the rest by name.
func (c *Config) Queries() []feed.Query {
	groups := c.Ingest.QueryGroups
	if len(groups) == 0 && len(c.Ingest.Queries) > 0 {
		groups = map[string]QueryGroup{posting.DefaultQueryGroup: {Queries: c.Ingest.Queries}}
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if (names[i] == posting.DefaultQueryGroup) != (names[j] == posting.DefaultQueryGroup) {
			return names[i] == posting.DefaultQueryGroup
		}
		return names[i] < names[j]
	})

	var out []feed.Query
	for _, name := range names {
		for _, q := range groups[name].Queries {
			locations := q.Locations
			if len(locations) == 0 {
				locations = []string{""}
			}
			for _, loc := range locations {
				out = append(out, feed.Query{Text: q.Text, Location: loc, Group: name})
			}
		}
	}
	return out
}
