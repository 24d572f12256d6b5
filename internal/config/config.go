package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

// ErrNotConfigured is returned by clients whose required settings are
// missing. It is raised at the point of first use, not at startup.
var ErrNotConfigured = errors.New("not configured")

// Missing reports a missing configuration key.
func Missing(key string) error {
	return fmt.Errorf("%w: %s is not set", ErrNotConfigured, key)
}

// GoogleConfig holds the Calendar Gateway and Credential Provider settings.
type GoogleConfig struct {
	ClientID        string `mapstructure:"client_id"`
	ClientSecret    string `mapstructure:"client_secret"`
	CredentialsFile string `mapstructure:"credentials_file"`
	TokenFile       string `mapstructure:"token_file"`
	RedirectURL     string `mapstructure:"redirect_url"`
	CalendarID      string `mapstructure:"calendar_id"`
	DefaultLocation string `mapstructure:"default_location"`
}

// ProvidersConfig holds content provider keys and endpoints. Endpoints
// default to the public APIs and exist mostly so tests can redirect them.
type ProvidersConfig struct {
	TMDBAPIKey     string `mapstructure:"tmdb_api_key"`
	TMDBURL        string `mapstructure:"tmdb_url"`
	NinjasAPIKey   string `mapstructure:"ninjas_api_key"`
	NinjasURL      string `mapstructure:"ninjas_url"`
	ZenQuotesURL   string `mapstructure:"zenquotes_url"`
	HistoryURL     string `mapstructure:"history_url"`
	MangaDexURL    string `mapstructure:"mangadex_url"`
	AniListURL     string `mapstructure:"anilist_url"`
	WeatherAPIKey  string `mapstructure:"weather_api_key"`
	WeatherURL     string `mapstructure:"weather_url"`
	AIAPIKey       string `mapstructure:"ai_api_key"`
	AIBaseURL      string `mapstructure:"ai_base_url"`
	AIModel        string `mapstructure:"ai_model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// CalDAVConfig enables mirroring created events into a CalDAV calendar.
type CalDAVConfig struct {
	Endpoint     string `mapstructure:"endpoint"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	CalendarName string `mapstructure:"calendar_name"`
}

// Enabled reports whether the mirror has enough settings to run.
func (c CalDAVConfig) Enabled() bool {
	return c.Endpoint != "" && c.Username != "" && c.CalendarName != ""
}

// NotifyConfig holds notification dispatcher settings.
type NotifyConfig struct {
	VonageAPIKey    string       `mapstructure:"vonage_api_key"`
	VonageAPISecret string       `mapstructure:"vonage_api_secret"`
	VonageURL       string       `mapstructure:"vonage_url"`
	SenderName      string       `mapstructure:"sender_name"`
	PhoneNumber     string       `mapstructure:"phone_number"`
	TelegramToken   string       `mapstructure:"telegram_token"`
	TelegramChatID  string       `mapstructure:"telegram_chat_id"`
	PlaybackURL     string       `mapstructure:"playback_url"`
	CalDAV          CalDAVConfig `mapstructure:"caldav"`
}

// Routine runs a flow on a cron schedule.
type Routine struct {
	Name            string `mapstructure:"name"`
	Cron            string `mapstructure:"cron"`
	Flow            string `mapstructure:"flow"`
	LeadMinutes     int    `mapstructure:"lead_minutes"`
	DurationMinutes int    `mapstructure:"duration_minutes"`
}

// Config is the top-level application configuration. It is read once at
// startup and never mutated afterwards.
type Config struct {
	Listen    string          `mapstructure:"listen"`
	Timezone  string          `mapstructure:"timezone"`
	LogLevel  string          `mapstructure:"log_level"`
	Google    GoogleConfig    `mapstructure:"google"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Routines  []Routine       `mapstructure:"routines"`
}

// legacyEnv maps config keys to the environment variable names used by
// earlier deployments.
var legacyEnv = map[string]string{
	"google.client_id":            "GOOGLE_CLIENT_ID",
	"google.client_secret":        "GOOGLE_CLIENT_SECRET",
	"google.calendar_id":          "GOOGLE_CALENDAR_ID",
	"providers.tmdb_api_key":      "TMDB_API_KEY",
	"providers.ninjas_api_key":    "API_NINJAS_KEY",
	"providers.weather_api_key":   "WEATHER_API_KEY",
	"providers.ai_api_key":        "GEMINI_API_KEY",
	"notify.vonage_api_key":       "VONAGE_API_KEY",
	"notify.vonage_api_secret":    "VONAGE_API_SECRET",
	"notify.phone_number":         "USER_PHONE_NUMBER",
	"notify.telegram_token":       "TELEGRAM_BOT_TOKEN",
	"notify.telegram_chat_id":     "TELEGRAM_CHAT_ID",
	"notify.playback_url":         "PLAYBACK_URL",
	"notify.caldav.endpoint":      "CALDAV_ENDPOINT",
	"notify.caldav.username":      "CALDAV_USERNAME",
	"notify.caldav.password":      "CALDAV_PASSWORD",
	"notify.caldav.calendar_name": "CALDAV_CALENDAR_NAME",
	"log_level":                   "LOG_LEVEL",
	"timezone":                    "PRIMARY_TIMEZONE",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", "127.0.0.1:7000")
	v.SetDefault("timezone", "Europe/Amsterdam")
	v.SetDefault("log_level", "info")

	v.SetDefault("google.client_id", "")
	v.SetDefault("google.client_secret", "")
	v.SetDefault("google.credentials_file", "credentials.json")
	v.SetDefault("google.token_file", "token.json")
	v.SetDefault("google.redirect_url", "urn:ietf:wg:oauth:2.0:oob")
	v.SetDefault("google.calendar_id", "primary")
	v.SetDefault("google.default_location", "Online")

	v.SetDefault("providers.tmdb_api_key", "")
	v.SetDefault("providers.tmdb_url", "https://api.themoviedb.org/3")
	v.SetDefault("providers.ninjas_api_key", "")
	v.SetDefault("providers.ninjas_url", "https://api.api-ninjas.com/v1")
	v.SetDefault("providers.zenquotes_url", "https://zenquotes.io/api")
	v.SetDefault("providers.history_url", "https://history.muffinlabs.com")
	v.SetDefault("providers.mangadex_url", "https://api.mangadex.org")
	v.SetDefault("providers.anilist_url", "https://graphql.anilist.co")
	v.SetDefault("providers.weather_api_key", "")
	v.SetDefault("providers.weather_url", "https://api.openweathermap.org/data/2.5")
	v.SetDefault("providers.ai_api_key", "")
	v.SetDefault("providers.ai_base_url", "https://generativelanguage.googleapis.com/v1beta/openai")
	v.SetDefault("providers.ai_model", "gemini-2.0-flash")
	v.SetDefault("providers.timeout_seconds", 15)

	v.SetDefault("notify.vonage_api_key", "")
	v.SetDefault("notify.vonage_api_secret", "")
	v.SetDefault("notify.vonage_url", "https://rest.nexmo.com")
	v.SetDefault("notify.sender_name", "EventNotifier")
	v.SetDefault("notify.phone_number", "")
	v.SetDefault("notify.telegram_token", "")
	v.SetDefault("notify.telegram_chat_id", "")
	v.SetDefault("notify.playback_url", "http://127.0.0.1:8000")
	v.SetDefault("notify.caldav.endpoint", "")
	v.SetDefault("notify.caldav.username", "")
	v.SetDefault("notify.caldav.password", "")
	v.SetDefault("notify.caldav.calendar_name", "")
}

// Load reads configuration from defaults, the optional YAML file at path and
// the environment, in increasing order of precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Normalize()

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid timezone '%s': %w", cfg.Timezone, err)
	}

	return &cfg, nil
}

// Normalize fills zero values with defaults so hand-built configs behave
// like loaded ones.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:7000"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Google.CalendarID == "" {
		c.Google.CalendarID = "primary"
	}
	if c.Google.TokenFile == "" {
		c.Google.TokenFile = "token.json"
	}
	if c.Providers.TimeoutSeconds <= 0 {
		c.Providers.TimeoutSeconds = 15
	}
	if c.Notify.SenderName == "" {
		c.Notify.SenderName = "EventNotifier"
	}
	for i := range c.Routines {
		if c.Routines[i].DurationMinutes <= 0 {
			c.Routines[i].DurationMinutes = 30
		}
	}
}

// Location returns the configured time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Timeout is the outbound HTTP timeout for provider and dispatcher calls.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Providers.TimeoutSeconds) * time.Second
}
