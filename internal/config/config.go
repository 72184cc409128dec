package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/p-blackswan/channel-sweeper/internal/settings"
)

const (
	PlatformDiscord = "discord"
	PlatformSlack   = "slack"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"production"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn error"`
	HTTPPort    int    `envconfig:"HTTP_PORT" default:"8080" validate:"min=1,max=65535"`
	OpsAddr     string `envconfig:"OPS_ADDR" default:":9090"` // empty disables /metrics and /readyz

	// Platform
	Platform      string `envconfig:"PLATFORM" default:"discord" validate:"oneof=discord slack"`
	DiscordToken  string `envconfig:"DISCORD_TOKEN" validate:"required_if=Platform discord"`
	SlackBotToken string `envconfig:"SLACK_BOT_TOKEN" validate:"required_if=Platform slack"`
	SlackAppToken string `envconfig:"SLACK_APP_TOKEN" validate:"required_if=Platform slack"` // xapp- token for Socket Mode

	// Sweeping
	SweepProfile           string        `envconfig:"SWEEP_PROFILE" default:"history" validate:"oneof=history images"`
	DefaultIntervalMinutes int           `envconfig:"DEFAULT_INTERVAL_MINUTES" default:"0" validate:"min=0"` // 0 uses the profile default
	DefaultCutoffMinutes   int           `envconfig:"DEFAULT_CUTOFF_MINUTES" default:"0" validate:"min=0"`
	SweepTimeout           time.Duration `envconfig:"SWEEP_TIMEOUT" default:"5m"`
	ChannelOverridesFile   string        `envconfig:"CHANNEL_OVERRIDES_FILE"`

	// Commands
	CommandPrefix    string `envconfig:"COMMAND_PREFIX" default:"!" validate:"required"`
	Locale           string `envconfig:"LOCALE" default:"ja" validate:"oneof=ja en"`
	CommandRateLimit int    `envconfig:"COMMAND_RATE_LIMIT" default:"10" validate:"min=0"` // per user per minute, 0 disables
}

var validate = validator.New()

// Development reports whether console logging should be used.
func (c *Config) Development() bool {
	return strings.EqualFold(c.Environment, "development")
}

// Defaults applies the configured minute overrides on top of the profile defaults.
func (c *Config) Defaults(profile settings.Defaults) settings.Defaults {
	if c.DefaultIntervalMinutes > 0 {
		profile.Interval = time.Duration(c.DefaultIntervalMinutes) * time.Minute
	}
	if c.DefaultCutoffMinutes > 0 {
		profile.Cutoff = time.Duration(c.DefaultCutoffMinutes) * time.Minute
	}
	return profile
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	return LoadWithPrefix("")
}

// LoadWithPrefix reads configuration with a prefix.
func LoadWithPrefix(prefix string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotEnv loads variables from the given files (".env" when none) into
// the process environment without overriding existing values. Missing
// files are not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

type overridesFile struct {
	Channels []settings.Override `yaml:"channels"`
}

// Overrides reads CHANNEL_OVERRIDES_FILE. It returns nil when unset.
func (c *Config) Overrides() ([]settings.Override, error) {
	if c.ChannelOverridesFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.ChannelOverridesFile)
	if err != nil {
		return nil, fmt.Errorf("reading channel overrides: %w", err)
	}
	return ParseOverrides(data)
}

// ParseOverrides decodes a channel overrides document:
//
//	channels:
//	  - channel: "123456789"
//	    interval_minutes: 30
//	    cutoff_minutes: 1440
func ParseOverrides(data []byte) ([]settings.Override, error) {
	var f overridesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing channel overrides: %w", err)
	}
	for i, o := range f.Channels {
		if strings.TrimSpace(o.ChannelID) == "" {
			return nil, fmt.Errorf("channel override %d: channel is required", i)
		}
	}
	return f.Channels, nil
}
