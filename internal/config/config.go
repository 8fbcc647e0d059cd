// Package config loads the destination's configuration from built-in
// defaults, an optional YAML (or JSON) file and POSTHOG_DESTINATION_*
// environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/wondertwin-ai/posthog-destination/internal/posthog"
)

// EnvPrefix is the prefix of environment overrides. Sections are separated
// by a double underscore: POSTHOG_DESTINATION_POSTHOG__API_KEY.
const EnvPrefix = "POSTHOG_DESTINATION_"

// PathEnvVar names a config file when no path is given explicitly.
const PathEnvVar = EnvPrefix + "CONFIG"

// DefaultPort is the HTTP listen port of the serve command.
const DefaultPort = 12115

// Config is the full destination configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	PostHog PostHogConfig `koanf:"posthog"`
	Logging LoggingConfig `koanf:"logging"`
}

// ServerConfig configures the inbound HTTP service.
type ServerConfig struct {
	Port         int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"min=0"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"min=0"`
	Verbose      bool          `koanf:"verbose"`
}

// PostHogConfig identifies the PostHog project and tunes outbound calls.
type PostHogConfig struct {
	APIKey   string `koanf:"api_key" validate:"required"`
	Instance string `koanf:"instance" validate:"omitempty,url"`
	// Timeout bounds each capture request; zero means no limit.
	Timeout          time.Duration `koanf:"timeout" validate:"min=0"`
	BrowserDetection bool          `koanf:"browser_detection"`
	// AllowKeyOverride lets callers pick the project with X-PostHog-Api-Key.
	AllowKeyOverride bool `koanf:"allow_key_override"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         DefaultPort,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		PostHog: PostHogConfig{
			Timeout:          10 * time.Second,
			AllowKeyOverride: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from path, or from $POSTHOG_DESTINATION_CONFIG
// when path is empty. A missing file is not an error; defaults and the
// environment still apply.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(PathEnvVar)
	}
	return LoadFrom(path)
}

// LoadFrom layers defaults, the file at path (if it exists) and the
// environment. The result is not validated.
func LoadFrom(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			// JSON is valid YAML, so one parser serves both.
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// envKey maps POSTHOG_DESTINATION_SERVER__PORT to server.port.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every section.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Settings returns the PostHog settings for outbound captures.
func (c *Config) Settings() posthog.Settings {
	return posthog.Settings{
		APIKey:   c.PostHog.APIKey,
		Instance: c.PostHog.Instance,
	}
}
