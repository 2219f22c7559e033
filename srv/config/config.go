package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AnthropicKey SecretString `env:"ANTHROPIC_API_KEY,required,notEmpty"`
	ReplicateKey SecretString `env:"REPLICATE_API_KEY,required,notEmpty"`
	// Password gates the web UI. Empty disables the gate.
	Password SecretString `env:"APP_PASSWORD"`

	ClaudeModel string   `env:"CLAUDE_MODEL"`
	MaxRetries  int      `env:"MAX_RETRIES" envDefault:"2"`
	TitleHints  []string `env:"TITLE_HINTS" envSeparator:"," envDefault:"story,historia"`
	// ImageRateInterval is the minimum spacing between image generation
	// calls. Zero disables pacing.
	ImageRateInterval time.Duration `env:"IMAGE_RATE_INTERVAL" envDefault:"0s"`

	ListenAddr         string `env:"LISTEN_ADDR" envDefault:":8080"`
	RateLimitPerMinute int    `env:"RATE_LIMIT_PER_MINUTE" envDefault:"30"`
	// TLSCertFile and TLSKeyFile switch the server to HTTPS. Missing files
	// are replaced with a self-signed pair.
	TLSCertFile string `env:"TLS_CERT_FILE"`
	TLSKeyFile  string `env:"TLS_KEY_FILE"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogMode  string `env:"LOG_MODE" envDefault:"production"`
}

// Load reads secretsFile in dotenv format, if it exists, and then parses
// the environment. Variables already set in the environment win.
func Load(secretsFile string) (*Config, error) {
	if secretsFile != "" {
		if err := godotenv.Load(secretsFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading secrets file %s: %w", secretsFile, err)
		}
	}
	return Parse(env.Options{})
}

// Parse builds a Config from opts. Tests pass Options.Environment to avoid
// touching the process environment.
func Parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must not be negative: %d", c.MaxRetries)
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative: %d", c.RateLimitPerMinute)
	}
	if c.ImageRateInterval < 0 {
		return fmt.Errorf("IMAGE_RATE_INTERVAL must not be negative: %s", c.ImageRateInterval)
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return errors.New("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}
	switch c.LogMode {
	case "production", "development":
	default:
		return fmt.Errorf("LOG_MODE must be production or development: %q", c.LogMode)
	}
	return nil
}

// PasswordEnabled reports whether the web UI asks for a password.
func (c *Config) PasswordEnabled() bool {
	return len(c.Password) > 0
}

func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != ""
}
