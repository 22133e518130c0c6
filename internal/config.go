package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/vitalplan/internal/api"
	"github.com/starford/vitalplan/internal/llm"
	"github.com/starford/vitalplan/internal/planservice"
	"github.com/starford/vitalplan/internal/planstore"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Database  DatabaseConfig    `yaml:"database"`
	Auth      AuthConfig        `yaml:"auth"`
	Generator GeneratorConfig   `yaml:"generator"`
	Archive   ArchiveConfig     `yaml:"archive"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Generator.Validate(); err != nil {
		return err
	}
	return c.Archive.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
	// WatchConfig re-reads the config file on change and applies the new
	// log level.
	WatchConfig bool `yaml:"watch_config"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// DatabaseConfig selects the plan store. For sqlite3 the DSN is a file
// path; for pgx it is a PostgreSQL connection string.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// Validate validates the database configuration.
func (c *DatabaseConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(planstore.DriverSQLite, planstore.DriverPostgres)),
		validation.Field(&c.DSN, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
//   - "jwt": Bearer HS256 JWT whose sub claim is the owner id; JWTSecret must be non-empty.
type AuthConfig struct {
	Mode      string `yaml:"mode"`
	Token     string `yaml:"token"`
	JWTSecret string `yaml:"jwt_secret"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = api.AuthDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(api.AuthDisabled, api.AuthToken, api.AuthJWT)),
	); err != nil {
		return err
	}
	if c.Mode == api.AuthToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", api.AuthToken)
	}
	if c.Mode == api.AuthJWT && c.JWTSecret == "" {
		return fmt.Errorf("auth: mode is %q but jwt_secret is empty", api.AuthJWT)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode != api.AuthDisabled
}

// API returns the middleware settings.
func (c *AuthConfig) API() api.AuthConfig {
	return api.AuthConfig{Mode: c.Mode, Token: c.Token, JWTSecret: c.JWTSecret}
}

// GeneratorConfig selects and tunes the text generation service.
type GeneratorConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float32       `yaml:"temperature"`
}

// Validate validates the generator configuration.
func (c *GeneratorConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required, validation.In(llm.ProviderGemini, llm.ProviderGroq)),
		validation.Field(&c.APIKey, validation.Required),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.Temperature, validation.Min(0.0), validation.Max(2.0)),
	)
}

// LLM returns the client options.
func (c *GeneratorConfig) LLM() llm.Options {
	return llm.Options{
		Provider:    c.Provider,
		Model:       c.Model,
		APIKey:      c.APIKey,
		BaseURL:     c.BaseURL,
		Temperature: c.Temperature,
		Timeout:     c.Timeout,
	}
}

// ArchiveConfig holds the response archive settings.
type ArchiveConfig struct {
	Path         string `yaml:"path"`
	KeepAccepted bool   `yaml:"keep_accepted"`
	MaxPerOwner  int    `yaml:"max_per_owner"`
}

// Validate validates the archive configuration.
func (c *ArchiveConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.MaxPerOwner, validation.Min(0)),
	)
}

// ServiceOptions returns the pipeline options derived from the config.
func (c *Config) ServiceOptions() planservice.Options {
	return planservice.Options{
		Timeout:      c.Generator.Timeout,
		KeepAccepted: c.Archive.KeepAccepted,
		MaxArchived:  c.Archive.MaxPerOwner,
	}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Database: DatabaseConfig{
			Driver: planstore.DriverSQLite,
			DSN:    "./vitalplan.db",
		},
		Auth: AuthConfig{
			Mode: api.AuthDisabled,
		},
		Generator: GeneratorConfig{
			Provider:    llm.ProviderGemini,
			Timeout:     60 * time.Second,
			Temperature: 0.7,
		},
		Archive: ArchiveConfig{
			Path:        "./archive",
			MaxPerOwner: 20,
		},
	}
}
