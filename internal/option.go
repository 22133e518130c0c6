package internal

import "github.com/starford/vitalplan/internal/llm"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config     *Config
	configPath string
	generator  llm.TextGenerator
	version    string
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithConfigPath sets the file the configuration was loaded from. When
// app.watch_config is on, the file is watched for log level changes.
func WithConfigPath(path string) Option {
	return func(a *application) {
		a.configPath = path
	}
}

// WithGenerator replaces the generator built from the config.
func WithGenerator(gen llm.TextGenerator) Option {
	return func(a *application) {
		a.generator = gen
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}
