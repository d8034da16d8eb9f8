package config

import "time"

// Config represents the complete edgeagent configuration.
type Config struct {
	Service  ServiceConfig           `yaml:"service"`
	Requests RequestsConfig          `yaml:"requests"`
	API      APIConfig               `yaml:"api,omitempty"`
	State    StateConfig             `yaml:"state"`
	Tracing  TracingConfig           `yaml:"tracing,omitempty"`
	Modules  map[string]ModuleConfig `yaml:"modules,omitempty" validate:"dive"`

	// SourcePath is the absolute path the config was loaded from.
	SourcePath string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name" validate:"required"`
	LogLevel  string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" validate:"oneof=json text"`
}

// RequestsConfig defines dispatcher settings.
type RequestsConfig struct {
	// Timeout bounds every request handler invocation.
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// APIConfig defines HTTP transport settings.
type APIConfig struct {
	Enabled bool          `yaml:"enabled"`
	Listen  string        `yaml:"listen" validate:"required_if=Enabled true"`
	Auth    APIAuthConfig `yaml:"auth"`
}

// APIAuthConfig defines API authentication settings.
type APIAuthConfig struct {
	// APIKey is a single bearer token with full access.
	// Prefer Tokens for scoped access.
	APIKey string     `yaml:"api_key"`
	Tokens []APIToken `yaml:"tokens,omitempty" validate:"dive"`
}

// APIToken defines a bearer token and its scopes.
type APIToken struct {
	Token  string   `yaml:"token" validate:"required"`
	Scopes []string `yaml:"scopes" validate:"min=1,dive,required"`
}

// StateConfig defines state storage settings.
type StateConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// TracingConfig toggles OpenTelemetry span export to stdout.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ModuleConfig describes one module the agent can restart.
type ModuleConfig struct {
	Enabled *bool `yaml:"enabled,omitempty"`
	// RestartCommand is the argv run to restart the module; "{module}" is
	// replaced with the module name.
	RestartCommand []string `yaml:"restart_command" validate:"min=1,dive,required"`
}

// IsEnabled reports whether the module is enabled; modules default to enabled.
func (m ModuleConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "edgeagent",
			LogLevel:  "info",
			LogFormat: "json",
		},
		Requests: RequestsConfig{
			Timeout: 60 * time.Second,
		},
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8080",
		},
		State: StateConfig{
			Path: "./data/state.db",
		},
		Modules: make(map[string]ModuleConfig),
	}
}

// RestartCommands returns the restart argv of every enabled module.
func (c *Config) RestartCommands() map[string][]string {
	out := make(map[string][]string, len(c.Modules))
	for name, m := range c.Modules {
		if !m.IsEnabled() {
			continue
		}
		out[name] = m.RestartCommand
	}
	return out
}
