// Package config provides configuration management for the command-line tools.
//
// Values come from, in increasing priority: built-in defaults, an optional
// YAML file (string values may reference ${VAR} or ${VAR:-default}), and
// environment variables. A .env file in the working directory is loaded into
// the environment first.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"secondpilot/internal/core"
	"secondpilot/internal/httpclient"
)

// DefaultPath is read by Load when no path is given. A missing file is not an error.
const DefaultPath = "config.yaml"

// Config holds the application configuration
type Config struct {
	// Credential is the long-lived personal token exchanged for session tokens
	Credential string           `yaml:"credential"`
	Token      TokenConfig      `yaml:"token"`
	Completion CompletionConfig `yaml:"completion"`
	Request    RequestConfig    `yaml:"request"`
	HTTP       HTTPConfig       `yaml:"http"`
	Logging    LogConfig        `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// TokenConfig configures the token exchange endpoint
type TokenConfig struct {
	URL        string `yaml:"url"`
	UserAgent  string `yaml:"user_agent"`
	AuthScheme string `yaml:"auth_scheme"`
}

// CompletionConfig configures the completion endpoint
type CompletionConfig struct {
	URL       string `yaml:"url"`
	UserAgent string `yaml:"user_agent"`
}

// RequestConfig holds the default completion parameters
type RequestConfig struct {
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	TopP        int     `yaml:"top_p"`
	N           int     `yaml:"n"`
	Stream      bool    `yaml:"stream"`
	Intent      bool    `yaml:"intent"`
}

// HTTPConfig holds HTTP client timeouts in seconds. Zero Timeout means no limit.
type HTTPConfig struct {
	Timeout               int `yaml:"timeout"`
	ResponseHeaderTimeout int `yaml:"response_header_timeout"`
}

// LogConfig selects the log format (auto, pretty, json) and level
type LogConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// MetricsConfig holds the optional node-exporter textfile destination
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// Defaults returns the configuration used when nothing else is set.
// Empty URL and user-agent fields mean the clients' built-in defaults.
func Defaults() *Config {
	return &Config{
		Token: TokenConfig{AuthScheme: "Bearer"},
		Request: RequestConfig{
			Model:       core.DefaultModel,
			Temperature: core.DefaultTemperature,
			TopP:        core.DefaultTopP,
			N:           core.DefaultN,
		},
		HTTP: HTTPConfig{
			Timeout:               0,
			ResponseHeaderTimeout: 600,
		},
		Logging: LogConfig{Format: "auto", Level: "info"},
	}
}

// Load builds the configuration. An empty path reads DefaultPath if it exists;
// an explicit path must exist.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // optional

	cfg := Defaults()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decodeYAML(data, cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeYAML expands environment placeholders in every scalar before decoding,
// so placeholders work for numbers and booleans too.
func decodeYAML(data []byte, cfg *Config) error {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return err
	}
	if root.Kind == 0 {
		return nil // empty file
	}
	expandNode(&root)
	return root.Decode(cfg)
}

func expandNode(n *yaml.Node) {
	if n.Kind == yaml.ScalarNode {
		expanded := expandString(n.Value)
		if expanded != n.Value {
			n.Value = expanded
			// the parser tagged the placeholder as a string; resolve the new text
			if n.Style == 0 {
				n.Tag = ""
			}
		}
		return
	}
	for _, c := range n.Content {
		expandNode(c)
	}
}

var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandString replaces ${VAR} and ${VAR:-default}. A variable that is unset
// or empty takes the default; without a default the placeholder is kept.
func expandString(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		sub := placeholder.FindStringSubmatch(m)
		if v := os.Getenv(sub[1]); v != "" {
			return v
		}
		if sub[2] != "" {
			return sub[3]
		}
		return m
	})
}

// applyEnvOverrides lets environment variables win over the file.
func applyEnvOverrides(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		v := os.Getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = n
		return nil
	}

	setString("GITHUB_TOKEN", &cfg.Credential)
	setString("SECONDPILOT_TOKEN_URL", &cfg.Token.URL)
	setString("SECONDPILOT_COMPLETION_URL", &cfg.Completion.URL)
	setString("SECONDPILOT_MODEL", &cfg.Request.Model)
	setString("LOG_FORMAT", &cfg.Logging.Format)
	setString("LOG_LEVEL", &cfg.Logging.Level)
	setString("METRICS_TEXTFILE", &cfg.Metrics.Textfile)

	if err := setInt("HTTP_TIMEOUT", &cfg.HTTP.Timeout); err != nil {
		return err
	}
	return setInt("HTTP_RESPONSE_HEADER_TIMEOUT", &cfg.HTTP.ResponseHeaderTimeout)
}

// Validate reports configuration the clients cannot work with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Credential) == "" {
		errs = append(errs, errors.New("credential is required (set GITHUB_TOKEN or credential in the config file)"))
	}
	if c.Request.N < 1 {
		errs = append(errs, fmt.Errorf("request.n must be at least 1, got %d", c.Request.N))
	}
	if c.HTTP.Timeout < 0 || c.HTTP.ResponseHeaderTimeout < 0 {
		errs = append(errs, errors.New("http timeouts must not be negative"))
	}
	switch c.Logging.Format {
	case "", "auto", "pretty", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown logging.format %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// RequestOptions returns the request defaults as core.RequestOptions.
func (c *Config) RequestOptions() core.RequestOptions {
	r := c.Request
	return core.RequestOptions{
		Stream:      core.Ptr(r.Stream),
		Intent:      core.Ptr(r.Intent),
		Model:       core.Ptr(r.Model),
		Temperature: core.Ptr(r.Temperature),
		TopP:        core.Ptr(r.TopP),
		N:           core.Ptr(r.N),
	}
}

// ClientConfig returns the HTTP client settings with the configured timeouts.
func (h HTTPConfig) ClientConfig() *httpclient.ClientConfig {
	c := httpclient.DefaultConfig()
	c.Timeout = time.Duration(h.Timeout) * time.Second
	c.ResponseHeaderTimeout = time.Duration(h.ResponseHeaderTimeout) * time.Second
	return &c
}
