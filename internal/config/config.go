// Package config loads the CLI configuration for vssue.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the CLI configuration. Flags override environment
// variables, which override the config file.
type Config struct {
	// Platform selects the adapter: "github" or "gitlab".
	Platform string `yaml:"platform"`

	Owner        string `yaml:"owner"`
	Repo         string `yaml:"repo"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	BaseURL      string `yaml:"base_url"`

	Labels          []string `yaml:"labels"`
	Prefix          string   `yaml:"prefix"`
	Admins          []string `yaml:"admins"`
	PerPage         int      `yaml:"per_page"`
	Locale          string   `yaml:"locale"`
	Title           string   `yaml:"title"`
	IssueID         string   `yaml:"issue_id"`
	URL             string   `yaml:"url"`
	AutoCreateIssue bool     `yaml:"auto_create_issue"`

	// Token is a personal access token used instead of the OAuth
	// round-trip. Never written back to the config file.
	Token string `yaml:"token"`

	Logging struct {
		Level string `yaml:"level"`
		JSON  bool   `yaml:"json"`
	} `yaml:"logging"`
}

// DefaultPath returns the standard config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".vssue.yaml"
	}
	return filepath.Join(dir, "vssue", "config.yaml")
}

// Load reads the configuration from path (or the standard locations when
// path is empty) and applies environment overrides. A missing file is not
// an error; flags and environment can carry the whole configuration.
func Load(path string) (*Config, error) {
	// pick up a local .env first so its variables take part in the
	// override pass
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.Logging.Level = "info"

	candidates := []string{path}
	if path == "" {
		candidates = []string{".vssue.yaml", DefaultPath()}
	}

	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		data, err := os.ReadFile(candidate)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", candidate, err)
		}
		break
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	overrides := map[string]*string{
		"VSSUE_PLATFORM":      &cfg.Platform,
		"VSSUE_OWNER":         &cfg.Owner,
		"VSSUE_REPO":          &cfg.Repo,
		"VSSUE_CLIENT_ID":     &cfg.ClientID,
		"VSSUE_CLIENT_SECRET": &cfg.ClientSecret,
		"VSSUE_BASE_URL":      &cfg.BaseURL,
		"VSSUE_TOKEN":         &cfg.Token,
		"VSSUE_ISSUE_ID":      &cfg.IssueID,
		"VSSUE_TITLE":         &cfg.Title,
	}
	for name, target := range overrides {
		if v := os.Getenv(name); v != "" {
			*target = v
		}
	}
}

// Validate checks the fields the CLI cannot work without.
func (c *Config) Validate() error {
	switch c.Platform {
	case "github", "gitlab":
	case "":
		return fmt.Errorf("platform is required (github or gitlab)")
	default:
		return fmt.Errorf("unsupported platform %q (github or gitlab)", c.Platform)
	}
	if c.Owner == "" {
		return fmt.Errorf("owner is required")
	}
	if c.Repo == "" {
		return fmt.Errorf("repo is required")
	}
	if c.IssueID == "" && c.Title == "" {
		return fmt.Errorf("either issue_id or title is required")
	}
	return nil
}
