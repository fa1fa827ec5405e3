// Package config holds the persistent application configuration.
// Config files may be JSON or YAML; missing files fall back to
// defaults auto-populated from the environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/meridianlabs/meridian/internal/intake"
)

// Config is the persistent application configuration.
type Config struct {
	Models    ModelConfig     `json:"models" yaml:"models"`
	Retrieval RetrievalConfig `json:"retrieval" yaml:"retrieval"`
	Store     StoreConfig     `json:"store" yaml:"store"`
	Intake    IntakeConfig    `json:"intake" yaml:"intake"`
	Alerting  AlertingConfig  `json:"alerting" yaml:"alerting"`
	Synthesis SynthesisConfig `json:"synthesis" yaml:"synthesis"`
}

// ModelConfig holds inference provider settings.
type ModelConfig struct {
	Claude ModelSettings `json:"claude" yaml:"claude"`
	OpenAI ModelSettings `json:"openai" yaml:"openai"`
	Ollama ModelSettings `json:"ollama" yaml:"ollama"`
}

// ModelSettings for a single inference provider.
type ModelSettings struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	APIKey   string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`
	Priority int    `json:"priority" yaml:"priority"` // lower = preferred
}

// RetrievalConfig holds search service settings. Only the fact
// extraction stage receives the client built from this.
type RetrievalConfig struct {
	APIKey   string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
}

// StoreConfig selects the feature store backend.
type StoreConfig struct {
	Backend     string `json:"backend" yaml:"backend"` // "sqlite", "postgres", "memory"
	SQLitePath  string `json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty"`
	PostgresDSN string `json:"postgres_dsn,omitempty" yaml:"postgres_dsn,omitempty"`
}

// IntakeConfig lists content sources.
type IntakeConfig struct {
	RSS   []RSSFeed          `json:"rss" yaml:"rss"`
	Kafka intake.KafkaConfig `json:"kafka" yaml:"kafka"`
}

// RSSFeed names one feed to poll.
type RSSFeed struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

// AlertingConfig holds alert thresholds on the 0-100 scale.
type AlertingConfig struct {
	SignalImpact     int `json:"signal_impact" yaml:"signal_impact"`
	SignalConfidence int `json:"signal_confidence" yaml:"signal_confidence"`
	CriticalImpact   int `json:"critical_impact" yaml:"critical_impact"`
	TrajectoryDelta  int `json:"trajectory_delta" yaml:"trajectory_delta"`
}

// SynthesisConfig holds default preference minimums on the 0-1 scale.
type SynthesisConfig struct {
	MinImpact     float64 `json:"min_impact" yaml:"min_impact"`
	MinConfidence float64 `json:"min_confidence" yaml:"min_confidence"`
}

// Default returns sensible defaults.
func Default() *Config {
	return &Config{
		Models: ModelConfig{
			Claude: ModelSettings{
				Enabled:  true,
				Priority: 1,
				Model:    "claude-sonnet-4-5-20250929",
			},
			OpenAI: ModelSettings{
				Enabled:  false,
				Priority: 2,
				Model:    "gpt-5.2",
			},
			Ollama: ModelSettings{
				Enabled:  false,
				Priority: 3,
				Endpoint: "http://localhost:11434",
			},
		},
		Store: StoreConfig{
			Backend:    "sqlite",
			SQLitePath: DefaultStorePath(),
		},
		Alerting: AlertingConfig{
			SignalImpact:     75,
			SignalConfidence: 70,
			CriticalImpact:   85,
			TrajectoryDelta:  15,
		},
		Synthesis: SynthesisConfig{
			MinImpact:     0,
			MinConfidence: 0,
		},
	}
}

// Path returns the default config file location.
func Path() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".meridian", "config.json")
}

// DefaultStorePath returns the default SQLite location.
func DefaultStorePath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".meridian", "features.db")
}

// Load reads config from the given path, or from Path() when empty.
// A missing file returns defaults auto-populated from the environment.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			cfg.AutoPopulateFromEnv()
			return cfg, nil
		}
		return nil, err
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.AutoPopulateFromEnv()
	return cfg, nil
}

// Save writes config as JSON to the default location.
func (c *Config) Save() error {
	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	// Restrictive permissions, the file may hold API keys.
	return os.WriteFile(path, data, 0600)
}

// AutoPopulateFromEnv fills in keys from environment variables without
// overwriting values already set in the file.
func (c *Config) AutoPopulateFromEnv() {
	if c.Models.Claude.APIKey == "" {
		if key := firstEnv("ANTHROPIC_API_KEY", "CLAUDE_API_KEY"); key != "" {
			c.Models.Claude.APIKey = key
			c.Models.Claude.Enabled = true
		}
	}
	if c.Models.OpenAI.APIKey == "" {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			c.Models.OpenAI.APIKey = key
			c.Models.OpenAI.Enabled = true
		}
	}
	if c.Retrieval.APIKey == "" {
		if key := os.Getenv("TAVILY_API_KEY"); key != "" {
			c.Retrieval.APIKey = key
		}
	}
	if dsn := os.Getenv("MERIDIAN_POSTGRES_DSN"); dsn != "" {
		c.Store.Backend = "postgres"
		c.Store.PostgresDSN = dsn
	}
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}
