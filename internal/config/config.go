// Package config loads paperlens configuration from a YAML file with
// environment overrides. A .env file in the working directory is honored so
// local runs don't need exported secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration.
type Config struct {
	// DataRoot is the local extraction tree: one directory per paper.
	DataRoot string `yaml:"data_root,omitempty"`

	// ListenAddr is the REST server bind address.
	ListenAddr string `yaml:"listen_addr,omitempty"`

	// Ar5ivBaseURL is the base for building paper HTML URLs from arXiv ids.
	Ar5ivBaseURL string `yaml:"ar5iv_base_url,omitempty"`

	// Remote store settings. Empty DBPath disables the remote store.
	Remote RemoteConfig `yaml:"remote,omitempty"`

	// OpenAI settings for the summarizer. The key only ever comes from the
	// environment, never from the YAML file.
	OpenAIAPIKey string `yaml:"-"`
	OpenAIModel  string `yaml:"openai_model,omitempty"`
}

// RemoteConfig configures the figure blob store.
type RemoteConfig struct {
	DBPath    string `yaml:"db_path,omitempty"`
	BucketDir string `yaml:"bucket_dir,omitempty"`
	BaseURL   string `yaml:"base_url,omitempty"`
}

const (
	defaultListenAddr   = ":8080"
	defaultAr5ivBaseURL = "https://ar5iv.labs.arxiv.org/html/"
)

// DefaultPath returns the default config file location, honoring
// XDG_CONFIG_HOME.
func DefaultPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "paperlens", "config.yml")
}

// Load reads configuration from path. A missing file is not an error: the
// defaults plus environment are a complete configuration. Environment
// variables override file values.
func Load(path string) (*Config, error) {
	// Missing .env is fine.
	_ = godotenv.Load()

	cfg := &Config{}
	if path == "" {
		path = DefaultPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PAPERLENS_DATA_ROOT"); v != "" {
		cfg.DataRoot = v
	}
	if v := os.Getenv("PAPERLENS_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("PAPERLENS_AR5IV_BASE_URL"); v != "" {
		cfg.Ar5ivBaseURL = v
	}
	if v := os.Getenv("PAPERLENS_REMOTE_DB"); v != "" {
		cfg.Remote.DBPath = v
	}
	if v := os.Getenv("PAPERLENS_REMOTE_BUCKET"); v != "" {
		cfg.Remote.BucketDir = v
	}
	if v := os.Getenv("PAPERLENS_REMOTE_BASE_URL"); v != "" {
		cfg.Remote.BaseURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAIAPIKey = v
	}
	if v := os.Getenv("PAPERLENS_OPENAI_MODEL"); v != "" {
		cfg.OpenAIModel = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.DataRoot == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.DataRoot = filepath.Join(home, ".paperlens", "papers")
		} else {
			cfg.DataRoot = "papers"
		}
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.Ar5ivBaseURL == "" {
		cfg.Ar5ivBaseURL = defaultAr5ivBaseURL
	}
	if cfg.Remote.DBPath != "" && cfg.Remote.BucketDir == "" {
		cfg.Remote.BucketDir = filepath.Join(filepath.Dir(cfg.Remote.DBPath), "bucket")
	}
}

// HTMLURL builds the ar5iv URL for an arXiv id.
func (c *Config) HTMLURL(paperID string) string {
	return strings.TrimSuffix(c.Ar5ivBaseURL, "/") + "/" + paperID
}

// PaperDir is the extraction directory for one paper.
func (c *Config) PaperDir(paperID string) string {
	return filepath.Join(c.DataRoot, paperID)
}
