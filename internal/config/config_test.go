package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.Ar5ivBaseURL == "" || cfg.DataRoot == "" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	content := `data_root: /tmp/papers
listen_addr: ":9090"
remote:
  db_path: /tmp/figures.db
  base_url: https://figures.example.org
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataRoot != "/tmp/papers" || cfg.ListenAddr != ":9090" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Remote.DBPath != "/tmp/figures.db" {
		t.Errorf("Remote = %+v", cfg.Remote)
	}
	// Bucket dir defaults next to the DB.
	if cfg.Remote.BucketDir != "/tmp/bucket" {
		t.Errorf("BucketDir = %q", cfg.Remote.BucketDir)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(path, []byte("data_root: /from/file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PAPERLENS_DATA_ROOT", "/from/env")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataRoot != "/from/env" {
		t.Errorf("DataRoot = %q", cfg.DataRoot)
	}
	if cfg.OpenAIAPIKey != "sk-test" {
		t.Errorf("OpenAIAPIKey = %q", cfg.OpenAIAPIKey)
	}
}

func TestHTMLURL(t *testing.T) {
	cfg := &Config{Ar5ivBaseURL: "https://ar5iv.labs.arxiv.org/html/"}
	if got := cfg.HTMLURL("2401.00001"); got != "https://ar5iv.labs.arxiv.org/html/2401.00001" {
		t.Errorf("HTMLURL = %q", got)
	}
}
