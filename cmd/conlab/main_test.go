package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/conlab/internal/config"
)

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conlab.yaml")
	if err := initConfig(nil, []string{path}); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("written config does not load: %v", err)
	}
	def := config.DefaultConfig()
	if cfg.Dialect != def.Dialect || cfg.Landscape.NoiseSigma != def.Landscape.NoiseSigma {
		t.Errorf("expected defaults, got %+v", cfg)
	}

	if err := os.WriteFile(path, []byte("dialect: go\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := initConfig(nil, []string{path}); err == nil {
		t.Error("expected an error for an existing file")
	}
	raw, _ := os.ReadFile(path)
	if string(raw) != "dialect: go\n" {
		t.Errorf("existing file overwritten: %q", raw)
	}
}
