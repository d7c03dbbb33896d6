package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Pipeline.SimilarityThreshold != 0.85 {
		t.Errorf("default similarity threshold should be 0.85, got %v", cfg.Pipeline.SimilarityThreshold)
	}
	if cfg.Pipeline.CategoryLimit != 20 {
		t.Errorf("default category limit should be 20, got %d", cfg.Pipeline.CategoryLimit)
	}
	if cfg.Pipeline.FrequencyWeight != 1.0 || cfg.Pipeline.PriorityWeight != 10.0 {
		t.Errorf("default weights should be 1/10, got %v/%v",
			cfg.Pipeline.FrequencyWeight, cfg.Pipeline.PriorityWeight)
	}
	if len(cfg.Pipeline.PriorityKeywords) == 0 {
		t.Error("default priority keywords should not be empty")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port should be 8080, got %d", cfg.Server.Port)
	}
	if cfg.Chat.TopK != 3 {
		t.Errorf("default chat top_k should be 3, got %d", cfg.Chat.TopK)
	}

	for _, category := range []string{"sports", "lifestyle", "music", "finance"} {
		if !cfg.Sources.Has(category) {
			t.Errorf("default sources should include %s", category)
		}
	}
}

func TestLoad_ConfigFileOverrides(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	path := filepath.Join(t.TempDir(), "newsdesk.yaml")
	content := `
pipeline:
  similarity_threshold: 0.7
  category_limit: 5
server:
  port: 9090
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Pipeline.SimilarityThreshold != 0.7 {
		t.Errorf("file threshold should win, got %v", cfg.Pipeline.SimilarityThreshold)
	}
	if cfg.Pipeline.CategoryLimit != 5 {
		t.Errorf("file category limit should win, got %d", cfg.Pipeline.CategoryLimit)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("file port should win, got %d", cfg.Server.Port)
	}
	// Untouched keys keep their defaults.
	if cfg.Pipeline.PriorityWeight != 10.0 {
		t.Errorf("unset keys should default, got %v", cfg.Pipeline.PriorityWeight)
	}
}

func TestLoad_InvalidThresholdRejected(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	path := filepath.Join(t.TempDir(), "newsdesk.yaml")
	if err := os.WriteFile(path, []byte("pipeline:\n  similarity_threshold: 1.5\n"), 0644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for threshold above 1")
	}
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	t.Setenv("NEWSDESK_PORT", "3000")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("environment port should win, got %d", cfg.Server.Port)
	}
}

func TestCategoryNames_Sorted(t *testing.T) {
	s := Sources{Categories: map[string][]string{
		"music":   {"https://example.com/m"},
		"sports":  {"https://example.com/s"},
		"finance": {"https://example.com/f"},
	}}

	names := s.CategoryNames()
	want := []string{"finance", "music", "sports"}
	if len(names) != len(want) {
		t.Fatalf("expected %d names, got %d", len(want), len(names))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("position %d: want %s, got %s", i, want[i], names[i])
		}
	}

	if s.Has("weather") {
		t.Error("Has should be false for unconfigured categories")
	}
}
