package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("WAIT_INTERVAL", "")
	t.Setenv("CACHE_BACKEND", "")
	t.Setenv("SEARCHES_FILE", "")
	t.Setenv("LANDMARKS_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Crawler.BaseURL != DefaultBaseURL || cfg.Crawler.PageSize != DefaultPageSize {
		t.Fatalf("unexpected crawler defaults %+v", cfg.Crawler)
	}
	if cfg.Crawler.WaitInterval != DefaultWait {
		t.Fatalf("expected %s wait, got %s", DefaultWait, cfg.Crawler.WaitInterval)
	}
	if cfg.Cache.Backend != "sqlite" || cfg.Cache.Path != DefaultCachePath() {
		t.Fatalf("unexpected cache defaults %+v", cfg.Cache)
	}
	if len(cfg.Searches) != 0 || len(cfg.Landmarks) != 0 {
		t.Fatal("missing yaml files should load as empty")
	}
	if cfg.S3.Enabled() {
		t.Fatal("s3 should be disabled without a bucket")
	}
}

func TestLoadEnvAndYAML(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	searches := filepath.Join(dir, "searches.yaml")
	os.WriteFile(searches, []byte(`
- name: fukuoka-chuo
  url: https://suumo.jp/jj/bukken/ichiran/JJ010FJ001/?ar=090&ta=40&sc=40133
  detailed: true
  use_cache: true
`), 0o644)
	landmarks := filepath.Join(dir, "landmarks.yaml")
	os.WriteFile(landmarks, []byte(`
- name: tenjin
  lat: 33.59118086094799
  lng: 130.398581611983
`), 0o644)

	t.Setenv("SEARCHES_FILE", searches)
	t.Setenv("LANDMARKS_FILE", landmarks)
	t.Setenv("WAIT_INTERVAL", "1.5")
	t.Setenv("PAGE_SIZE", "50")
	t.Setenv("CACHE_BACKEND", "redis")
	t.Setenv("S3_BUCKET", "domus-exports")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Crawler.WaitInterval != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s, got %s", cfg.Crawler.WaitInterval)
	}
	if cfg.Crawler.PageSize != 50 || cfg.Cache.Backend != "redis" || !cfg.S3.Enabled() {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if len(cfg.Searches) != 1 || !cfg.Searches[0].Detailed || !cfg.Searches[0].UseCache {
		t.Fatalf("unexpected searches %+v", cfg.Searches)
	}
	if len(cfg.Landmarks) != 1 || cfg.Landmarks[0].Longitude != 130.398581611983 {
		t.Fatalf("unexpected landmarks %+v", cfg.Landmarks)
	}
}

func TestLoadBadYAML(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	bad := filepath.Join(dir, "searches.yaml")
	os.WriteFile(bad, []byte("name: [unclosed"), 0o644)
	t.Setenv("SEARCHES_FILE", bad)

	if _, err := Load(); err == nil {
		t.Fatal("expected yaml error")
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := map[string]time.Duration{
		"3s":    3 * time.Second,
		"250ms": 250 * time.Millisecond,
		"2":     2 * time.Second,
		"bogus": DefaultWait,
	}
	for in, want := range tests {
		t.Setenv("DOMUS_TEST_DURATION", in)
		if got := getEnvDuration("DOMUS_TEST_DURATION", DefaultWait); got != want {
			t.Errorf("getEnvDuration(%q) = %s; want %s", in, got, want)
		}
	}
}
