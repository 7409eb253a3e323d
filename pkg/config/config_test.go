package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.FetchTimeout != 10*time.Second {
		t.Errorf("FetchTimeout = %v, want 10s", cfg.FetchTimeout)
	}
	if cfg.ImageCacheMaxEntries != 100 {
		t.Errorf("ImageCacheMaxEntries = %d, want 100", cfg.ImageCacheMaxEntries)
	}
	if cfg.EvictionHeadroom != 10 {
		t.Errorf("EvictionHeadroom = %d, want 10", cfg.EvictionHeadroom)
	}
	if !cfg.AutoSkipWaiting {
		t.Error("AutoSkipWaiting should default to true")
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("CACHE_VERSION", "3.1.0")
	t.Setenv("FETCH_TIMEOUT", "250ms")
	t.Setenv("ORIGIN_URL", "https://origin.internal")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Version != "3.1.0" {
		t.Errorf("Version = %q, want 3.1.0", cfg.Version)
	}
	if cfg.FetchTimeout != 250*time.Millisecond {
		t.Errorf("FetchTimeout = %v, want 250ms", cfg.FetchTimeout)
	}
	if got := cfg.Origin().Host; got != "origin.internal" {
		t.Errorf("Origin().Host = %q, want origin.internal", got)
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("ORIGIN_URL", "ftp://nope")

	if _, err := Load(); err == nil {
		t.Error("Load() should reject non-http origin")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			OriginURL:            "http://localhost:3000",
			AppName:              "app",
			ImagesPrefix:         "images",
			StaticPrefix:         "static",
			Version:              "1.0.0",
			ImageCacheMaxEntries: 100,
			EvictionHeadroom:     10,
			PrewarmConcurrency:   1,
			ContactPath:          "/api/contact",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing host", func(c *Config) { c.OriginURL = "http://" }, true},
		{"empty version", func(c *Config) { c.Version = "" }, true},
		{"zero max entries", func(c *Config) { c.ImageCacheMaxEntries = 0 }, true},
		{"headroom above max", func(c *Config) { c.EvictionHeadroom = 101 }, true},
		{"negative timeout", func(c *Config) { c.FetchTimeout = -time.Second }, true},
		{"zero timeout allowed", func(c *Config) { c.FetchTimeout = 0 }, false},
		{"relative contact path", func(c *Config) { c.ContactPath = "api/contact" }, true},
		{"no prewarm workers", func(c *Config) { c.PrewarmConcurrency = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPartitions(t *testing.T) {
	p := NewPartitions("maxym-portfolio", "portfolio-images", "static", "2.0.0")

	if p.General != "maxym-portfolio-v2.0.0" {
		t.Errorf("General = %q", p.General)
	}
	if p.Images != "portfolio-images-v2.0.0" {
		t.Errorf("Images = %q", p.Images)
	}
	if p.Static != "static-v2.0.0" {
		t.Errorf("Static = %q", p.Static)
	}

	if !p.Contains("static-v2.0.0") {
		t.Error("Contains(static-v2.0.0) = false")
	}
	if p.Contains("static-v1.0.0") {
		t.Error("Contains(static-v1.0.0) = true")
	}
	if len(p.Whitelist()) != 3 {
		t.Errorf("Whitelist() has %d names, want 3", len(p.Whitelist()))
	}
}

func TestPartitions_FromConfig(t *testing.T) {
	cfg := Config{AppName: "a", ImagesPrefix: "b", StaticPrefix: "c", Version: "9.9.9"}
	want := Partitions{General: "a-v9.9.9", Images: "b-v9.9.9", Static: "c-v9.9.9"}
	if got := cfg.Partitions(); got != want {
		t.Errorf("Partitions() = %+v, want %+v", got, want)
	}
}

func TestLoadManifest_Default(t *testing.T) {
	assets, err := LoadManifest("")
	if err != nil {
		t.Fatalf("LoadManifest() error = %v", err)
	}
	if len(assets) != len(DefaultManifest) {
		t.Fatalf("got %d assets, want %d", len(assets), len(DefaultManifest))
	}

	// callers must not be able to mutate the default
	assets[0] = "/changed"
	if DefaultManifest[0] != "/" {
		t.Error("DefaultManifest was mutated through the returned slice")
	}
}

func TestLoadManifest_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	data := []byte("assets:\n  - /\n  - /index.html\n  - /logo.svg\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	assets, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest() error = %v", err)
	}
	want := []string{"/", "/index.html", "/logo.svg"}
	if len(assets) != len(want) {
		t.Fatalf("got %v, want %v", assets, want)
	}
	for i := range want {
		if assets[i] != want[i] {
			t.Errorf("assets[%d] = %q, want %q", i, assets[i], want[i])
		}
	}
}

func TestParseManifest_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", "assets: []\n"},
		{"relative path", "assets:\n  - index.html\n"},
		{"duplicate", "assets:\n  - /\n  - /\n"},
		{"not yaml", "assets: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseManifest([]byte(tt.data)); err == nil {
				t.Error("ParseManifest() should fail")
			}
		})
	}
}
