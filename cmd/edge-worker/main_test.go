package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/Sternrassler/edge-worker/internal/testutil"
	"github.com/Sternrassler/edge-worker/pkg/config"
	"github.com/Sternrassler/edge-worker/pkg/lifecycle"
)

func testConfig(originURL string) config.Config {
	return config.Config{
		Port:                 "0",
		OriginURL:            originURL,
		AppName:              "maxym-portfolio",
		ImagesPrefix:         "portfolio-images",
		StaticPrefix:         "static",
		Version:              "2.0.0",
		FetchTimeout:         5 * time.Second,
		ImageCacheMaxEntries: 100,
		EvictionHeadroom:     10,
		PrewarmConcurrency:   4,
		AutoSkipWaiting:      true,
		ContactPath:          "/api/contact",
	}
}

func newTestServer(t *testing.T, cfg config.Config) *server {
	t.Helper()

	srv, err := newServer(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newServer failed: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestReadyEndpoint(t *testing.T) {
	origin := testutil.NewMockOrigin()
	defer origin.Close()

	srv := newTestServer(t, testConfig(origin.URL()))

	t.Run("ready", func(t *testing.T) {
		if err := srv.lifecycle.Install(context.Background()); err != nil {
			t.Fatalf("Install failed: %v", err)
		}

		handler := readyHandler(func(context.Context) error { return nil }, srv.lifecycle)
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest("GET", "/ready", nil))

		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}

		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("Failed to decode body: %v", err)
		}
		if body["state"] != string(lifecycle.StateActivated) {
			t.Errorf("Expected state activated, got %q", body["state"])
		}
	})

	t.Run("not_ready_storage_down", func(t *testing.T) {
		handler := readyHandler(func(context.Context) error { return errors.New("connection refused") }, srv.lifecycle)
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest("GET", "/ready", nil))

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected status 503, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "connection refused") {
			t.Errorf("Expected storage error in body, got %s", w.Body.String())
		}
	})
}

func TestReadyEndpoint_InstallFailed(t *testing.T) {
	origin := testutil.NewMockOrigin()
	defer origin.Close()
	origin.SetOffline(true)

	srv := newTestServer(t, testConfig(origin.URL()))
	if err := srv.lifecycle.Install(context.Background()); err == nil {
		t.Fatal("Expected install to fail with origin offline")
	}

	handler := readyHandler(func(context.Context) error { return nil }, srv.lifecycle)
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest("GET", "/ready", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503 for redundant worker, got %d", w.Code)
	}
}

func TestRedisOptions(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		db       int
		wantAddr string
		wantDB   int
		wantErr  bool
	}{
		{name: "plain address", raw: "localhost:6379", wantAddr: "localhost:6379"},
		{name: "plain address with db", raw: "redis:6379", db: 2, wantAddr: "redis:6379", wantDB: 2},
		{name: "url", raw: "redis://cache:6380/3", wantAddr: "cache:6380", wantDB: 3},
		{name: "url db overridden", raw: "redis://cache:6380/3", db: 5, wantAddr: "cache:6380", wantDB: 5},
		{name: "invalid url", raw: "redis://cache:6380/notanumber", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := redisOptions(tt.raw, tt.db)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if opts.Addr != tt.wantAddr {
				t.Errorf("Addr = %q, want %q", opts.Addr, tt.wantAddr)
			}
			if opts.DB != tt.wantDB {
				t.Errorf("DB = %d, want %d", opts.DB, tt.wantDB)
			}
		})
	}
}

func TestNewServer_InvalidManifest(t *testing.T) {
	cfg := testConfig("http://localhost:3000")
	cfg.ManifestPath = "/nonexistent/manifest.yaml"

	if _, err := newServer(context.Background(), cfg); err == nil {
		t.Error("Expected error for missing manifest file")
	}
}

func TestServer_Routes(t *testing.T) {
	origin := testutil.NewMockOrigin()
	defer origin.Close()

	srv := newTestServer(t, testConfig(origin.URL()))

	t.Run("pass_through_before_install", func(t *testing.T) {
		w := httptest.NewRecorder()
		srv.handler.ServeHTTP(w, httptest.NewRequest("GET", "/about", nil))

		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
		if got := w.Header().Get("X-Cache-Source"); got != "" {
			t.Errorf("Expected no cache source before install, got %q", got)
		}
	})

	if err := srv.lifecycle.Install(context.Background()); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	t.Run("static_from_cache", func(t *testing.T) {
		before := origin.PathCount("/index.html")

		w := httptest.NewRecorder()
		srv.handler.ServeHTTP(w, httptest.NewRequest("GET", "/index.html", nil))

		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
		if got := w.Header().Get("X-Cache-Source"); got != "cache" {
			t.Errorf("Expected cache source, got %q", got)
		}
		if origin.PathCount("/index.html") != before {
			t.Error("Expected no origin fetch for a pre-warmed asset")
		}
	})

	t.Run("worker_state", func(t *testing.T) {
		w := httptest.NewRecorder()
		srv.handler.ServeHTTP(w, httptest.NewRequest("GET", "/__worker/state", nil))

		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), string(lifecycle.StateActivated)) {
			t.Errorf("Expected activated state, got %s", w.Body.String())
		}
	})

	t.Run("health_not_proxied", func(t *testing.T) {
		before := origin.RequestCount()

		w := httptest.NewRecorder()
		srv.handler.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

		if w.Body.String() != "OK" {
			t.Errorf("Expected body 'OK', got %s", w.Body.String())
		}
		if origin.RequestCount() != before {
			t.Error("Expected /health to be answered locally")
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	origin := testutil.NewMockOrigin()
	defer origin.Close()

	srv := newTestServer(t, testConfig(origin.URL()))
	if err := srv.lifecycle.Install(context.Background()); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	// one intercepted request so the request counters carry a sample
	srv.handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	w := httptest.NewRecorder()
	srv.handler.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	bodyStr := w.Body.String()
	if !strings.Contains(bodyStr, "# HELP") || !strings.Contains(bodyStr, "# TYPE") {
		t.Error("Expected Prometheus format metrics output")
	}
	for _, name := range []string{
		"worker_lifecycle_transitions_total",
		"worker_install_duration_seconds",
		"worker_requests_total",
	} {
		if !strings.Contains(bodyStr, name) {
			t.Errorf("Expected metrics output to contain %s", name)
		}
	}
}

func TestServer_Redis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Redis container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("Failed to get Redis connection string: %v", err)
	}

	origin := testutil.NewMockOrigin()
	defer origin.Close()

	cfg := testConfig(origin.URL())
	cfg.RedisURL = endpoint
	srv := newTestServer(t, cfg)

	if err := srv.lifecycle.Install(ctx); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	w := httptest.NewRecorder()
	srv.handler.ServeHTTP(w, httptest.NewRequest("GET", "/manifest.json", nil))
	if got := w.Header().Get("X-Cache-Source"); got != "cache" {
		t.Errorf("Expected cache source, got %q", got)
	}

	w = httptest.NewRecorder()
	srv.handler.ServeHTTP(w, httptest.NewRequest("POST", "/__worker/message", strings.NewReader(`{"type":"CACHE_STATS"}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var stats map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("Failed to decode stats: %v", err)
	}
	if stats[cfg.Partitions().Static] != len(config.DefaultManifest) {
		t.Errorf("Expected %d static entries, got %d", len(config.DefaultManifest), stats[cfg.Partitions().Static])
	}
}
