package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"price-dashboard/internal/services"
)

func TestSystemHandlers_HandleHealth(t *testing.T) {
	tests := []struct {
		name       string
		svc        *services.Pricing
		wantStatus string
	}{
		{"loaded", createTestPricing(), "healthy"},
		{"empty", services.NewPricing(services.Options{Logger: testLogger()}), "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlers := NewSystemHandlers(tt.svc, testLogger())

			w := httptest.NewRecorder()
			handlers.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			if w.Code != http.StatusOK {
				t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
			}

			var health struct {
				Status  string `json:"status"`
				Version string `json:"version"`
			}
			decodeData(t, decodeResponse(t, w), &health)

			if health.Status != tt.wantStatus {
				t.Errorf("expected status %q, got %q", tt.wantStatus, health.Status)
			}
			if health.Version != version {
				t.Errorf("expected version %q, got %q", version, health.Version)
			}
		})
	}
}

func TestSystemHandlers_HandleStats(t *testing.T) {
	handlers := NewSystemHandlers(createTestPricing(), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleStats(w, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var stats struct {
		Pricing services.Stats `json:"pricing"`
		Host    HostStats      `json:"host"`
	}
	decodeData(t, decodeResponse(t, w), &stats)

	if stats.Pricing.Rows != 42 {
		t.Errorf("expected 42 rows, got %d", stats.Pricing.Rows)
	}
	if stats.Pricing.Models != 3 {
		t.Errorf("expected 3 models, got %d", stats.Pricing.Models)
	}
	if stats.Pricing.Combos != 1 {
		t.Errorf("expected 1 combo, got %d", stats.Pricing.Combos)
	}
	if stats.Host.Goroutines <= 0 {
		t.Error("expected goroutine count")
	}
	if stats.Host.Uptime == "" {
		t.Error("expected uptime")
	}
}

func TestSystemHandlers_HandleReload(t *testing.T) {
	handlers := NewSystemHandlers(createTestPricing(), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleReload(w, httptest.NewRequest(http.MethodPost, "/admin/reload", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var stats services.Stats
	decodeData(t, decodeResponse(t, w), &stats)

	if stats.Reloads != 1 {
		t.Errorf("expected 1 reload, got %d", stats.Reloads)
	}
	if stats.Rows != 42 {
		t.Errorf("data without a loader should be kept, got %d rows", stats.Rows)
	}
}

func TestSystemHandlers_HandleReload_Failure(t *testing.T) {
	dir := t.TempDir()
	svc := services.NewPricing(services.Options{
		Loader: services.NewLoader("", testLogger()),
		Sources: services.Sources{
			SellMeta:     filepath.Join(dir, "missing_meta.csv"),
			Transactions: filepath.Join(dir, "missing_tx.csv"),
			DateInfo:     filepath.Join(dir, "missing_dates.csv"),
		},
		Logger: testLogger(),
	})
	svc.SetData(testRows())
	handlers := NewSystemHandlers(svc, testLogger())

	w := httptest.NewRecorder()
	handlers.HandleReload(w, httptest.NewRequest(http.MethodPost, "/admin/reload", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if resp.Error.Code != "SERVICE_UNAVAILABLE" {
		t.Errorf("expected SERVICE_UNAVAILABLE, got %q", resp.Error.Code)
	}
	if rows := svc.Stats().Rows; rows != 42 {
		t.Errorf("failed reload should keep previous rows, got %d", rows)
	}
}
