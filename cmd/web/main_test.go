package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"price-dashboard/internal/config"
	"price-dashboard/internal/middleware"
	"price-dashboard/internal/models"
	"price-dashboard/internal/pricing"
	"price-dashboard/internal/server"
)

type staticModels pricing.ModelSet

func (m staticModels) ModelSet(context.Context) (pricing.ModelSet, error) {
	return pricing.ModelSet(m), nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// testConfig points the data layer at a tiny CSV history in a temp dir.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	sellMeta := "SELL_ID,SELL_CATEGORY,ITEM_ID,ITEM_NAME\n1070,0,7821,BURGER\n"
	dateInfo := "CALENDAR_DATE,YEAR,HOLIDAY,IS_WEEKEND,IS_SCHOOLBREAK,AVERAGE_TEMPERATURE,IS_OUTDOOR\n" +
		"1/2/12,2012,,0,0,24.8,1\n" +
		"1/3/12,2012,,0,0,24.8,1\n" +
		"1/4/12,2012,,0,0,24.8,1\n" +
		"1/5/12,2012,,0,0,24.8,1\n"
	transactions := "CALENDAR_DATE,PRICE,QUANTITY,SELL_ID,SELL_CATEGORY\n" +
		"1/2/12,9,100,1070,0\n" +
		"1/3/12,10,80,1070,0\n" +
		"1/4/12,11,60,1070,0\n" +
		"1/5/12,12,40,1070,0\n"

	return &config.Config{
		Data: config.DataConfig{
			SellMetaFile:     writeFile(t, dir, "sell_meta.csv", sellMeta),
			TransactionsFile: writeFile(t, dir, "transactions.csv", transactions),
			DateInfoFile:     writeFile(t, dir, "date_info.csv", dateInfo),
		},
		Pricing: config.PricingConfig{DefaultBuyingPrice: 9, DerivedCostRatio: 0.8, Workers: 2},
		Security: config.SecurityConfig{
			EnableRateLimit: true,
			RateLimitRPS:    100,
			RateLimitBurst:  100,
			AllowedOrigins:  []string{"http://localhost:8085"},
		},
	}
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	cfg := testConfig(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := newPricing(cfg, staticModels{
		models.NewProductKey("BURGER", 1070): pricing.LinearModel{Intercept: 280, Slope: -20},
	}, logger)
	if err := svc.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	srv := server.NewServer(svc, logger, &server.TemplateHandlers{Dashboard: handleDashboard})
	return newHandler(cfg, srv, middleware.NewRateLimiter(cfg.Security), logger)
}

func TestApp_Routes(t *testing.T) {
	handler := newTestHandler(t)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"dashboard", http.MethodGet, "/", http.StatusOK},
		{"health", http.MethodGet, "/health", http.StatusOK},
		{"products", http.MethodGet, "/api/products", http.StatusOK},
		{"optimal", http.MethodGet, "/api/products/burger_1070/optimal", http.StatusOK},
		{"recommendations", http.MethodGet, "/api/recommendations?source=bau", http.StatusOK},
		{"unknown product", http.MethodGet, "/api/products/fries_1070/optimal", http.StatusNotFound},
		{"bad key", http.MethodGet, "/api/products/fries/optimal", http.StatusBadRequest},
		{"reload", http.MethodPost, "/admin/reload", http.StatusOK},
		{"sse", http.MethodGet, "/sse/refresh-all", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if w.Header().Get("X-Request-ID") == "" {
				t.Error("expected X-Request-ID header")
			}
		})
	}
}

func TestApp_OptimalPrice(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/products/burger_1070/optimal?buying_price=10", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var response struct {
		Success bool                `json:"success"`
		Data    pricing.ItemOptimum `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if !response.Success {
		t.Error("expected success=true")
	}
	if response.Data.Optimum.Price != 12 {
		t.Errorf("expected optimal price 12, got %.2f", response.Data.Optimum.Price)
	}
}

func TestApp_ErrorResponse(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/products/burger_1070/revenue", nil)
	req.Header.Set("X-Request-ID", "test-request")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}

	var response struct {
		Success bool `json:"success"`
		Error   struct {
			Code      string `json:"code"`
			RequestID string `json:"request_id"`
		} `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if response.Success {
		t.Error("expected success=false")
	}
	if response.Error.Code != "BAD_REQUEST" {
		t.Errorf("expected BAD_REQUEST, got %q", response.Error.Code)
	}
	if response.Error.RequestID != "test-request" {
		t.Errorf("expected request id to be echoed, got %q", response.Error.RequestID)
	}
}

func TestDashboardTemplate(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	handleDashboard(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if cc := w.Header().Get("Cache-Control"); cc != cacheMaxAge {
		t.Errorf("expected cache-control %q, got %q", cacheMaxAge, cc)
	}
	if !strings.Contains(w.Body.String(), "data-on-load") {
		t.Error("dashboard should trigger the initial SSE load")
	}
}
