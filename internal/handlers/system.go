package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"price-dashboard/internal/errors"
	"price-dashboard/internal/observability"
	"price-dashboard/internal/services"
)

const (
	version       = "1.0.0"
	cpuSampleTime = 100 * time.Millisecond
	reloadTimeout = 2 * time.Minute
)

type SystemHandlers struct {
	pricing *services.Pricing
	logger  *slog.Logger
	started time.Time
}

func NewSystemHandlers(pricing *services.Pricing, logger *slog.Logger) *SystemHandlers {
	return &SystemHandlers{
		pricing: pricing,
		logger:  logger,
		started: time.Now(),
	}
}

func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	stats := h.pricing.Stats()
	status := "healthy"
	if stats.Rows == 0 {
		status = "degraded"
	}

	errors.WriteSuccess(w, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   version,
		"rows":      stats.Rows,
		"models":    stats.Models,
	})
}

type HostStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  float64 `json:"memory_used_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	Goroutines    int     `json:"goroutines"`
	HeapAllocMB   float64 `json:"heap_alloc_mb"`
	Uptime        string  `json:"uptime"`
}

func (h *SystemHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, map[string]any{
		"pricing": h.pricing.Stats(),
		"host":    h.hostStats(r.Context()),
	})
}

// hostStats samples CPU over a short window. Sampling failures are logged
// and reported as zero.
func (h *SystemHandlers) hostStats(ctx context.Context) HostStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := HostStats{
		Goroutines:  runtime.NumGoroutine(),
		HeapAllocMB: money(float64(ms.HeapAlloc) / 1024 / 1024),
		Uptime:      time.Since(h.started).Round(time.Second).String(),
	}

	if percents, err := cpu.PercentWithContext(ctx, cpuSampleTime, false); err != nil {
		h.logger.Warn("failed to sample cpu", "error", err)
	} else if len(percents) > 0 {
		stats.CPUPercent = money(percents[0])
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		h.logger.Warn("failed to read memory statistics", "error", err)
	} else {
		stats.MemoryPercent = money(vm.UsedPercent)
		stats.MemoryUsedMB = money(float64(vm.Used) / 1024 / 1024)
		stats.MemoryTotalMB = money(float64(vm.Total) / 1024 / 1024)
	}
	return stats
}

// HandleReload re-reads the dataset and models outside the cron schedule.
func (h *SystemHandlers) HandleReload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), reloadTimeout)
	defer cancel()

	if err := h.pricing.Reload(ctx); err != nil {
		errors.WriteError(w, h.logger,
			errors.ServiceUnavailableWrap(err, "Reload failed"),
			observability.GetRequestID(r.Context()))
		return
	}
	errors.WriteSuccess(w, h.pricing.Stats())
}
