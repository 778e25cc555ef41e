package server

import (
	"log/slog"
	"net/http"

	"price-dashboard/internal/handlers"
	"price-dashboard/internal/services"
)

type Server struct {
	pricing        *services.Pricing
	mux            *http.ServeMux
	logger         *slog.Logger
	apiHandlers    *handlers.APIHandlers
	sseHandlers    *handlers.SSEHandlers
	systemHandlers *handlers.SystemHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

func NewServer(pricing *services.Pricing, logger *slog.Logger, templateHandlers *TemplateHandlers) *Server {
	s := &Server{
		pricing:        pricing,
		mux:            http.NewServeMux(),
		logger:         logger,
		apiHandlers:    handlers.NewAPIHandlers(pricing, logger),
		sseHandlers:    handlers.NewSSEHandlers(pricing, logger),
		systemHandlers: handlers.NewSystemHandlers(pricing, logger),
	}
	s.setupRoutes(templateHandlers)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	s.mux.HandleFunc("GET /{$}", templateHandlers.Dashboard)
	s.mux.HandleFunc("GET /health", s.systemHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.systemHandlers.HandleStats)
	s.mux.HandleFunc("POST /admin/reload", s.systemHandlers.HandleReload)

	// REST API endpoints
	s.mux.HandleFunc("GET /api/products", s.apiHandlers.HandleProducts)
	s.mux.HandleFunc("GET /api/optimal-prices", s.apiHandlers.HandleOptimalPrices)
	s.mux.HandleFunc("GET /api/recommendations", s.apiHandlers.HandleRecommendations)
	s.mux.HandleFunc("GET /api/products/{key}/optimal", s.apiHandlers.HandleProductOptimal)
	s.mux.HandleFunc("GET /api/products/{key}/revenue", s.apiHandlers.HandleRevenue)
	s.mux.HandleFunc("GET /api/products/{key}/discount", s.apiHandlers.HandleDiscount)
	s.mux.HandleFunc("GET /api/products/{key}/discount-curve", s.apiHandlers.HandleDiscountCurve)
	s.mux.HandleFunc("GET /api/products/{key}/price-curve", s.apiHandlers.HandlePriceCurve)
	s.mux.HandleFunc("GET /api/products/{key}/factors", s.apiHandlers.HandleFactors)
	s.mux.HandleFunc("GET /api/products/{key}/elasticity", s.apiHandlers.HandleElasticity)

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/recommendations", s.sseHandlers.HandleRecommendations)
	s.mux.HandleFunc("GET /sse/optimal-prices", s.sseHandlers.HandleOptimalPrices)
	s.mux.HandleFunc("GET /sse/discount", s.sseHandlers.HandleDiscount)
	s.mux.HandleFunc("GET /sse/products/{key}/charts", s.sseHandlers.HandleProductCharts)
	s.mux.HandleFunc("GET /sse/refresh-all", s.sseHandlers.HandleRefreshAll)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
