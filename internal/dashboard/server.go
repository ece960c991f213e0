// Package dashboard serves the read-only HTTP API over a running
// trading service: portfolio report, orders, trades, equity curve,
// live quotes and Prometheus metrics. No mutating routes.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/paper_tiger/internal/engine"
	"github.com/eddiefleurent/paper_tiger/internal/market"
	"github.com/eddiefleurent/paper_tiger/internal/models"
)

// TradingView is the read side of the trading service the dashboard
// exposes.
type TradingView interface {
	Report(ctx context.Context) *models.PortfolioReport
	Orders(status models.OrderStatus) []*models.Order
	TradeHistory() []models.Fill
	EquityHistory() []models.EquitySample
	Quote(ctx context.Context, symbol string) (*market.Quote, error)
}

type Server struct {
	router     *chi.Mux
	server     *http.Server
	service    TradingView
	logger     *logrus.Logger
	listenAddr string
	authToken  string
}

type Config struct {
	ListenAddr string
	AuthToken  string
}

func NewServer(cfg Config, service TradingView, logger *logrus.Logger) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		service:    service,
		logger:     logger,
		listenAddr: cfg.ListenAddr,
		authToken:  cfg.AuthToken,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	if s.authToken != "" {
		s.router.Use(s.authMiddleware)
	}

	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/report", s.handleReport)
	s.router.Get("/api/orders", s.handleOrders)
	s.router.Get("/api/trades", s.handleTrades)
	s.router.Get("/api/equity", s.handleEquity)
	s.router.Get("/api/quote/{symbol}", s.handleQuote)

	s.router.Handle("/metrics", promhttp.Handler())
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": ww.Status(),
			"bytes":  ww.BytesWritten(),
			"took":   time.Since(start).String(),
		}).Info("request")
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/health" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}

		if token != s.authToken {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.listenAddr,
		Handler: s.router,
	}

	s.logger.Infof("Starting dashboard server on %s", s.listenAddr)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.WithError(err).Error("Failed to encode health response")
	}
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report := s.service.Report(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		s.logger.WithError(err).Error("Failed to encode report")
	}
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	status := models.OrderStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.StatusPending, models.StatusFilled, models.StatusCanceled, models.StatusExpired:
	default:
		http.Error(w, "unknown status filter", http.StatusBadRequest)
		return
	}

	orders := s.service.Orders(status)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(orders); err != nil {
		s.logger.WithError(err).Error("Failed to encode orders")
	}
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	trades := s.service.TradeHistory()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(trades); err != nil {
		s.logger.WithError(err).Error("Failed to encode trades")
	}
}

func (s *Server) handleEquity(w http.ResponseWriter, r *http.Request) {
	equity := s.service.EquityHistory()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(equity); err != nil {
		s.logger.WithError(err).Error("Failed to encode equity history")
	}
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	quote, err := s.service.Quote(r.Context(), symbol)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrBadInput):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, engine.ErrMarketData):
			http.Error(w, err.Error(), http.StatusBadGateway)
		default:
			s.logger.WithError(err).Error("Failed to fetch quote")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(quote); err != nil {
		s.logger.WithError(err).Error("Failed to encode quote")
	}
}
