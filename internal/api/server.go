// Package api provides the HTTP and WebSocket surface: engine control,
// on-demand backtests, a live trade feed, and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/quantmill/tradecore/internal/backtest"
	"github.com/quantmill/tradecore/internal/engine"
	"github.com/quantmill/tradecore/internal/journal"
	"github.com/quantmill/tradecore/internal/marketdata"
	"github.com/quantmill/tradecore/internal/strategy"
	"github.com/quantmill/tradecore/pkg/types"
)

// Config holds server parameters.
type Config struct {
	Addr           string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// DefaultConfig returns server defaults suitable for local use.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		AllowedOrigins: []string{"*"},
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   30 * time.Second,
	}
}

// Server is the HTTP/WebSocket API server.
type Server struct {
	logger     *zap.Logger
	config     Config
	router     *mux.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader
	hub        *Hub

	engine     *engine.TradingEngine
	provider   marketdata.Provider
	btConfig   backtest.Config
	strategies map[string]strategy.Strategy
}

// NewServer wires the server. strategies maps names accepted by the
// backtest endpoint to implementations.
func NewServer(logger *zap.Logger, config Config, eng *engine.TradingEngine, provider marketdata.Provider, btConfig backtest.Config, strategies map[string]strategy.Strategy) *Server {
	s := &Server{
		logger:     logger.Named("api"),
		config:     config,
		router:     mux.NewRouter(),
		hub:        NewHub(logger),
		engine:     eng,
		provider:   provider,
		btConfig:   btConfig,
		strategies: strategies,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	s.setupRoutes()
	return s
}

// Hub exposes the WebSocket hub so the engine's trade callback can feed
// it.
func (s *Server) Hub() *Hub {
	return s.hub
}

// OnTrade is the engine callback: records metrics and pushes the trade
// to WebSocket subscribers.
func (s *Server) OnTrade(record journal.TradeRecord) {
	tradesTotal.WithLabelValues(record.Symbol, record.ExitReason).Inc()
	pnl, _ := record.PnL.Float64()
	tradePnL.WithLabelValues(record.Symbol).Add(pnl)
	s.hub.PublishTrade(record)
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/v1/health", s.handleHealth).Methods("GET")

	s.router.HandleFunc("/api/v1/engine/status", s.handleEngineStatus).Methods("GET")
	s.router.HandleFunc("/api/v1/engine/start", s.handleEngineStart).Methods("POST")
	s.router.HandleFunc("/api/v1/engine/stop", s.handleEngineStop).Methods("POST")
	s.router.HandleFunc("/api/v1/engine/reset-daily", s.handleResetDaily).Methods("POST")
	s.router.HandleFunc("/api/v1/engine/strategies/{name}/enable", s.handleStrategyToggle(true)).Methods("POST")
	s.router.HandleFunc("/api/v1/engine/strategies/{name}/disable", s.handleStrategyToggle(false)).Methods("POST")

	s.router.HandleFunc("/api/v1/backtest/run", s.handleRunBacktest).Methods("POST")

	s.router.Handle("/metrics", promhttp.Handler())
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// Start runs the hub and serves until the listener fails or Stop is
// called.
func (s *Server) Start() error {
	go s.hub.Run()

	handler := cors.New(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         s.config.Addr,
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("api server listening", zap.String("addr", s.config.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop drains the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func (s *Server) handleEngineStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleEngineStart(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Start(); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (s *Server) handleEngineStop(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Stop(); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) handleResetDaily(w http.ResponseWriter, r *http.Request) {
	s.engine.ResetDaily()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleStrategyToggle(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]
		s.engine.SetStrategyEnabled(name, enabled)
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"strategy": name,
			"enabled":  enabled,
		})
	}
}

// backtestRequest is the POST body for /api/v1/backtest/run.
type backtestRequest struct {
	Symbol    string `json:"symbol"`
	Strategy  string `json:"strategy"`
	Timeframe string `json:"timeframe"`
	DaysBack  int    `json:"daysBack"`
}

func (s *Server) handleRunBacktest(w http.ResponseWriter, r *http.Request) {
	var req backtestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Symbol == "" {
		s.writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	strat, ok := s.strategies[req.Strategy]
	if !ok {
		s.writeError(w, http.StatusBadRequest, "unknown strategy: "+req.Strategy)
		return
	}
	timeframe := types.Timeframe(req.Timeframe)
	if timeframe == "" {
		timeframe = types.Timeframe1h
	}
	daysBack := req.DaysBack
	if daysBack <= 0 {
		daysBack = 30
	}

	eng, err := backtest.NewEngine(s.logger, s.btConfig, strat)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	result, err := eng.Run(r.Context(), s.provider, req.Symbol, timeframe, daysBack)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	backtestsTotal.Inc()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"summary": result.Summary(),
		"trades":  result.Trades,
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(s.hub, conn)
	s.hub.register <- client

	go client.writePump()
	go client.readPump()
}
