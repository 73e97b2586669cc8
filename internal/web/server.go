// Package web serves the control and observation HTTP API.
package web

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gridsim/internal"
	"github.com/vadiminshakov/gridsim/internal/domain"
	"github.com/vadiminshakov/gridsim/internal/events"
	"github.com/vadiminshakov/gridsim/internal/ledger"
	"github.com/vadiminshakov/gridsim/internal/services/strategy/grid"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"
)

const (
	journalPollInterval = time.Second
	heartbeatInterval   = 30 * time.Second
)

type controller interface {
	Instruments() []internal.InstrumentStatus
	Defaults(instrument domain.Pair) domain.StrategyConfig
	AddInstrument(cfg domain.StrategyConfig) (*grid.Engine, error)
	UpdateConfig(cfg domain.StrategyConfig) error
	Start(instrument domain.Pair) (bool, error)
	Stop(instrument domain.Pair) (bool, error)
	Engine(instrument domain.Pair) (*grid.Engine, bool)
}

type ledgerReader interface {
	Snapshot() ledger.Snapshot
}

type journalReader interface {
	EventsAfter(seq uint64) ([]domain.LedgerEvent, error)
}

type subscriber interface {
	Subscribe() chan events.Message
	Unsubscribe(ch chan events.Message)
}

// Server exposes the orchestrator and ledger over HTTP.
type Server struct {
	Addr string

	ctrl     controller
	ledger   ledgerReader
	journal  journalReader
	reports  subscriber
	gatherer prometheus.Gatherer
	l        *zap.Logger
}

// NewServer creates a server. journal, reports and gatherer may be nil; their routes then answer 503.
func NewServer(addr string, ctrl controller, ledger ledgerReader, journal journalReader, reports subscriber, gatherer prometheus.Gatherer, l *zap.Logger) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	return &Server{
		Addr:     addr,
		ctrl:     ctrl,
		ledger:   ledger,
		journal:  journal,
		reports:  reports,
		gatherer: gatherer,
		l:        l,
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	api.HandleFunc("/instruments", s.handleListInstruments).Methods(http.MethodGet)
	api.HandleFunc("/instruments", s.handleAddInstrument).Methods(http.MethodPost)
	api.HandleFunc("/instruments/{instrument}", s.handleUpdateInstrument).Methods(http.MethodPut)
	api.HandleFunc("/instruments/{instrument}/start", s.handleStart).Methods(http.MethodPost)
	api.HandleFunc("/instruments/{instrument}/stop", s.handleStop).Methods(http.MethodPost)
	api.HandleFunc("/reports/stream", s.handleReportStream).Methods(http.MethodGet)
	api.HandleFunc("/trades/stream", s.handleTradeStream).Methods(http.MethodGet)

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)

	return r
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.l.Info("web API listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartWithAutoTLS runs an HTTPS server with ACME certificates and an HTTP
// server on port 80 for HTTP-01 challenges.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if len(domains) == 0 {
		return fmt.Errorf("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "cert-cache"
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	httpSrv := &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	httpsSrv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
		TLSConfig:         tlsConfig,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.l.Warn("http (acme) server shutdown error", zap.Error(err))
		}
		if err := httpsSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.l.Warn("https server shutdown error", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.l.Error("http (acme) server error", zap.Error(err))
		}
	}()

	s.l.Info("web API listening with automatic TLS", zap.String("addr", s.Addr), zap.Strings("domains", domains))
	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type stateResponse struct {
	Ledger      ledger.Snapshot             `json:"ledger"`
	Instruments []internal.InstrumentStatus `json:"instruments"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, stateResponse{
		Ledger:      s.ledger.Snapshot(),
		Instruments: s.ctrl.Instruments(),
	})
}

func (s *Server) handleListInstruments(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Instruments())
}

// instrumentRequest carries optional strategy fields; missing ones keep
// the current (or default) values.
type instrumentRequest struct {
	Instrument string           `json:"instrument"`
	TargetRate *decimal.Decimal `json:"target_rate"`
	DropRate   *decimal.Decimal `json:"drop_rate"`
	MaxSteps   *int             `json:"max_steps"`
}

func (req instrumentRequest) apply(cfg domain.StrategyConfig) domain.StrategyConfig {
	if req.TargetRate != nil {
		cfg.TargetRate = *req.TargetRate
	}
	if req.DropRate != nil {
		cfg.DropRate = *req.DropRate
	}
	if req.MaxSteps != nil {
		cfg.MaxSteps = *req.MaxSteps
	}
	return cfg
}

func (s *Server) handleAddInstrument(w http.ResponseWriter, r *http.Request) {
	var req instrumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "decode request"))
		return
	}

	instrument, err := domain.ParsePair(req.Instrument)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	cfg := req.apply(s.ctrl.Defaults(instrument))
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if _, err := s.ctrl.AddInstrument(cfg); err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusCreated, internal.InstrumentStatus{Config: cfg})
}

func (s *Server) handleUpdateInstrument(w http.ResponseWriter, r *http.Request) {
	instrument, ok := s.instrumentVar(w, r)
	if !ok {
		return
	}

	engine, found := s.ctrl.Engine(instrument)
	if !found {
		writeError(w, http.StatusNotFound, errors.Wrap(internal.ErrUnknownInstrument, instrument.String()))
		return
	}

	var req instrumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "decode request"))
		return
	}

	cfg := req.apply(engine.Config())
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.ctrl.UpdateConfig(cfg); err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, internal.InstrumentStatus{Config: cfg, Running: engine.Running()})
}

type transitionResponse struct {
	Instrument string `json:"instrument"`
	Changed    bool   `json:"changed"`
	Running    bool   `json:"running"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.ctrl.Start, true)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.ctrl.Stop, false)
}

func (s *Server) transition(w http.ResponseWriter, r *http.Request, fn func(domain.Pair) (bool, error), running bool) {
	instrument, ok := s.instrumentVar(w, r)
	if !ok {
		return
	}

	changed, err := fn(instrument)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, transitionResponse{
		Instrument: instrument.String(),
		Changed:    changed,
		Running:    running,
	})
}

func (s *Server) handleReportStream(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("report stream not available"))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	filter := r.URL.Query().Get("instrument")
	if filter != "" {
		pair, err := domain.ParsePair(filter)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		filter = pair.String()
	}

	ch := s.reports.Subscribe()
	defer s.reports.Unsubscribe(ch)

	setStreamHeaders(w)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case msg, open := <-ch:
			if !open {
				return
			}
			if filter != "" && msg.Instrument != filter {
				continue
			}
			event := "log"
			if msg.Report != nil {
				event = "report"
			}
			if err := writeEvent(w, event, msg); err != nil {
				s.l.Warn("report stream write failed", zap.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) handleTradeStream(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("trade journal not available"))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	lastSeq := uint64(0)
	if raw := r.URL.Query().Get("after"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.Wrap(err, "invalid 'after'"))
			return
		}
		lastSeq = parsed
	}

	sendEvents := func() error {
		records, err := s.journal.EventsAfter(lastSeq)
		if err != nil {
			return err
		}
		for _, record := range records {
			if err := writeEvent(w, "trade", record); err != nil {
				return err
			}
			lastSeq = record.Seq
		}
		if len(records) > 0 {
			flusher.Flush()
		}
		return nil
	}

	setStreamHeaders(w)
	if err := sendEvents(); err != nil {
		s.l.Error("trade stream initial load", zap.Error(err))
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	pollTicker := time.NewTicker(journalPollInterval)
	defer pollTicker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendEvents(); err != nil {
				s.l.Warn("trade stream poll err", zap.Error(err))
			}
		}
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

func (s *Server) instrumentVar(w http.ResponseWriter, r *http.Request) (domain.Pair, bool) {
	instrument, err := domain.ParsePair(mux.Vars(r)["instrument"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return domain.Pair{}, false
	}
	return instrument, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, internal.ErrUnknownInstrument):
		return http.StatusNotFound
	case errors.Is(err, internal.ErrInstrumentExists):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func setStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

func writeEvent(w http.ResponseWriter, event string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
