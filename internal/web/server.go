// Package web exposes the dashboard over HTTP: a JSON API for reads and the three
// user actions, and an SSE stream of price snapshots.
package web

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/vadiminshakov/materialwatch/internal/domain"
	"github.com/vadiminshakov/materialwatch/internal/events"
	"github.com/vadiminshakov/materialwatch/internal/services/market/analysis"
	"github.com/vadiminshakov/materialwatch/internal/services/market/simulator"
)

const (
	snapshotPollInterval = 3 * time.Second
	heartbeatInterval    = 20 * time.Second
)

type dashboard interface {
	Snapshot() domain.PriceSnapshot
	SelectedID() domain.MaterialID
	AddMaterial() (domain.Material, error)
	SelectMaterial(id domain.MaterialID) bool
	AnalyzeSelected() domain.TrendAnalysis
	Analyze(id domain.MaterialID) (domain.TrendAnalysis, bool)
}

type snapshotReader interface {
	SnapshotsAfter(index uint64) ([]domain.PriceSnapshotRecord, error)
}

// Server exposes HTTP endpoints for the dashboard and its SSE stream.
type Server struct {
	Addr      string
	Dashboard dashboard
	Store     snapshotReader
	Updates   *events.Broadcaster
	logger    *zap.Logger
}

// NewServer creates a new web server instance. store and updates may be nil,
// in which case the stream endpoint reports itself unavailable.
func NewServer(addr string, d dashboard, store snapshotReader, updates *events.Broadcaster, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{Addr: addr, Dashboard: d, Store: store, Updates: updates, logger: logger}
}

// Handler returns the routed endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/materials", s.handleMaterials)
	mux.HandleFunc("POST /api/materials", s.handleAddMaterial)
	mux.HandleFunc("GET /api/selection", s.handleSelection)
	mux.HandleFunc("POST /api/selection", s.handleSelect)
	mux.HandleFunc("GET /api/analysis", s.handleAnalysis)
	mux.HandleFunc("GET /prices/stream", s.handlePriceStream)
	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

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

	s.logger.Info("dashboard listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartWithAutoTLS runs an HTTPS server with automatic TLS certificates via ACME.
// It also starts an HTTP server on port 80 to handle ACME HTTP-01 challenges.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if ctx == nil {
		ctx = context.Background()
	}
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
			s.logger.Error("http (acme) server shutdown error", zap.Error(err))
		}
		if err := httpsSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("https server shutdown error", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http (acme) server error", zap.Error(err))
		}
	}()

	s.logger.Info("dashboard listening with automatic TLS", zap.String("addr", s.Addr), zap.Strings("domains", domains))
	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type materialsResponse struct {
	SelectedID domain.MaterialID `json:"selected_id"`
	Materials  []materialView    `json:"materials"`
}

type materialView struct {
	domain.Material
	Change   domain.PriceChange `json:"change"`
	Selected bool               `json:"selected"`
}

type selectionResponse struct {
	SelectedID domain.MaterialID `json:"selected_id"`
	Changed    bool              `json:"changed"`
}

type analysisResponse struct {
	domain.TrendAnalysis
	BarHeights []int `json:"bar_heights"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleMaterials(w http.ResponseWriter, r *http.Request) {
	snap := s.Dashboard.Snapshot()

	views := make([]materialView, 0, len(snap.Materials))
	for _, m := range snap.Materials {
		views = append(views, materialView{Material: m, Change: m.Change(), Selected: m.ID == snap.SelectedID})
	}

	s.writeJSON(w, http.StatusOK, materialsResponse{SelectedID: snap.SelectedID, Materials: views})
}

func (s *Server) handleAddMaterial(w http.ResponseWriter, r *http.Request) {
	m, err := s.Dashboard.AddMaterial()
	if err != nil {
		if errors.Is(err, simulator.ErrNoAvailableNames) {
			s.writeJSON(w, http.StatusConflict, errorResponse{Error: "All available materials have been added!"})
			return
		}
		s.logger.Error("add material failed", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to add material"})
		return
	}

	s.writeJSON(w, http.StatusCreated, materialView{Material: m, Change: m.Change()})
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, selectionResponse{SelectedID: s.Dashboard.SelectedID()})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	id, err := parseMaterialID(r.URL.Query().Get("id"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	changed := s.Dashboard.SelectMaterial(id)
	s.writeJSON(w, http.StatusOK, selectionResponse{SelectedID: s.Dashboard.SelectedID(), Changed: changed})
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	var res domain.TrendAnalysis
	if raw := r.URL.Query().Get("id"); raw != "" {
		id, err := parseMaterialID(raw)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		var ok bool
		res, ok = s.Dashboard.Analyze(id)
		if !ok {
			s.writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("material %d not found", id)})
			return
		}
	} else {
		res = s.Dashboard.AnalyzeSelected()
	}

	s.writeJSON(w, http.StatusOK, analysisResponse{
		TrendAnalysis: res,
		BarHeights:    analysis.BarHeights(res.Normalized, analysis.DefaultBarMin, analysis.DefaultBarMax),
	})
}

func (s *Server) handlePriceStream(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "price journal not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	var updates chan events.Update
	if s.Updates != nil {
		updates = s.Updates.Subscribe()
		defer s.Updates.Unsubscribe(updates)
	}

	// send a comment heartbeat so proxies keep connection
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(snapshotPollInterval)
	defer pollTicker.Stop()

	lastIndex := parseLastEventID(r.Header.Get("Last-Event-ID"), r.URL.Query().Get("last_event_id"))
	sendSnapshots := func() error {
		records, err := s.Store.SnapshotsAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, record := range records {
			payload, err := json.Marshal(record.Snapshot)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "id: %d\n", record.Index)
			fmt.Fprintf(w, "event: prices\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			lastIndex = record.Index
		}
		return nil
	}

	if err := sendSnapshots(); err != nil {
		http.Error(w, "failed to load snapshots", http.StatusInternalServerError)
		s.logger.Error("price stream initial load", zap.Error(err))
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case u, open := <-updates:
			if !open {
				return
			}
			if u.Kind == events.KindNotice {
				payload, err := json.Marshal(u)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: notice\n")
				fmt.Fprintf(w, "data: %s\n\n", payload)
				flusher.Flush()
				continue
			}
			if err := sendSnapshots(); err != nil {
				s.logger.Warn("price stream push err", zap.Error(err))
			}
		case <-pollTicker.C:
			if err := sendSnapshots(); err != nil {
				s.logger.Warn("price stream poll err", zap.Error(err))
			}
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("write response", zap.Error(err))
	}
}

func parseMaterialID(raw string) (domain.MaterialID, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid material id %q", raw)
	}
	return domain.MaterialID(id), nil
}

func parseLastEventID(header, query string) uint64 {
	idStr := header
	if idStr == "" {
		idStr = query
	}
	if idStr == "" {
		return 0
	}

	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
