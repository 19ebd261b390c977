// Package server exposes runs over HTTP: list and inspect past runs, fetch their logs
// and screenshots, and start a new run.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/phuslu/log"
	"github.com/rs/cors"

	"logcheck/internal/browser"
	"logcheck/internal/config"
	"logcheck/internal/runner"
)

// ErrRunInProgress is reported while another run holds the browser.
var ErrRunInProgress = errors.New("a run is already in progress")

// Server serves the runs under Config.Workspace.
type Server struct {
	cfg       config.Config
	newDriver browser.Factory
	logger    *log.Logger

	mu sync.Mutex // held for the duration of a run
}

// New returns a Server. newDriver may be nil to use the real browser.
func New(cfg config.Config, newDriver browser.Factory, logger *log.Logger) *Server {
	if logger == nil {
		logger = &log.DefaultLogger
	}
	return &Server{cfg: cfg, newDriver: newDriver, logger: logger}
}

// Handler builds the router with CORS applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/v1/runs", s.listRuns).Methods(http.MethodGet)
	r.HandleFunc("/v1/runs", s.startRun).Methods(http.MethodPost)
	r.HandleFunc("/v1/runs/{id}", s.getRun).Methods(http.MethodGet)
	r.HandleFunc("/v1/runs/{id}/logs", s.getLogs).Methods(http.MethodGet)

	runsDir := filepath.Join(s.cfg.Workspace, "runs")
	r.PathPrefix("/runs/").Handler(http.StripPrefix("/runs/", http.FileServer(http.Dir(runsDir))))

	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(r)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"ok": "true"})
}

// runView is a manifest with screenshot links served by this server.
type runView struct {
	runner.Manifest
	Links []string `json:"links"`
}

func viewOf(m runner.Manifest) runView {
	v := runView{Manifest: m, Links: []string{}}
	for _, shot := range m.Screenshots {
		v.Links = append(v.Links, "/runs/"+m.RunID+"/artifacts/"+shot.Name)
	}
	return v
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	ids, err := runner.FindRuns(s.cfg.Workspace)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	views := make([]runView, 0, len(ids))
	for _, id := range ids {
		m, err := runner.LoadManifest(runner.ManifestPath(s.cfg.Workspace, id))
		if err != nil {
			// a run still in progress has no manifest yet
			continue
		}
		views = append(views, viewOf(m))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !validID(id) {
		writeError(w, http.StatusBadRequest, errors.New("invalid run id"))
		return
	}
	m, err := runner.LoadManifest(runner.ManifestPath(s.cfg.Workspace, id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusNotFound, errors.New("not found"))
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(m))
}

func (s *Server) getLogs(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !validID(id) {
		writeError(w, http.StatusBadRequest, errors.New("invalid run id"))
		return
	}
	logPath := filepath.Join(s.cfg.Workspace, "runs", id, "logs", "runner.ndjson")
	if _, err := os.Stat(logPath); err != nil {
		writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	http.ServeFile(w, r, logPath)
}

type runRequest struct {
	URL      string `json:"url"`
	Label    string `json:"label"`
	Engine   string `json:"engine"`
	Headless *bool  `json:"headless"`
}

func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	// An empty body, chunked or not, means no overrides.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	cfg := s.cfg
	if req.URL != "" {
		cfg.TargetURL = req.URL
	}
	if req.Label != "" {
		cfg.Label = req.Label
	}
	if req.Engine != "" {
		cfg.Engine = req.Engine
	}
	if req.Headless != nil {
		cfg.Headless = *req.Headless
	}
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if !s.mu.TryLock() {
		writeError(w, http.StatusConflict, ErrRunInProgress)
		return
	}
	defer s.mu.Unlock()

	s.logger.Info().Str("url", cfg.TargetURL).Str("engine", cfg.Engine).Msg("run requested")
	// the run finishes even if the client goes away
	res, err := runner.Run(context.WithoutCancel(r.Context()), runner.Options{Config: cfg, NewDriver: s.newDriver})
	if err != nil {
		s.logger.Warn().Err(err).Str("run_id", res.RunID).Msg("run failed")
		if res.RunID == "" {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusUnprocessableEntity, viewOf(res.Manifest))
		return
	}
	writeJSON(w, http.StatusOK, viewOf(res.Manifest))
}

// validID keeps run ids to a single path element.
func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
