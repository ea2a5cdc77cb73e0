// Package server exposes the remediation engine over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/autopilot-remediation/internal/batch"
	"github.com/invisible-tech/autopilot-remediation/internal/config"
	"github.com/invisible-tech/autopilot-remediation/internal/remediation"
	"github.com/invisible-tech/autopilot-remediation/internal/types"
	"github.com/invisible-tech/autopilot-remediation/internal/version"
)

// Server is the HTTP server for the remediation API.
type Server struct {
	cfg        config.ServerConfig
	engine     *remediation.Engine
	processor  *batch.Processor
	log        *logrus.Logger
	httpServer *http.Server
}

// RuleInfo describes one rule of the active rule set.
type RuleInfo struct {
	Position    int            `json:"position"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Action      types.Action   `json:"action"`
	Reason      string         `json:"reason"`
	Severity    types.Severity `json:"severity"`
}

// errorResponse is the JSON body of a 4xx reply.
type errorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

// New creates a new HTTP server evaluating with engine.
func New(cfg config.ServerConfig, engine *remediation.Engine, log *logrus.Logger) *Server {
	mux := http.NewServeMux()
	s := &Server{
		cfg:       cfg,
		engine:    engine,
		processor: batch.NewProcessor(engine, nil, batch.Config{Workers: cfg.Workers, OnInvalid: config.OnInvalidSkip}, log),
		log:       log,
	}
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/rules", s.handleRules)
	mux.HandleFunc("/api/v1/evaluate", s.handleEvaluate)
	mux.HandleFunc("/api/v1/evaluate/csv", s.handleEvaluateCSV)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// ListenAndServe starts the HTTP server. It blocks until the server is closed.
func (s *Server) ListenAndServe() error {
	s.log.WithField("addr", s.cfg.HTTPAddr).Info("Remediation server listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"version": version.Version,
		"rules":   s.engine.RuleSet().Len(),
	})
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rules := s.engine.RuleSet().Rules()
	out := make([]RuleInfo, len(rules))
	for i, rule := range rules {
		out[i] = RuleInfo{
			Position:    i + 1,
			Name:        rule.Name,
			Description: rule.Description,
			Action:      rule.Action,
			Reason:      rule.Reason,
			Severity:    rule.Severity,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody()))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	rec, err := types.ParseEventJSON(body)
	if err != nil {
		var verr *types.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error(), Fields: verr.Fields()})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON: " + err.Error()})
		return
	}
	d := s.engine.Evaluate(&rec)
	s.log.WithFields(logrus.Fields{
		"event_id": d.EventID,
		"action":   d.Action,
		"rule":     d.Rule,
	}).Debug("Evaluated event")
	writeJSON(w, http.StatusOK, d)
}

// handleEvaluateCSV runs a whole CSV batch. Invalid rows are skipped and
// counted in the X-Invalid-Rows header.
func (s *Server) handleEvaluateCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var out bytes.Buffer
	sum, err := s.processor.Run(r.Context(), http.MaxBytesReader(w, r.Body, s.maxBody()), &out)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("X-Run-ID", sum.RunID)
	w.Header().Set("X-Invalid-Rows", strconv.Itoa(sum.Invalid))
	w.WriteHeader(http.StatusOK)
	w.Write(out.Bytes())
}

func (s *Server) maxBody() int64 {
	if s.cfg.MaxBodyBytes > 0 {
		return s.cfg.MaxBodyBytes
	}
	return 10 << 20
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
