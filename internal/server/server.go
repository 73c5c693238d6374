// Package server exposes the ingestion pipeline over HTTP. Handlers
// are pure glue: authenticate the caller, build the per-request Gmail
// source from the bearer token, invoke one orchestrator operation, and
// relay its result.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/mailsift/mailsift/internal/auth"
	"github.com/mailsift/mailsift/internal/classifier"
	"github.com/mailsift/mailsift/internal/gmail"
	"github.com/mailsift/mailsift/internal/ingest"
)

// defaultBatch is how many new messages one API call processes unless
// the caller asks otherwise.
const defaultBatch = 30

// SourceFactory builds a message source for one authenticated request.
type SourceFactory func(ctx context.Context, accessToken string) (ingest.Source, error)

// Server wires HTTP routes to the orchestrator.
type Server struct {
	orch      *ingest.Orchestrator
	gateway   classifier.Gateway
	records   ingest.RecordStore
	newSource SourceFactory
	log       *slog.Logger
}

// New builds a server. A nil factory defaults to Gmail-over-bearer-token.
func New(orch *ingest.Orchestrator, gateway classifier.Gateway, records ingest.RecordStore, factory SourceFactory, log *slog.Logger) *Server {
	if factory == nil {
		factory = func(ctx context.Context, accessToken string) (ingest.Source, error) {
			svc, err := auth.ServiceFromToken(ctx, accessToken)
			if err != nil {
				return nil, err
			}
			return gmail.NewSource(svc, log), nil
		}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{orch: orch, gateway: gateway, records: records, newSource: factory, log: log}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /fetch-and-classify", s.handleFetchAndClassify)
	mux.HandleFunc("GET /emails", s.handleEmails)
	mux.HandleFunc("POST /reclassify/{id}", s.handleReclassify)
	mux.HandleFunc("POST /clear", s.handleClear)
	mux.HandleFunc("GET /probabilities", s.handleProbabilities)
	return mux
}

// handleFetchAndClassify ingests up to max_results new messages and
// returns only what this call classified.
func (s *Server) handleFetchAndClassify(w http.ResponseWriter, r *http.Request) {
	src, ok := s.authSource(w, r)
	if !ok {
		return
	}

	requested := intQuery(r, "max_results", defaultBatch)
	query := r.URL.Query().Get("q")

	result, err := s.orch.Ingest(r.Context(), src, query, requested)
	if err != nil {
		s.log.Error("fetch-and-classify failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleEmails ingests any new messages, then returns everything
// stored.
func (s *Server) handleEmails(w http.ResponseWriter, r *http.Request) {
	src, ok := s.authSource(w, r)
	if !ok {
		return
	}

	if _, err := s.orch.Ingest(r.Context(), src, "", defaultBatch); err != nil {
		s.log.Error("emails: ingest failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	records, err := s.records.GetAll()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleReclassify(w http.ResponseWriter, r *http.Request) {
	src, ok := s.authSource(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing message id"))
		return
	}

	rec, err := s.orch.Reclassify(r.Context(), src, id)
	if err != nil {
		s.log.Error("reclassify failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.bearerToken(w, r); !ok {
		return
	}
	if err := s.orch.ClearAll(); err != nil {
		s.log.Error("clear failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleProbabilities(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.bearerToken(w, r); !ok {
		return
	}

	subject := r.URL.Query().Get("subject")
	body := r.URL.Query().Get("body")

	probs, err := s.gateway.AllProbabilities(r.Context(), subject, body)
	if err != nil {
		s.log.Error("probabilities failed", "error", err)
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, probs)
}

// authSource authenticates the request and builds its Gmail source.
func (s *Server) authSource(w http.ResponseWriter, r *http.Request) (ingest.Source, bool) {
	token, ok := s.bearerToken(w, r)
	if !ok {
		return nil, false
	}

	src, err := s.newSource(r.Context(), token)
	if err != nil {
		s.log.Warn("could not build mail source", "error", err)
		writeError(w, http.StatusUnauthorized, fmt.Errorf("build mail source: %w", err))
		return nil, false
	}
	return src, true
}

func (s *Server) bearerToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("missing or invalid token"))
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("missing token"))
		return "", false
	}
	return token, true
}

func intQuery(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"detail": err.Error()})
}
