// Package web serves the lexideck JSON API.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/conorfennell/lexideck/internal/domain"
	"github.com/conorfennell/lexideck/internal/review"
	"github.com/conorfennell/lexideck/internal/sm2"
	"github.com/conorfennell/lexideck/internal/storage"
	"github.com/conorfennell/lexideck/internal/sync"
)

// Store is the storage the server reads sources and health from.
type Store interface {
	Ping(ctx context.Context) error
	GetAllSources(ctx context.Context) ([]storage.Source, error)
	FindSourceByPath(ctx context.Context, path string) (*storage.Source, error)
	InsertSource(ctx context.Context, path, sourceType string) (int64, error)
	DeleteSource(ctx context.Context, sourceID int64) error
}

// Syncer runs source synchronisation.
type Syncer interface {
	Run(ctx context.Context) ([]sync.Report, error)
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	db      Store
	svc     *review.Service
	syncer  Syncer
	logger  *slog.Logger
	router  chi.Router
	started time.Time
}

// NewServer creates and configures a new server.
func NewServer(db Store, svc *review.Service, syncer Syncer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		db:      db,
		svc:     svc,
		syncer:  syncer,
		logger:  logger.With("component", "web"),
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth())
		r.Get("/deck", s.handleGetDeck())

		r.Get("/review/next", s.handleGetNextReview())
		r.Post("/review/{hash}", s.handlePostReview())
		r.Post("/review/{hash}/postpone", s.handlePostpone())
		r.Get("/cards/{hash}/history", s.handleGetHistory())

		r.Get("/sources", s.handleGetSources())
		r.Post("/sources", s.handlePostSource())
		r.Delete("/sources/{id}", s.handleDeleteSource())
		r.Post("/sync", s.handlePostSync())
	})

	s.router = r
}

type cardResponse struct {
	Hash         string     `json:"hash"`
	Word         string     `json:"word"`
	Translation  string     `json:"translation"`
	Note         string     `json:"note,omitempty"`
	Repetitions  int        `json:"repetitions"`
	Interval     int        `json:"interval_days"`
	EaseFactor   float64    `json:"ease_factor"`
	LastReviewed *time.Time `json:"last_reviewed,omitempty"`
	NextReview   *time.Time `json:"next_review,omitempty"`
}

type reviewLogResponse struct {
	ID          string    `json:"id"`
	CardHash    string    `json:"card_hash"`
	Quality     int       `json:"quality"`
	Grade       string    `json:"grade"`
	ReviewedAt  time.Time `json:"reviewed_at"`
	Repetitions int       `json:"repetitions"`
	Interval    int       `json:"interval_days"`
	EaseFactor  float64   `json:"ease_factor"`
	NextReview  time.Time `json:"next_review"`
}

type sourceResponse struct {
	ID          int64      `json:"id"`
	Path        string     `json:"path"`
	Type        string     `json:"type"`
	LastScanned *time.Time `json:"last_scanned,omitempty"`
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func toCardResponse(c domain.MemoryCard) cardResponse {
	return cardResponse{
		Hash:         c.Hash,
		Word:         c.Word,
		Translation:  c.Translation,
		Note:         c.Note,
		Repetitions:  c.Repetitions,
		Interval:     c.Interval,
		EaseFactor:   c.EaseFactor,
		LastReviewed: optionalTime(c.LastReviewed),
		NextReview:   optionalTime(c.NextReview),
	}
}

func toSourceResponse(src storage.Source) sourceResponse {
	resp := sourceResponse{ID: src.ID, Path: src.Path, Type: src.Type}
	if src.LastScanned.Valid {
		resp.LastScanned = &src.LastScanned.Time
	}
	return resp
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbOK := s.db.Ping(r.Context()) == nil
		status := "ok"
		if !dbOK {
			status = "degraded"
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"status": status,
			"db":     dbOK,
			"uptime": time.Since(s.started).Seconds(),
		})
	}
}

// handleGetDeck reports deck counts.
func (s *Server) handleGetDeck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := s.svc.Stats(r.Context())
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, stats)
	}
}

// handleGetNextReview returns the next due card, or 204 when nothing is due.
func (s *Server) handleGetNextReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		card, err := s.svc.Next(r.Context())
		if errors.Is(err, review.ErrNoDueCards) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, toCardResponse(card))
	}
}

type gradeRequest struct {
	Quality *int `json:"quality" validate:"required,min=0,max=5"`
}

// handlePostReview grades a card and returns its new schedule.
func (s *Server) handlePostReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gradeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.respondError(w, r, err)
			return
		}
		card, err := s.svc.Grade(r.Context(), chi.URLParam(r, "hash"), sm2.Quality(*req.Quality))
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, toCardResponse(card))
	}
}

type postponeRequest struct {
	Days int `json:"days" validate:"min=1,max=36500"`
}

func (s *Server) handlePostpone() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req postponeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.respondError(w, r, err)
			return
		}
		card, err := s.svc.Postpone(r.Context(), chi.URLParam(r, "hash"), req.Days)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, toCardResponse(card))
	}
}

// handleGetHistory lists a card's reviews, newest first. ?limit=n caps the
// result.
func (s *Server) handleGetHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				s.respondError(w, r, fmt.Errorf("%w: limit must be a non-negative integer", errInvalidRequest))
				return
			}
			limit = n
		}

		logs, err := s.svc.History(r.Context(), chi.URLParam(r, "hash"), limit)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		resp := make([]reviewLogResponse, 0, len(logs))
		for _, l := range logs {
			resp = append(resp, reviewLogResponse{
				ID:          l.ID,
				CardHash:    l.CardHash,
				Quality:     l.Quality,
				Grade:       sm2.Quality(l.Quality).String(),
				ReviewedAt:  l.ReviewedAt,
				Repetitions: l.Repetitions,
				Interval:    l.Interval,
				EaseFactor:  l.EaseFactor,
				NextReview:  l.NextReview,
			})
		}
		respondJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleGetSources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sources, err := s.db.GetAllSources(r.Context())
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		resp := make([]sourceResponse, 0, len(sources))
		for _, src := range sources {
			resp = append(resp, toSourceResponse(src))
		}
		respondJSON(w, http.StatusOK, resp)
	}
}

type sourceRequest struct {
	Path string `json:"path" validate:"required"`
}

func (s *Server) handlePostSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sourceRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.respondError(w, r, err)
			return
		}
		src, err := sync.AddSource(r.Context(), s.db, req.Path)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		s.logger.Info("source added", "id", src.ID, "type", src.Type, "path", src.Path)
		respondJSON(w, http.StatusCreated, toSourceResponse(src))
	}
}

func (s *Server) handleDeleteSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			s.respondError(w, r, fmt.Errorf("%w: invalid source ID %q", errInvalidRequest, chi.URLParam(r, "id")))
			return
		}
		if err := s.db.DeleteSource(r.Context(), id); err != nil {
			s.respondError(w, r, err)
			return
		}
		s.logger.Info("source deleted", "id", id)
		w.WriteHeader(http.StatusNoContent)
	}
}

// handlePostSync runs a sync in the foreground and returns its reports.
func (s *Server) handlePostSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reports, err := s.syncer.Run(r.Context())
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		if reports == nil {
			reports = []sync.Report{}
		}
		respondJSON(w, http.StatusOK, reports)
	}
}
