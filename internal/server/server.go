// Package server exposes the tracker over a JSON REST API.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/nplace/tracker/internal/model"
	"github.com/nplace/tracker/internal/store"
	"github.com/nplace/tracker/internal/tracker"
)

// Server holds the HTTP handler set.
type Server struct {
	svc   *tracker.Service
	store store.Store
}

// New creates a Server.
func New(svc *tracker.Service, st store.Store) *Server {
	return &Server{svc: svc, store: st}
}

// Router builds the chi router with all API routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/stores", func(r chi.Router) {
			r.Post("/", s.handleCreateStore)
			r.Get("/", s.handleListStores)
			r.Get("/{storeID}", s.handleGetStore)
			r.Delete("/{storeID}", s.handleDeleteStore)
			r.Get("/{storeID}/dashboard", s.handleStoreDashboard)
			r.Post("/{storeID}/keywords", s.handleAddKeyword)
			r.Get("/{storeID}/keywords", s.handleListKeywords)
		})
		r.Route("/keywords/{keywordID}", func(r chi.Router) {
			r.Get("/", s.handleGetKeyword)
			r.Patch("/", s.handleUpdateKeyword)
			r.Delete("/", s.handleDeleteKeyword)
			r.Post("/collect", s.handleCollect)
			r.Get("/rankings", s.handleListRankings)
		})
		r.Get("/dashboard", s.handleDashboard)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Stores ---

func (s *Server) handleCreateStore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NaverPlaceID string `json:"naver_place_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.NaverPlaceID == "" {
		respondError(w, http.StatusBadRequest, "naver_place_id is required")
		return
	}

	created, err := s.svc.RegisterStore(r.Context(), req.NaverPlaceID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListStores(w http.ResponseWriter, r *http.Request) {
	stores, err := s.store.ListStores(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if stores == nil {
		stores = []model.Store{}
	}
	respondJSON(w, http.StatusOK, stores)
}

func (s *Server) handleGetStore(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.GetStore(r.Context(), chi.URLParam(r, "storeID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleDeleteStore(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteStore(r.Context(), chi.URLParam(r, "storeID")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Keywords ---

func (s *Server) handleAddKeyword(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")

	var req struct {
		Keyword        string `json:"keyword"`
		CollectionTime string `json:"collection_time"`
		AlertEnabled   bool   `json:"alert_enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Keyword == "" {
		respondError(w, http.StatusBadRequest, "keyword is required")
		return
	}

	// Reject keywords for stores that do not exist.
	if _, err := s.store.GetStore(r.Context(), storeID); err != nil {
		respondServiceError(w, err)
		return
	}

	kw, err := s.store.AddKeyword(r.Context(), model.TrackedKeyword{
		StoreID:        storeID,
		Keyword:        req.Keyword,
		CollectionTime: req.CollectionTime,
		AlertEnabled:   req.AlertEnabled,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, kw)
}

func (s *Server) handleListKeywords(w http.ResponseWriter, r *http.Request) {
	kws, err := s.store.ListKeywords(r.Context(), chi.URLParam(r, "storeID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if kws == nil {
		kws = []model.TrackedKeyword{}
	}
	respondJSON(w, http.StatusOK, kws)
}

func (s *Server) handleGetKeyword(w http.ResponseWriter, r *http.Request) {
	kw, err := s.store.GetKeyword(r.Context(), chi.URLParam(r, "keywordID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, kw)
}

func (s *Server) handleUpdateKeyword(w http.ResponseWriter, r *http.Request) {
	var upd model.KeywordUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	kw, err := s.store.UpdateKeyword(r.Context(), chi.URLParam(r, "keywordID"), upd)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, kw)
}

func (s *Server) handleDeleteKeyword(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteKeyword(r.Context(), chi.URLParam(r, "keywordID")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Rankings ---

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.CollectRanking(r.Context(), chi.URLParam(r, "keywordID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleListRankings(w http.ResponseWriter, r *http.Request) {
	filter, err := parseSnapshotFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	snaps, err := s.store.ListSnapshots(r.Context(), chi.URLParam(r, "keywordID"), filter)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if snaps == nil {
		snaps = []model.RankingSnapshot{}
	}
	respondJSON(w, http.StatusOK, snaps)
}

// parseSnapshotFilter reads the from/to date query parameters. The to date is
// inclusive, so it extends to the last second of that day.
func parseSnapshotFilter(r *http.Request) (store.SnapshotFilter, error) {
	var filter store.SnapshotFilter

	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, eris.New("invalid from date, expected YYYY-MM-DD")
		}
		filter.From = &from
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		day, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, eris.New("invalid to date, expected YYYY-MM-DD")
		}
		to := day.Add(24*time.Hour - time.Second)
		filter.To = &to
	}
	return filter, nil
}

// --- Dashboard ---

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	boards, err := s.svc.Dashboard(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if boards == nil {
		boards = []model.DashboardStore{}
	}
	respondJSON(w, http.StatusOK, boards)
}

func (s *Server) handleStoreDashboard(w http.ResponseWriter, r *http.Request) {
	ds, err := s.svc.StoreDashboard(r.Context(), chi.URLParam(r, "storeID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ds)
}

// --- Responses ---

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("response encode failed", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func respondServiceError(w http.ResponseWriter, err error) {
	if eris.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	if eris.Is(err, tracker.ErrInvalidPlaceRef) {
		respondError(w, http.StatusBadRequest, "invalid naver_place_id")
		return
	}
	zap.L().Error("request failed", zap.Error(err))
	respondError(w, http.StatusInternalServerError, "internal error")
}
