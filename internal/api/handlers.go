package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tabscan/tabscan/internal/models"
	"github.com/tabscan/tabscan/internal/storage"
)

type claimRequest struct {
	Nickname string   `json:"nickname"`
	ItemIDs  []string `json:"item_ids"`
}

type releaseRequest struct {
	Nickname string `json:"nickname"`
}

// handlePublish validates and publishes a draft bill.
// POST /api/bills
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var draft models.DraftBill
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	board, err := s.board.Publish(r.Context(), &draft)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	billsPublished.Inc()

	writeJSON(w, http.StatusCreated, map[string]any{
		"share_id": board.ID,
		"board":    board,
	})
}

// handleBoard returns the board for a share id.
// GET /api/share/{shareID}
func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	board, err := s.board.GetBoard(r.Context(), chi.URLParam(r, "shareID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// handleClaim claims a batch of items for a nickname. Items unavailable to
// the claimant come back in "rejected"; that is data, not an HTTP error.
// POST /api/share/{shareID}/claims
func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.claims.ClaimItems(r.Context(), chi.URLParam(r, "shareID"), req.Nickname, req.ItemIDs)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	claimOutcomes.WithLabelValues("claimed").Add(float64(len(result.Claimed)))
	claimOutcomes.WithLabelValues("rejected").Add(float64(len(result.Rejected)))

	writeJSON(w, http.StatusOK, result)
}

// handleRelease releases every item the nickname owns on this board.
// POST /api/share/{shareID}/release
func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	var req releaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	released, err := s.claims.ReleaseItems(r.Context(), chi.URLParam(r, "shareID"), req.Nickname)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	itemsReleased.Add(float64(released))

	writeJSON(w, http.StatusOK, map[string]int{"released": released})
}

// handleAllocations returns the per-participant breakdown.
// GET /api/share/{shareID}/allocations
func (s *Server) handleAllocations(w http.ResponseWriter, r *http.Request) {
	allocations, err := s.board.GetAllocations(r.Context(), chi.URLParam(r, "shareID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, allocations)
}

// handleEvents streams live ownership changes for one board via SSE.
// GET /api/share/{shareID}/events
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	shareID := chi.URLParam(r, "shareID")

	// Reject unknown links before holding a stream open.
	if _, err := s.board.GetBoard(r.Context(), shareID); err != nil {
		s.writeServiceError(w, err)
		return
	}

	sseClients.Inc()
	defer sseClients.Dec()
	s.hub.ServeSSE(w, r, shareID)
}

// writeServiceError translates service errors into the API taxonomy.
// No raw storage error ever reaches a client.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "this link is invalid or expired")
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
