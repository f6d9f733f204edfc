package server

import (
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"invest-calendar/internal/auth"
	"invest-calendar/internal/storage"
)

type watchRequest struct {
	StockCode   string `json:"stock_code"`
	StockName   string `json:"stock_name"`
	TargetPrice string `json:"target_price,omitempty"`
}

func (s *Server) handleListWatchlist(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())

	items, err := s.opts.Stores.Watchlist.ListWatchlist(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"watchlist": items})
}

func (s *Server) handleAddWatch(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())

	var body watchRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validStockCode(body.StockCode) {
		writeError(w, http.StatusBadRequest, "invalid stock code")
		return
	}

	target, err := parseTargetPrice(body.TargetPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid target price")
		return
	}

	item, err := s.opts.Stores.Watchlist.AddWatch(r.Context(), storage.WatchlistItem{
		UserID:      user.ID,
		StockCode:   body.StockCode,
		StockName:   body.StockName,
		TargetPrice: target,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleUpdateWatch(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid watchlist id")
		return
	}

	var body watchRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	target, err := parseTargetPrice(body.TargetPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid target price")
		return
	}

	if err := s.opts.Stores.Watchlist.UpdateTargetPrice(r.Context(), id, user.ID, target); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleDeleteWatch(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid watchlist id")
		return
	}

	if err := s.opts.Stores.Watchlist.DeleteWatch(r.Context(), id, user.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// parseTargetPrice treats "" as no target. Negative and zero targets are
// rejected.
func parseTargetPrice(raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, err
	}
	if !parsed.IsPositive() {
		return nil, fmt.Errorf("target price must be positive")
	}
	return &parsed, nil
}
