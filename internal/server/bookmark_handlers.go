package server

import (
	"net/http"

	"invest-calendar/internal/auth"
	"invest-calendar/internal/storage"
)

type bookmarkRequest struct {
	EventID int64  `json:"event_id"`
	Memo    string `json:"memo"`
}

func (s *Server) handleListBookmarks(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())

	bookmarks, err := s.opts.Stores.Bookmarks.ListBookmarks(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookmarks": bookmarks})
}

func (s *Server) handleCreateBookmark(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())

	var body bookmarkRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.EventID <= 0 {
		writeError(w, http.StatusBadRequest, "event_id is required")
		return
	}

	// The event must exist before pinning it.
	if _, err := s.opts.Stores.Events.EventByID(r.Context(), body.EventID); err != nil {
		writeServiceError(w, err)
		return
	}

	bookmark, err := s.opts.Stores.Bookmarks.CreateBookmark(r.Context(), storage.Bookmark{
		UserID:  user.ID,
		EventID: body.EventID,
		Memo:    body.Memo,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bookmark)
}

func (s *Server) handleDeleteBookmark(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bookmark id")
		return
	}

	if err := s.opts.Stores.Bookmarks.DeleteBookmark(r.Context(), id, user.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
