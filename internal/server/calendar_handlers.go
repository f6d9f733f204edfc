package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"invest-calendar/internal/auth"
	"invest-calendar/internal/storage"
)

var knownEventTypes = map[storage.EventType]bool{
	storage.EventEarnings:   true,
	storage.EventDisclosure: true,
	storage.EventHoliday:    true,
	storage.EventDividend:   true,
	storage.EventIPO:        true,
	storage.EventEconomic:   true,
	storage.EventCustom:     true,
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, -1)

	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.Parse(dateFormat, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from date")
			return
		}
		from = parsed
	}
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.Parse(dateFormat, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to date")
			return
		}
		to = parsed
	}
	if from.After(to) {
		writeError(w, http.StatusBadRequest, "from must not be after to")
		return
	}

	eventType := storage.EventType(r.URL.Query().Get("type"))
	if eventType != "" && !knownEventTypes[eventType] {
		writeError(w, http.StatusBadRequest, "unknown event type")
		return
	}

	events, err := s.opts.Stores.Events.ListEvents(r.Context(), from, to, eventType)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	event, err := s.opts.Stores.Events.EventByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

type eventRequest struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	StockCode   string `json:"stock_code"`
	StockName   string `json:"stock_name"`
	EventDate   string `json:"event_date"`
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())

	var body eventRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(body.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	eventType := storage.EventType(body.Type)
	if eventType == "" {
		eventType = storage.EventCustom
	}
	if !knownEventTypes[eventType] {
		writeError(w, http.StatusBadRequest, "unknown event type")
		return
	}

	date, err := time.Parse(dateFormat, body.EventDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event date")
		return
	}

	event, err := s.opts.Stores.Events.InsertEvent(r.Context(), storage.CalendarEvent{
		Type:        eventType,
		Title:       strings.TrimSpace(body.Title),
		Description: body.Description,
		StockCode:   body.StockCode,
		StockName:   body.StockName,
		EventDate:   date,
		Source:      "user",
		CreatedBy:   &user.ID,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	var body eventRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(body.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	date, err := time.Parse(dateFormat, body.EventDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event date")
		return
	}

	if err := s.opts.Stores.Events.UpdateUserEvent(r.Context(), id, user.ID, strings.TrimSpace(body.Title), body.Description, date); err != nil {
		writeServiceError(w, err)
		return
	}

	event, err := s.opts.Stores.Events.EventByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFrom(r.Context())

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	if err := s.opts.Stores.Events.DeleteUserEvent(r.Context(), id, user.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleSyncEvents(w http.ResponseWriter, r *http.Request) {
	if s.opts.SyncJob == nil {
		writeError(w, http.StatusNotImplemented, "event sync is not configured")
		return
	}
	if err := s.opts.SyncJob.Run(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "synced"})
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}
