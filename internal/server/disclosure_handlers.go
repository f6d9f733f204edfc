package server

import (
	"net/http"
	"strconv"
	"strings"
)

func (s *Server) handleDisclosures(w http.ResponseWriter, r *http.Request) {
	days := 1
	if v := r.URL.Query().Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 30 {
			writeError(w, http.StatusBadRequest, "days must be between 1 and 30")
			return
		}
		days = parsed
	}

	corpClass := r.URL.Query().Get("corp_class")
	switch corpClass {
	case "", "Y", "K", "N", "E":
	default:
		writeError(w, http.StatusBadRequest, "corp_class must be Y, K, N or E")
		return
	}

	importantOnly := r.URL.Query().Get("important_only") == "true"

	disclosures, err := s.opts.Disclosure.RecentDisclosures(r.Context(), corpClass, days, importantOnly)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"disclosures": disclosures})
}

type explainRequest struct {
	Term    string `json:"term,omitempty"`
	Title   string `json:"title,omitempty"`
	Details string `json:"details,omitempty"`
	Context string `json:"context,omitempty"`
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	var body explainRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch {
	case strings.TrimSpace(body.Term) != "":
		writeJSON(w, http.StatusOK, s.opts.Explainer.ExplainTerm(r.Context(), body.Term, body.Context))
	case strings.TrimSpace(body.Title) != "":
		writeJSON(w, http.StatusOK, s.opts.Explainer.ExplainMarketEvent(r.Context(), body.Title, body.Details))
	default:
		writeError(w, http.StatusBadRequest, "either term or title is required")
	}
}
