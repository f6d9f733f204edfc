package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleStockPrice(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if !validStockCode(code) {
		writeError(w, http.StatusBadRequest, "invalid stock code")
		return
	}

	quote, err := s.opts.Market.StockPrice(r.Context(), code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (s *Server) handleStockHistory(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if !validStockCode(code) {
		writeError(w, http.StatusBadRequest, "invalid stock code")
		return
	}

	to := time.Now()
	from := to.AddDate(0, -3, 0)
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

	period := r.URL.Query().Get("period")
	switch period {
	case "":
		period = "D"
	case "D", "W", "M":
	default:
		writeError(w, http.StatusBadRequest, "period must be D, W or M")
		return
	}

	candles, err := s.opts.Market.StockHistory(r.Context(), code, from, to, period)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stock_code": code,
		"period":     period,
		"candles":    candles,
	})
}

func (s *Server) handleInvestorTrend(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if !validStockCode(code) {
		writeError(w, http.StatusBadRequest, "invalid stock code")
		return
	}

	flows, err := s.opts.Market.InvestorTrend(r.Context(), code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stock_code": code,
		"investors":  flows,
	})
}

func (s *Server) handleStockSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 100 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	// Local snapshots first; fall back to a DART company search when the
	// name is unknown locally.
	stocks, err := s.opts.Stores.Stocks.SearchStocks(r.Context(), query, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if len(stocks) > 0 {
		writeJSON(w, http.StatusOK, map[string]any{"results": stocks, "source": "local"})
		return
	}

	matches, err := s.opts.Disclosure.SearchCompanyByName(r.Context(), query)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": matches, "source": "dart"})
}

func (s *Server) handleMarketIndices(w http.ResponseWriter, r *http.Request) {
	indices, err := s.opts.Market.MarketIndices(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"indices": indices})
}

func (s *Server) handleMarketSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Explainer.DailyMarketSummary(r.Context()))
}

func (s *Server) handleCryptoTicker(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	ticker, err := s.opts.Crypto.Ticker(r.Context(), symbol)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticker)
}

// validStockCode accepts six-digit KRX codes.
func validStockCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
