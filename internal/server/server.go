// Package server exposes the REST API: calendar events, stock data,
// disclosures, AI explanations, bookmarks, watchlists and auth.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"invest-calendar/internal/auth"
	"invest-calendar/internal/config"
	"invest-calendar/internal/scheduler"
	"invest-calendar/internal/storage"
	"invest-calendar/internal/upstream/dart"
	"invest-calendar/internal/upstream/kis"
	"invest-calendar/internal/upstream/perplexity"
	"invest-calendar/internal/upstream/upbit"
	"invest-calendar/internal/version"
)

// MarketData is the slice of the KIS client the API needs.
type MarketData interface {
	StockPrice(ctx context.Context, code string) (kis.Quote, error)
	StockHistory(ctx context.Context, code string, from, to time.Time, period string) ([]kis.Candle, error)
	MarketIndices(ctx context.Context) ([]kis.IndexQuote, error)
	InvestorTrend(ctx context.Context, code string) ([]kis.InvestorFlow, error)
}

// DisclosureSource is the slice of the DART client the API needs.
type DisclosureSource interface {
	RecentDisclosures(ctx context.Context, corpClass string, days int, importantOnly bool) ([]dart.Disclosure, error)
	SearchCompanyByName(ctx context.Context, keyword string) ([]dart.Disclosure, error)
}

// Explainer is the slice of the Perplexity client the API needs.
type Explainer interface {
	ExplainTerm(ctx context.Context, term, extra string) perplexity.Explanation
	ExplainMarketEvent(ctx context.Context, title, details string) perplexity.Explanation
	DailyMarketSummary(ctx context.Context) perplexity.Explanation
}

// CryptoSource is the slice of the Upbit client the API needs.
type CryptoSource interface {
	Ticker(ctx context.Context, symbol string) (upbit.Ticker, error)
}

// Stores groups the storage interfaces the handlers consume.
type Stores struct {
	Events    storage.EventStore
	Stocks    storage.StockStore
	Bookmarks storage.BookmarkStore
	Watchlist storage.WatchlistStore
}

// Options wire the server's collaborators.
type Options struct {
	Config     config.ServerConfig
	Auth       *auth.Service
	Stores     Stores
	Market     MarketData
	Disclosure DisclosureSource
	Explainer  Explainer
	Crypto     CryptoSource
	// SyncJob, when set, backs POST /api/calendar/sync.
	SyncJob scheduler.Job
}

// Server is the HTTP front of the application.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	opts       Options
	logger     zerolog.Logger
}

// New assembles the router and the underlying http.Server.
func New(opts Options, logger zerolog.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		opts:   opts,
		logger: logger.With().Str("component", "server").Logger(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         opts.Config.Addr,
		Handler:      s.router,
		ReadTimeout:  opts.Config.ReadTimeout,
		WriteTimeout: opts.Config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)

	origins := s.opts.Config.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", s.handleSignup)
			r.Post("/login", s.handleLogin)
			r.With(s.opts.Auth.RequireUser).Post("/logout", s.handleLogout)
			r.With(s.opts.Auth.RequireUser).Get("/me", s.handleMe)
		})

		r.Route("/stocks", func(r chi.Router) {
			r.Get("/search", s.handleStockSearch)
			r.Get("/{code}", s.handleStockPrice)
			r.Get("/{code}/history", s.handleStockHistory)
			r.Get("/{code}/investors", s.handleInvestorTrend)
		})

		r.Get("/market/indices", s.handleMarketIndices)
		r.Get("/market/summary", s.handleMarketSummary)
		r.Get("/crypto/{symbol}", s.handleCryptoTicker)

		r.Get("/disclosures", s.handleDisclosures)
		r.Post("/explain", s.handleExplain)

		r.Route("/calendar", func(r chi.Router) {
			r.Get("/events", s.handleListEvents)
			r.Get("/events/{id}", s.handleGetEvent)
			r.Group(func(r chi.Router) {
				r.Use(s.opts.Auth.RequireUser)
				r.Post("/events", s.handleCreateEvent)
				r.Put("/events/{id}", s.handleUpdateEvent)
				r.Delete("/events/{id}", s.handleDeleteEvent)
				r.Post("/sync", s.handleSyncEvents)
			})
		})

		r.Route("/bookmarks", func(r chi.Router) {
			r.Use(s.opts.Auth.RequireUser)
			r.Get("/", s.handleListBookmarks)
			r.Post("/", s.handleCreateBookmark)
			r.Delete("/{id}", s.handleDeleteBookmark)
		})

		r.Route("/watchlist", func(r chi.Router) {
			r.Use(s.opts.Auth.RequireUser)
			r.Get("/", s.handleListWatchlist)
			r.Post("/", s.handleAddWatch)
			r.Put("/{id}", s.handleUpdateWatch)
			r.Delete("/{id}", s.handleDeleteWatch)
		})
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

// Start blocks serving HTTP until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("starting HTTP server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
