// Package server exposes the bounty marketplace over HTTP. Caller identity
// comes from the X-Caller header; authenticating that identity is out of
// scope here and belongs to whatever fronts this service.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/clearlane/bounty/pkg/metrics"
)

type Server struct {
	log     *slog.Logger
	cfg     Config
	router  *chi.Mux
	limiter *RateLimiter
	httpSrv *http.Server
}

func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		log: cfg.Logger,
		cfg: cfg,
	}
	s.router = chi.NewRouter()
	s.setupRoutes()

	s.httpSrv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	return s, nil
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Caller"},
	}))
	s.router.Use(metrics.Middleware)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok\n")); err != nil {
			s.log.Error("server: failed to write healthz response", "error", err)
		}
	})
	s.router.Get("/version", s.handleVersion)
	s.router.Handle("/metrics", promhttp.Handler())

	s.limiter = NewRateLimiter(s.cfg.RateLimit, s.cfg.RateBurst)
	s.router.Route("/v1", func(r chi.Router) {
		r.Use(RateLimitMiddleware(s.limiter))

		r.Get("/bounties/{fingerprint}", s.handleGetBounty)
		r.Get("/bounties/{fingerprint}/applicants", s.handleGetApplicants)
		r.Get("/compensation-rate", s.handleGetRate)
		r.Get("/audit", s.handleGetAudit)

		r.Post("/bounties", s.handleCreateBounty)
		r.Post("/bounties/{fingerprint}/applications", s.handleApply)
		r.Post("/bounties/{fingerprint}/submission", s.handleSubmit)
		r.Post("/bounties/{fingerprint}/completion", s.handleComplete)
		r.Post("/bounties/{fingerprint}/withdrawal", s.handleWithdraw)
		r.Put("/compensation-rate", s.handleSetRate)

		if s.cfg.DevFaucet {
			r.Post("/faucet", s.handleFaucet)
			r.Get("/accounts/{id}/balance", s.handleBalance)
		}
	})
}

func (s *Server) Run(ctx context.Context) error {
	defer s.limiter.Stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("server: http listening", "address", s.cfg.ListenAddr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to listen and serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		s.log.Info("server: stopping", "reason", ctx.Err(), "address", s.cfg.ListenAddr)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		s.log.Info("server: http server shutdown complete")
		return nil
	})

	return g.Wait()
}
