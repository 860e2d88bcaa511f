/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/friendsincode/inkintime/internal/api"
	"github.com/friendsincode/inkintime/internal/cache"
	"github.com/friendsincode/inkintime/internal/compiler"
	"github.com/friendsincode/inkintime/internal/config"
	"github.com/friendsincode/inkintime/internal/db"
	"github.com/friendsincode/inkintime/internal/eventbus"
	"github.com/friendsincode/inkintime/internal/leadership"
	"github.com/friendsincode/inkintime/internal/telemetry"
)

const dbMetricsInterval = 30 * time.Second

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	core        *Core
	cache       *cache.Cache
	natsBus     *eventbus.NATSBus
	api         *api.API
	runner      *compiler.Runner
	leaderAware *compiler.LeaderAwareRunner

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("inkintime-api"))
	router.Use(telemetry.MetricsMiddleware)
	router.Use(middleware.Timeout(60 * time.Second))

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
	}

	if err := srv.initDependencies(); err != nil {
		_ = srv.Close()
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	srv.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Admin compile runs synchronously inside the request.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; base-uri 'none'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	core, err := OpenCore(context.Background(), s.cfg, s.logger)
	if err != nil {
		return err
	}
	s.core = core
	s.DeferClose(core.Close)

	if s.cfg.NATSURL != "" {
		natsCfg := eventbus.DefaultNATSConfig()
		natsCfg.URL = s.cfg.NATSURL
		natsCfg.NodeID = s.cfg.InstanceID
		nb, err := eventbus.NewNATSBus(natsCfg, core.Bus, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("NATS unavailable, events stay in-process")
		} else {
			s.natsBus = nb
			s.DeferClose(nb.Close)
		}
	}

	if s.cfg.CacheEnabled {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.RedisAddr = s.cfg.RedisAddr
		cacheCfg.RedisPassword = s.cfg.RedisPassword
		cacheCfg.RedisDB = s.cfg.RedisDB
		cacheCfg.SlotsTTL = s.cfg.CacheTTL
		slotCache, err := cache.New(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("cache initialization failed, continuing without cache")
		} else {
			s.cache = slotCache
			s.DeferClose(slotCache.Close)
		}
	}

	schedule := core.Schedule
	s.runner, err = compiler.NewRunner(core.Compiler, schedule.CompileSchedule, schedule.Location(), true, s.logger)
	if err != nil {
		return err
	}

	if s.cfg.LeaderElectionEnabled {
		electionConfig := leadership.DefaultConfig()
		electionConfig.RedisAddr = s.cfg.RedisAddr
		electionConfig.RedisPassword = s.cfg.RedisPassword
		electionConfig.RedisDB = s.cfg.RedisDB
		electionConfig.InstanceID = s.cfg.InstanceID

		election, err := leadership.NewElection(electionConfig, s.logger)
		if err != nil {
			return err
		}

		s.leaderAware = compiler.NewLeaderAware(s.runner, election, s.logger)
		s.DeferClose(s.leaderAware.Stop)

		s.logger.Info().
			Str("redis_addr", s.cfg.RedisAddr).
			Str("instance_id", election.InstanceID()).
			Msg("leader election enabled for compile runner")
	}

	s.api = api.New(core.Store, core.Compiler, s.cache, s.cfg.JWTSigningKey, s.logger)
	if s.leaderAware != nil {
		s.api.SetLeaderCheck(s.leaderAware.IsLeader)
	}
	return nil
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	// Start compile runner (leader-aware if configured, otherwise direct)
	if s.leaderAware != nil {
		if err := s.leaderAware.Start(ctx); err != nil {
			s.logger.Error().Err(err).Msg("leader-aware compile runner failed to start")
		}
	} else if s.runner != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			if err := s.runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error().Err(err).Msg("compile runner exited")
			}
		}()
	}

	if s.cache != nil && s.cache.IsAvailable() {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.logger.Info().Msg("slot cache invalidation listener started")
			s.cache.RunInvalidator(ctx, s.core.Bus)
		}()
	}

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		ticker := time.NewTicker(dbMetricsInterval)
		defer ticker.Stop()
		for {
			db.UpdateConnectionMetrics(s.core.DB)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	if s.cfg.MetricsEnabled {
		s.router.Handle("/metrics", telemetry.Handler())
	}
	s.api.Routes(s.router)
}
