package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gamelab-hdl/gamelab/pkg/api/auth"
	"github.com/gamelab-hdl/gamelab/pkg/api/ledger"
	"github.com/gamelab-hdl/gamelab/pkg/api/sessions"
	"github.com/gamelab-hdl/gamelab/pkg/api/store"
	"github.com/gamelab-hdl/gamelab/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const (
	shutdownTimeout      = 10 * time.Second
	sessionSweepInterval = 15 * time.Minute
)

// Server exposes the API HTTP server lifecycle.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
}

// Compile-time interface check.
var _ Server = (*server)(nil)

type server struct {
	log        logrus.FieldLogger
	cfg        *config.Config
	store      store.Store
	sessions   sessions.Registry
	auth       *auth.Authenticator
	ledger     *ledger.Ledger
	metrics    *metricsCollector
	registry   *prometheus.Registry
	sessionTTL time.Duration
	httpServer *http.Server
	wg         sync.WaitGroup
	done       chan struct{}
}

// NewServer creates a new API server.
func NewServer(
	log logrus.FieldLogger,
	cfg *config.Config,
) Server {
	return &server{
		log:  log.WithField("component", "api"),
		cfg:  cfg,
		done: make(chan struct{}),
	}
}

// Start initializes the store, seeds config users, and starts the HTTP
// server.
func (s *server) Start(ctx context.Context) error {
	ttl, err := s.cfg.Auth.SessionTTLDuration()
	if err != nil {
		return err
	}

	s.sessionTTL = ttl

	// Create and start the database store.
	s.store = store.NewStore(s.log, &s.cfg.Database)
	if err := s.store.Start(ctx); err != nil {
		return fmt.Errorf("starting store: %w", err)
	}

	// Seed users from config.
	if len(s.cfg.Auth.Users) > 0 {
		if err := s.store.SeedUsers(ctx, s.cfg.Auth.Users); err != nil {
			return fmt.Errorf("seeding users: %w", err)
		}
	}

	// The session registry is app-scoped and in-memory: a restart
	// invalidates every session.
	s.sessions = sessions.NewRegistry(s.sessionTTL)
	s.auth = auth.NewAuthenticator(s.log, s.store, s.sessions)
	s.ledger = ledger.New(s.log, s.store, s.cfg.Auth.AdminUserID)

	s.registry = prometheus.NewRegistry()
	s.metrics = newMetricsCollector(s.registry)

	// Build router and start HTTP server.
	router := s.buildRouter()

	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Sweep expired sessions when a TTL is configured.
	if s.sessionTTL > 0 {
		s.wg.Add(1)

		go func() {
			defer s.wg.Done()

			ticker := time.NewTicker(sessionSweepInterval)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					if n := s.sessions.DeleteExpired(); n > 0 {
						s.log.WithField("count", n).
							Debug("Cleaned up expired sessions")
					}
				case <-s.done:
					return
				}
			}
		}()
	}

	// Bind the listener synchronously so we fail fast on port conflicts.
	ln, err := net.Listen("tcp", s.cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Server.Listen, err)
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.log.WithField("listen", s.cfg.Server.Listen).
			Info("API server starting")

		if err := s.httpServer.Serve(ln); err != nil &&
			err != http.ErrServerClosed {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server and closes the store.
func (s *server) Stop() error {
	close(s.done)

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.WithError(err).Warn("HTTP server shutdown error")
		}
	}

	s.wg.Wait()

	if s.store != nil {
		if err := s.store.Stop(); err != nil {
			return fmt.Errorf("stopping store: %w", err)
		}
	}

	s.log.Info("API server stopped")

	return nil
}
