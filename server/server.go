// Package server exposes the player over HTTP: a JSON mirror of the
// session-bus facet for remotes that cannot reach the bus.
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/nocturnehq/nocturne/config"
	"github.com/nocturnehq/nocturne/errors"
	"github.com/nocturnehq/nocturne/library"
	"github.com/nocturnehq/nocturne/middleware"
	"github.com/nocturnehq/nocturne/playback"
	"github.com/nocturnehq/nocturne/songmanager"
)

const (
	MaxURILength        = 1000
	MaxRemoteAddrLength = 100
	ShutdownTimeout     = 5 * time.Second
)

// ASCII control character bounds for log sanitisation.
const (
	asciiControlMin = 32
	asciiControlMax = 127
)

type Server struct {
	config  *config.Config
	logger  *logrus.Logger
	library *library.Library
	manager *songmanager.Manager
	session *playback.Session

	server      *http.Server
	rateLimiter *rate.Limiter
}

func New(cfg *config.Config, lib *library.Library, manager *songmanager.Manager,
	session *playback.Session, logger *logrus.Logger) *Server {
	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
		logger.WithFields(logrus.Fields{
			"rps":   cfg.RateLimitRPS,
			"burst": cfg.RateLimitBurst,
		}).Info("Rate limiting enabled")
	}

	return &Server{
		config:      cfg,
		logger:      logger,
		library:     lib,
		manager:     manager,
		session:     session,
		rateLimiter: limiter,
	}
}

// sanitizeForLogging removes control characters and limits length to prevent
// log injection.
func sanitizeForLogging(input string) string {
	sanitized := strings.Map(func(r rune) rune {
		if r < asciiControlMin || r == asciiControlMax {
			return -1
		}
		return r
	}, input)

	if len(sanitized) > MaxURILength {
		sanitized = sanitized[:MaxURILength] + "..."
	}
	return sanitized
}

func sanitizeRemoteAddr(remoteAddr string) string {
	if len(remoteAddr) > MaxRemoteAddrLength {
		return remoteAddr[:MaxRemoteAddrLength] + "..."
	}
	return remoteAddr
}

// limit is the common request gate: logging plus rate limiting.
func (s *Server) limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"endpoint": sanitizeForLogging(r.URL.Path),
			"remote":   sanitizeRemoteAddr(r.RemoteAddr),
		}).Debug("Incoming request")

		if s.rateLimiter != nil && !s.rateLimiter.Allow() {
			s.logger.WithField("remote", sanitizeRemoteAddr(r.RemoteAddr)).Warn("Rate limit exceeded")
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next(w, r)
	}
}

// Router builds the endpoint table. Exposed for the handler tests.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	security := middleware.NewSecurityHeaders(s.logger)
	router.Use(security.Handler)

	router.HandleFunc("/api/play", s.limit(s.handlePlay)).Methods(http.MethodPost)
	router.HandleFunc("/api/pause", s.limit(s.handlePause)).Methods(http.MethodPost)
	router.HandleFunc("/api/play-pause", s.limit(s.handlePlayPause)).Methods(http.MethodPost)
	router.HandleFunc("/api/stop", s.limit(s.handleStop)).Methods(http.MethodPost)
	router.HandleFunc("/api/previous", s.limit(s.handlePrevious)).Methods(http.MethodPost)
	router.HandleFunc("/api/next", s.limit(s.handleNext)).Methods(http.MethodPost)
	router.HandleFunc("/api/seek", s.limit(s.handleSeek)).Methods(http.MethodPost)
	router.HandleFunc("/api/status", s.limit(s.handleStatus)).Methods(http.MethodGet)
	router.HandleFunc("/api/songs", s.limit(s.handleSongs)).Methods(http.MethodGet)
	router.HandleFunc("/api/songs", s.limit(s.handleAddSong)).Methods(http.MethodPost)
	router.HandleFunc("/api/queue", s.limit(s.handleQueue)).Methods(http.MethodGet)
	router.HandleFunc("/api/queue/{id}", s.limit(s.handleSetQueued)).Methods(http.MethodPost)
	router.HandleFunc("/api/incognito", s.limit(s.handleIncognito)).Methods(http.MethodPost)
	router.HandleFunc("/api/refresh-metadata", s.limit(s.handleRefreshMetadata)).Methods(http.MethodPost)

	return router
}

func (s *Server) Start() error {
	if s.server != nil {
		return errors.ErrServerStart
	}

	s.server = &http.Server{
		Addr:    ":" + s.config.HTTPPort,
		Handler: s.Router(),
	}

	s.logger.WithField("port", s.config.HTTPPort).Info("Starting remote HTTP server")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("Remote HTTP server failed")
		}
	}()

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	s.logger.Info("Shutting down remote HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryServer, "SHUTDOWN_FAILED", "failed to shutdown HTTP server")
	}
	return nil
}
