// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/CAFxX/httpcompression"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/mulebridge/internal/api/handlers"
	"github.com/autobrr/mulebridge/internal/api/middleware"
	"github.com/autobrr/mulebridge/internal/domain"
	"github.com/autobrr/mulebridge/internal/metrics"
	"github.com/autobrr/mulebridge/internal/services/emulex"
)

type Server struct {
	server *http.Server
	logger zerolog.Logger

	host    string
	port    int
	baseURL string

	serverAPIKey  atomic.Pointer[string]
	emulexService *emulex.Service
}

type Dependencies struct {
	Config        *domain.Config
	EmulexService *emulex.Service
}

func NewServer(deps *Dependencies) *Server {
	s := &Server{
		server: &http.Server{
			ReadHeaderTimeout: time.Second * 15,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      120 * time.Second,
			IdleTimeout:       180 * time.Second,
		},
		logger:        log.Logger.With().Str("module", "api").Logger(),
		host:          deps.Config.Host,
		port:          deps.Config.Port,
		baseURL:       normalizeBaseURL(deps.Config.BaseURL),
		emulexService: deps.EmulexService,
	}
	s.ApplyConfiguration(deps.Config)

	return s
}

// ApplyConfiguration picks up settings that may change on reload. Listener
// address and base URL need a restart.
func (s *Server) ApplyConfiguration(cfg *domain.Config) {
	key := strings.TrimSpace(cfg.ServerAPIKey)
	s.serverAPIKey.Store(&key)
}

func (s *Server) apiKey() string {
	if key := s.serverAPIKey.Load(); key != nil {
		return *key
	}
	return ""
}

func (s *Server) ListenAndServe() error {
	return s.open(nil)
}

// ListenAndServeReady behaves like ListenAndServe but signals once the listener is active.
func (s *Server) ListenAndServeReady(ready chan<- struct{}) error {
	return s.open(ready)
}

func (s *Server) open(ready chan<- struct{}) error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	var lastErr error
	for _, proto := range []string{"tcp", "tcp4", "tcp6"} {
		err := s.tryToServe(addr, proto, ready)
		if err == nil {
			return nil
		}

		if errors.Is(err, http.ErrServerClosed) {
			return err
		}

		s.logger.Error().Err(err).Str("addr", addr).Str("proto", proto).Msgf("Failed to start server")
		lastErr = err
	}

	return lastErr
}

func (s *Server) tryToServe(addr, protocol string, ready chan<- struct{}) error {
	listener, err := net.Listen(protocol, addr)
	if err != nil {
		return err
	}

	host := listener.Addr().String()
	// Replace 0.0.0.0 or :: with localhost for clickable links
	if strings.HasPrefix(host, "0.0.0.0:") || strings.HasPrefix(host, "[::]:") {
		host = strings.Replace(host, "0.0.0.0:", "localhost:", 1)
		host = strings.Replace(host, "[::]:", "localhost:", 1)
	}

	s.logger.Info().
		Str("protocol", protocol).
		Str("addr", listener.Addr().String()).
		Str("base_url", s.baseURL).
		Msgf("Starting API server - Torznab feed: http://%s%sapi/torznab", host, s.baseURL)

	s.server.Handler = s.Handler()

	if ready != nil {
		select {
		case ready <- struct{}{}:
		default:
		}
	}

	return s.server.Serve(listener)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) Handler() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(metrics.Middleware())

	// Torznab feeds for large result sets compress well
	compressor, err := httpcompression.DefaultAdapter(
		httpcompression.MinSize(1024),
		httpcompression.GzipCompressionLevel(2),
		httpcompression.Prefer(httpcompression.PreferServer),
	)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create HTTP compression adapter")
	} else {
		r.Use(compressor)
	}

	corsMiddleware := cors.New(cors.Options{
		AllowedMethods: []string{"HEAD", "OPTIONS", "GET", "DELETE"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-API-Key"},
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		MaxAge: 300,
	})
	r.Use(corsMiddleware.Handler)

	healthHandler := handlers.NewHealthHandler()
	searchHandler := handlers.NewSearchHandler(s.emulexService)
	torznabHandler := handlers.NewTorznabHandler(s.emulexService)

	apiRouter := chi.NewRouter()
	apiRouter.Use(middleware.Logger(s.logger))

	apiRouter.Group(func(r chi.Router) {
		r.Use(middleware.RequireAPIKey(s.apiKey, handlers.RespondTorznabUnauthorized))
		r.Method(http.MethodGet, "/torznab", torznabHandler)
		r.Method(http.MethodGet, "/torznab/api", torznabHandler)
	})

	apiRouter.Group(func(r chi.Router) {
		r.Use(middleware.RequireAPIKey(s.apiKey, handlers.RespondUnauthorized))
		searchHandler.Routes(r)
	})

	r.Get("/health", healthHandler.HandleHealth)
	r.Mount(s.baseURL+"api", apiRouter)

	if s.baseURL != "/" {
		r.Get("/", func(w http.ResponseWriter, request *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("Must use baseUrl: " + s.baseURL + " instead of /"))
		})
	}

	return r
}

func normalizeBaseURL(baseURL string) string {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return "/"
	}
	if !strings.HasPrefix(baseURL, "/") {
		baseURL = "/" + baseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return baseURL
}
