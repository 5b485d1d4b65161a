// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// Server exposes /metrics on its own listener.
type Server struct {
	server *http.Server
	users  map[string]string
	log    zerolog.Logger
}

// NewMetricsServer builds the metrics listener. basicAuthUsers uses the
// "user:bcrypt_hash,user2:hash2" format; empty disables authentication.
func NewMetricsServer(host string, port int, basicAuthUsers string) *Server {
	s := &Server{
		users: ParseBasicAuthUsers(basicAuthUsers),
		log:   log.Logger.With().Str("module", "metrics").Logger(),
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router serving /metrics.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		if len(s.users) > 0 {
			r.Use(s.basicAuth)
		}
		r.Handle("/metrics", promhttp.Handler())
	})
	return r
}

func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.server.Addr).Bool("auth", len(s.users) > 0).Msg("Starting metrics server")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if ok {
			if hash, found := s.users[user]; found && bcrypt.CompareHashAndPassword([]byte(hash), []byte(pass)) == nil {
				next.ServeHTTP(w, r)
				return
			}
		}
		w.Header().Set("WWW-Authenticate", `Basic realm="metrics"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}

// ParseBasicAuthUsers splits "user:hash,user2:hash2". Malformed pairs are skipped.
func ParseBasicAuthUsers(raw string) map[string]string {
	users := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		user, hash, ok := strings.Cut(pair, ":")
		if !ok || user == "" || hash == "" {
			log.Warn().Str("entry", user).Msg("Ignoring malformed metrics basic auth entry")
			continue
		}
		users[user] = hash
	}
	return users
}
