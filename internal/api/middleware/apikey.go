// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

const apiKeyHeader = "X-API-Key"

// RequireAPIKey rejects requests whose apikey query parameter or X-API-Key
// header does not match expected(). An empty expected key disables the check.
// deny writes the rejection so Torznab and JSON routes can answer in their own
// format.
func RequireAPIKey(expected func() string, deny http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := expected()
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			provided := strings.TrimSpace(r.URL.Query().Get("apikey"))
			if provided == "" {
				provided = strings.TrimSpace(r.Header.Get(apiKeyHeader))
			}

			if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				log.Debug().Str("path", r.URL.Path).Str("remote", r.RemoteAddr).Msg("rejected request with invalid api key")
				deny(w, r)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
