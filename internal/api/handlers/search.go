// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/mulebridge/internal/normalize"
	"github.com/autobrr/mulebridge/internal/services/emulex"
)

const (
	defaultRecentSearchLimit = 10
	maxRecentSearchLimit     = 50
)

// SearchHandler serves the JSON search API.
type SearchHandler struct {
	service *emulex.Service
}

func NewSearchHandler(service *emulex.Service) *SearchHandler {
	return &SearchHandler{service: service}
}

// Routes registers the JSON routes.
func (h *SearchHandler) Routes(r chi.Router) {
	r.Get("/search", h.Search)
	r.Get("/search/recent", h.ListRecentSearches)
	r.Get("/status", h.Status)
	r.Get("/download", h.Download)
	r.Get("/caps", h.Capabilities)

	r.Route("/cache", func(r chi.Router) {
		r.Get("/stats", h.GetSearchCacheStats)
		r.Delete("/", h.FlushSearchCache)
	})
}

// Search runs a query. q, season, ep and year map onto the search query;
// nocache=true skips the cache lookup.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query, err := searchQueryFromRequest(r)
	if err != nil {
		RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	bypass, _ := strconv.ParseBool(r.URL.Query().Get("nocache"))

	resp, err := h.service.SearchWithMetadata(r.Context(), query, bypass)
	if err != nil {
		log.Error().Err(err).Str("query", query.Term).Msg("Failed to search emulex")
		RespondError(w, searchErrorStatus(err), "Failed to search")
		return
	}

	RespondJSON(w, http.StatusOK, resp)
}

// Status proxies the emulex status check.
func (h *SearchHandler) Status(w http.ResponseWriter, r *http.Request) {
	releases, err := h.service.Status(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to query emulex status")
		RespondError(w, searchErrorStatus(err), "Failed to query status")
		return
	}

	RespondJSON(w, http.StatusOK, releases)
}

// Download returns the link bytes for a release.
func (h *SearchHandler) Download(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.Download(r.URL.Query().Get("link"))
	if err != nil {
		RespondError(w, http.StatusBadRequest, "link is required")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Capabilities returns the capability document as JSON.
func (h *SearchHandler) Capabilities(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.service.Capabilities())
}

// ListRecentSearches returns the latest cached search queries.
func (h *SearchHandler) ListRecentSearches(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentSearchLimit
	if limitParam := strings.TrimSpace(r.URL.Query().Get("limit")); limitParam != "" {
		if parsed, err := strconv.Atoi(limitParam); err == nil {
			switch {
			case parsed <= 0:
				// keep default
			case parsed > maxRecentSearchLimit:
				limit = maxRecentSearchLimit
			default:
				limit = parsed
			}
		}
	}

	searches, err := h.service.GetRecentSearches(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load recent searches")
		RespondError(w, http.StatusInternalServerError, "Failed to load recent searches")
		return
	}

	RespondJSON(w, http.StatusOK, searches)
}

// GetSearchCacheStats returns summary metrics for the search cache.
func (h *SearchHandler) GetSearchCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetSearchCacheStats(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to load search cache stats")
		RespondError(w, http.StatusInternalServerError, "Failed to load cache stats")
		return
	}

	RespondJSON(w, http.StatusOK, stats)
}

// FlushSearchCache drops every cached search.
func (h *SearchHandler) FlushSearchCache(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.service.FlushSearchCache(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to flush search cache")
		RespondError(w, http.StatusInternalServerError, "Failed to flush cache")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

var errInvalidNumber = errors.New("must be a non-negative integer")

// searchQueryFromRequest reads q, season, ep and year.
func searchQueryFromRequest(r *http.Request) (normalize.SearchQuery, error) {
	values := r.URL.Query()
	query := normalize.SearchQuery{Term: values.Get("q")}

	for _, field := range []struct {
		name string
		dst  **int
	}{
		{"season", &query.Season},
		{"ep", &query.Episode},
		{"year", &query.Year},
	} {
		raw := strings.TrimSpace(values.Get(field.name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return normalize.SearchQuery{}, &paramError{name: field.name, err: errInvalidNumber}
		}
		*field.dst = &n
	}

	return query, nil
}

type paramError struct {
	name string
	err  error
}

func (e *paramError) Error() string { return e.name + " " + e.err.Error() }

func (e *paramError) Unwrap() error { return e.err }

// searchErrorStatus maps remote failures to 502 and everything else to 500.
func searchErrorStatus(err error) int {
	if errors.Is(err, &emulex.StatusError{}) || errors.Is(err, &emulex.ParseError{}) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
