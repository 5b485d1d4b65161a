// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package emulex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/mulebridge/internal/domain"
	"github.com/autobrr/mulebridge/internal/metrics"
	"github.com/autobrr/mulebridge/internal/models"
	"github.com/autobrr/mulebridge/internal/normalize"
)

// APIKeyLength is the exact length of an emulex API key.
const APIKeyLength = 32

const (
	defaultSearchCacheTTL      = time.Hour
	searchCacheCleanupInterval = 30 * time.Minute
	storeOperationTimeout      = 10 * time.Second
	defaultTestSearchTerm      = "test"
	defaultPriority            = 5
)

// Hashes served by the status fixtures.
const (
	statusMovieHash   = "31C0CADFEF07C84E9CF23E26C0BBA159"
	statusSeriesHash  = "31C0CADFEF07C84E9CF23E26C0BBA158"
	statusFixtureSize = 40000
)

type searchCacheStore interface {
	Fetch(ctx context.Context, cacheKey string) (*models.SearchCacheEntry, bool, error)
	Store(ctx context.Context, entry *models.SearchCacheEntry) error
	CleanupExpired(ctx context.Context) (int64, error)
	Flush(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (*models.SearchCacheStats, error)
	RecentSearches(ctx context.Context, limit int) ([]*models.RecentSearch, error)
}

var _ searchCacheStore = (*models.SearchCacheStore)(nil)

// SearchCacheConfig controls how search responses are cached.
type SearchCacheConfig struct {
	TTL time.Duration
}

// ServiceOption configures optional Service collaborators.
type ServiceOption func(*Service)

// WithSearchCache wires the search cache store and configuration.
func WithSearchCache(cache searchCacheStore, cfg SearchCacheConfig) ServiceOption {
	return func(s *Service) {
		s.searchCache = cache
		ttl := cfg.TTL
		if ttl <= 0 {
			ttl = defaultSearchCacheTTL
		}
		s.searchCacheTTL = ttl
		s.searchCacheEnabled = cache != nil
	}
}

// withClock overrides time.Now in tests.
func withClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// settings is the per-search snapshot of the active configuration.
type settings struct {
	client         *Client
	assembler      *Assembler
	apiKey         string
	priority       int
	testSearchTerm string
	matchWords     bool
	strictParsing  bool
	statusFixtures bool
	fingerprint    string
}

// Service orchestrates emulex searches: query normalization, the remote call,
// record assembly and the optional search cache.
type Service struct {
	log zerolog.Logger
	now func() time.Time

	mu  sync.RWMutex
	cur settings

	searchCache         searchCacheStore
	searchCacheTTL      time.Duration
	searchCacheEnabled  bool
	searchCacheConfigMu sync.RWMutex

	searchCacheCleanupMu   sync.Mutex
	nextSearchCacheCleanup time.Time
}

// NewService builds a Service from cfg.
func NewService(cfg *domain.Config, opts ...ServiceOption) *Service {
	s := &Service{
		log: log.Logger.With().Str("module", "emulex").Logger(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ApplyConfiguration(cfg)
	return s
}

// ApplyConfiguration swaps in a new client and assembler built from cfg.
// It is safe to call while searches are in flight.
func (s *Service) ApplyConfiguration(cfg *domain.Config) {
	if cfg == nil {
		return
	}

	priority := cfg.Priority
	if priority <= 0 {
		priority = defaultPriority
	}
	testTerm := strings.TrimSpace(cfg.TestSearchTerm)
	if testTerm == "" {
		testTerm = defaultTestSearchTerm
	}

	assemblerOpts := DefaultAssemblerOptions()
	if cfg.LinkTemplate != "" {
		assemblerOpts.LinkTemplate = cfg.LinkTemplate
	}
	if cfg.MagnetPrefix != "" {
		assemblerOpts.MagnetPrefix = cfg.MagnetPrefix
	}
	if cfg.MagnetSuffix != "" {
		assemblerOpts.MagnetSuffix = cfg.MagnetSuffix
	}
	if cfg.MagnetDisplayName != "" {
		assemblerOpts.MagnetDisplayName = cfg.MagnetDisplayName
	}
	assemblerOpts.Freeleech = cfg.Freeleech

	next := settings{
		client:         NewClient(cfg.EmulexURL, cfg.APIKey, cfg.RequestTimeout, cfg.RequestDelay),
		assembler:      NewAssembler(assemblerOpts),
		apiKey:         cfg.APIKey,
		priority:       priority,
		testSearchTerm: testTerm,
		matchWords:     cfg.MatchWords,
		strictParsing:  cfg.StrictParsing,
		statusFixtures: cfg.StatusFixtures,
	}
	next.fingerprint = settingsFingerprint(cfg.EmulexURL, assemblerOpts, next)

	s.mu.Lock()
	s.cur = next
	s.mu.Unlock()

	if s.searchCache != nil {
		ttl := time.Duration(cfg.SearchCacheTTLMinutes) * time.Minute
		if ttl <= 0 {
			ttl = defaultSearchCacheTTL
		}
		s.searchCacheConfigMu.Lock()
		s.searchCacheEnabled = cfg.SearchCacheEnabled
		s.searchCacheTTL = ttl
		s.searchCacheConfigMu.Unlock()
	}

	s.log.Debug().
		Str("url", cfg.EmulexURL).
		Int("priority", priority).
		Bool("matchWords", cfg.MatchWords).
		Bool("strictParsing", cfg.StrictParsing).
		Msg("emulex configuration applied")
}

func (s *Service) settings() settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Capabilities returns the Torznab capability document.
func (s *Service) Capabilities() Capabilities {
	return Caps()
}

// Search runs q against emulex and returns the assembled releases.
func (s *Service) Search(ctx context.Context, q normalize.SearchQuery) ([]Release, error) {
	resp, err := s.SearchWithMetadata(ctx, q, false)
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// SearchWithMetadata is Search with cache metadata and skipped record counts.
// bypassCache forces a network round trip; the fresh response is still stored.
func (s *Service) SearchWithMetadata(ctx context.Context, q normalize.SearchQuery, bypassCache bool) (*SearchResponse, error) {
	start := time.Now()
	parsed := normalize.ParseQuery(q)

	if parsed.Empty() {
		releases, err := s.Status(ctx)
		if err != nil {
			metrics.ObserveSearch(metrics.OutcomeError, time.Since(start), 0)
			return nil, err
		}
		metrics.ObserveSearch(metrics.OutcomeStatus, time.Since(start), len(releases))
		return &SearchResponse{Results: releases, Total: len(releases)}, nil
	}

	cur := s.settings()
	keyword := normalize.Latin1(parsed.Keyword())
	key, fingerprint := s.searchCacheSignature(keyword, cur)

	if !bypassCache {
		if cached, ok := s.loadCachedSearch(ctx, key); ok {
			metrics.ObserveSearch(metrics.OutcomeSuccess, time.Since(start), len(cached.Results))
			return cached, nil
		}
	}

	body, err := cur.client.Search(ctx, keyword, cur.priority)
	if err != nil {
		metrics.ObserveSearch(metrics.OutcomeError, time.Since(start), 0)
		return nil, err
	}

	releases, skipped, err := s.decodeResults(body, cur)
	if err != nil {
		metrics.ObserveSearch(metrics.OutcomeError, time.Since(start), 0)
		return nil, err
	}

	if cur.matchWords {
		releases = filterByWords(releases, parsed.Query.Term)
	}

	resp := &SearchResponse{Results: releases, Total: len(releases), Skipped: skipped}

	outcome := metrics.OutcomeSuccess
	if len(releases) == 0 {
		outcome = metrics.OutcomeEmpty
	}
	metrics.ObserveSearch(outcome, time.Since(start), len(releases))

	s.log.Debug().
		Str("keyword", keyword).
		Int("results", len(releases)).
		Int("skipped", skipped).
		Dur("elapsed", time.Since(start)).
		Msg("emulex search complete")

	cachedAt := s.now().UTC()
	s.persistSearchCacheEntry(key, fingerprint, parsed.Query.Term, resp, cachedAt)
	if key != "" {
		s.annotateSearchResponse(resp, false, cachedAt, cachedAt.Add(s.cacheTTL()))
	}
	s.maybeScheduleSearchCacheCleanup()

	return resp, nil
}

// decodeResults assembles each record independently. Bad records are logged,
// counted and skipped unless strict parsing is on. A batch where every record
// fails is a ParseError.
func (s *Service) decodeResults(body []byte, cur settings) ([]Release, int, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, 0, &ParseError{Body: string(body), Err: err}
	}

	releases := make([]Release, 0, len(records))
	var (
		skipped int
		lastErr error
	)
	for idx, record := range records {
		release, err := decodeRecord(record, cur.assembler)
		if err != nil {
			if cur.strictParsing {
				return nil, 0, err
			}
			s.log.Warn().
				Err(err).
				Int("index", idx).
				Str("record", truncate(string(record), 512)).
				Msg("skipping malformed emulex record")
			skipped++
			lastErr = err
			continue
		}
		releases = append(releases, release)
	}

	if skipped > 0 {
		metrics.ObserveSkippedRecords(skipped)
	}
	if len(records) > 0 && len(releases) == 0 {
		return nil, skipped, &ParseError{
			Body: string(body),
			Err:  fmt.Errorf("all %d records failed: %w", len(records), lastErr),
		}
	}

	return releases, skipped, nil
}

func decodeRecord(record json.RawMessage, assembler *Assembler) (Release, error) {
	var raw RawResult
	if err := json.Unmarshal(record, &raw); err != nil {
		return Release{}, &ParseError{Body: string(record), Err: err}
	}
	return assembler.Assemble(raw)
}

func filterByWords(releases []Release, term string) []Release {
	filtered := make([]Release, 0, len(releases))
	for _, release := range releases {
		if normalize.MatchWords(term, release.Title) {
			filtered = append(filtered, release)
		}
	}
	return filtered
}

// Status checks the emulex daemon. 503 and 403 mean the daemon is not ready and
// yield an empty list. Other statuses are accepted; with status fixtures enabled
// two placeholder releases are returned so Torznab clients see a live feed.
func (s *Service) Status(ctx context.Context) ([]Release, error) {
	cur := s.settings()

	status, body, err := cur.client.Status(ctx)
	if err != nil {
		return nil, err
	}

	if status == http.StatusServiceUnavailable || status == http.StatusForbidden {
		s.log.Debug().Int("status", status).Msg("emulex not available")
		return []Release{}, nil
	}

	s.log.Debug().Int("status", status).Str("body", truncate(string(body), 1024)).Msg("emulex status")

	if !cur.statusFixtures {
		return []Release{}, nil
	}

	now := s.now()
	return []Release{
		cur.assembler.Placeholder("emulex status movie", statusMovieHash, normalize.CategoryMovie, statusFixtureSize, now),
		cur.assembler.Placeholder("emulex status series", statusSeriesHash, normalize.CategorySeries, statusFixtureSize, now),
	}, nil
}

// CheckConfiguration rejects settings emulex can never accept. It does not
// contact the daemon; Validate does.
func CheckConfiguration(cfg *domain.Config) error {
	if cfg == nil {
		return &ConfigurationError{Reason: "missing configuration"}
	}
	if strings.TrimSpace(cfg.EmulexURL) == "" {
		return &ConfigurationError{Reason: "emulex URL is required"}
	}
	return checkAPIKey(cfg.APIKey)
}

func checkAPIKey(key string) error {
	if len(key) != APIKeyLength {
		return &ConfigurationError{Reason: fmt.Sprintf("API key must be %d characters long, got %d", APIKeyLength, len(key))}
	}
	return nil
}

// Reconfigure applies cfg only when CheckConfiguration accepts it. A rejected
// configuration leaves the current settings in place.
func (s *Service) Reconfigure(cfg *domain.Config) error {
	if err := CheckConfiguration(cfg); err != nil {
		return err
	}
	s.ApplyConfiguration(cfg)
	return nil
}

// Validate checks the API key and runs a live test search, bypassing the cache.
func (s *Service) Validate(ctx context.Context) error {
	cur := s.settings()

	if err := checkAPIKey(cur.apiKey); err != nil {
		return err
	}

	resp, err := s.SearchWithMetadata(ctx, normalize.SearchQuery{Term: cur.testSearchTerm}, true)
	if err != nil {
		return &ConfigurationError{Reason: "test search failed", Err: err}
	}
	if len(resp.Results) == 0 {
		return &ConfigurationError{Reason: fmt.Sprintf("test search for %q returned no results", cur.testSearchTerm)}
	}

	return nil
}

// Download returns the link itself; magnet and ed2k links carry no payload to fetch.
func (s *Service) Download(link string) ([]byte, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return nil, errors.New("download link cannot be empty")
	}
	return []byte(link), nil
}

func settingsFingerprint(baseURL string, opts AssemblerOptions, cur settings) string {
	return strings.Join([]string{
		strings.TrimRight(baseURL, "/"),
		strconv.Itoa(cur.priority),
		strconv.FormatBool(cur.matchWords),
		strconv.FormatBool(cur.strictParsing),
		strconv.FormatBool(opts.Freeleech),
		opts.LinkTemplate,
		opts.MagnetPrefix,
		opts.MagnetSuffix,
		opts.MagnetDisplayName,
	}, "|")
}

type searchCacheKeyPayload struct {
	Keyword  string `json:"keyword"`
	Settings string `json:"settings"`
}

func (s *Service) shouldUseSearchCache() bool {
	if s == nil || s.searchCache == nil {
		return false
	}
	enabled, ttl := s.cacheConfig()
	return enabled && ttl > 0
}

// cacheConfig returns the current cache enabled flag and TTL under lock.
func (s *Service) cacheConfig() (bool, time.Duration) {
	s.searchCacheConfigMu.RLock()
	defer s.searchCacheConfigMu.RUnlock()
	return s.searchCacheEnabled, s.searchCacheTTL
}

func (s *Service) cacheTTL() time.Duration {
	_, ttl := s.cacheConfig()
	return ttl
}

func (s *Service) searchCacheSignature(keyword string, cur settings) (string, string) {
	if !s.shouldUseSearchCache() {
		return "", ""
	}
	raw, err := json.Marshal(searchCacheKeyPayload{
		Keyword:  strings.ToLower(strings.TrimSpace(keyword)),
		Settings: cur.fingerprint,
	})
	if err != nil {
		s.log.Debug().Err(err).Msg("Failed to marshal search cache payload")
		return "", ""
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(raw)), string(raw)
}

func (s *Service) loadCachedSearch(ctx context.Context, key string) (*SearchResponse, bool) {
	if key == "" || !s.shouldUseSearchCache() {
		return nil, false
	}

	entry, ok, err := s.searchCache.Fetch(ctx, key)
	if err != nil {
		s.log.Debug().Err(err).Msg("search cache lookup failed")
		metrics.ObserveCache(false)
		return nil, false
	}
	if !ok {
		metrics.ObserveCache(false)
		return nil, false
	}

	var resp SearchResponse
	if err := json.Unmarshal(entry.ResponseData, &resp); err != nil {
		s.log.Debug().Err(err).Str("key", key).Msg("Failed to decode cached search response")
		metrics.ObserveCache(false)
		return nil, false
	}
	if resp.Results == nil {
		resp.Results = []Release{}
	}

	metrics.ObserveCache(true)
	s.annotateSearchResponse(&resp, true, entry.CachedAt, entry.ExpiresAt)
	return &resp, true
}

func (s *Service) annotateSearchResponse(resp *SearchResponse, hit bool, cachedAt, expiresAt time.Time) {
	resp.Cache = &SearchCacheMetadata{
		Hit:       hit,
		CachedAt:  cachedAt,
		ExpiresAt: expiresAt,
	}
}

func (s *Service) persistSearchCacheEntry(key, fingerprint, query string, resp *SearchResponse, cachedAt time.Time) {
	if key == "" || resp == nil || !s.shouldUseSearchCache() {
		return
	}

	ttl := s.cacheTTL()
	payload, err := json.Marshal(&SearchResponse{
		Results: resp.Results,
		Total:   resp.Total,
		Skipped: resp.Skipped,
	})
	if err != nil {
		s.log.Debug().Err(err).Msg("Failed to encode search response for cache")
		return
	}

	entry := &models.SearchCacheEntry{
		CacheKey:           key,
		Query:              strings.TrimSpace(query),
		RequestFingerprint: fingerprint,
		ResponseData:       payload,
		TotalResults:       resp.Total,
		CachedAt:           cachedAt,
		LastUsedAt:         cachedAt,
		ExpiresAt:          cachedAt.Add(ttl),
	}

	// best effort, detached from the request context
	storeCtx, cancel := context.WithTimeout(context.Background(), storeOperationTimeout)
	defer cancel()

	if err := s.searchCache.Store(storeCtx, entry); err != nil {
		s.log.Debug().Err(err).Msg("Failed to persist search cache entry")
	}
}

func (s *Service) maybeScheduleSearchCacheCleanup() {
	if !s.shouldUseSearchCache() {
		return
	}

	s.searchCacheCleanupMu.Lock()
	if time.Now().Before(s.nextSearchCacheCleanup) {
		s.searchCacheCleanupMu.Unlock()
		return
	}
	s.nextSearchCacheCleanup = time.Now().Add(searchCacheCleanupInterval)
	s.searchCacheCleanupMu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := s.CleanupSearchCache(ctx); err != nil {
			s.log.Debug().Err(err).Msg("Failed to cleanup search cache")
		}
	}()
}

// CleanupSearchCache removes expired cache entries.
func (s *Service) CleanupSearchCache(ctx context.Context) (int64, error) {
	if s.searchCache == nil {
		return 0, nil
	}
	deleted, err := s.searchCache.CleanupExpired(ctx)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.log.Debug().Int64("deleted", deleted).Msg("Cleaned up expired search cache entries")
	}
	return deleted, nil
}

// FlushSearchCache removes all cached search responses.
func (s *Service) FlushSearchCache(ctx context.Context) (int64, error) {
	if s.searchCache == nil {
		return 0, nil
	}
	return s.searchCache.Flush(ctx)
}

// GetSearchCacheStats returns summary stats for the cache table.
func (s *Service) GetSearchCacheStats(ctx context.Context) (*models.SearchCacheStats, error) {
	enabled, ttl := s.cacheConfig()
	stats := &models.SearchCacheStats{
		Enabled:    enabled && s.searchCache != nil,
		TTLMinutes: int(ttl / time.Minute),
	}
	if s.searchCache == nil {
		return stats, nil
	}

	dbStats, err := s.searchCache.Stats(ctx)
	if err != nil {
		return nil, err
	}
	dbStats.Enabled = stats.Enabled
	dbStats.TTLMinutes = stats.TTLMinutes
	return dbStats, nil
}

// GetRecentSearches returns the most recently used cached queries.
func (s *Service) GetRecentSearches(ctx context.Context, limit int) ([]*models.RecentSearch, error) {
	if s.searchCache == nil {
		return []*models.RecentSearch{}, nil
	}
	return s.searchCache.RecentSearches(ctx, limit)
}
