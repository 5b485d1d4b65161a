// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/mulebridge/internal/dbinterface"
)

// SearchCacheEntry captures a cached emulex search response.
type SearchCacheEntry struct {
	ID                 int64
	CacheKey           string
	Query              string
	RequestFingerprint string
	ResponseData       []byte
	TotalResults       int
	CachedAt           time.Time
	LastUsedAt         time.Time
	ExpiresAt          time.Time
	HitCount           int64
}

// SearchCacheStats provides aggregated cache metrics for observability.
type SearchCacheStats struct {
	Entries         int64      `json:"entries"`
	TotalHits       int64      `json:"totalHits"`
	ApproxSizeBytes int64      `json:"approxSizeBytes"`
	OldestCachedAt  *time.Time `json:"oldestCachedAt,omitempty"`
	NewestCachedAt  *time.Time `json:"newestCachedAt,omitempty"`
	LastUsedAt      *time.Time `json:"lastUsedAt,omitempty"`
	Enabled         bool       `json:"enabled"`
	TTLMinutes      int        `json:"ttlMinutes"`
}

// RecentSearch captures metadata about a cached search request.
type RecentSearch struct {
	CacheKey     string    `json:"cacheKey"`
	Query        string    `json:"query"`
	TotalResults int       `json:"totalResults"`
	CachedAt     time.Time `json:"cachedAt"`
	LastUsedAt   time.Time `json:"lastUsedAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
	HitCount     int64     `json:"hitCount"`
}

// SearchCacheStore persists search cache entries.
type SearchCacheStore struct {
	db dbinterface.Querier
}

// NewSearchCacheStore constructs a new search cache store.
func NewSearchCacheStore(db dbinterface.Querier) *SearchCacheStore {
	return &SearchCacheStore{db: db}
}

// Fetch returns a cached search response by cache key. Expired rows are
// deleted and reported as a miss.
func (s *SearchCacheStore) Fetch(ctx context.Context, cacheKey string) (*SearchCacheEntry, bool, error) {
	if strings.TrimSpace(cacheKey) == "" {
		return nil, false, fmt.Errorf("cache key cannot be empty")
	}

	const fetchQuery = `
		SELECT id, query, request_fingerprint, response_data, total_results,
		       cached_at, last_used_at, expires_at, hit_count
		FROM search_cache
		WHERE cache_key = ?
	`

	entry := &SearchCacheEntry{CacheKey: cacheKey}
	err := s.db.QueryRowContext(ctx, fetchQuery, cacheKey).Scan(
		&entry.ID,
		&entry.Query,
		&entry.RequestFingerprint,
		&entry.ResponseData,
		&entry.TotalResults,
		&entry.CachedAt,
		&entry.LastUsedAt,
		&entry.ExpiresAt,
		&entry.HitCount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("fetch search cache: %w", err)
	}

	if time.Now().UTC().After(entry.ExpiresAt) {
		s.deleteEntry(ctx, entry.ID)
		return nil, false, nil
	}

	s.touchEntry(ctx, entry.ID)

	return entry, true, nil
}

// Store inserts or updates a cached search response.
func (s *SearchCacheStore) Store(ctx context.Context, entry *SearchCacheEntry) error {
	if entry == nil {
		return fmt.Errorf("entry cannot be nil")
	}
	if strings.TrimSpace(entry.CacheKey) == "" {
		return fmt.Errorf("cache key cannot be empty")
	}
	if strings.TrimSpace(entry.RequestFingerprint) == "" {
		return fmt.Errorf("request fingerprint cannot be empty")
	}
	if len(entry.ResponseData) == 0 {
		return fmt.Errorf("response data cannot be empty")
	}
	if entry.ExpiresAt.Before(entry.CachedAt) {
		return fmt.Errorf("expiresAt must be after cachedAt")
	}

	const query = `
		INSERT INTO search_cache (
			cache_key, query, request_fingerprint, response_data, total_results,
			cached_at, last_used_at, expires_at, hit_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(cache_key) DO UPDATE SET
			query = excluded.query,
			request_fingerprint = excluded.request_fingerprint,
			response_data = excluded.response_data,
			total_results = excluded.total_results,
			cached_at = excluded.cached_at,
			last_used_at = excluded.last_used_at,
			expires_at = excluded.expires_at
	`

	if _, err := s.db.ExecContext(
		ctx,
		query,
		entry.CacheKey,
		entry.Query,
		entry.RequestFingerprint,
		entry.ResponseData,
		entry.TotalResults,
		entry.CachedAt.UTC(),
		entry.LastUsedAt.UTC(),
		entry.ExpiresAt.UTC(),
	); err != nil {
		return fmt.Errorf("store search cache entry: %w", err)
	}

	return nil
}

// RecentSearches returns the most recently used cached queries. The
// validation term "test" is skipped.
func (s *SearchCacheStore) RecentSearches(ctx context.Context, limit int) ([]*RecentSearch, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	const query = `
		SELECT cache_key, query, total_results, cached_at, last_used_at, expires_at, hit_count
		FROM search_cache
		WHERE TRIM(query) != ''
		  AND LOWER(TRIM(query)) != 'test'
		ORDER BY last_used_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("recent searches: %w", err)
	}
	defer rows.Close()

	var results []*RecentSearch
	for rows.Next() {
		entry := &RecentSearch{}
		if err := rows.Scan(
			&entry.CacheKey,
			&entry.Query,
			&entry.TotalResults,
			&entry.CachedAt,
			&entry.LastUsedAt,
			&entry.ExpiresAt,
			&entry.HitCount,
		); err != nil {
			return nil, fmt.Errorf("scan recent searches: %w", err)
		}
		results = append(results, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent searches: %w", err)
	}

	return results, nil
}

// CleanupExpired removes all expired cache rows.
func (s *SearchCacheStore) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM search_cache WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup search cache: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cleanup search cache rows affected: %w", err)
	}
	return deleted, nil
}

// Flush removes every cache entry.
func (s *SearchCacheStore) Flush(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM search_cache`)
	if err != nil {
		return 0, fmt.Errorf("flush search cache: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("flush search cache rows affected: %w", err)
	}
	return deleted, nil
}

// Stats returns summary metrics for the search cache table.
func (s *SearchCacheStore) Stats(ctx context.Context) (*SearchCacheStats, error) {
	const query = `
		SELECT
			COUNT(*) AS entries,
			COALESCE(SUM(hit_count), 0) AS total_hits,
			COALESCE(SUM(LENGTH(response_data)), 0) AS approx_size,
			MIN(cached_at) AS oldest_cached,
			MAX(cached_at) AS newest_cached,
			MAX(last_used_at) AS last_used
		FROM search_cache
	`

	var (
		entries      int64
		totalHits    int64
		sizeBytes    int64
		oldestCached sql.NullString
		newestCached sql.NullString
		lastUsed     sql.NullString
	)

	err := s.db.QueryRowContext(ctx, query).Scan(
		&entries,
		&totalHits,
		&sizeBytes,
		&oldestCached,
		&newestCached,
		&lastUsed,
	)
	if err != nil {
		return nil, fmt.Errorf("search cache stats: %w", err)
	}

	return &SearchCacheStats{
		Entries:         entries,
		TotalHits:       totalHits,
		ApproxSizeBytes: sizeBytes,
		OldestCachedAt:  parseCacheTimestamp(oldestCached),
		NewestCachedAt:  parseCacheTimestamp(newestCached),
		LastUsedAt:      parseCacheTimestamp(lastUsed),
	}, nil
}

func (s *SearchCacheStore) touchEntry(ctx context.Context, id int64) {
	if _, err := s.db.ExecContext(
		ctx,
		`UPDATE search_cache SET last_used_at = ?, hit_count = hit_count + 1 WHERE id = ?`,
		time.Now().UTC(),
		id,
	); err != nil {
		log.Error().Err(err).Int64("id", id).Msg("search cache touch failed")
	}
}

func (s *SearchCacheStore) deleteEntry(ctx context.Context, id int64) {
	_, _ = s.db.ExecContext(ctx, `DELETE FROM search_cache WHERE id = ?`, id)
}

var cacheTimestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// parseCacheTimestamp handles the formats MIN/MAX return for TIMESTAMP columns.
func parseCacheTimestamp(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	raw := strings.TrimSpace(value.String)
	if raw == "" {
		return nil
	}
	for _, layout := range cacheTimestampLayouts {
		parsed, err := time.ParseInLocation(layout, raw, time.UTC)
		if err != nil {
			continue
		}
		t := parsed.UTC()
		return &t
	}
	if unix, err := strconv.ParseFloat(raw, 64); err == nil {
		secs := int64(unix)
		nanos := int64((unix - float64(secs)) * 1_000_000_000)
		t := time.Unix(secs, nanos).UTC()
		return &t
	}
	log.Debug().Str("timestamp", raw).Msg("search cache stats: unrecognized timestamp format")
	return nil
}
