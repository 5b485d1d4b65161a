// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/mulebridge/internal/database"
)

func setupSearchCacheStore(t *testing.T) *SearchCacheStore {
	t.Helper()
	db, err := database.Open(t.Context(), filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSearchCacheStore(db)
}

func newEntry(key, query string, ttl time.Duration) *SearchCacheEntry {
	now := time.Now().UTC()
	return &SearchCacheEntry{
		CacheKey:           key,
		Query:              query,
		RequestFingerprint: `{"keyword":"` + query + `"}`,
		ResponseData:       []byte(`[{"title":"x"}]`),
		TotalResults:       1,
		CachedAt:           now,
		LastUsedAt:         now,
		ExpiresAt:          now.Add(ttl),
	}
}

func TestSearchCacheStore_StoreAndFetch(t *testing.T) {
	ctx := t.Context()
	store := setupSearchCacheStore(t)

	require.NoError(t, store.Store(ctx, newEntry("k1", "matrix", time.Hour)))

	entry, ok, err := store.Fetch(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "matrix", entry.Query)
	assert.Equal(t, 1, entry.TotalResults)
	assert.JSONEq(t, `[{"title":"x"}]`, string(entry.ResponseData))

	// second fetch sees the hit recorded by the first
	entry, ok, err = store.Fetch(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), entry.HitCount)
}

func TestSearchCacheStore_FetchMissing(t *testing.T) {
	store := setupSearchCacheStore(t)

	entry, ok, err := store.Fetch(t.Context(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, entry)

	_, _, err = store.Fetch(t.Context(), "  ")
	assert.Error(t, err)
}

func TestSearchCacheStore_ExpiredEntryIsDropped(t *testing.T) {
	ctx := t.Context()
	store := setupSearchCacheStore(t)

	entry := newEntry("old", "matrix", time.Hour)
	entry.CachedAt = entry.CachedAt.Add(-2 * time.Hour)
	entry.LastUsedAt = entry.CachedAt
	entry.ExpiresAt = entry.CachedAt.Add(time.Minute)
	require.NoError(t, store.Store(ctx, entry))

	_, ok, err := store.Fetch(ctx, "old")
	require.NoError(t, err)
	assert.False(t, ok)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Entries)
}

func TestSearchCacheStore_StoreValidation(t *testing.T) {
	store := setupSearchCacheStore(t)

	tests := []struct {
		name   string
		mutate func(e *SearchCacheEntry)
	}{
		{name: "empty key", mutate: func(e *SearchCacheEntry) { e.CacheKey = "" }},
		{name: "empty fingerprint", mutate: func(e *SearchCacheEntry) { e.RequestFingerprint = " " }},
		{name: "empty payload", mutate: func(e *SearchCacheEntry) { e.ResponseData = nil }},
		{name: "expiry before cached", mutate: func(e *SearchCacheEntry) { e.ExpiresAt = e.CachedAt.Add(-time.Second) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := newEntry("k", "q", time.Hour)
			tt.mutate(entry)
			assert.Error(t, store.Store(t.Context(), entry))
		})
	}

	assert.Error(t, store.Store(t.Context(), nil))
}

func TestSearchCacheStore_Upsert(t *testing.T) {
	ctx := t.Context()
	store := setupSearchCacheStore(t)

	require.NoError(t, store.Store(ctx, newEntry("k", "first", time.Hour)))
	updated := newEntry("k", "second", time.Hour)
	updated.TotalResults = 7
	require.NoError(t, store.Store(ctx, updated))

	entry, ok, err := store.Fetch(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", entry.Query)
	assert.Equal(t, 7, entry.TotalResults)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Entries)
}

func TestSearchCacheStore_CleanupAndFlush(t *testing.T) {
	ctx := t.Context()
	store := setupSearchCacheStore(t)

	expired := newEntry("expired", "a", time.Hour)
	expired.CachedAt = expired.CachedAt.Add(-time.Hour)
	expired.LastUsedAt = expired.CachedAt
	expired.ExpiresAt = expired.CachedAt.Add(time.Minute)
	require.NoError(t, store.Store(ctx, expired))
	require.NoError(t, store.Store(ctx, newEntry("fresh", "b", time.Hour)))
	require.NoError(t, store.Store(ctx, newEntry("fresh2", "c", time.Hour)))

	deleted, err := store.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Entries)
	assert.NotNil(t, stats.NewestCachedAt)

	flushed, err := store.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), flushed)
}

func TestSearchCacheStore_RecentSearches(t *testing.T) {
	ctx := t.Context()
	store := setupSearchCacheStore(t)

	require.NoError(t, store.Store(ctx, newEntry("k1", "matrix", time.Hour)))
	require.NoError(t, store.Store(ctx, newEntry("k2", "test", time.Hour)))
	later := newEntry("k3", "dune", time.Hour)
	later.LastUsedAt = later.LastUsedAt.Add(time.Minute)
	require.NoError(t, store.Store(ctx, later))

	recent, err := store.RecentSearches(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "dune", recent[0].Query)
	assert.Equal(t, "matrix", recent[1].Query)
}

func TestParseCacheTimestamp(t *testing.T) {
	tests := []struct {
		name  string
		value sql.NullString
		want  *time.Time
	}{
		{name: "null", value: sql.NullString{}, want: nil},
		{name: "blank", value: sql.NullString{String: " ", Valid: true}, want: nil},
		{name: "rfc3339", value: sql.NullString{String: "2024-05-01T10:00:00Z", Valid: true}, want: ptrTime(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))},
		{name: "sqlite datetime", value: sql.NullString{String: "2024-05-01 10:00:00", Valid: true}, want: ptrTime(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))},
		{name: "go time string", value: sql.NullString{String: "2024-05-01 10:00:00 +0000 UTC", Valid: true}, want: ptrTime(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))},
		{name: "unix seconds", value: sql.NullString{String: "1714557600", Valid: true}, want: ptrTime(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))},
		{name: "garbage", value: sql.NullString{String: "not a time", Valid: true}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseCacheTimestamp(tt.value)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "got %s", got)
		})
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
