// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package emulex

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/autobrr/mulebridge/internal/normalize"
)

// RawResult is one record of the emulex search response.
type RawResult struct {
	FileName  string     `json:"_fileName"`
	Hash      string     `json:"_hash"`
	Ed2kLinks string     `json:"_ed2kLinks"`
	Size      flexString `json:"_size"`
	Seed      flexInt    `json:"_seed"`
	Peer      flexInt    `json:"_peer"`
}

// flexString accepts a JSON string or number. null decodes to "".
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = flexString(n.String())
	return nil
}

// flexInt accepts a JSON number or numeric string. Missing, null or junk decode to 0.
type flexInt int

func (i *flexInt) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		*i = 0
		return nil
	}
	switch v := raw.(type) {
	case float64:
		*i = flexInt(int(v))
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			n = 0
		}
		*i = flexInt(n)
	default:
		*i = 0
	}
	return nil
}

// Release is a normalized catalog record.
type Release struct {
	Title       string             `json:"title"`
	DetailsURL  string             `json:"details_url"`
	DownloadURL string             `json:"download_url"`
	GUID        string             `json:"guid"`
	MagnetURI   string             `json:"magnet_uri"`
	Category    normalize.Category `json:"category"`
	CategoryIDs []int              `json:"category_ids"`
	PublishDate time.Time          `json:"publish_date"`
	Size        int64              `json:"size"`
	Seeders     int                `json:"seeders"`
	Peers       int                `json:"peers"`
	Files       int                `json:"files"`
	// Download volume factor (0.0 = free, 1.0 = normal)
	DownloadVolumeFactor float64 `json:"download_volume_factor"`
	// Upload volume factor
	UploadVolumeFactor float64 `json:"upload_volume_factor"`

	// Metadata parsed from the cleaned title
	Resolution string   `json:"resolution,omitempty"`
	Source     string   `json:"source,omitempty"`
	Codec      []string `json:"codec,omitempty"`
	Group      string   `json:"group,omitempty"`
	Languages  []string `json:"languages,omitempty"`
}

// SearchResponse is returned by the JSON search API and stored in the search cache.
type SearchResponse struct {
	Results []Release            `json:"results"`
	Total   int                  `json:"total"`
	Skipped int                  `json:"skipped,omitempty"`
	Cache   *SearchCacheMetadata `json:"cache,omitempty"`
}

// SearchCacheMetadata describes how the response was sourced.
type SearchCacheMetadata struct {
	Hit       bool      `json:"hit"`
	CachedAt  time.Time `json:"cachedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Torznab category constants
const (
	CategoryMovies   = 2000
	CategoryMovies4K = 2045
	CategoryAudio    = 3000
	CategoryTVSD     = 5030
	CategoryTVHD     = 5040
	CategoryOther    = 8000
)
