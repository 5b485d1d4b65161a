// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package emulex

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/mulebridge/internal/normalize"
)

func TestAssembler_Assemble(t *testing.T) {
	assembler := NewAssembler(DefaultAssemblerOptions())

	release, err := assembler.Assemble(RawResult{
		FileName: "Pelicula.Ejemplo.2020.avi",
		Hash:     "ABC123",
		Size:     "40000",
		Seed:     5,
		Peer:     2,
	})
	require.NoError(t, err)

	assert.Equal(t, "Pelicula.Ejemplo.2020.avi", release.Title)
	assert.Equal(t, normalize.CategoryMovie, release.Category)
	assert.Equal(t, []int{CategoryMovies}, release.CategoryIDs)
	assert.Equal(t, int64(40000), release.Size)
	assert.Equal(t, 5, release.Seeders)
	assert.Equal(t, 2, release.Peers)
	assert.Equal(t, 1, release.Files)
	assert.Equal(t, "https://ed2k.shortypower.org/?hash=ABC123", release.DetailsURL)
	assert.Equal(t, release.DetailsURL, release.GUID)
	assert.Equal(t, "magnet:?xt=urn:btih:ABC12399999999&dn=EMULE", release.MagnetURI)
	assert.Equal(t, release.MagnetURI, release.DownloadURL)
	assert.Equal(t, CatalogPublishDate, release.PublishDate)
	assert.Equal(t, 0.0, release.DownloadVolumeFactor)
	assert.Equal(t, 1.0, release.UploadVolumeFactor)
}

func TestAssembler_GUIDFromEd2kLinks(t *testing.T) {
	assembler := NewAssembler(DefaultAssemblerOptions())

	release, err := assembler.Assemble(RawResult{
		FileName:  "Serie 1x02.avi",
		Hash:      "ABC123",
		Ed2kLinks: "ed2k://|file|Serie 1x02.avi|40000|ABC123|/",
		Size:      "40000",
	})
	require.NoError(t, err)

	assert.Equal(t, normalize.CategorySeries, release.Category)
	assert.Equal(t, []int{CategoryTVSD}, release.CategoryIDs)
	assert.Equal(t, "https://ed2k.shortypower.org/?hash=ed2k%3A%2F%2F%7Cfile%7CSerie+1x02.avi%7C40000%7CABC123%7C%2F", release.GUID)
	assert.Equal(t, "https://ed2k.shortypower.org/?hash=ABC123", release.DetailsURL)
}

func TestAssembler_MalformedSize(t *testing.T) {
	assembler := NewAssembler(DefaultAssemblerOptions())

	tests := []struct {
		name string
		size flexString
	}{
		{name: "empty", size: ""},
		{name: "words", size: "big"},
		{name: "decimal", size: "12.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := assembler.Assemble(RawResult{FileName: "a.avi", Hash: "H", Size: tt.size})
			require.Error(t, err)

			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr))
			assert.Contains(t, parseErr.Body, "a.avi")
		})
	}
}

func TestAssembler_Options(t *testing.T) {
	published := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name       string
		opts       AssemblerOptions
		wantLink   string
		wantMagnet string
		wantDVF    float64
	}{
		{
			name: "template without placeholder appends",
			opts: AssemblerOptions{
				LinkTemplate:      "https://resolver.example/hash/",
				MagnetPrefix:      "magnet:?xt=urn:btih:",
				MagnetSuffix:      "",
				MagnetDisplayName: "MULE",
				Freeleech:         true,
				PublishDate:       published,
			},
			wantLink:   "https://resolver.example/hash/H1",
			wantMagnet: "magnet:?xt=urn:btih:H1&dn=MULE",
			wantDVF:    0,
		},
		{
			name: "freeleech disabled",
			opts: AssemblerOptions{
				LinkTemplate:      "https://r.example/?h=%s&x=1",
				MagnetPrefix:      "magnet:?xt=urn:ed2k:",
				MagnetSuffix:      "00",
				MagnetDisplayName: "EMULE",
				PublishDate:       published,
			},
			wantLink:   "https://r.example/?h=H1&x=1",
			wantMagnet: "magnet:?xt=urn:ed2k:H100&dn=EMULE",
			wantDVF:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			release, err := NewAssembler(tt.opts).Assemble(RawResult{FileName: "x.mkv", Hash: "H1", Size: "1"})
			require.NoError(t, err)
			assert.Equal(t, tt.wantLink, release.DetailsURL)
			assert.Equal(t, tt.wantMagnet, release.MagnetURI)
			assert.Equal(t, tt.wantDVF, release.DownloadVolumeFactor)
			assert.Equal(t, published, release.PublishDate)
		})
	}
}

func TestAssembler_EnrichesMetadata(t *testing.T) {
	release, err := NewAssembler(DefaultAssemblerOptions()).Assemble(RawResult{
		FileName: "Movie.2020.1080p.BluRay.x264-GRP.mkv",
		Hash:     "H",
		Size:     "1",
	})
	require.NoError(t, err)

	assert.Equal(t, normalize.CategoryMovieHD, release.Category)
	assert.Equal(t, []int{CategoryMovies4K}, release.CategoryIDs)
	assert.Equal(t, "1080p", release.Resolution)
}

func TestAssembler_Placeholder(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	release := NewAssembler(DefaultAssemblerOptions()).Placeholder("status", "HASH", normalize.CategorySeries, 40000, now)

	assert.Equal(t, "status", release.Title)
	assert.Equal(t, now, release.PublishDate)
	assert.Equal(t, int64(40000), release.Size)
	assert.Equal(t, []int{CategoryTVSD}, release.CategoryIDs)
	assert.Equal(t, "https://ed2k.shortypower.org/?hash=HASH", release.GUID)
}

func TestRawResult_Decode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    RawResult
		wantErr bool
	}{
		{
			name:  "numbers as strings",
			input: `{"_fileName":"a","_hash":"h","_size":"100","_seed":"3","_peer":"4"}`,
			want:  RawResult{FileName: "a", Hash: "h", Size: "100", Seed: 3, Peer: 4},
		},
		{
			name:  "numbers as numbers",
			input: `{"_fileName":"a","_hash":"h","_size":100,"_seed":3,"_peer":4}`,
			want:  RawResult{FileName: "a", Hash: "h", Size: "100", Seed: 3, Peer: 4},
		},
		{
			name:  "missing and null counters",
			input: `{"_fileName":"a","_hash":"h","_size":"1","_seed":null}`,
			want:  RawResult{FileName: "a", Hash: "h", Size: "1"},
		},
		{
			name:  "junk counters",
			input: `{"_fileName":"a","_size":"1","_seed":"many","_peer":{"x":1}}`,
			want:  RawResult{FileName: "a", Size: "1"},
		},
		{
			name:  "null size",
			input: `{"_fileName":"a","_size":null}`,
			want:  RawResult{FileName: "a"},
		},
		{
			name:    "object size",
			input:   `{"_fileName":"a","_size":{"v":1}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got RawResult
			err := json.Unmarshal([]byte(tt.input), &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
