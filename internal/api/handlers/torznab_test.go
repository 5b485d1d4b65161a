// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/mulebridge/internal/services/emulex"
)

func TestParseCategories(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []int
		wantErr bool
	}{
		{name: "empty", raw: ""},
		{name: "single", raw: "5040", want: []int{5040}},
		{name: "list with blanks", raw: "2000, ,5030,", want: []int{2000, 5030}},
		{name: "not a number", raw: "tv", wantErr: true},
		{name: "zero", raw: "0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCategories(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilterByCategories(t *testing.T) {
	releases := []emulex.Release{
		{Title: "movie", CategoryIDs: []int{emulex.CategoryMovies}},
		{Title: "movie uhd", CategoryIDs: []int{emulex.CategoryMovies4K}},
		{Title: "series hd", CategoryIDs: []int{emulex.CategoryTVHD}},
		{Title: "other", CategoryIDs: []int{emulex.CategoryOther}},
	}

	titles := func(rs []emulex.Release) []string {
		out := make([]string, 0, len(rs))
		for _, r := range rs {
			out = append(out, r.Title)
		}
		return out
	}

	tests := []struct {
		name      string
		requested []int
		want      []string
	}{
		{name: "no filter", want: []string{"movie", "movie uhd", "series hd", "other"}},
		{name: "exact tv hd", requested: []int{5040}, want: []string{"series hd"}},
		{name: "tv sd excludes hd", requested: []int{5030}, want: []string{}},
		{name: "parent movies", requested: []int{2000}, want: []string{"movie", "movie uhd"}},
		{name: "parent tv", requested: []int{5000}, want: []string{"series hd"}},
		{name: "several", requested: []int{2045, 8000}, want: []string{"movie uhd", "other"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, titles(filterByCategories(releases, tt.requested)))
		})
	}
}
