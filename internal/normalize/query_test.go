// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name        string
		query       SearchQuery
		wantTerm    string
		wantYear    *int
		wantSeason  *int
		wantEpisode *int
		wantToken   string
		wantKeyword string
	}{
		{
			name:        "scene code and year",
			query:       SearchQuery{Term: "Marco.Polo.2014.S02E08"},
			wantTerm:    "Marco Polo",
			wantYear:    intPtr(2014),
			wantSeason:  intPtr(2),
			wantEpisode: intPtr(8),
			wantToken:   "2x08",
			wantKeyword: "Marco Polo 2x08 2014",
		},
		{
			name:        "punctuation collapsed",
			query:       SearchQuery{Term: "foo+bar%baz_(qux)@[x]/y\\z"},
			wantTerm:    "foo bar baz qux x y z",
			wantKeyword: "foo bar baz qux x y z",
		},
		{
			name:        "noise words removed after year",
			query:       SearchQuery{Term: "Amelie spanish 2001"},
			wantTerm:    "Amelie",
			wantYear:    intPtr(2001),
			wantKeyword: "Amelie 2001",
		},
		{
			name:        "consecutive noise words",
			query:       SearchQuery{Term: "Titulo spa CASTELLANO Español"},
			wantTerm:    "Titulo",
			wantKeyword: "Titulo",
		},
		{
			name:        "noise word inside another word is kept",
			query:       SearchQuery{Term: "Spartacus"},
			wantTerm:    "Spartacus",
			wantKeyword: "Spartacus",
		},
		{
			name:        "caller supplied season and episode",
			query:       SearchQuery{Term: "Dark", Season: intPtr(1), Episode: intPtr(3)},
			wantTerm:    "Dark",
			wantSeason:  intPtr(1),
			wantEpisode: intPtr(3),
			wantToken:   "1x03",
			wantKeyword: "Dark 1x03",
		},
		{
			name:        "scene code kept in term is rewritten in place",
			query:       SearchQuery{Term: "Dark S01E03 Final", Season: intPtr(1), Episode: intPtr(3)},
			wantTerm:    "Dark S01E03 Final",
			wantSeason:  intPtr(1),
			wantEpisode: intPtr(3),
			wantToken:   "1x03",
			wantKeyword: "Dark 1x03 Final",
		},
		{
			name:        "double digit season is not padded further",
			query:       SearchQuery{Term: "Los Simpson S12E01"},
			wantTerm:    "Los Simpson",
			wantSeason:  intPtr(12),
			wantEpisode: intPtr(1),
			wantToken:   "12x01",
			wantKeyword: "Los Simpson 12x01",
		},
		{
			name:        "year only at the end",
			query:       SearchQuery{Term: "2001 A Space Odyssey"},
			wantTerm:    "2001 A Space Odyssey",
			wantKeyword: "2001 A Space Odyssey",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := ParseQuery(tt.query)

			assert.Equal(t, tt.wantTerm, parsed.Query.Term)
			assert.Equal(t, tt.wantYear, parsed.Query.Year)
			assert.Equal(t, tt.wantSeason, parsed.Query.Season)
			assert.Equal(t, tt.wantEpisode, parsed.Query.Episode)
			assert.Equal(t, tt.wantToken, parsed.RemoteToken)
			assert.Equal(t, tt.wantKeyword, parsed.Keyword())
		})
	}
}

func TestParseQuery_DoesNotMutateInput(t *testing.T) {
	query := SearchQuery{Term: "Marco.Polo.2014.S02E08"}

	parsed := ParseQuery(query)

	require.Equal(t, "Marco Polo", parsed.Query.Term)
	assert.Equal(t, "Marco.Polo.2014.S02E08", query.Term)
	assert.Nil(t, query.Year)
	assert.Nil(t, query.Season)
}

func TestParsedQuery_Empty(t *testing.T) {
	tests := []struct {
		name string
		term string
		want bool
	}{
		{name: "blank", term: "", want: true},
		{name: "punctuation only", term: "-._()", want: true},
		{name: "noise word only", term: "spa", want: true},
		{name: "year only", term: " 2014", want: false},
		{name: "term", term: "Dune", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseQuery(SearchQuery{Term: tt.term}).Empty())
		})
	}
}

func TestRemoteToken(t *testing.T) {
	assert.Equal(t, "2x08", RemoteToken(2, 8))
	assert.Equal(t, "1x10", RemoteToken(1, 10))
	assert.Equal(t, "10x01", RemoteToken(10, 1))
}

func TestLatin1(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "ascii", input: "Marco Polo 2x08", want: "Marco Polo 2x08"},
		{name: "latin1 accents kept", input: "Español Película", want: "Español Película"},
		{name: "cjk replaced", input: "日本 test", want: "?? test"},
		{name: "euro sign replaced", input: "€5", want: "?5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Latin1(tt.input))
		})
	}
}
