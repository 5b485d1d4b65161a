// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTitle(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "spanish sub glued", raw: "Movie.Spanishsub.avi", want: "Movie.Spanish.sub.avi"},
		{name: "english sub glued", raw: "Movie.Englishsub.avi", want: "Movie.English.sub.avi"},
		{name: "m1080 prefix", raw: "Peli.m1080.mkv", want: "Peli.1080p.mkv"},
		{name: "bare 1080", raw: "Peli.1080.mkv", want: "Peli.1080p.mkv"},
		{name: "1080p untouched", raw: "Peli.1080p.mkv", want: "Peli.1080p.mkv"},
		{name: "castellano", raw: "Serie.Castellano.mkv", want: "Serie.Spanish.mkv"},
		{name: "uppercase español", raw: "Serie.ESPAÑOL.mkv", want: "Serie.Spanish.mkv"},
		{name: "espanol without tilde", raw: "Serie.espanol.mkv", want: "Serie.Spanish.mkv"},
		{name: "standalone ESP keeps spacing", raw: "Movie ESP 720p.avi", want: "Movie Spanish 720p.avi"},
		{name: "short esp", raw: "movie.esp.avi", want: "movie.Spanish.avi"},
		{name: "short spa", raw: "movie[SPA].avi", want: "movie[Spanish].avi"},
		{name: "esp inside word untouched", raw: "Especial.avi", want: "Especial.avi"},
		{name: "year parenthetical trimmed", raw: "Pelicula.Test.(2020.BluRay).mkv", want: "Pelicula.Test.(2020).mkv"},
		{name: "year parenthetical already clean", raw: "Pelicula (2020).mkv", want: "Pelicula (2020).mkv"},
		{name: "group with year prefix", raw: "Pelicula (2020) [nocturnia].mkv", want: "Pelicula (2020) Spanish  [nocturnia].mkv"},
		{name: "group with episode token", raw: "Serie 1x02 HDTV [hispashare].avi", want: "Serie 1x02 Spanish HDTV [hispashare].avi"},
		{name: "group match is case insensitive", raw: "Serie 3x01 [XUSMAN].avi", want: "Serie 3x01 Spanish [XUSMAN].avi"},
		{name: "group without anchor", raw: "Documental [xusman].avi", want: "Documental [xusman].avi"},
		{name: "group with special characters", raw: "Peli (1999) eth@n.avi", want: "Peli (1999) Spanish  eth@n.avi"},
		{name: "unknown group untouched", raw: "Pelicula (2020) [yts].mkv", want: "Pelicula (2020) [yts].mkv"},
		{name: "resolution parenthetical kept", raw: "Pelicula (1080p).mkv", want: "Pelicula (1080p).mkv"},
		{name: "uhd parenthetical kept", raw: "Pelicula (2160p HDR).mkv", want: "Pelicula (2160p HDR).mkv"},
		{name: "episode resolution parenthetical kept", raw: "Serie 1x02 (1080p).mkv", want: "Serie 1x02 (1080p).mkv"},
		{name: "group does not tag resolution", raw: "Pelicula (1080p) [nocturnia].mkv", want: "Pelicula (1080p) [nocturnia].mkv"},
		{name: "group tags year after resolution", raw: "Pelicula (2019) (1080p) [geot].mkv", want: "Pelicula (2019) Spanish  (1080p) [geot].mkv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Title(tt.raw))
		})
	}
}

func TestTitle_SpanishInsertedOnceAfterYear(t *testing.T) {
	for _, group := range SpanishReleaseGroups() {
		raw := "Una Pelicula (2018) 720p " + group + ".mkv"

		title := Title(raw)

		require.Equal(t, 1, strings.Count(title, " Spanish "), "group %q: %q", group, title)
		assert.True(t, strings.HasPrefix(title, "Una Pelicula (2018) Spanish "), "group %q: %q", group, title)
	}
}

func TestTitle_FirstTaggingGroupWins(t *testing.T) {
	// nocturnia precedes geot in the group list; both would tag the same token
	title := Title("Serie 1x02 geot nocturnia.avi")

	assert.Equal(t, "Serie 1x02 Spanish geot nocturnia.avi", title)
	assert.Equal(t, 1, strings.Count(title, "Spanish"))
}

func TestTitle_GroupFallsThroughWhenNothingToTag(t *testing.T) {
	// xusman cannot tag (no year, no episode) so the scan keeps going
	title := Title("Documental [xusman] [grupots]")

	assert.Equal(t, "Documental [xusman] [grupots]", title)
}

func TestSpanishReleaseGroups(t *testing.T) {
	groups := SpanishReleaseGroups()

	require.Len(t, groups, 14)
	assert.Equal(t, "nocturnia", groups[0])
	assert.Equal(t, "yamil", groups[len(groups)-1])
}
