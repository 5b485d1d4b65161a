// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchWords(t *testing.T) {
	tests := []struct {
		name  string
		query string
		title string
		want  bool
	}{
		{name: "accents folded", query: "Película de prueba", title: "Pelicula.de.Prueba.2020.mkv", want: true},
		{name: "short words ignored", query: "El Señor de los Anillos", title: "Senor.Los.Anillos.mkv", want: true},
		{name: "missing word", query: "Dune 2021", title: "Dune.mkv", want: false},
		{name: "only short words", query: "de la", title: "Otra.Cosa.avi", want: true},
		{name: "empty query", query: "", title: "Anything.avi", want: true},
		{name: "whole words only", query: "Dune", title: "Dunes.avi", want: false},
		{name: "case insensitive", query: "DARK", title: "dark.1x01.avi", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchWords(tt.query, tt.title))
		})
	}
}

func TestFoldAccents(t *testing.T) {
	assert.Equal(t, "pelicula", foldAccents("película"))
	assert.Equal(t, "Espanol", foldAccents("Español"))
	assert.Equal(t, "plain", foldAccents("plain"))
}
