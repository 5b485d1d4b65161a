// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/xml"
	"strings"

	"github.com/autobrr/mulebridge/internal/buildinfo"
	"github.com/autobrr/mulebridge/internal/services/emulex"
)

const defaultResultLimit = 100

// CapsResponse is the Torznab t=caps document.
type CapsResponse struct {
	XMLName    xml.Name       `xml:"caps"`
	Server     CapsServer     `xml:"server"`
	Limits     CapsLimits     `xml:"limits"`
	Searching  CapsSearching  `xml:"searching"`
	Categories []CapsCategory `xml:"categories>category"`
}

type CapsServer struct {
	Title   string `xml:"title,attr"`
	Version string `xml:"version,attr"`
}

type CapsLimits struct {
	Default int `xml:"default,attr"`
	Max     int `xml:"max,attr"`
}

// CapsSearching lists the search functions. Modes the indexer lacks are
// reported as unavailable.
type CapsSearching struct {
	Search      CapsSearchMode `xml:"search"`
	TVSearch    CapsSearchMode `xml:"tv-search"`
	MovieSearch CapsSearchMode `xml:"movie-search"`
	MusicSearch CapsSearchMode `xml:"music-search"`
}

type CapsSearchMode struct {
	Available       string `xml:"available,attr"`
	SupportedParams string `xml:"supportedParams,attr"`
}

type CapsCategory struct {
	ID   int    `xml:"id,attr"`
	Name string `xml:"name,attr"`
}

// NewCapsResponse renders emulex capabilities as a Torznab caps document.
func NewCapsResponse(caps emulex.Capabilities) CapsResponse {
	modes := make(map[string]CapsSearchMode, len(caps.Searching))
	for _, mode := range caps.Searching {
		modes[mode.Name] = CapsSearchMode{
			Available:       "yes",
			SupportedParams: strings.Join(mode.Params, ","),
		}
	}
	mode := func(name string) CapsSearchMode {
		if m, ok := modes[name]; ok {
			return m
		}
		return CapsSearchMode{Available: "no"}
	}

	categories := make([]CapsCategory, 0, len(caps.Categories))
	for _, c := range caps.Categories {
		categories = append(categories, CapsCategory{ID: c.ID, Name: c.Name})
	}

	return CapsResponse{
		Server: CapsServer{Title: "mulebridge", Version: buildinfo.Version},
		Limits: CapsLimits{Default: defaultResultLimit, Max: defaultResultLimit},
		Searching: CapsSearching{
			Search:      mode("search"),
			TVSearch:    mode("tv-search"),
			MovieSearch: mode("movie-search"),
			MusicSearch: mode("music-search"),
		},
		Categories: categories,
	}
}
