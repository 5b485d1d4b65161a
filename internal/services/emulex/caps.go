// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package emulex

import "github.com/autobrr/mulebridge/internal/normalize"

// CategoryInfo represents a Torznab category
type CategoryInfo struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// SearchMode is one Torznab search function and the parameters it accepts.
type SearchMode struct {
	Name   string   `json:"name"`
	Params []string `json:"params"`
}

// Capabilities describes what the indexer can answer.
type Capabilities struct {
	Searching  []SearchMode   `json:"searching"`
	Categories []CategoryInfo `json:"categories"`
}

var torznabCategoryMap = map[normalize.Category]int{
	normalize.CategoryMovie:    CategoryMovies,
	normalize.CategoryMovieHD:  CategoryMovies4K,
	normalize.CategorySeries:   CategoryTVSD,
	normalize.CategorySeriesHD: CategoryTVHD,
	normalize.CategoryMusic:    CategoryAudio,
}

var torznabCategoryNames = map[int]string{
	CategoryMovies:   "Movies",
	CategoryMovies4K: "Movies/UHD",
	CategoryAudio:    "Audio",
	CategoryTVSD:     "TV/SD",
	CategoryTVHD:     "TV/HD",
	CategoryOther:    "Other",
}

// TorznabCategories maps a catalog label to its Torznab ids. Unmapped labels
// land in Other.
func TorznabCategories(c normalize.Category) []int {
	if id, ok := torznabCategoryMap[c]; ok {
		return []int{id}
	}
	return []int{CategoryOther}
}

// CategoryName returns the Torznab display name for id.
func CategoryName(id int) string {
	return torznabCategoryNames[id]
}

// Caps returns the static capability document.
func Caps() Capabilities {
	return Capabilities{
		Searching: []SearchMode{
			{Name: "search", Params: []string{"q"}},
			{Name: "tv-search", Params: []string{"q", "season", "ep"}},
			{Name: "movie-search", Params: []string{"q"}},
			{Name: "music-search", Params: []string{"q"}},
		},
		Categories: []CategoryInfo{
			{ID: CategoryMovies, Name: torznabCategoryNames[CategoryMovies]},
			{ID: CategoryMovies4K, Name: torznabCategoryNames[CategoryMovies4K]},
			{ID: CategoryTVSD, Name: torznabCategoryNames[CategoryTVSD]},
			{ID: CategoryTVHD, Name: torznabCategoryNames[CategoryTVHD]},
			{ID: CategoryAudio, Name: torznabCategoryNames[CategoryAudio]},
			{ID: CategoryOther, Name: torznabCategoryNames[CategoryOther]},
		},
	}
}
