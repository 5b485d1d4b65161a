// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/xml"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/mulebridge/internal/services/emulex"
)

const torznabNamespace = "http://torznab.com/schemas/2015/feed"

// Torznab error codes.
const (
	torznabErrCredentials    = 100
	torznabErrMissingParam   = 200
	torznabErrIncorrectParam = 201
	torznabErrNoSuchFunction = 202
	torznabErrUnknown        = 900
)

// TorznabHandler answers Torznab api requests (t=caps|search|tvsearch|movie|music).
type TorznabHandler struct {
	service *emulex.Service
}

func NewTorznabHandler(service *emulex.Service) *TorznabHandler {
	return &TorznabHandler{service: service}
}

type torznabError struct {
	XMLName     xml.Name `xml:"error"`
	Code        int      `xml:"code,attr"`
	Description string   `xml:"description,attr"`
}

type rssFeed struct {
	XMLName   xml.Name   `xml:"rss"`
	Version   string     `xml:"version,attr"`
	AtomNS    string     `xml:"xmlns:atom,attr"`
	TorznabNS string     `xml:"xmlns:torznab,attr"`
	Channel   rssChannel `xml:"channel"`
}

type rssChannel struct {
	AtomLink    atomLink  `xml:"atom:link"`
	Title       string    `xml:"title"`
	Description string    `xml:"description"`
	Link        string    `xml:"link"`
	Language    string    `xml:"language"`
	Category    string    `xml:"category"`
	Items       []rssItem `xml:"item"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssItem struct {
	Title      string        `xml:"title"`
	GUID       string        `xml:"guid"`
	Type       string        `xml:"type"`
	Comments   string        `xml:"comments"`
	PubDate    string        `xml:"pubDate"`
	Size       int64         `xml:"size"`
	Files      int           `xml:"files"`
	Link       string        `xml:"link"`
	Categories []int         `xml:"category"`
	Enclosure  rssEnclosure  `xml:"enclosure"`
	Attrs      []torznabAttr `xml:"torznab:attr"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

type torznabAttr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// ServeHTTP dispatches on the t parameter.
func (h *TorznabHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	function := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("t")))

	switch function {
	case "":
		RespondTorznabError(w, http.StatusBadRequest, torznabErrMissingParam, "Missing parameter (t)")
	case "caps":
		writeXML(w, http.StatusOK, NewCapsResponse(h.service.Capabilities()))
	case "search", "tvsearch", "tv-search", "movie", "movie-search", "music", "music-search":
		h.search(w, r)
	default:
		RespondTorznabError(w, http.StatusBadRequest, torznabErrNoSuchFunction, "No such function ("+function+")")
	}
}

func (h *TorznabHandler) search(w http.ResponseWriter, r *http.Request) {
	query, err := searchQueryFromRequest(r)
	if err != nil {
		var pe *paramError
		if errors.As(err, &pe) {
			RespondTorznabError(w, http.StatusBadRequest, torznabErrIncorrectParam, "Incorrect parameter ("+pe.name+")")
			return
		}
		RespondTorznabError(w, http.StatusBadRequest, torznabErrIncorrectParam, err.Error())
		return
	}

	categories, err := parseCategories(r.URL.Query().Get("cat"))
	if err != nil {
		RespondTorznabError(w, http.StatusBadRequest, torznabErrIncorrectParam, "Incorrect parameter (cat)")
		return
	}

	releases, err := h.service.Search(r.Context(), query)
	if err != nil {
		log.Error().Err(err).Str("query", query.Term).Msg("Torznab search failed")
		RespondTorznabError(w, searchErrorStatus(err), torznabErrUnknown, "Search failed")
		return
	}

	releases = filterByCategories(releases, categories)

	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 && limit < len(releases) {
		releases = releases[:limit]
	}

	writeXML(w, http.StatusOK, newRSSFeed(selfLink(r), releases))
}

// parseCategories reads the comma separated cat parameter. Blank entries are skipped.
func parseCategories(raw string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil || id <= 0 {
			return nil, &paramError{name: "cat", err: errInvalidNumber}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// filterByCategories keeps releases in any requested category. A parent id
// such as 5000 also matches its subcategories (5030, 5040).
func filterByCategories(releases []emulex.Release, requested []int) []emulex.Release {
	if len(requested) == 0 {
		return releases
	}

	filtered := make([]emulex.Release, 0, len(releases))
	for _, release := range releases {
		if inCategories(release.CategoryIDs, requested) {
			filtered = append(filtered, release)
		}
	}
	return filtered
}

func inCategories(ids, requested []int) bool {
	for _, id := range ids {
		for _, want := range requested {
			if id == want || (want%1000 == 0 && id/1000*1000 == want) {
				return true
			}
		}
	}
	return false
}

func newRSSFeed(self string, releases []emulex.Release) rssFeed {
	items := make([]rssItem, 0, len(releases))
	for _, release := range releases {
		items = append(items, newRSSItem(release))
	}

	return rssFeed{
		Version:   "2.0",
		AtomNS:    "http://www.w3.org/2005/Atom",
		TorznabNS: torznabNamespace,
		Channel: rssChannel{
			AtomLink:    atomLink{Href: self, Rel: "self", Type: "application/rss+xml"},
			Title:       "mulebridge",
			Description: "eMule catalog search through emulex",
			Link:        self,
			Language:    "es-ES",
			Category:    "search",
			Items:       items,
		},
	}
}

func newRSSItem(release emulex.Release) rssItem {
	attrs := make([]torznabAttr, 0, len(release.CategoryIDs)+6)
	for _, id := range release.CategoryIDs {
		attrs = append(attrs, torznabAttr{Name: "category", Value: strconv.Itoa(id)})
	}
	attrs = append(attrs,
		torznabAttr{Name: "seeders", Value: strconv.Itoa(release.Seeders)},
		torznabAttr{Name: "peers", Value: strconv.Itoa(release.Peers)},
		torznabAttr{Name: "downloadvolumefactor", Value: formatFactor(release.DownloadVolumeFactor)},
		torznabAttr{Name: "uploadvolumefactor", Value: formatFactor(release.UploadVolumeFactor)},
		torznabAttr{Name: "magneturl", Value: release.MagnetURI},
		torznabAttr{Name: "files", Value: strconv.Itoa(release.Files)},
	)

	return rssItem{
		Title:      release.Title,
		GUID:       release.GUID,
		Type:       "public",
		Comments:   release.DetailsURL,
		PubDate:    release.PublishDate.UTC().Format(time.RFC1123Z),
		Size:       release.Size,
		Files:      release.Files,
		Link:       release.DownloadURL,
		Categories: release.CategoryIDs,
		Enclosure: rssEnclosure{
			URL:    release.DownloadURL,
			Length: release.Size,
			Type:   "application/x-bittorrent",
		},
		Attrs: attrs,
	}
}

func formatFactor(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func selfLink(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.Path
}

// RespondTorznabError writes a Torznab <error/> document.
func RespondTorznabError(w http.ResponseWriter, status, code int, description string) {
	writeXML(w, status, torznabError{Code: code, Description: description})
}

// RespondTorznabUnauthorized is the Torznab rejection for a bad api key.
func RespondTorznabUnauthorized(w http.ResponseWriter, _ *http.Request) {
	RespondTorznabError(w, http.StatusUnauthorized, torznabErrCredentials, "Incorrect user credentials")
}

func writeXML(w http.ResponseWriter, status int, v any) {
	out, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode XML response")
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(out)
}
