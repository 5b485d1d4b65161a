// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package emulex

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/moistari/rls"

	"github.com/autobrr/mulebridge/internal/normalize"
)

// CatalogPublishDate is stamped on every catalog record; emulex does not report one.
var CatalogPublishDate = time.Date(1999, time.December, 1, 0, 0, 0, 0, time.UTC)

// AssemblerOptions are the configurable parts of a release.
type AssemblerOptions struct {
	// LinkTemplate builds the details link; %s is replaced by the hash.
	LinkTemplate      string
	MagnetPrefix      string
	MagnetSuffix      string
	MagnetDisplayName string
	Freeleech         bool
	PublishDate       time.Time
}

// DefaultAssemblerOptions mirrors the shipped config defaults.
func DefaultAssemblerOptions() AssemblerOptions {
	return AssemblerOptions{
		LinkTemplate:      "https://ed2k.shortypower.org/?hash=%s",
		MagnetPrefix:      "magnet:?xt=urn:btih:",
		MagnetSuffix:      "99999999",
		MagnetDisplayName: "EMULE",
		Freeleech:         true,
		PublishDate:       CatalogPublishDate,
	}
}

// Assembler turns raw emulex records into releases.
type Assembler struct {
	opts AssemblerOptions
}

func NewAssembler(opts AssemblerOptions) *Assembler {
	if opts.PublishDate.IsZero() {
		opts.PublishDate = CatalogPublishDate
	}
	return &Assembler{opts: opts}
}

// Assemble builds a release from one record. A malformed size yields a ParseError.
func (a *Assembler) Assemble(raw RawResult) (Release, error) {
	size, err := strconv.ParseInt(strings.TrimSpace(string(raw.Size)), 10, 64)
	if err != nil {
		return Release{}, &ParseError{
			Body: fmt.Sprintf("%s (_size=%q)", raw.FileName, string(raw.Size)),
			Err:  fmt.Errorf("invalid size: %w", err),
		}
	}

	title := normalize.Title(raw.FileName)
	category := normalize.Classify(title)

	details := a.link(raw.Hash)
	guid := details
	if raw.Ed2kLinks != "" {
		guid = a.link(url.QueryEscape(raw.Ed2kLinks))
	}
	magnet := a.Magnet(raw.Hash)

	release := Release{
		Title:       title,
		DetailsURL:  details,
		DownloadURL: magnet,
		GUID:        guid,
		MagnetURI:   magnet,
		Category:    category,
		CategoryIDs: TorznabCategories(category),
		PublishDate: a.opts.PublishDate,
		Size:        size,
		Seeders:     int(raw.Seed),
		Peers:       int(raw.Peer),
		Files:       1,
	}
	a.applyVolumeFactors(&release)
	enrich(&release)

	return release, nil
}

// Magnet concatenates prefix, hash, suffix and display name verbatim.
func (a *Assembler) Magnet(hash string) string {
	return a.opts.MagnetPrefix + hash + a.opts.MagnetSuffix + "&dn=" + a.opts.MagnetDisplayName
}

// Placeholder builds a release that is not backed by a catalog record.
func (a *Assembler) Placeholder(title, hash string, category normalize.Category, size int64, published time.Time) Release {
	details := a.link(hash)
	magnet := a.Magnet(hash)
	release := Release{
		Title:       title,
		DetailsURL:  details,
		DownloadURL: magnet,
		GUID:        details,
		MagnetURI:   magnet,
		Category:    category,
		CategoryIDs: TorznabCategories(category),
		PublishDate: published,
		Size:        size,
		Files:       1,
	}
	a.applyVolumeFactors(&release)
	return release
}

func (a *Assembler) link(value string) string {
	if strings.Contains(a.opts.LinkTemplate, "%s") {
		return strings.ReplaceAll(a.opts.LinkTemplate, "%s", value)
	}
	return a.opts.LinkTemplate + value
}

func (a *Assembler) applyVolumeFactors(release *Release) {
	release.UploadVolumeFactor = 1
	if a.opts.Freeleech {
		release.DownloadVolumeFactor = 0
		return
	}
	release.DownloadVolumeFactor = 1
}

func enrich(release *Release) {
	parsed := rls.ParseString(release.Title)
	release.Resolution = parsed.Resolution
	release.Source = parsed.Source
	release.Group = parsed.Group
	if len(parsed.Codec) > 0 {
		release.Codec = parsed.Codec
	}
	if len(parsed.Language) > 0 {
		release.Languages = parsed.Language
	}
}
