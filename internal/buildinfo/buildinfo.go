// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package buildinfo carries version metadata injected at link time.
package buildinfo

import "fmt"

var (
	Version = "dev"
	Commit  = ""
	Date    = ""

	// UserAgent is sent on every outbound request.
	UserAgent = fmt.Sprintf("mulebridge/%s", Version)
)

// Set overrides the version metadata and refreshes UserAgent.
func Set(version, commit, date string) {
	if version != "" {
		Version = version
	}
	Commit = commit
	Date = date
	UserAgent = fmt.Sprintf("mulebridge/%s", Version)
}
