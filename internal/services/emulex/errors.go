// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package emulex

import (
	"errors"
	"fmt"
)

// ErrEmptyQuery is returned when a search keyword is blank after normalization.
var ErrEmptyQuery = errors.New("emulex: empty search keyword")

// ConfigurationError reports an invalid indexer configuration.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("emulex configuration: %s: %v", e.Reason, e.Err)
	}
	return "emulex configuration: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) Is(target error) bool {
	_, ok := target.(*ConfigurationError)
	return ok
}

// StatusError is returned when emulex answers with an unexpected status.
// Body keeps the raw response for diagnostics.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("emulex %s returned status %d: %s", e.URL, e.StatusCode, truncate(e.Body, 512))
}

func (e *StatusError) Is(target error) bool {
	_, ok := target.(*StatusError)
	return ok
}

// ParseError wraps a failure to decode or assemble a record. Body is the raw
// payload that failed.
type ParseError struct {
	Body string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse emulex response %q: %v", truncate(e.Body, 256), e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool {
	_, ok := target.(*ParseError)
	return ok
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
