// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package normalize translates between canonical search queries and the ed2k
// catalog's naming conventions: outbound query rewriting, inbound title cleanup,
// episode code canonicalization and filename based category inference.
//
// Every function in this package is pure. Rule tables are ordered and must not
// be reordered: later rules depend on the cleanup done by earlier ones.
package normalize
