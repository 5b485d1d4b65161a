// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package normalize

import (
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// Latin1 limits s to characters representable in ISO-8859-1, the charset the
// catalog indexes keywords in. Anything else becomes '?'.
func Latin1(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if _, ok := charmap.ISO8859_1.EncodeRune(r); ok {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('?')
	}
	return b.String()
}
