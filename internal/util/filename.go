package util

/*
rxglyph — fast tool in Go for hunting homoglyph lookalike domains
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxFilenameBytes keeps generated names well under common filesystem limits.
const maxFilenameBytes = 100

// SanitizeFilename makes a filesystem-safe name from a domain or other string. Path
// separators, shell-hostile characters and control characters become underscores and the
// result is cut to maxFilenameBytes without splitting a UTF-8 sequence.
func SanitizeFilename(input string) string {
	replaced := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, input)
	replaced = strings.Trim(replaced, ".")
	if replaced == "" {
		return "_"
	}

	if len(replaced) > maxFilenameBytes {
		cut := maxFilenameBytes
		for cut > 0 && !utf8.RuneStart(replaced[cut]) {
			cut--
		}
		replaced = replaced[:cut]
	}
	return replaced
}

// OutputPath returns dir/<domain>-lookalikes.<ext> with domain sanitized.
func OutputPath(dir, domain, ext string) string {
	return filepath.Join(dir, SanitizeFilename(domain)+"-lookalikes."+strings.TrimPrefix(ext, "."))
}
