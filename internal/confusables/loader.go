package confusables

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
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Override modes accepted in an overrides file.
const (
	ModeMerge   = "merge"
	ModeReplace = "replace"
)

// ErrInvalidFile is wrapped by every error caused by the contents of an overrides file.
var ErrInvalidFile = errors.New("invalid confusables file")

// fileFormat is the on-disk shape of an overrides file.
//
//	mode: merge
//	confusables:
//	  a: ["а", "ɑ"]
type fileFormat struct {
	Mode        string              `yaml:"mode"`
	Confusables map[string][]string `yaml:"confusables"`
}

// LoadFile reads a YAML overrides file and layers it on base (which may be nil).
// In merge mode the listed substitutes are appended to the base lists; in replace mode
// the base is ignored entirely.
func LoadFile(path string, base *Table) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read confusables file %s: %w", path, err)
	}
	t, err := Parse(data, base)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse is LoadFile without the file system.
func Parse(data []byte, base *Table) (*Table, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}

	var entries map[rune][]rune
	switch f.Mode {
	case "", ModeMerge:
		entries = base.entriesCopy()
	case ModeReplace:
		entries = make(map[rune][]rune, len(f.Confusables))
	default:
		return nil, fmt.Errorf("%w: unknown mode %q (want %q or %q)", ErrInvalidFile, f.Mode, ModeMerge, ModeReplace)
	}

	for key, values := range f.Confusables {
		src, err := singleRune(key)
		if err != nil {
			return nil, fmt.Errorf("%w: key %q: %v", ErrInvalidFile, key, err)
		}
		if src >= utf8.RuneSelf {
			return nil, fmt.Errorf("%w: key %q is not an ASCII character", ErrInvalidFile, key)
		}
		for _, v := range values {
			r, err := singleRune(v)
			if err != nil {
				return nil, fmt.Errorf("%w: substitute %q for %q: %v", ErrInvalidFile, v, key, err)
			}
			entries[src] = append(entries[src], r)
		}
	}

	t, err := New(entries)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	return t, nil
}

// singleRune NFC-normalizes s and requires exactly one code point, so that a
// decomposed "é" in the file means the same as the precomposed one.
func singleRune(s string) (rune, error) {
	s = norm.NFC.String(s)
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("must be a single character, got %d", utf8.RuneCountInString(s))
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return 0, errors.New("not valid UTF-8")
	}
	return r, nil
}
