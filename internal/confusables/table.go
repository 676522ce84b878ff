/*
Package confusables holds the table of visually confusable characters used to build
homoglyph variants of a domain label.

A Table maps an ASCII source character to the ordered list of Unicode characters that can
stand in for it. Tables are immutable once built; Default returns the built-in table, and
LoadFile layers a YAML overrides file on top of any base table.
*/
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
	"fmt"
	"slices"
	"unicode/utf8"
)

// Table is a read-only mapping from an ASCII source rune to its substitutes.
// The zero value is an empty table.
type Table struct {
	entries map[rune][]rune
}

// defaultEntries is the built-in confusable set. Some substitutes ('|', '—', '–') are not
// valid in hostnames and are filtered out later by IDNA validation.
var defaultEntries = map[rune][]rune{
	'a': {'а', 'α', 'à', 'á', 'â', 'ä', 'ã', 'å'},
	'b': {'Ь', 'ь', 'β'},
	'c': {'с', 'ϲ', 'ç'},
	'd': {'ԁ'},
	'e': {'е', 'ε', 'é', 'è', 'ê', 'ë'},
	'f': {'Ϝ'},
	'g': {'ɡ'},
	'h': {'һ', 'ḥ'},
	'i': {'і', 'í', 'ì', 'î', 'ï', 'ı'},
	'j': {'ј'},
	'k': {'κ', 'к'},
	'l': {'ⅼ', 'ɫ', 'Ɩ', '|', '1'},
	'm': {'м'},
	'n': {'п', 'ṇ'},
	'o': {'ο', 'о', 'օ', 'º', '0', 'ö', 'ó', 'ò', 'ô', 'ø', 'õ'},
	'p': {'ρ', 'р'},
	'q': {'զ'},
	'r': {'г', 'ṛ'},
	's': {'ѕ', 'ʂ', 'ś', 'ş', 'ṣ'},
	't': {'τ', 'ť', 'ṭ'},
	'u': {'υ', 'ư', 'ú', 'ù', 'û', 'ü'},
	'v': {'ѵ', 'ν'},
	'w': {'ѡ', 'ɯ'},
	'x': {'х', 'χ'},
	'y': {'у', 'γ', 'ý', 'ÿ'},
	'z': {'ʐ', 'ż', 'ź', 'ẓ'},
	'0': {'o', 'ο', 'о', 'օ'},
	'1': {'l', 'I', 'ⅼ'},
	'3': {'ε'},
	'5': {'ѕ'},
	'-': {'—', '–'},
}

var defaultTable = mustNew(defaultEntries)

// Default returns the built-in, process-wide table.
func Default() *Table {
	return defaultTable
}

func mustNew(entries map[rune][]rune) *Table {
	t, err := New(entries)
	if err != nil {
		panic(fmt.Sprintf("confusables: invalid built-in table: %v", err))
	}
	return t
}

// New builds a Table from entries. Substitutes equal to their source and repeated
// substitutes are dropped, keeping first-seen order. Sources must be ASCII.
func New(entries map[rune][]rune) (*Table, error) {
	t := &Table{entries: make(map[rune][]rune, len(entries))}
	for src, subs := range entries {
		if src >= utf8.RuneSelf || src < 0 {
			return nil, fmt.Errorf("source %q is not an ASCII character", src)
		}
		cleaned := dedupe(src, subs)
		if len(cleaned) == 0 {
			continue
		}
		t.entries[src] = cleaned
	}
	return t, nil
}

func dedupe(src rune, subs []rune) []rune {
	out := make([]rune, 0, len(subs))
	for _, r := range subs {
		if r == src || !utf8.ValidRune(r) || slices.Contains(out, r) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// SubstitutesFor returns the substitutes for r in table order, or nil when r has none.
// The returned slice is a copy.
func (t *Table) SubstitutesFor(r rune) []rune {
	if t == nil {
		return nil
	}
	return slices.Clone(t.entries[r])
}

// Has reports whether r has at least one substitute.
func (t *Table) Has(r rune) bool {
	if t == nil {
		return false
	}
	_, ok := t.entries[r]
	return ok
}

// Sources returns the source runes that have substitutes, sorted.
func (t *Table) Sources() []rune {
	if t == nil {
		return nil
	}
	out := make([]rune, 0, len(t.entries))
	for r := range t.entries {
		out = append(out, r)
	}
	slices.Sort(out)
	return out
}

// Len is the number of source runes in the table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// entriesCopy returns a deep copy of the table contents, used as the starting point
// when layering overrides.
func (t *Table) entriesCopy() map[rune][]rune {
	out := make(map[rune][]rune)
	if t == nil {
		return out
	}
	for r, subs := range t.entries {
		out[r] = slices.Clone(subs)
	}
	return out
}
