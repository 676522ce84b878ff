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
	"os"
	"path/filepath"
	"slices"
	"testing"
	"unicode/utf8"
)

// TestDefaultTableHasNoNoOpEntries checks the built-in table against its own contract:
// ASCII sources, no substitute equal to its source, no repeated substitutes.
func TestDefaultTableHasNoNoOpEntries(t *testing.T) {
	t.Parallel()

	tbl := Default()
	if tbl.Len() == 0 {
		t.Fatal("default table is empty")
	}
	for _, src := range tbl.Sources() {
		if src >= utf8.RuneSelf {
			t.Errorf("source %q is not ASCII", src)
		}
		subs := tbl.SubstitutesFor(src)
		if len(subs) == 0 {
			t.Errorf("source %q listed with no substitutes", src)
		}
		seen := make(map[rune]bool)
		for _, r := range subs {
			if r == src {
				t.Errorf("source %q has itself as substitute", src)
			}
			if seen[r] {
				t.Errorf("source %q repeats substitute %q", src, r)
			}
			seen[r] = true
		}
	}
}

func TestSubstitutesFor(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		input rune
		want  []rune
	}{
		{"Cyrillic a first", 'a', []rune{'а', 'α', 'à', 'á', 'â', 'ä', 'ã', 'å'}},
		{"Single entry", 'd', []rune{'ԁ'}},
		{"Digit", '3', []rune{'ε'}},
		{"Hyphen", '-', []rune{'—', '–'}},
		{"Unknown letter", '2', nil},
		{"Non ASCII", 'ж', nil},
		{"Dot", '.', nil},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Default().SubstitutesFor(tc.input)
			if !slices.Equal(got, tc.want) {
				t.Errorf("SubstitutesFor(%q) = %q; want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestSubstitutesForReturnsCopy(t *testing.T) {
	t.Parallel()

	got := Default().SubstitutesFor('a')
	got[0] = 'z'
	if Default().SubstitutesFor('a')[0] != 'а' {
		t.Fatal("mutating the returned slice changed the table")
	}
}

func TestNewDropsNoOpsAndDuplicates(t *testing.T) {
	t.Parallel()

	tbl, err := New(map[rune][]rune{
		'a': {'a', 'а', 'а', 'α'},
		'b': {'b'},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := tbl.SubstitutesFor('a'); !slices.Equal(got, []rune{'а', 'α'}) {
		t.Errorf("a = %q", got)
	}
	if tbl.Has('b') {
		t.Error("b should have no entry after dropping its only no-op substitute")
	}
	if _, err := New(map[rune][]rune{'ä': {'a'}}); err == nil {
		t.Error("expected error for non-ASCII source")
	}
}

func TestParseMergeAndReplace(t *testing.T) {
	t.Parallel()

	merged, err := Parse([]byte("confusables:\n  a: [\"ɑ\"]\n  \"2\": [\"ƻ\"]\n"), Default())
	if err != nil {
		t.Fatalf("Parse merge: %v", err)
	}
	subs := merged.SubstitutesFor('a')
	if subs[len(subs)-1] != 'ɑ' || subs[0] != 'а' {
		t.Errorf("merge kept wrong order: %q", subs)
	}
	if !merged.Has('2') || !merged.Has('o') {
		t.Error("merge should add new sources and keep base ones")
	}

	replaced, err := Parse([]byte("mode: replace\nconfusables:\n  a: [\"ɑ\"]\n"), Default())
	if err != nil {
		t.Fatalf("Parse replace: %v", err)
	}
	if replaced.Len() != 1 || replaced.Has('o') {
		t.Errorf("replace should discard the base table, got %d sources", replaced.Len())
	}
}

func TestParseNormalizesToNFC(t *testing.T) {
	t.Parallel()

	// "e" followed by U+0301 COMBINING ACUTE ACCENT composes to U+00E9.
	tbl, err := Parse([]byte("mode: replace\nconfusables:\n  e: [\"e\\u0301\"]\n"), nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := tbl.SubstitutesFor('e'); !slices.Equal(got, []rune{'é'}) {
		t.Errorf("got %q; want precomposed é", got)
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		data string
	}{
		{"Multi rune substitute", "confusables:\n  m: [\"rn\"]\n"},
		{"Multi rune key", "confusables:\n  ab: [\"а\"]\n"},
		{"Non ASCII key", "confusables:\n  ä: [\"а\"]\n"},
		{"Unknown mode", "mode: append\n"},
		{"Broken YAML", "confusables: [\n"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tc.data), Default())
			if !errors.Is(err, ErrInvalidFile) {
				t.Errorf("Parse(%q) error = %v; want ErrInvalidFile", tc.data, err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "extra.yaml")
	if err := os.WriteFile(path, []byte("confusables:\n  g: [\"ց\"]\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tbl, err := LoadFile(path, Default())
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got := tbl.SubstitutesFor('g'); !slices.Equal(got, []rune{'ɡ', 'ց'}) {
		t.Errorf("g = %q", got)
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Error("expected error for missing file")
	}
}
