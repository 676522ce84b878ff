/*
Package core provides the central logic for rxglyph: the homoglyph variant generator, the
domain assembler, and the scheduler that fans DNS and WHOIS probes out over the generated
domains.
*/
package core

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
	"iter"
	"slices"

	"github.com/x-stp/rxglyph/internal/confusables"
	"github.com/x-stp/rxglyph/internal/idnacheck"
)

// Generator produces homoglyph variants from a confusable table and validates them with an
// IDNA validator. It keeps no per-call state and is safe for concurrent use.
type Generator struct {
	table     *confusables.Table
	validator *idnacheck.Validator
}

// NewGenerator returns a Generator. Nil arguments fall back to the built-in table and the
// strict validator.
func NewGenerator(table *confusables.Table, validator *idnacheck.Validator) *Generator {
	if table == nil {
		table = confusables.Default()
	}
	if validator == nil {
		validator = idnacheck.Default()
	}
	return &Generator{table: table, validator: validator}
}

// VariantSet is the deduplicated, capped result of Generate.
type VariantSet struct {
	variants map[string]struct{}
	// Truncated is true when the cap, not exhaustion of the search, ended generation.
	Truncated bool
	// Attempted counts candidates that differed from the label and were validated.
	Attempted int
	// Rejected counts attempted candidates that failed IDNA validation.
	Rejected int
}

// Len is the number of accepted variants.
func (vs *VariantSet) Len() int { return len(vs.variants) }

// Contains reports whether v was accepted.
func (vs *VariantSet) Contains(v string) bool {
	_, ok := vs.variants[v]
	return ok
}

// Sorted returns the variants in code point order.
func (vs *VariantSet) Sorted() []string {
	out := make([]string, 0, len(vs.variants))
	for v := range vs.variants {
		out = append(out, v)
	}
	// Byte order of UTF-8 strings equals code point order.
	slices.Sort(out)
	return out
}

// Combinations yields every k-element subset of 0..n-1 in lexicographic order. The yielded
// slice is reused between iterations.
func Combinations(n, k int) iter.Seq[[]int] {
	return func(yield func([]int) bool) {
		if k < 1 || k > n {
			return
		}
		idx := make([]int, k)
		for i := range idx {
			idx[i] = i
		}
		for {
			if !yield(idx) {
				return
			}
			i := k - 1
			for i >= 0 && idx[i] == i+n-k {
				i--
			}
			if i < 0 {
				return
			}
			idx[i]++
			for j := i + 1; j < k; j++ {
				idx[j] = idx[j-1] + 1
			}
		}
	}
}

// Candidates lazily yields every substitution of label for edit counts 1..maxEdits.
// For each edit count, position sets come in lexicographic order and, within a position set,
// choices follow a cartesian product with the rightmost position varying fastest. Chosen
// positions without substitutes keep their character, so the label itself and repeats can
// be yielded; Generate filters those.
func (g *Generator) Candidates(label string, maxEdits int) iter.Seq[string] {
	return func(yield func(string) bool) {
		runes := []rune(label)
		n := len(runes)
		subs := make([][]rune, n)
		for i, r := range runes {
			subs[i] = g.table.SubstitutesFor(r)
		}

		pools := make([][]rune, n)
		buf := make([]rune, n)
		for edits := 1; edits <= maxEdits && edits <= n; edits++ {
			for positions := range Combinations(n, edits) {
				for i, r := range runes {
					pools[i] = []rune{r}
				}
				for _, p := range positions {
					if len(subs[p]) > 0 {
						pools[p] = subs[p]
					}
				}
				if !product(pools, buf, yield) {
					return
				}
			}
		}
	}
}

// product walks the cartesian product of pools, writing each choice into buf.
// It returns false if yield asked to stop.
func product(pools [][]rune, buf []rune, yield func(string) bool) bool {
	idx := make([]int, len(pools))
	for {
		for i, p := range pools {
			buf[i] = p[idx[i]]
		}
		if !yield(string(buf)) {
			return false
		}
		k := len(pools) - 1
		for ; k >= 0; k-- {
			idx[k]++
			if idx[k] < len(pools[k]) {
				break
			}
			idx[k] = 0
		}
		if k < 0 {
			return true
		}
	}
}

// Generate collects up to limit distinct, IDNA-valid variants of label using at most
// maxEdits substitutions. The cap applies across all edit counts and is checked after every
// insertion, so under a tight cap the result favours single edits and early positions.
func (g *Generator) Generate(label string, maxEdits, limit int) *VariantSet {
	vs := &VariantSet{variants: make(map[string]struct{})}
	if maxEdits < 1 || limit < 1 {
		return vs
	}
	for candidate := range g.Candidates(label, maxEdits) {
		if candidate == label {
			continue
		}
		vs.Attempted++
		if _, err := g.validator.EncodeLabel(candidate); err != nil {
			vs.Rejected++
			continue
		}
		vs.variants[candidate] = struct{}{}
		if len(vs.variants) >= limit {
			vs.Truncated = true
			break
		}
	}
	return vs
}
