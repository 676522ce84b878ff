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
	"strings"
)

// DomainPair is one lookalike domain in display (Unicode) and ASCII (punycode) form.
type DomainPair struct {
	Display string
	ASCII   string
}

// Result is the output of Assemble.
type Result struct {
	// Domain is the normalized input; Label and Suffix are its split parts.
	Domain string
	Label  string
	Suffix string

	Pairs []DomainPair

	Truncated bool
	Attempted int
	Rejected  int
	// Dropped counts label variants accepted alone but rejected once the suffix was attached.
	Dropped int
}

// NormalizeDomain trims surrounding whitespace and dots and lowercases s.
func NormalizeDomain(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, ".")
	return strings.ToLower(s)
}

// SplitDomain splits s at its first dot. Without a dot the suffix is empty.
func SplitDomain(s string) (label, suffix string) {
	label, suffix, _ = strings.Cut(s, ".")
	return label, suffix
}

// Assemble generates lookalikes for the leftmost label of domain and reattaches the
// untouched suffix. Pairs are ordered by the code point order of the label variants.
func (g *Generator) Assemble(domain string, maxEdits, limit int) Result {
	res := Result{Domain: NormalizeDomain(domain)}
	res.Label, res.Suffix = SplitDomain(res.Domain)
	if res.Label == "" {
		return res
	}

	vs := g.Generate(res.Label, maxEdits, limit)
	res.Truncated = vs.Truncated
	res.Attempted = vs.Attempted
	res.Rejected = vs.Rejected

	variants := vs.Sorted()
	res.Pairs = make([]DomainPair, 0, len(variants))
	for _, v := range variants {
		full := v
		if res.Suffix != "" {
			full = v + "." + res.Suffix
		}
		ascii, err := g.validator.Encode(full)
		if err != nil {
			res.Dropped++
			continue
		}
		res.Pairs = append(res.Pairs, DomainPair{Display: full, ASCII: ascii})
	}
	return res
}
