/*
Package probe implements the external checks rxglyph runs against generated domains: a DNS
prober that reports whether a name resolves, and a WHOIS prober that tries a chain of lookup
strategies until one returns a record.

Probes never return errors to their callers. Every failure, timeout or panic inside a probe
is a negative result.
*/
package probe

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

import "context"

// Resolver reports whether an ASCII domain has at least one A or AAAA record.
type Resolver interface {
	Resolves(ctx context.Context, asciiDomain string) bool
}

// WhoisLookuper returns the raw WHOIS (or RDAP) text for an ASCII domain. ok is false when
// every strategy failed or returned nothing.
type WhoisLookuper interface {
	Lookup(ctx context.Context, asciiDomain string) (text string, ok bool)
}
