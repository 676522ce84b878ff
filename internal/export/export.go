package export

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
	"encoding/csv"
	"fmt"
	"io"

	"github.com/x-stp/rxglyph/internal/core"
)

// Options describes which probes produced the findings.
type Options struct {
	// Checked is set when the DNS probe ran.
	Checked bool
	// Whois is set when the WHOIS probe ran.
	Whois bool
	// OnlyRegistered restricts TXT output to resolving domains when Checked is set.
	OnlyRegistered bool
}

// Header returns the CSV column names for opts.
func Header(opts Options) []string {
	header := []string{"unicode_domain", "punycode"}
	if opts.Checked || opts.Whois {
		header = append(header, "resolves")
	}
	if opts.Whois {
		header = append(header, "whois_available", "whois_text")
	}
	return header
}

// WriteCSV writes the header and one row per finding.
func WriteCSV(w io.Writer, findings []core.Finding, opts Options) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(opts)); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, f := range findings {
		if err := cw.Write(row(f, opts)); err != nil {
			return fmt.Errorf("write csv row %s: %w", f.Pair.ASCII, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func row(f core.Finding, opts Options) []string {
	r := []string{f.Pair.Display, f.Pair.ASCII}
	if opts.Checked || opts.Whois {
		r = append(r, flag(f.Resolves))
	}
	if opts.Whois {
		if f.WhoisQueried && f.WhoisAvailable {
			r = append(r, "1", f.WhoisText)
		} else {
			r = append(r, "0", "")
		}
	}
	return r
}

// WriteTXT writes one display domain per line.
func WriteTXT(w io.Writer, findings []core.Finding, opts Options) error {
	for _, f := range findings {
		if opts.Checked && opts.OnlyRegistered && !f.Resolves {
			continue
		}
		if _, err := io.WriteString(w, f.Pair.Display+"\n"); err != nil {
			return fmt.Errorf("write txt: %w", err)
		}
	}
	return nil
}

// SaveCSV writes findings to path as CSV.
func SaveCSV(path string, findings []core.Finding, opts Options) error {
	return save(path, func(w io.Writer) error {
		return WriteCSV(w, findings, opts)
	})
}

// SaveTXT writes findings to path as text.
func SaveTXT(path string, findings []core.Finding, opts Options) error {
	return save(path, func(w io.Writer) error {
		return WriteTXT(w, findings, opts)
	})
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
