package main

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
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/x-stp/rxglyph/internal/confusables"
	"github.com/x-stp/rxglyph/internal/core"
	"github.com/x-stp/rxglyph/internal/export"
	"github.com/x-stp/rxglyph/internal/store"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	missColor = color.New(color.FgHiBlack)
	noteColor = color.New(color.FgYellow)
)

// printPreview writes the first n findings. Status columns only appear when a probe ran.
func printPreview(w io.Writer, res core.Result, findings []core.Finding, opts export.Options, n int) {
	probed := opts.Checked || opts.Whois
	if probed {
		fmt.Fprintf(w, "Generated %d variants for %s (showing up to %d):\n", len(res.Pairs), res.Domain, n)
	} else {
		fmt.Fprintf(w, "Generated %d variants for %s:\n", len(res.Pairs), res.Domain)
	}

	for i, f := range findings {
		if i >= n {
			break
		}
		if !probed {
			fmt.Fprintf(w, "%-30s  %s\n", f.Pair.Display, f.Pair.ASCII)
			continue
		}
		fmt.Fprintf(w, "%-30s  %-35s  %s\n", f.Pair.Display, f.Pair.ASCII, status(f, opts))
	}

	if res.Truncated {
		noteColor.Fprintf(w, "Note: stopped at the %d variant limit after %d candidates; raise --limit for more.\n",
			limitOf(res), res.Attempted)
	}
	if res.Rejected+res.Dropped > 0 {
		fmt.Fprintf(w, "%d candidates failed IDNA validation.\n", res.Rejected+res.Dropped)
	}
}

// limitOf is the number of label variants the run stopped at.
func limitOf(res core.Result) int {
	return len(res.Pairs) + res.Dropped
}

func status(f core.Finding, opts export.Options) string {
	var b strings.Builder
	if f.Resolves {
		b.WriteString(okColor.Sprint("RESOLVES"))
	} else {
		b.WriteString(missColor.Sprint("—"))
	}
	if opts.Whois {
		b.WriteString(" • ")
		if f.WhoisAvailable {
			b.WriteString(okColor.Sprint("WHOIS✓"))
		} else {
			b.WriteString(missColor.Sprint("WHOIS×"))
		}
	}
	return b.String()
}

// displayProbeStats prints the live probe counters until ctx is done.
func displayProbeStats(ctx context.Context, prober *core.Prober) {
	ticker := time.NewTicker(core.StatsReportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if rate := prober.WhoisRate(); rate > 0 {
				log.Printf("%s | whois pace %.2f/s", prober.Stats(), rate)
			} else {
				log.Printf("%s", prober.Stats())
			}
		case <-ctx.Done():
			return
		}
	}
}

// printTable lists every source character with its substitutes and their code points.
func printTable(w io.Writer, table *confusables.Table) {
	for _, src := range table.Sources() {
		subs := table.SubstitutesFor(src)
		parts := make([]string, len(subs))
		for i, r := range subs {
			parts[i] = fmt.Sprintf("%c (U+%04X)", r, r)
		}
		fmt.Fprintf(w, "%c  ->  %s\n", src, strings.Join(parts, ", "))
	}
	fmt.Fprintf(w, "%d source characters\n", table.Len())
}

// showHistory prints the latest n scans of domain and the lookalikes that resolve now but
// did not in the scan before.
func showHistory(ctx context.Context, w io.Writer, path, domain string, n int) error {
	db, err := store.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	scans, err := db.Scans(ctx, domain, n)
	if err != nil {
		return err
	}
	if len(scans) == 0 {
		fmt.Fprintf(w, "No scans recorded for %s\n", domain)
		return nil
	}

	fmt.Fprintf(w, "%-6s  %-19s  %5s  %6s  %8s  %9s  %s\n", "SCAN", "STARTED", "EDITS", "LIMIT", "VARIANTS", "RESOLVING", "PROBES")
	for _, s := range scans {
		fmt.Fprintf(w, "%-6d  %-19s  %5d  %6d  %8d  %9d  %s\n",
			s.ID, s.StartedAt.Local().Format(time.DateTime), s.MaxEdits, s.Limit, s.Variants, s.Resolving, scanFlags(s))
	}

	fresh, err := db.NewlyResolving(ctx, domain)
	if errors.Is(err, store.ErrNoScans) {
		return nil
	}
	if err != nil {
		return err
	}
	printNewlyResolving(w, fresh)
	return nil
}

func scanFlags(s store.Scan) string {
	var flags []string
	if s.Checked {
		flags = append(flags, "dns")
	}
	if s.Whois {
		flags = append(flags, "whois")
	}
	if s.Truncated {
		flags = append(flags, "truncated")
	}
	if len(flags) == 0 {
		return "-"
	}
	return strings.Join(flags, ",")
}

func printNewlyResolving(w io.Writer, pairs []core.DomainPair) {
	if len(pairs) == 0 {
		fmt.Fprintln(w, "No newly resolving lookalikes since the previous scan.")
		return
	}
	noteColor.Fprintf(w, "%d newly resolving lookalikes:\n", len(pairs))
	for _, p := range pairs {
		fmt.Fprintf(w, "%-30s  %s\n", p.Display, p.ASCII)
	}
}
