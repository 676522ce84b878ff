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
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/x-stp/rxglyph/internal/client"
	"github.com/x-stp/rxglyph/internal/confusables"
	"github.com/x-stp/rxglyph/internal/core"
	"github.com/x-stp/rxglyph/internal/export"
	"github.com/x-stp/rxglyph/internal/idnacheck"
	"github.com/x-stp/rxglyph/internal/metrics"
	"github.com/x-stp/rxglyph/internal/probe"
	"github.com/x-stp/rxglyph/internal/store"
	"github.com/x-stp/rxglyph/internal/util"
)

// hunt is the handler for the root command.
func hunt(ctx context.Context, domain string) error {
	table, err := loadTable()
	if err != nil {
		return err
	}
	gen := core.NewGenerator(table, newValidator())

	started := time.Now()
	res := gen.Assemble(domain, maxEdits, limit)
	metrics.GetMetrics().RecordGeneration(time.Since(started), len(res.Pairs), res.Rejected, res.Dropped, res.Truncated)
	if res.Label == "" {
		return fmt.Errorf("invalid domain %q", domain)
	}
	if warning := suffixWarning(res.Domain, res.Suffix); warning != "" {
		log.Printf("Warning: %s", warning)
	}

	opts := export.Options{Checked: check, Whois: doWhois || whoisAll, OnlyRegistered: onlyRegistered}
	findings := unprobed(res.Pairs)
	interrupted := false
	if opts.Checked || opts.Whois {
		findings, err = probeAll(ctx, res.Pairs, opts)
		if errors.Is(err, context.Canceled) {
			log.Println("Interrupt received, keeping partial results...")
			interrupted = true
		} else if err != nil {
			return err
		}
	}

	printPreview(os.Stdout, res, findings, opts, showRows)

	csvOut, txtOut := outputPaths(res.Domain)
	if csvOut != "" {
		if err := export.SaveCSV(csvOut, findings, opts); err != nil {
			return err
		}
		fmt.Printf("[+] Saved CSV to %s\n", csvOut)
	}
	if txtOut != "" {
		if err := export.SaveTXT(txtOut, findings, opts); err != nil {
			return err
		}
		fmt.Printf("[+] Saved TXT to %s\n", txtOut)
	}

	if dbPath != "" && !interrupted {
		if err := recordScan(ctx, res, findings, opts, started); err != nil {
			return err
		}
	}
	return nil
}

// loadTable returns the built-in confusable table, layered with --confusables when set.
func loadTable() (*confusables.Table, error) {
	if confusablesFile == "" {
		return confusables.Default(), nil
	}
	table, err := confusables.LoadFile(confusablesFile, confusables.Default())
	if err != nil {
		return nil, err
	}
	log.Printf("Loaded %d confusable sources from %s", table.Len(), confusablesFile)
	return table, nil
}

func newValidator() *idnacheck.Validator {
	if allowNonLDH {
		return idnacheck.New(idnacheck.AllowNonLDH())
	}
	return idnacheck.Default()
}

// suffixWarning explains when variants of the leftmost label cannot be registered on their
// own: either domain is itself a public suffix or the label is a subdomain of the
// registrable domain.
func suffixWarning(domain, suffix string) string {
	if suffix == "" {
		return ""
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(domain)
	if err != nil {
		return fmt.Sprintf("%s is a public suffix, variants are not registrable domains", domain)
	}
	if registrable != domain {
		return fmt.Sprintf("variants are subdomains of %s, not separate registrations", registrable)
	}
	return ""
}

// unprobed wraps pairs as findings for runs without DNS or WHOIS.
func unprobed(pairs []core.DomainPair) []core.Finding {
	findings := make([]core.Finding, len(pairs))
	for i, p := range pairs {
		findings[i].Pair = p
	}
	return findings
}

// probeAll builds the collaborators requested by opts and runs the prober over pairs.
func probeAll(ctx context.Context, pairs []core.DomainPair, opts export.Options) ([]core.Finding, error) {
	var resolver probe.Resolver
	if opts.Checked {
		resolver = probe.NewDNSProber(probe.DNSConfig{Timeout: dnsTimeout, Nameservers: resolvers})
	}
	var whois probe.WhoisLookuper
	if opts.Whois {
		client.InitHTTPClient(&client.Config{RequestTimeout: whoisTimeout})
		w, err := probe.NewWhoisProber(probe.WhoisConfig{Timeout: whoisTimeout, Strategies: whoisStrategies})
		if err != nil {
			return nil, err
		}
		log.Printf("WHOIS strategies: %v", w.Strategies())
		whois = w
	}

	prober := core.NewProber(core.ProbeConfig{
		Check:          opts.Checked,
		OnlyRegistered: opts.OnlyRegistered,
		Whois:          doWhois,
		WhoisAll:       whoisAll,
		DNSWorkers:     dnsWorkers,
		WhoisWorkers:   whoisWorkers,
		DNSRate:        dnsRate,
		WhoisRate:      whoisRate,
		Affinity:       affinity,
	}, resolver, whois)

	var wg sync.WaitGroup
	statsCtx, stopStats := context.WithCancel(ctx)
	if showStats {
		wg.Add(1)
		go func() {
			defer wg.Done()
			displayProbeStats(statsCtx, prober)
		}()
	}

	findings, err := prober.Run(ctx, pairs)
	stopStats()
	wg.Wait()
	return findings, err
}

// outputPaths resolves the export destinations from --csv, --txt and --out-dir.
func outputPaths(domain string) (csvOut, txtOut string) {
	csvOut, txtOut = csvPath, txtPath
	if outDir == "" {
		return csvOut, txtOut
	}
	if csvOut == "" {
		csvOut = util.OutputPath(outDir, domain, "csv")
	}
	if txtOut == "" {
		txtOut = util.OutputPath(outDir, domain, "txt")
	}
	return csvOut, txtOut
}

// recordScan saves the run to --db and reports lookalikes that started resolving since the
// previous checked scan.
func recordScan(ctx context.Context, res core.Result, findings []core.Finding, opts export.Options, started time.Time) error {
	db, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	id, err := db.SaveScan(ctx, store.Scan{
		Domain:    res.Domain,
		StartedAt: started,
		MaxEdits:  maxEdits,
		Limit:     limit,
		Checked:   opts.Checked,
		Whois:     opts.Whois,
		Truncated: res.Truncated,
	}, findings)
	if err != nil {
		return err
	}
	fmt.Printf("[+] Recorded scan #%d in %s\n", id, dbPath)

	if !opts.Checked {
		return nil
	}
	fresh, err := db.NewlyResolving(ctx, res.Domain)
	if err != nil {
		if errors.Is(err, store.ErrNoScans) {
			return nil
		}
		return err
	}
	printNewlyResolving(os.Stdout, fresh)
	return nil
}
