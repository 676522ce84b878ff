/*
Package main is the entry point for the rxglyph command-line application.

rxglyph generates homoglyph lookalikes of a domain name: every variant of the leftmost label
reachable by swapping up to --max-edits characters for visually confusable Unicode characters,
kept only when it survives a strict IDNA round trip. Each variant is printed in its Unicode
display form next to its Punycode (xn--) form. Optionally the variants are checked for DNS
resolution and WHOIS registration, exported to CSV/TXT and recorded in a SQLite scan history.

The application uses the Cobra library for command-line interface structure and flag parsing.
It leverages several internal packages:
  - `internal/confusables`: The confusable character table and its YAML overrides.
  - `internal/idnacheck`: IDNA round-trip validation.
  - `internal/core`: Variant generation, domain assembly and the concurrent probe scheduler.
  - `internal/probe`: DNS and multi-strategy WHOIS collaborators.
  - `internal/export`: CSV and TXT output.
  - `internal/store`: Scan history for spotting newly resolving lookalikes.
  - `internal/metrics`: Prometheus metrics, served when --metrics-addr is set.

Graceful shutdown is handled via context cancellation triggered by OS signals (SIGINT, SIGTERM);
results gathered before the interrupt are still printed and exported.
*/
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
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/x-stp/rxglyph/internal/core"
	"github.com/x-stp/rxglyph/internal/metrics"
	"github.com/x-stp/rxglyph/internal/probe"
)

// Generation flags
var (
	maxEdits        int
	limit           int
	confusablesFile string
	allowNonLDH     bool
)

// Probe flags
var (
	check           bool
	onlyRegistered  bool
	doWhois         bool
	whoisAll        bool
	whoisTimeout    time.Duration
	whoisWorkers    int
	whoisRate       float64
	whoisStrategies []string
	dnsTimeout      time.Duration
	dnsWorkers      int
	dnsRate         float64
	resolvers       []string
	affinity        bool
)

// Output flags
var (
	csvPath      string
	txtPath      string
	outDir       string
	dbPath       string
	metricsAddr  string
	showRows     int
	noColor      bool
	showStats    bool
	historyScans int
)

var rootCmd = &cobra.Command{
	Use:   "rxglyph DOMAIN",
	Short: "rxglyph - generate and probe homoglyph lookalikes of a domain",
	Long: `Generates IDNA-valid homoglyph variants of the leftmost label of DOMAIN (e.g. paypal.com ->
pаypal.com / xn--pypal-4ve.com), optionally checks which resolve and queries WHOIS for them.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor {
			color.NoColor = true
		}
		if metricsAddr != "" {
			if err := metrics.StartMetricsServer(metricsAddr); err != nil {
				return fmt.Errorf("failed to start metrics server: %w", err)
			}
			log.Printf("Serving metrics on %s/metrics", metricsAddr)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if metricsAddr == "" {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metrics.ShutdownMetricsServer(ctx); err != nil {
			log.Printf("Error shutting down metrics server: %v", err)
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFlags(); err != nil {
			return err
		}
		return hunt(cmd.Context(), args[0])
	},
}

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Print the effective confusable table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := loadTable()
		if err != nil {
			return err
		}
		printTable(os.Stdout, table)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history DOMAIN",
	Short: "Show recorded scans of DOMAIN and lookalikes that started resolving",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if dbPath == "" {
			return errors.New("history requires --db")
		}
		return showHistory(cmd.Context(), os.Stdout, dbPath, core.NormalizeDomain(args[0]), historyScans)
	},
}

func init() {
	f := rootCmd.Flags()
	f.IntVar(&maxEdits, "max-edits", core.DefaultMaxEdits, "Max characters to swap")
	f.IntVar(&limit, "limit", core.DefaultLimit, "Cap total variants")
	f.BoolVar(&allowNonLDH, "allow-non-ldh", false, "Accept ASCII punctuation such as '|' in variants")

	f.BoolVar(&check, "check", false, "Check which variants resolve via DNS (A/AAAA)")
	f.BoolVar(&onlyRegistered, "only-registered", false, "With --check, only show/export domains that resolve")
	f.BoolVar(&doWhois, "whois", false, "Run WHOIS lookups (only resolving domains when --check is used)")
	f.BoolVar(&whoisAll, "whois-all", false, "Run WHOIS for every variant (implies --whois)")
	f.DurationVar(&whoisTimeout, "whois-timeout", core.DefaultWhoisTimeout, "Timeout per WHOIS strategy attempt")
	f.IntVar(&whoisWorkers, "whois-workers", core.DefaultWhoisWorkers, "Concurrent WHOIS lookups")
	f.Float64Var(&whoisRate, "whois-rate", core.DefaultWhoisRate, "Initial WHOIS lookups/second per worker (adaptive, 0 = unlimited)")
	f.StringSliceVar(&whoisStrategies, "whois-strategies", nil, "WHOIS strategy order (default system,library,registry,rdap,generic)")
	f.DurationVar(&dnsTimeout, "timeout", core.DefaultDNSTimeout, "DNS timeout per domain")
	f.IntVar(&dnsWorkers, "workers", core.DefaultDNSWorkers, "Concurrent DNS lookups")
	f.Float64Var(&dnsRate, "dns-rate", core.DefaultDNSRate, "DNS lookups/second per worker (0 = unlimited)")
	f.BoolVar(&affinity, "affinity", false, "Pin probe workers to CPU cores (Linux)")
	f.StringSliceVar(&resolvers, "resolver", nil, "Nameservers (IP or IP:port) to query instead of the system resolver")

	f.StringVar(&csvPath, "csv", "", "Export results to CSV file (.gz to compress)")
	f.StringVar(&txtPath, "txt", "", "Export results to TXT file (.gz to compress)")
	f.StringVarP(&outDir, "out-dir", "o", "", "Write <domain>-lookalikes.csv/.txt here unless --csv/--txt are given")
	f.IntVar(&showRows, "show", core.DefaultPreviewRows, "Rows to preview on the console")
	f.BoolVar(&showStats, "stats", false, "Print live probe statistics")

	rootCmd.PersistentFlags().StringVar(&confusablesFile, "confusables", "", "YAML file merged into (or replacing) the built-in confusable table")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite scan history database")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable coloured output")

	historyCmd.Flags().IntVarP(&historyScans, "scans", "n", 10, "Number of recent scans to list")

	rootCmd.AddCommand(tableCmd)
	rootCmd.AddCommand(historyCmd)
}

// validateFlags rejects settings the generator and prober cannot work with.
func validateFlags() error {
	switch {
	case maxEdits < 1:
		return fmt.Errorf("--max-edits must be at least 1, got %d", maxEdits)
	case limit < 1:
		return fmt.Errorf("--limit must be at least 1, got %d", limit)
	case dnsWorkers < 1 || dnsWorkers > core.MaxWorkers:
		return fmt.Errorf("--workers must be between 1 and %d, got %d", core.MaxWorkers, dnsWorkers)
	case whoisWorkers < 1 || whoisWorkers > core.MaxWorkers:
		return fmt.Errorf("--whois-workers must be between 1 and %d, got %d", core.MaxWorkers, whoisWorkers)
	case dnsTimeout <= 0:
		return fmt.Errorf("--timeout must be positive, got %s", dnsTimeout)
	case whoisTimeout <= 0:
		return fmt.Errorf("--whois-timeout must be positive, got %s", whoisTimeout)
	case showRows < 0:
		return fmt.Errorf("--show must not be negative, got %d", showRows)
	}
	for _, name := range whoisStrategies {
		if !validStrategy(name) {
			return fmt.Errorf("unknown whois strategy %q", name)
		}
	}
	if onlyRegistered && !check {
		log.Println("Warning: --only-registered has no effect without --check")
	}
	return nil
}

func validStrategy(name string) bool {
	for _, s := range probe.DefaultStrategyOrder {
		if s == name {
			return true
		}
	}
	return false
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
