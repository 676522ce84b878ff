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
	"time"
)

// Defaults for generation and probing. The CLI flags start from these values.
const (
	// --- Generation ---

	// DefaultMaxEdits is the default number of substituted positions per variant.
	DefaultMaxEdits = 1

	// DefaultLimit caps the number of distinct label variants per run.
	DefaultLimit = 2000

	// --- Probing ---

	// MaxWorkers bounds the worker count of any scheduler regardless of flags.
	MaxWorkers = 2048

	// DefaultDNSWorkers is the default DNS probe concurrency.
	DefaultDNSWorkers = 32

	// DefaultWhoisWorkers is the default WHOIS probe concurrency. Registries rate-limit
	// aggressively, so this stays low.
	DefaultWhoisWorkers = 8

	// DefaultDNSTimeout bounds a single DNS probe.
	DefaultDNSTimeout = 2 * time.Second

	// DefaultWhoisTimeout bounds each WHOIS strategy attempt.
	DefaultWhoisTimeout = 5 * time.Second

	// DefaultDNSRate is the initial per-worker DNS rate in probes per second.
	DefaultDNSRate = 200.0

	// DefaultWhoisRate is the initial per-worker WHOIS rate in lookups per second.
	DefaultWhoisRate = 2.0

	// MaxSubmitRetries is how often a probe submission rejected with ErrQueueFull is retried
	// before the caller runs the probe itself.
	MaxSubmitRetries = 3

	// --- Output ---

	// DefaultPreviewRows is the number of rows printed to the console.
	DefaultPreviewRows = 50

	// StatsReportInterval is how often live probe statistics are printed.
	StatsReportInterval = 2 * time.Second
)
