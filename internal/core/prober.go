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
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/x-stp/rxglyph/internal/metrics"
	"github.com/x-stp/rxglyph/internal/probe"
)

// ProbeConfig selects which probes run and how wide they fan out.
type ProbeConfig struct {
	// Check runs the DNS probe on every pair.
	Check bool
	// OnlyRegistered drops non-resolving findings after the DNS probe. Requires Check.
	OnlyRegistered bool
	// Whois runs WHOIS on resolving findings when Check is set, otherwise on all of them.
	Whois bool
	// WhoisAll runs WHOIS on every remaining finding. Implies Whois.
	WhoisAll bool

	DNSWorkers   int
	WhoisWorkers int
	// DNSRate and WhoisRate are initial per-worker rates; zero or less is unlimited.
	DNSRate   float64
	WhoisRate float64
	// Affinity pins worker threads to CPU cores on Linux.
	Affinity bool
}

// Finding is one domain pair with its probe results.
type Finding struct {
	Pair           DomainPair
	Checked        bool
	Resolves       bool
	WhoisQueried   bool
	WhoisAvailable bool
	WhoisText      string
}

// ProbeStats are live counters of a Run, safe to read while it is in progress.
type ProbeStats struct {
	Phase     atomic.Value // string
	Total     atomic.Int64
	Submitted atomic.Int64
	Completed atomic.Int64
	Resolving atomic.Int64
	WhoisHits atomic.Int64
}

// String renders the counters for the console.
func (s *ProbeStats) String() string {
	phase, _ := s.Phase.Load().(string)
	if phase == "" {
		phase = "idle"
	}
	return fmt.Sprintf("[%s] %d/%d done (%d queued), %d resolving, %d whois hits",
		phase, s.Completed.Load(), s.Total.Load(), s.Submitted.Load()-s.Completed.Load(),
		s.Resolving.Load(), s.WhoisHits.Load())
}

// Prober fans probes for a list of domain pairs out over worker pools.
type Prober struct {
	cfg      ProbeConfig
	resolver probe.Resolver
	whois    probe.WhoisLookuper
	pace     *RateLimiter
	stats    ProbeStats
	metrics  *metrics.Metrics
}

// NewProber returns a Prober. resolver may be nil when cfg.Check is false and whois may be
// nil when no WHOIS probe is requested.
func NewProber(cfg ProbeConfig, resolver probe.Resolver, whois probe.WhoisLookuper) *Prober {
	if cfg.WhoisAll {
		cfg.Whois = true
	}
	if cfg.DNSWorkers <= 0 {
		cfg.DNSWorkers = DefaultDNSWorkers
	}
	if cfg.WhoisWorkers <= 0 {
		cfg.WhoisWorkers = DefaultWhoisWorkers
	}
	p := &Prober{
		cfg:      cfg,
		resolver: resolver,
		whois:    whois,
		metrics:  metrics.GetMetrics(),
	}
	if cfg.WhoisRate > 0 {
		p.pace = NewRateLimiter(cfg.WhoisRate)
	}
	return p
}

// Stats returns the live counters.
func (p *Prober) Stats() *ProbeStats {
	return &p.stats
}

// WhoisRate returns the current adaptive WHOIS rate, or 0 when WHOIS is unpaced.
func (p *Prober) WhoisRate() float64 {
	if p.pace == nil {
		return 0
	}
	return p.pace.GetCurrentRate()
}

type probeResult struct {
	ok   bool
	text string
}

// Run probes pairs and returns one Finding per surviving pair, in input order. When ctx is
// cancelled the findings gathered so far are returned with ctx's error; probes that did not
// finish count as negative.
func (p *Prober) Run(ctx context.Context, pairs []DomainPair) ([]Finding, error) {
	if p.cfg.Check && p.resolver == nil {
		return nil, errors.New("dns check requested without a resolver")
	}
	if p.cfg.Whois && p.whois == nil {
		return nil, errors.New("whois requested without a lookuper")
	}

	findings := make([]Finding, len(pairs))
	for i, pair := range pairs {
		findings[i].Pair = pair
	}

	if p.cfg.Check {
		keys := make([]string, len(findings))
		for i := range findings {
			keys[i] = findings[i].Pair.ASCII
		}
		log.Printf("[DNS] Checking %d domains (workers=%d)...", len(keys), p.cfg.DNSWorkers)
		start := time.Now()
		results, err := p.fanOut(ctx, "dns", p.cfg.DNSWorkers, p.cfg.DNSRate, keys, p.resolve, nil)
		if err != nil {
			return findings, err
		}
		log.Printf("[DNS] Done in %.1fs", time.Since(start).Seconds())
		for i := range findings {
			findings[i].Checked = true
			findings[i].Resolves = results[findings[i].Pair.ASCII].ok
		}
		if p.cfg.OnlyRegistered {
			kept := findings[:0]
			for _, f := range findings {
				if f.Resolves {
					kept = append(kept, f)
				}
			}
			findings = kept
		}
	}

	if p.cfg.Whois && ctx.Err() == nil {
		targets := p.whoisTargets(findings)
		keys := make([]string, len(targets))
		for j, i := range targets {
			keys[j] = findings[i].Pair.ASCII
		}
		log.Printf("[WHOIS] Querying %d domains (workers=%d)...", len(keys), p.cfg.WhoisWorkers)
		start := time.Now()
		results, err := p.fanOut(ctx, "whois", p.cfg.WhoisWorkers, p.cfg.WhoisRate, keys, p.lookup, p.pace)
		if err != nil {
			return findings, err
		}
		log.Printf("[WHOIS] Done in %.1fs", time.Since(start).Seconds())
		for _, i := range targets {
			r := results[findings[i].Pair.ASCII]
			findings[i].WhoisQueried = true
			findings[i].WhoisAvailable = r.ok
			findings[i].WhoisText = r.text
		}
	}

	p.stats.Phase.Store("done")
	return findings, ctx.Err()
}

// whoisTargets returns the indices of findings that get a WHOIS lookup.
func (p *Prober) whoisTargets(findings []Finding) []int {
	targets := make([]int, 0, len(findings))
	for i, f := range findings {
		if p.cfg.WhoisAll || !p.cfg.Check || f.Resolves {
			targets = append(targets, i)
		}
	}
	return targets
}

func (p *Prober) resolve(ctx context.Context, ascii string) probeResult {
	done := metrics.MeasureDuration(p.metrics.ProbeDuration, map[string]string{"probe": "dns"})
	ok := p.resolver.Resolves(ctx, ascii)
	done()
	p.metrics.RecordProbe("dns", ok)
	if ok {
		p.stats.Resolving.Add(1)
	}
	return probeResult{ok: ok}
}

func (p *Prober) lookup(ctx context.Context, ascii string) probeResult {
	done := metrics.MeasureDuration(p.metrics.ProbeDuration, map[string]string{"probe": "whois"})
	text, ok := p.whois.Lookup(ctx, ascii)
	done()
	p.metrics.RecordProbe("whois", ok)
	if ok {
		p.stats.WhoisHits.Add(1)
	}
	return probeResult{ok: ok, text: text}
}

// fanOut runs fn for every key on a fresh scheduler and joins the results by key. Each
// worker paces itself on its own limiter. With pace set, every result feeds the adaptive
// rate, which is pushed back into the worker limiters.
func (p *Prober) fanOut(ctx context.Context, name string, workers int, rate float64, keys []string,
	fn func(context.Context, string) probeResult, pace *RateLimiter) (map[string]probeResult, error) {

	p.stats.Phase.Store(name)
	p.stats.Total.Store(int64(len(keys)))
	p.stats.Submitted.Store(0)
	p.stats.Completed.Store(0)

	results := make(map[string]probeResult, len(keys))
	if len(keys) == 0 {
		return results, nil
	}

	sched, err := NewScheduler(ctx, SchedulerConfig{
		Name:     name,
		Workers:  min(workers, len(keys)),
		Rate:     rate,
		Affinity: p.cfg.Affinity,
	})
	if err != nil {
		return nil, fmt.Errorf("start %s scheduler: %w", name, err)
	}
	defer sched.Shutdown()

	var mu sync.Mutex
	for _, key := range keys {
		if ctx.Err() != nil {
			break
		}
		job := func(item *WorkItem) error {
			defer p.stats.Completed.Add(1)
			if err := sched.Limiter(item.Key).Wait(item.Ctx); err != nil {
				return nil
			}
			r := fn(item.Ctx, item.Key)
			if pace != nil && item.Ctx.Err() == nil {
				if r.ok {
					pace.RecordSuccess()
				} else {
					pace.RecordFailure()
				}
				current := pace.GetCurrentRate()
				sched.SetRate(current)
				p.metrics.SetWhoisPace(current)
			}
			mu.Lock()
			results[item.Key] = r
			mu.Unlock()
			return nil
		}
		p.submit(ctx, sched, key, job, pace)
	}

	sched.Wait()
	return results, nil
}

// submit hands job to the scheduler, backing off while the worker queue is full. After
// MaxSubmitRetries the caller runs the job itself so no key is lost.
func (p *Prober) submit(ctx context.Context, sched *Scheduler, key string, job WorkCallback, pace *RateLimiter) {
	attempt := 0
	for {
		err := sched.SubmitWork(ctx, key, job)
		if err == nil {
			p.stats.Submitted.Add(1)
			if pace != nil {
				pace.UpdateBackpressure(false)
			}
			return
		}
		if !IsRetryable(err) {
			return
		}
		if pace != nil {
			pace.UpdateBackpressure(true)
		}
		attempt++
		if attempt > MaxSubmitRetries {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(retryDelay(attempt, rand.Float64())):
		}
	}

	p.stats.Submitted.Add(1)
	_ = job(&WorkItem{Key: key, Ctx: ctx, CreatedAt: time.Now(), Attempt: attempt})
}
