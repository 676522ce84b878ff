/*
Package metrics exposes rxglyph's Prometheus metrics: generation outcomes, probe results,
WHOIS strategy outcomes and scheduler health. Metrics live on a private registry and are only
recorded after EnableMetrics; the /metrics endpoint is served by StartMetricsServer.
*/
package metrics

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
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry           = prometheus.NewRegistry()
	defaultRegisterer  = promauto.With(registry)
	metricsInitialized sync.Once
	metricsEnabled     atomic.Bool
	metricsServer      *http.Server
)

// Metrics contains all the Prometheus metrics for the application
type Metrics struct {
	// Generation metrics
	GenerationDuration prometheus.Histogram
	CandidatesTotal    *prometheus.CounterVec
	VariantsEmitted    prometheus.Counter
	GenerationCapped   prometheus.Counter

	// Probe metrics
	ProbeDuration      *prometheus.HistogramVec
	ProbeResultsTotal  *prometheus.CounterVec
	WhoisStrategyTotal *prometheus.CounterVec
	WhoisPaceRate      prometheus.Gauge

	// Worker metrics
	WorkerPanics    *prometheus.CounterVec
	WorkerRateLimit *prometheus.GaugeVec

	// Scheduler metrics
	SchedulerWorkSubmitted *prometheus.CounterVec
	SchedulerWorkCompleted *prometheus.CounterVec
	QueueBackpressureHit   *prometheus.CounterVec
}

// Global instance of metrics
var globalMetrics *Metrics
var metricsOnce sync.Once

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = newMetrics()
	})
	return globalMetrics
}

// EnableMetrics enables metrics collection
func EnableMetrics() {
	metricsEnabled.Store(true)
}

// IsMetricsEnabled returns whether metrics collection is enabled
func IsMetricsEnabled() bool {
	return metricsEnabled.Load()
}

// Registry returns the registry all rxglyph metrics are registered on.
func Registry() *prometheus.Registry {
	return registry
}

func newMetrics() *Metrics {
	buckets := []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60}

	return &Metrics{
		GenerationDuration: defaultRegisterer.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rxglyph_generation_duration_seconds",
				Help:    "Time spent generating and assembling variants for one domain",
				Buckets: buckets,
			},
		),
		CandidatesTotal: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rxglyph_candidates_total",
				Help: "Candidates produced by the generator, by outcome",
			},
			[]string{"outcome"},
		),
		VariantsEmitted: defaultRegisterer.NewCounter(
			prometheus.CounterOpts{
				Name: "rxglyph_variants_emitted_total",
				Help: "Domain pairs emitted after full-domain validation",
			},
		),
		GenerationCapped: defaultRegisterer.NewCounter(
			prometheus.CounterOpts{
				Name: "rxglyph_generation_capped_total",
				Help: "Generations that stopped because the variant limit was reached",
			},
		),

		ProbeDuration: defaultRegisterer.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rxglyph_probe_duration_seconds",
				Help:    "Time spent on a single probe",
				Buckets: buckets,
			},
			[]string{"probe"},
		),
		ProbeResultsTotal: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rxglyph_probe_results_total",
				Help: "Probe results by probe and outcome",
			},
			[]string{"probe", "outcome"},
		),
		WhoisStrategyTotal: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rxglyph_whois_strategy_total",
				Help: "WHOIS strategy attempts by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),
		WhoisPaceRate: defaultRegisterer.NewGauge(
			prometheus.GaugeOpts{
				Name: "rxglyph_whois_pace_rate",
				Help: "Current adaptive WHOIS request rate per worker",
			},
		),

		WorkerPanics: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rxglyph_worker_panics_total",
				Help: "Total number of panics recovered by a worker",
			},
			[]string{"scheduler", "worker_id"},
		),
		WorkerRateLimit: defaultRegisterer.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rxglyph_worker_rate_limit",
				Help: "Current rate limit for each worker",
			},
			[]string{"scheduler", "worker_id"},
		),

		SchedulerWorkSubmitted: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rxglyph_scheduler_work_submitted_total",
				Help: "Total number of work items submitted to the scheduler",
			},
			[]string{"scheduler"},
		),
		SchedulerWorkCompleted: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rxglyph_scheduler_work_completed_total",
				Help: "Total number of work items completed by the scheduler",
			},
			[]string{"scheduler"},
		),
		QueueBackpressureHit: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rxglyph_queue_backpressure_hits_total",
				Help: "Number of times backpressure was applied due to full queue",
			},
			[]string{"scheduler", "worker_id"},
		),
	}
}

// StartMetricsServer enables collection and serves /metrics on addr. The listener is bound
// before returning so address errors surface to the caller.
func StartMetricsServer(addr string) error {
	EnableMetrics()
	GetMetrics()

	var startErr error
	metricsInitialized.Do(func() {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			startErr = err
			return
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

		metricsServer = &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			log.Printf("Starting metrics server on %s", ln.Addr())
			if err := metricsServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Metrics server error: %v", err)
			}
		}()
	})

	return startErr
}

// ShutdownMetricsServer gracefully shuts down the metrics server
func ShutdownMetricsServer(ctx context.Context) error {
	if metricsServer != nil {
		log.Println("Shutting down metrics server...")
		return metricsServer.Shutdown(ctx)
	}
	return nil
}

// MeasureDuration is a helper to measure the duration of a function
func MeasureDuration(histogram *prometheus.HistogramVec, labels prometheus.Labels) func() {
	if !IsMetricsEnabled() {
		return func() {}
	}

	start := time.Now()
	return func() {
		histogram.With(labels).Observe(time.Since(start).Seconds())
	}
}

// RecordGeneration records the outcome counts of one Assemble call.
func (m *Metrics) RecordGeneration(d time.Duration, accepted, rejected, dropped int, capped bool) {
	if !IsMetricsEnabled() {
		return
	}

	m.GenerationDuration.Observe(d.Seconds())
	m.CandidatesTotal.WithLabelValues("accepted").Add(float64(accepted))
	m.CandidatesTotal.WithLabelValues("rejected").Add(float64(rejected))
	m.CandidatesTotal.WithLabelValues("dropped").Add(float64(dropped))
	m.VariantsEmitted.Add(float64(accepted - dropped))
	if capped {
		m.GenerationCapped.Inc()
	}
}

// RecordProbe counts one probe result.
func (m *Metrics) RecordProbe(probe string, ok bool) {
	if !IsMetricsEnabled() {
		return
	}

	m.ProbeResultsTotal.WithLabelValues(probe, outcome(ok)).Inc()
}

// RecordWhoisStrategy counts one attempt of a WHOIS strategy.
func (m *Metrics) RecordWhoisStrategy(strategy string, ok bool) {
	if !IsMetricsEnabled() {
		return
	}

	m.WhoisStrategyTotal.WithLabelValues(strategy, outcome(ok)).Inc()
}

// UpdateWorkerRateLimit updates the rate limit metric for a worker
func (m *Metrics) UpdateWorkerRateLimit(scheduler string, workerID int, rateLimit float64) {
	if !IsMetricsEnabled() {
		return
	}

	m.WorkerRateLimit.WithLabelValues(scheduler, strconv.Itoa(workerID)).Set(rateLimit)
}

// RecordBackpressure counts a rejected submission to a full worker queue.
func (m *Metrics) RecordBackpressure(scheduler string, workerID int) {
	if !IsMetricsEnabled() {
		return
	}

	m.QueueBackpressureHit.WithLabelValues(scheduler, strconv.Itoa(workerID)).Inc()
}

// RecordPanic counts a panic recovered by a worker.
func (m *Metrics) RecordPanic(scheduler string, workerID int) {
	if !IsMetricsEnabled() {
		return
	}

	m.WorkerPanics.WithLabelValues(scheduler, strconv.Itoa(workerID)).Inc()
}

// RecordSubmitted counts a work item accepted by a scheduler.
func (m *Metrics) RecordSubmitted(scheduler string) {
	if !IsMetricsEnabled() {
		return
	}

	m.SchedulerWorkSubmitted.WithLabelValues(scheduler).Inc()
}

// RecordCompleted counts a work item finished by a scheduler worker.
func (m *Metrics) RecordCompleted(scheduler string) {
	if !IsMetricsEnabled() {
		return
	}

	m.SchedulerWorkCompleted.WithLabelValues(scheduler).Inc()
}

// SetWhoisPace publishes the adaptive WHOIS rate.
func (m *Metrics) SetWhoisPace(rate float64) {
	if !IsMetricsEnabled() {
		return
	}

	m.WhoisPaceRate.Set(rate)
}

func outcome(ok bool) string {
	if ok {
		return "hit"
	}
	return "miss"
}
