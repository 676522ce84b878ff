package metrics

import (
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordHelpersUpdateCounters(t *testing.T) {
	EnableMetrics()
	m := GetMetrics()

	before := testutil.ToFloat64(m.ProbeResultsTotal.WithLabelValues("dns", "hit"))
	m.RecordProbe("dns", true)
	m.RecordProbe("dns", true)
	if got := testutil.ToFloat64(m.ProbeResultsTotal.WithLabelValues("dns", "hit")) - before; got != 2 {
		t.Fatalf("dns hits delta = %v, want 2", got)
	}

	emitted := testutil.ToFloat64(m.VariantsEmitted)
	capped := testutil.ToFloat64(m.GenerationCapped)
	m.RecordGeneration(time.Millisecond, 10, 4, 1, true)
	if got := testutil.ToFloat64(m.VariantsEmitted) - emitted; got != 9 {
		t.Fatalf("variants emitted delta = %v, want 9", got)
	}
	if got := testutil.ToFloat64(m.GenerationCapped) - capped; got != 1 {
		t.Fatalf("capped delta = %v, want 1", got)
	}

	m.UpdateWorkerRateLimit("whois", 3, 2.5)
	if got := testutil.ToFloat64(m.WorkerRateLimit.WithLabelValues("whois", "3")); got != 2.5 {
		t.Fatalf("worker rate = %v, want 2.5", got)
	}
}

func TestStartMetricsServerServesRegistry(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	if err := StartMetricsServer(addr); err != nil {
		t.Fatalf("StartMetricsServer: %v", err)
	}
	GetMetrics().RecordWhoisStrategy("registry", false)

	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `rxglyph_whois_strategy_total{outcome="miss",strategy="registry"}`) {
		t.Fatalf("metrics output missing whois strategy counter:\n%s", body)
	}
}
