package probe

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"
	"time"
)

type fakeStrategy struct {
	name  string
	text  string
	err   error
	panic bool
	block bool
	calls int
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Lookup(ctx context.Context, domain string) (string, error) {
	f.calls++
	if f.panic {
		panic("boom")
	}
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.text, f.err
}

func TestWhoisProberChain(t *testing.T) {
	t.Parallel()

	failing := &fakeStrategy{name: "a", err: errors.New("refused")}
	panicking := &fakeStrategy{name: "b", panic: true}
	blank := &fakeStrategy{name: "c", text: "  \n "}
	slow := &fakeStrategy{name: "d", block: true}
	good := &fakeStrategy{name: "e", text: "\nDomain Name: XN--PYPAL-4VE.COM\n"}
	never := &fakeStrategy{name: "f", text: "unused"}

	p := NewWhoisProberWithStrategies(50*time.Millisecond, failing, panicking, blank, slow, good, never)
	text, ok := p.Lookup(context.Background(), "xn--pypal-4ve.com")
	if !ok || text != "Domain Name: XN--PYPAL-4VE.COM" {
		t.Fatalf("Lookup = %q, %v", text, ok)
	}
	if never.calls != 0 {
		t.Fatalf("strategies after the first answer must not run")
	}
	if got, want := p.Strategies(), []string{"a", "b", "c", "d", "e", "f"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Strategies = %v, want %v", got, want)
	}
}

func TestWhoisProberExhausted(t *testing.T) {
	t.Parallel()
	p := NewWhoisProberWithStrategies(time.Second, &fakeStrategy{name: "a", err: errors.New("x")})
	if text, ok := p.Lookup(context.Background(), "example.com"); ok || text != "" {
		t.Fatalf("expected no answer, got %q %v", text, ok)
	}
}

func TestWhoisProberCancelled(t *testing.T) {
	t.Parallel()
	s := &fakeStrategy{name: "a", text: "data"}
	p := NewWhoisProberWithStrategies(time.Second, s)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := p.Lookup(ctx, "example.com"); ok || s.calls != 0 {
		t.Fatalf("cancelled lookup must not run strategies")
	}
}

func TestNewWhoisProberStrategyNames(t *testing.T) {
	t.Parallel()
	p, err := NewWhoisProber(WhoisConfig{})
	if err != nil {
		t.Fatalf("NewWhoisProber: %v", err)
	}
	if got := p.Strategies(); !reflect.DeepEqual(got, DefaultStrategyOrder) {
		t.Fatalf("default order = %v", got)
	}
	if _, err := NewWhoisProber(WhoisConfig{Strategies: []string{"registry", "carrier-pigeon"}}); err == nil {
		t.Fatalf("expected unknown strategy error")
	}
}

// serveWhois answers every port 43 style query with resp and records the query line.
func serveWhois(t *testing.T, resp string) (addr string, queries chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	queries = make(chan string, 8)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			line, _ := bufio.NewReader(conn).ReadString('\n')
			queries <- line
			_, _ = conn.Write([]byte(resp))
			conn.Close()
		}
	}()
	return ln.Addr().String(), queries
}

func TestRegistryStrategy(t *testing.T) {
	t.Parallel()
	addr, queries := serveWhois(t, "Domain Name: XN--PYPAL-4VE.COM\r\nRegistrar: Example\r\n")
	s := &registryStrategy{servers: map[string]string{"com": addr}}

	text, err := s.Lookup(context.Background(), "xn--pypal-4ve.com")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !strings.Contains(text, "Registrar: Example") {
		t.Fatalf("unexpected text %q", text)
	}
	if q := <-queries; q != "xn--pypal-4ve.com\r\n" {
		t.Fatalf("query line = %q", q)
	}

	if _, err := s.Lookup(context.Background(), "example.zz"); !errors.Is(err, errNoServer) {
		t.Fatalf("expected errNoServer, got %v", err)
	}
}

func TestGenericStrategySkipsDeadServers(t *testing.T) {
	t.Parallel()
	dead, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	deadAddr := dead.Addr().String()
	dead.Close()

	empty, _ := serveWhois(t, "   ")
	live, _ := serveWhois(t, "refer: whois.verisign-grs.com\n")

	s := &genericStrategy{servers: []string{deadAddr, empty, live}}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	text, err := s.Lookup(ctx, "example.com")
	if err != nil || text != "refer: whois.verisign-grs.com" {
		t.Fatalf("Lookup = %q, %v", text, err)
	}
}

func TestRDAPStrategy(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/com/v1/domain/xn--pypal-4ve.com":
			w.Header().Set("Content-Type", "application/rdap+json")
			_, _ = w.Write([]byte(`{"objectClassName":"domain","ldhName":"xn--pypal-4ve.com"}`))
		case "/com/v1/domain/errored.com":
			_, _ = w.Write([]byte(`{"errorCode":400,"title":"bad"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := &rdapStrategy{
		endpoints: map[string]string{"com": srv.URL + "/com/v1/"},
		bootstrap: srv.URL + "/bootstrap/",
		client:    srv.Client(),
	}

	text, err := s.Lookup(context.Background(), "xn--pypal-4ve.com")
	if err != nil || !strings.Contains(text, `"ldhName": "xn--pypal-4ve.com"`) {
		t.Fatalf("Lookup = %q, %v", text, err)
	}
	if _, err := s.Lookup(context.Background(), "unregistered.com"); err == nil {
		t.Fatalf("expected 404 to fail")
	}
	if _, err := s.Lookup(context.Background(), "errored.com"); err == nil {
		t.Fatalf("expected RDAP error object to fail")
	}
	if _, err := s.Lookup(context.Background(), "example.zz"); err == nil {
		t.Fatalf("expected bootstrap 404 to fail")
	}
}

func TestSystemStrategy(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixture")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "whois")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho \"Domain Name: $1\"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	failing := filepath.Join(dir, "whois-fail")
	if err := os.WriteFile(failing, []byte("#!/bin/sh\necho nope\nexit 2\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	text, err := (&systemStrategy{command: script}).Lookup(context.Background(), "example.com")
	if err != nil || text != "Domain Name: example.com" {
		t.Fatalf("Lookup = %q, %v", text, err)
	}
	if _, err := (&systemStrategy{command: failing}).Lookup(context.Background(), "example.com"); err == nil {
		t.Fatalf("non-zero exit must fail")
	}
	if _, err := (&systemStrategy{command: filepath.Join(dir, "missing")}).Lookup(context.Background(), "example.com"); err == nil {
		t.Fatalf("missing binary must fail")
	}
}

func TestLibraryStrategyHonoursCancelledContext(t *testing.T) {
	t.Parallel()
	p, err := NewWhoisProber(WhoisConfig{Strategies: []string{StrategyLibrary}})
	if err != nil {
		t.Fatalf("NewWhoisProber: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.strategies[0].Lookup(ctx, "example.com"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTLDOf(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]string{"a.COM": "com", "x.co.uk": "uk", "paypal": ""} {
		if got := tldOf(in); got != want {
			t.Fatalf("tldOf(%q) = %q, want %q", in, got, want)
		}
	}
}
