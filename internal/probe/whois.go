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

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/likexian/whois"

	"github.com/x-stp/rxglyph/internal/client"
	"github.com/x-stp/rxglyph/internal/metrics"
)

// DefaultWhoisTimeout bounds each strategy attempt when WhoisConfig.Timeout is unset.
const DefaultWhoisTimeout = 5 * time.Second

// maxWhoisResponse caps what is read from a port 43 server.
const maxWhoisResponse = 256 << 10

// Strategy names, in default order.
const (
	StrategySystem   = "system"
	StrategyLibrary  = "library"
	StrategyRegistry = "registry"
	StrategyRDAP     = "rdap"
	StrategyGeneric  = "generic"
)

// DefaultStrategyOrder is the fallback chain used when WhoisConfig.Strategies is empty.
var DefaultStrategyOrder = []string{StrategySystem, StrategyLibrary, StrategyRegistry, StrategyRDAP, StrategyGeneric}

var (
	errNoServer    = errors.New("no server for tld")
	errEmptyAnswer = errors.New("empty answer")
)

// Strategy is one way of fetching a WHOIS record.
type Strategy interface {
	Name() string
	Lookup(ctx context.Context, domain string) (string, error)
}

// WhoisConfig configures a WhoisProber. Zero fields take the package defaults.
type WhoisConfig struct {
	Timeout         time.Duration
	Strategies      []string
	Command         string
	RegistryServers map[string]string
	GenericServers  []string
	RDAPEndpoints   map[string]string
	RDAPBootstrap   string
	HTTPClient      *http.Client
}

// WhoisProber runs strategies in order and returns the first non-empty answer.
type WhoisProber struct {
	timeout    time.Duration
	strategies []Strategy
	metrics    *metrics.Metrics
}

// NewWhoisProber builds the strategy chain named in cfg.
func NewWhoisProber(cfg WhoisConfig) (*WhoisProber, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultWhoisTimeout
	}
	names := cfg.Strategies
	if len(names) == 0 {
		names = DefaultStrategyOrder
	}
	if cfg.Command == "" {
		cfg.Command = "whois"
	}
	if cfg.RegistryServers == nil {
		cfg.RegistryServers = RegistryServers
	}
	if cfg.GenericServers == nil {
		cfg.GenericServers = GenericServers
	}
	if cfg.RDAPEndpoints == nil {
		cfg.RDAPEndpoints = RDAPEndpoints
	}
	if cfg.RDAPBootstrap == "" {
		cfg.RDAPBootstrap = RDAPBootstrap
	}

	strategies := make([]Strategy, 0, len(names))
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case StrategySystem:
			strategies = append(strategies, &systemStrategy{command: cfg.Command})
		case StrategyLibrary:
			strategies = append(strategies, &libraryStrategy{client: whois.NewClient().SetTimeout(cfg.Timeout)})
		case StrategyRegistry:
			strategies = append(strategies, &registryStrategy{servers: cfg.RegistryServers})
		case StrategyRDAP:
			strategies = append(strategies, &rdapStrategy{endpoints: cfg.RDAPEndpoints, bootstrap: cfg.RDAPBootstrap, client: cfg.HTTPClient})
		case StrategyGeneric:
			strategies = append(strategies, &genericStrategy{servers: cfg.GenericServers})
		default:
			return nil, fmt.Errorf("unknown whois strategy %q", name)
		}
	}
	return NewWhoisProberWithStrategies(cfg.Timeout, strategies...), nil
}

// NewWhoisProberWithStrategies returns a prober running exactly the given strategies.
func NewWhoisProberWithStrategies(timeout time.Duration, strategies ...Strategy) *WhoisProber {
	if timeout <= 0 {
		timeout = DefaultWhoisTimeout
	}
	return &WhoisProber{timeout: timeout, strategies: strategies, metrics: metrics.GetMetrics()}
}

// Strategies returns the names of the chain in order.
func (p *WhoisProber) Strategies() []string {
	names := make([]string, len(p.strategies))
	for i, s := range p.strategies {
		names[i] = s.Name()
	}
	return names
}

// Lookup walks the chain. Each strategy gets its own timeout; errors and panics move on to
// the next one.
func (p *WhoisProber) Lookup(ctx context.Context, asciiDomain string) (string, bool) {
	for _, s := range p.strategies {
		if ctx.Err() != nil {
			return "", false
		}
		text := p.try(ctx, s, asciiDomain)
		p.metrics.RecordWhoisStrategy(s.Name(), text != "")
		if text != "" {
			return text, true
		}
	}
	return "", false
}

func (p *WhoisProber) try(ctx context.Context, s Strategy, domain string) (text string) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic recovered in whois strategy %s for %s: %v", s.Name(), domain, r)
			text = ""
		}
	}()

	out, err := s.Lookup(ctx, domain)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

// systemStrategy runs the local whois utility.
type systemStrategy struct {
	command string
}

func (s *systemStrategy) Name() string { return StrategySystem }

func (s *systemStrategy) Lookup(ctx context.Context, domain string) (string, error) {
	path, err := exec.LookPath(s.command)
	if err != nil {
		return "", err
	}
	out, err := exec.CommandContext(ctx, path, domain).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", s.command, domain, err)
	}
	return toText(out), nil
}

// libraryStrategy uses github.com/likexian/whois, which follows IANA and registrar referrals.
type libraryStrategy struct {
	client *whois.Client
}

func (s *libraryStrategy) Name() string { return StrategyLibrary }

func (s *libraryStrategy) Lookup(ctx context.Context, domain string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	type reply struct {
		text string
		err  error
	}
	ch := make(chan reply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- reply{err: fmt.Errorf("whois library panic: %v", r)}
			}
		}()
		text, err := s.client.Whois(domain)
		ch <- reply{text: text, err: err}
	}()

	select {
	case r := <-ch:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// registryStrategy queries the TLD's registry server directly.
type registryStrategy struct {
	servers map[string]string
}

func (s *registryStrategy) Name() string { return StrategyRegistry }

func (s *registryStrategy) Lookup(ctx context.Context, domain string) (string, error) {
	server, ok := s.servers[tldOf(domain)]
	if !ok {
		return "", errNoServer
	}
	return queryTCP(ctx, server, domain)
}

// genericStrategy asks catch-all servers in order.
type genericStrategy struct {
	servers []string
}

func (s *genericStrategy) Name() string { return StrategyGeneric }

func (s *genericStrategy) Lookup(ctx context.Context, domain string) (string, error) {
	var errs []error
	for _, server := range s.servers {
		text, err := queryTCP(ctx, server, domain)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return "", errors.Join(errs...)
}

// rdapStrategy fetches the RDAP domain object and returns its JSON.
type rdapStrategy struct {
	endpoints map[string]string
	bootstrap string
	client    *http.Client
}

func (s *rdapStrategy) Name() string { return StrategyRDAP }

func (s *rdapStrategy) Lookup(ctx context.Context, domain string) (string, error) {
	endpoint, ok := s.endpoints[tldOf(domain)]
	if !ok {
		endpoint = s.bootstrap
	}
	url := strings.TrimRight(endpoint, "/") + "/domain/" + domain

	body, err := client.GetBody(ctx, s.client, url, "application/rdap+json", client.DefaultMaxBodyBytes)
	if err != nil {
		return "", err
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return "", fmt.Errorf("rdap %s: %w", url, err)
	}
	if _, isErr := obj["errorCode"]; isErr {
		return "", fmt.Errorf("rdap %s: error response", url)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		return string(body), nil
	}
	return pretty.String(), nil
}

// queryTCP sends domain to a port 43 server and reads until the server closes.
func queryTCP(ctx context.Context, server, domain string) (string, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", withDefaultPort(server, "43"))
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if _, err := conn.Write([]byte(domain + "\r\n")); err != nil {
		return "", fmt.Errorf("write %s: %w", server, err)
	}
	out, err := io.ReadAll(io.LimitReader(conn, maxWhoisResponse))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", server, err)
	}
	text := toText(out)
	if text == "" {
		return "", errEmptyAnswer
	}
	return text, nil
}

func toText(b []byte) string {
	return strings.TrimSpace(strings.ToValidUTF8(string(b), "�"))
}

func tldOf(domain string) string {
	i := strings.LastIndexByte(domain, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(domain[i+1:])
}
