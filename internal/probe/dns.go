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
	"context"
	"net"
	"time"

	"github.com/miekg/dns"
)

// DefaultDNSTimeout bounds one Resolves call when DNSConfig.Timeout is unset.
const DefaultDNSTimeout = 2 * time.Second

// DNSConfig configures a DNSProber.
type DNSConfig struct {
	// Timeout bounds a whole Resolves call.
	Timeout time.Duration
	// Nameservers, as "ip" or "ip:port", are queried directly in order. When empty the
	// system resolver is used.
	Nameservers []string
}

// DNSProber checks whether domains resolve.
type DNSProber struct {
	timeout     time.Duration
	nameservers []string
	udp         *dns.Client
	tcp         *dns.Client
	system      *net.Resolver
}

// NewDNSProber returns a DNSProber for cfg.
func NewDNSProber(cfg DNSConfig) *DNSProber {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultDNSTimeout
	}
	p := &DNSProber{
		timeout: timeout,
		udp:     &dns.Client{Net: "udp", Timeout: timeout},
		tcp:     &dns.Client{Net: "tcp", Timeout: timeout},
		system:  net.DefaultResolver,
	}
	for _, ns := range cfg.Nameservers {
		if ns == "" {
			continue
		}
		p.nameservers = append(p.nameservers, withDefaultPort(ns, "53"))
	}
	return p
}

// Resolves reports whether asciiDomain has an address. Any failure is false.
func (p *DNSProber) Resolves(ctx context.Context, asciiDomain string) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if len(p.nameservers) == 0 {
		addrs, err := p.system.LookupHost(ctx, asciiDomain)
		return err == nil && len(addrs) > 0
	}

	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		found, final := p.query(ctx, asciiDomain, qtype)
		if found {
			return true
		}
		if final {
			return false
		}
		if ctx.Err() != nil {
			return false
		}
	}
	return false
}

// query asks each nameserver in turn until one gives an authoritative NOERROR or NXDOMAIN.
// final is true when the name does not exist, so other record types need not be tried.
func (p *DNSProber) query(ctx context.Context, name string, qtype uint16) (found, final bool) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)
	m.RecursionDesired = true

	for _, server := range p.nameservers {
		r, _, err := p.udp.ExchangeContext(ctx, m, server)
		if err == nil && r != nil && r.Truncated {
			r, _, err = p.tcp.ExchangeContext(ctx, m, server)
		}
		if err != nil || r == nil {
			if ctx.Err() != nil {
				return false, true
			}
			continue
		}

		switch r.Rcode {
		case dns.RcodeSuccess:
			return hasAddress(r.Answer, qtype), false
		case dns.RcodeNameError:
			return false, true
		}
	}
	return false, false
}

func hasAddress(answer []dns.RR, qtype uint16) bool {
	for _, rr := range answer {
		switch rr.(type) {
		case *dns.A:
			if qtype == dns.TypeA {
				return true
			}
		case *dns.AAAA:
			if qtype == dns.TypeAAAA {
				return true
			}
		}
	}
	return false
}

func withDefaultPort(hostport, port string) string {
	if _, _, err := net.SplitHostPort(hostport); err == nil {
		return hostport
	}
	return net.JoinHostPort(hostport, port)
}
