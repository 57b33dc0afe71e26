// Package probe implements the per-protocol active probe drivers: TCP
// connect, ICMP echo, DNS query, and HTTP/HTTPS GET. Each driver is
// stateless beyond a process-wide pooled HTTP client and a lazily
// constructed system resolver; dispatch is a table keyed by
// model.Protocol rather than a per-protocol interface type, since the
// set of protocols is fixed and a table needs no boilerplate per
// implementation.
package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/netwatch/netwatch/pkg/model"
)

// DefaultTimeout bounds every driver except HTTP(S), which may use up
// to HTTPTimeout to cover the TLS handshake.
const (
	DefaultTimeout = 3 * time.Second
	HTTPTimeout    = 10 * time.Second
)

// userAgent is the fixed User-Agent sent by the HTTP(S) driver.
const userAgent = "netwatch-probe/1.0"

// DefaultDNSQueryName is the fixed well-known name the DNS driver
// queries against the target resolver.
const DefaultDNSQueryName = "www.baidu.com."

// Result is the uniform outcome of a single probe.
type Result struct {
	Success   bool
	LatencyMS *float64
	Message   string
}

// Driver runs a single active probe against target.
type Driver func(ctx context.Context, target model.Target) Result

// Prober dispatches a Target to its protocol's Driver and owns the
// shared resources (pooled HTTP client, lazily built resolver) that
// drivers are allowed to share.
type Prober struct {
	httpClient *http.Client

	resolverOnce sync.Once
	resolver     *net.Resolver

	table map[model.Protocol]Driver
}

// New builds a Prober with its dispatch table wired to the five
// protocol drivers.
func New() *Prober {
	p := &Prober{
		httpClient: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig:     &tls.Config{InsecureSkipVerify: true},
				DisableCompression:  true, // probe bodies are never read for content, so skip gzip decoding
				MaxIdleConnsPerHost: 8,
			},
		},
	}
	p.table = map[model.Protocol]Driver{
		model.ProtocolTCP:   p.probeTCP,
		model.ProtocolICMP:  p.probeICMP,
		model.ProtocolDNS:   p.probeDNS,
		model.ProtocolHTTP:  p.probeHTTP,
		model.ProtocolHTTPS: p.probeHTTP,
	}
	return p
}

// Probe runs the probe for target's protocol, bounding it by the
// protocol-appropriate wall-clock timeout.
func (p *Prober) Probe(ctx context.Context, target model.Target) Result {
	driver, ok := p.table[target.Protocol]
	if !ok {
		return Result{Success: false, Message: fmt.Sprintf("unsupported protocol: %s", target.Protocol)}
	}

	timeout := DefaultTimeout
	if target.Protocol == model.ProtocolHTTP || target.Protocol == model.ProtocolHTTPS {
		timeout = HTTPTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	result := driver(ctx, target)
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0
	if result.Success {
		result.LatencyMS = &elapsed
	} else {
		result.LatencyMS = nil
	}
	return result
}

func (p *Prober) systemResolver() *net.Resolver {
	p.resolverOnce.Do(func() {
		p.resolver = net.DefaultResolver
	})
	return p.resolver
}
