package probe

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/netwatch/netwatch/pkg/model"
)

// defaultDNSPort is used when Target.Port is nil.
const defaultDNSPort = 53

// probeDNS builds an ad-hoc resolver pointing at (host, port) and
// queries DefaultDNSQueryName over UDP. Target.Host must parse as an
// IP literal — it is the resolver to query, not the thing being
// resolved.
func (p *Prober) probeDNS(ctx context.Context, target model.Target) Result {
	if net.ParseIP(target.Host) == nil {
		return Result{Success: false, Message: fmt.Sprintf("host %q is not an IP literal", target.Host)}
	}

	port := defaultDNSPort
	if target.Port != nil {
		port = int(*target.Port)
	}
	resolverAddr := net.JoinHostPort(target.Host, strconv.Itoa(port))

	msg := new(dns.Msg)
	msg.SetQuestion(DefaultDNSQueryName, dns.TypeA)
	msg.RecursionDesired = true

	client := new(dns.Client)
	client.Net = "udp"
	if deadline, ok := ctx.Deadline(); ok {
		client.Timeout = time.Until(deadline)
	}

	resp, _, err := client.ExchangeContext(ctx, msg, resolverAddr)
	if err != nil {
		return Result{Success: false, Message: err.Error()}
	}
	if resp == nil || len(resp.Answer) == 0 {
		return Result{Success: false, Message: "empty answer"}
	}

	addrs := make([]string, 0, len(resp.Answer))
	for _, rr := range resp.Answer {
		if a, ok := rr.(*dns.A); ok {
			addrs = append(addrs, a.A.String())
		}
	}
	if len(addrs) == 0 {
		return Result{Success: false, Message: "no A records in answer"}
	}

	return Result{Success: true, Message: strings.Join(addrs, ",")}
}
