package probe

import (
	"context"
	"fmt"
	"net"
	"os"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"

	"github.com/netwatch/netwatch/pkg/model"
)

// icmpPayload is the fixed 8-byte zero payload sent with every echo.
var icmpPayload = make([]byte, 8)

func (p *Prober) probeICMP(ctx context.Context, target model.Target) Result {
	addr, err := p.resolveICMPTarget(ctx, target.Host)
	if err != nil {
		return Result{Success: false, Message: err.Error()}
	}

	conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		// Opening a raw socket commonly requires elevated privileges;
		// treat that as a per-probe failure, never a crash.
		return Result{Success: false, Message: fmt.Sprintf("raw socket unavailable: %v", err)}
	}
	defer conn.Close()

	id := os.Getpid() & 0xffff
	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   id,
			Seq:  1,
			Data: icmpPayload,
		},
	}
	buf, err := msg.Marshal(nil)
	if err != nil {
		return Result{Success: false, Message: err.Error()}
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := conn.WriteTo(buf, &net.IPAddr{IP: addr}); err != nil {
		return Result{Success: false, Message: err.Error()}
	}

	reply := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(reply)
		if err != nil {
			if ctx.Err() != nil {
				return Result{Success: false, Message: "Timeout"}
			}
			return Result{Success: false, Message: err.Error()}
		}
		if ipAddr, ok := peer.(*net.IPAddr); ok && !ipAddr.IP.Equal(addr) {
			continue
		}

		parsed, err := icmp.ParseMessage(1, reply[:n])
		if err != nil {
			continue
		}
		echo, ok := parsed.Body.(*icmp.Echo)
		if !ok || echo.ID != id {
			continue
		}
		if parsed.Type == ipv4.ICMPTypeEchoReply {
			return Result{Success: true, Message: "echo reply received"}
		}
	}
}

// resolveICMPTarget parses host as an IP literal, or else resolves it
// via the system resolver and uses the first returned address.
func (p *Prober) resolveICMPTarget(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}
	addrs, err := p.systemResolver().LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no addresses found for %s", host)
	}
	return addrs[0].IP, nil
}
