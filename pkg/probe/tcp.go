package probe

import (
	"context"
	"net"
	"strconv"

	"github.com/netwatch/netwatch/pkg/model"
)

// defaultTCPPort is used when Target.Port is nil.
const defaultTCPPort = 80

func (p *Prober) probeTCP(ctx context.Context, target model.Target) Result {
	port := defaultTCPPort
	if target.Port != nil {
		port = int(*target.Port)
	}

	addr := net.JoinHostPort(target.Host, strconv.Itoa(port))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		if ctx.Err() != nil {
			return Result{Success: false, Message: "Timeout"}
		}
		return Result{Success: false, Message: err.Error()}
	}
	defer conn.Close()

	return Result{Success: true, Message: "connected"}
}
