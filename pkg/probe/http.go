package probe

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/netwatch/netwatch/pkg/model"
)

// probeHTTP issues a GET against the target and classifies any 2xx
// response as success.
func (p *Prober) probeHTTP(ctx context.Context, target model.Target) Result {
	url := buildHTTPURL(target)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{Success: false, Message: err.Error()}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Result{Success: false, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Result{Success: true, Message: resp.Status}
	}
	return Result{Success: false, Message: resp.Status}
}

// buildHTTPURL constructs scheme://host[:port]. If Host already embeds
// a scheme, it is used verbatim.
func buildHTTPURL(target model.Target) string {
	if strings.Contains(target.Host, "://") {
		return target.Host
	}

	scheme := "http"
	if target.Protocol == model.ProtocolHTTPS {
		scheme = "https"
	}

	host := target.Host
	if target.Port != nil {
		host = host + ":" + strconv.Itoa(int(*target.Port))
	}

	return fmt.Sprintf("%s://%s", scheme, host)
}
