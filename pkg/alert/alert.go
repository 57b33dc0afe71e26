// Package alert implements a fire-and-forget webhook dispatcher: on
// each StateChanged it renders a payload per webhook template and
// POSTs it, logging failures without retrying.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/netwatch/netwatch/pkg/event"
	"github.com/netwatch/netwatch/pkg/model"
	"github.com/netwatch/netwatch/pkg/snapshotbus"
)

// Dispatcher renders and delivers webhook notifications for
// StateChanged events.
type Dispatcher struct {
	bus    *snapshotbus.Bus
	client *http.Client
	log    *zap.SugaredLogger
}

// New creates a Dispatcher that reads alert.enabled/webhooks from bus
// at delivery time, so edits via POST /api/config take effect on the
// very next transition.
func New(bus *snapshotbus.Bus, log *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		bus:    bus,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

// Dispatch fans ev out to every enabled webhook with a non-empty URL,
// one goroutine per delivery, fire-and-forget: a slow or unreachable
// webhook must never hold up the scheduler that called this.
func (d *Dispatcher) Dispatch(ev event.StateChanged) {
	cfg := d.bus.Config()
	if !cfg.Alert.Enabled {
		return
	}
	for _, wh := range cfg.Alert.Webhooks {
		if !wh.Enabled || wh.URL == "" {
			continue
		}
		go d.deliver(wh, ev)
	}
}

func (d *Dispatcher) deliver(wh model.WebhookConfig, ev event.StateChanged) {
	payload := renderPayload(wh, ev)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wh.URL, bytes.NewReader(payload))
	if err != nil {
		d.log.Warnw("alert: build request failed", "webhook", wh.ID, "err", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		d.log.Warnw("alert: delivery failed", "webhook", wh.ID, "err", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		d.log.Warnw("alert: non-2xx response", "webhook", wh.ID, "status", resp.StatusCode, "body", string(body))
	}
}

// renderPayload builds the JSON body for one webhook delivery.
func renderPayload(wh model.WebhookConfig, ev event.StateChanged) []byte {
	status := "🔴 DOWN"
	if ev.NewState {
		status = "🟢 UP"
	}
	ts := ev.Timestamp.Local().Format("2006-01-02 15:04:05")

	if wh.Template == nil {
		body := map[string]string{
			"target":    ev.Target.Name,
			"host":      ev.Target.Host,
			"status":    status,
			"timestamp": ts,
			"message":   ev.Message,
		}
		data, err := json.Marshal(body)
		if err != nil {
			return []byte(fmt.Sprintf(`{"text":%q}`, err.Error()))
		}
		return data
	}

	rendered := *wh.Template
	rendered = strings.ReplaceAll(rendered, "{{TARGET}}", ev.Target.Name)
	rendered = strings.ReplaceAll(rendered, "{{HOST}}", ev.Target.Host)
	rendered = strings.ReplaceAll(rendered, "{{STATUS}}", status)
	rendered = strings.ReplaceAll(rendered, "{{TIME}}", ts)
	rendered = strings.ReplaceAll(rendered, "{{MESSAGE}}", ev.Message)

	var js json.RawMessage
	if err := json.Unmarshal([]byte(rendered), &js); err == nil {
		return []byte(rendered)
	}

	fallback := map[string]string{"text": rendered}
	data, err := json.Marshal(fallback)
	if err != nil {
		return []byte(fmt.Sprintf(`{"text":%q}`, rendered))
	}
	return data
}
