// Package model defines the wire and in-memory data types netwatch's
// engine operates on: targets, probe records, and the AppConfig
// document the Snapshot Bus owns.
package model

import (
	"strconv"
	"time"
)

// Protocol is the tagged enumeration of probe kinds a Target can use.
type Protocol string

const (
	ProtocolTCP   Protocol = "TCP"
	ProtocolICMP  Protocol = "ICMP"
	ProtocolDNS   Protocol = "DNS"
	ProtocolHTTP  Protocol = "HTTP"
	ProtocolHTTPS Protocol = "HTTPS"
)

// Valid reports whether p is one of the five known protocols.
func (p Protocol) Valid() bool {
	switch p {
	case ProtocolTCP, ProtocolICMP, ProtocolDNS, ProtocolHTTP, ProtocolHTTPS:
		return true
	}
	return false
}

// Target is the immutable-while-observed description of one monitored
// endpoint.
type Target struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Host           string   `json:"host"`
	Port           *uint16  `json:"port,omitempty"`
	Protocol       Protocol `json:"protocol"`
	LastKnownState *bool    `json:"last_known_state,omitempty"`
}

// Key returns the probe-affecting identity of a target: the fields the
// Scheduler's reload-protocol structural hash is computed over. Two
// targets with the same Key but different Name represent the same
// rolling history; a different Key means history must be discarded.
func (t Target) Key() string {
	port := "nil"
	if t.Port != nil {
		port = strconv.Itoa(int(*t.Port))
	}
	return t.ID + "|" + t.Host + "|" + port + "|" + string(t.Protocol)
}

// ProbeRecord is a single probe outcome.
type ProbeRecord struct {
	Timestamp time.Time `json:"timestamp"`
	LatencyMS *float64  `json:"latency_ms,omitempty"`
	Success   bool      `json:"success"`
	Message   string    `json:"message,omitempty"`
}

// AlertConfig is the alerting block of AppConfig.
type AlertConfig struct {
	Enabled  bool            `json:"enabled"`
	Webhooks []WebhookConfig `json:"webhooks"`
}

// WebhookConfig describes one outbound alert delivery sink.
type WebhookConfig struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	URL      string  `json:"url"`
	Template *string `json:"template,omitempty"`
	Enabled  bool    `json:"enabled"`
}

// AppConfig is the complete user-edited, hot-reloadable configuration
// document: the single source of truth for the Snapshot Bus.
type AppConfig struct {
	Targets           []Target    `json:"targets"`
	Alert             AlertConfig `json:"alert"`
	DataRetentionDays uint        `json:"data_retention_days"`
}

// Clone returns a deep copy of the config so that callers mutating the
// result never alias a snapshot another goroutine is reading.
func (c AppConfig) Clone() AppConfig {
	out := c
	out.Targets = make([]Target, len(c.Targets))
	for i, t := range c.Targets {
		if t.Port != nil {
			p := *t.Port
			t.Port = &p
		}
		if t.LastKnownState != nil {
			s := *t.LastKnownState
			t.LastKnownState = &s
		}
		out.Targets[i] = t
	}
	out.Alert.Webhooks = make([]WebhookConfig, len(c.Alert.Webhooks))
	copy(out.Alert.Webhooks, c.Alert.Webhooks)
	return out
}

// DefaultDataRetentionDays is used when a config file omits
// data_retention_days, and in the default config written on first run.
const DefaultDataRetentionDays = 3

// Tick is the scheduler's fixed wall-clock period between probe rounds.
const Tick = 10 * time.Second

// MinRetentionRecords is the floor applied to the computed retention
// limit so a tiny data_retention_days setting still keeps a usable
// amount of recent history.
const MinRetentionRecords = 60

// RetentionLimit computes ceil(days*86400/tick_seconds) clamped to
// MinRetentionRecords.
func RetentionLimit(days uint) int {
	tickSeconds := int(Tick.Seconds())
	totalSeconds := int(days) * 86400
	limit := (totalSeconds + tickSeconds - 1) / tickSeconds
	if limit < MinRetentionRecords {
		return MinRetentionRecords
	}
	return limit
}
