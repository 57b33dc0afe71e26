package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func uint16p(v uint16) *uint16 { return &v }

func TestProtocol_Valid(t *testing.T) {
	assert.True(t, ProtocolTCP.Valid())
	assert.True(t, ProtocolICMP.Valid())
	assert.True(t, ProtocolDNS.Valid())
	assert.True(t, ProtocolHTTP.Valid())
	assert.True(t, ProtocolHTTPS.Valid())
	assert.False(t, Protocol("FTP").Valid())
	assert.False(t, Protocol("").Valid())
}

func TestTarget_Key_DistinguishesPort(t *testing.T) {
	a := Target{ID: "1", Host: "example.com", Port: uint16p(80), Protocol: ProtocolTCP}
	b := Target{ID: "1", Host: "example.com", Port: uint16p(443), Protocol: ProtocolTCP}
	assert.NotEqual(t, a.Key(), b.Key())
}

func TestTarget_Key_NilPort(t *testing.T) {
	a := Target{ID: "1", Host: "example.com", Protocol: ProtocolICMP}
	assert.Equal(t, "1|example.com|nil|ICMP", a.Key())
}

func TestTarget_Key_IgnoresName(t *testing.T) {
	a := Target{ID: "1", Name: "old name", Host: "example.com", Port: uint16p(80), Protocol: ProtocolTCP}
	b := Target{ID: "1", Name: "new name", Host: "example.com", Port: uint16p(80), Protocol: ProtocolTCP}
	assert.Equal(t, a.Key(), b.Key())
}

func TestAppConfig_Clone_DeepCopiesPointers(t *testing.T) {
	state := true
	cfg := AppConfig{
		Targets: []Target{
			{ID: "1", Host: "a", Port: uint16p(80), LastKnownState: &state},
		},
		Alert: AlertConfig{
			Enabled:  true,
			Webhooks: []WebhookConfig{{ID: "w1", URL: "https://example.com"}},
		},
		DataRetentionDays: 7,
	}

	clone := cfg.Clone()
	*clone.Targets[0].Port = 9999
	*clone.Targets[0].LastKnownState = false
	clone.Alert.Webhooks[0].URL = "https://mutated.example.com"

	assert.Equal(t, uint16(80), *cfg.Targets[0].Port, "clone mutation must not alias the original")
	assert.True(t, *cfg.Targets[0].LastKnownState)
	assert.Equal(t, "https://example.com", cfg.Alert.Webhooks[0].URL)
}

func TestRetentionLimit_ClampsToMinimum(t *testing.T) {
	assert.Equal(t, MinRetentionRecords, RetentionLimit(0))
}

func TestRetentionLimit_DefaultThreeDays(t *testing.T) {
	// 3 days = 259200s / 10s = 25920 ticks, well above the 60 floor.
	assert.Equal(t, 25920, RetentionLimit(DefaultDataRetentionDays))
}

func TestRetentionLimit_OneDayExact(t *testing.T) {
	// 1 day = 8640 ticks exactly, no rounding needed; sanity check the
	// ceiling math doesn't off-by-one an exact division.
	assert.Equal(t, 8640, RetentionLimit(1))
}
