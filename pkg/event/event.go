// Package event defines the StateChanged event the debouncer emits,
// consumed by the persistence worker, the alert dispatcher, and the
// snapshot bus's status stream.
package event

import (
	"time"

	"github.com/netwatch/netwatch/pkg/model"
)

// StateChanged is emitted whenever a target's debounced current_state
// toggles.
type StateChanged struct {
	Target    model.Target
	NewState  bool
	Message   string
	Timestamp time.Time
}
