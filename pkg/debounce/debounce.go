// Package debounce implements the K-of-K state-transition rules that
// convert raw probe outcomes into a stable, debounced liveness state.
// It is pure decision logic with no I/O: callers push the new record
// into target state first, then ask Decide what the resulting
// current_state and StateChanged emission should be.
package debounce

import "github.com/netwatch/netwatch/pkg/model"

// K is the number of trailing records the steady-state rule examines.
const K = 3

// Decide applies, in order, the first-probe rule, the steady-state
// rule, and the warm-up shortcut, and reports whether a StateChanged
// event should be emitted along with the resulting current_state.
//
// records is newest-first and already includes the just-pushed
// record; wasFirst is true iff this push brought records from 0 to 1
// entries; previousState is current_state before this push;
// hadLastKnown is true iff the tracked target had a non-nil
// last_known_state at the time of this push (the "first-probe truth"
// rule's null check).
func Decide(records []model.ProbeRecord, wasFirst bool, previousState bool, hadLastKnown bool) (emit bool, newState bool) {
	if len(records) == 0 {
		return false, previousState
	}
	latest := records[0].Success

	if wasFirst {
		// First-probe rule: establish ground truth unconditionally.
		// Emit only if there was no prior last_known_state, or the
		// unconditional assignment actually changes the state —
		// this is what keeps an accurate last_known_state quiet on
		// startup instead of producing a spurious flap.
		emit := !hadLastKnown || previousState != latest
		return emit, latest
	}

	if len(records) >= K {
		allDisagree := true
		for i := 0; i < K; i++ {
			if records[i].Success != !previousState {
				allDisagree = false
				break
			}
		}
		if allDisagree {
			return true, !previousState
		}
		return false, previousState
	}

	// Warm-up shortcut: fewer than K records but more than one, and
	// the latest result disagrees with current_state. Waiting for a
	// full K-of-K window before reacting would leave a freshly
	// restarted target stuck on a stale state for several ticks, so
	// a single disagreement is enough once there are at least two
	// records to look at.
	if len(records) > 1 && latest != previousState {
		return true, latest
	}

	return false, previousState
}
