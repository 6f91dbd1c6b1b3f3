// internal/game/clock.go
//
// Survival countdown clock.
//
// State machine:
//   inactive ──Activate──▶ active ──Tick to 0──▶ expired
//       ▲                    │                      │
//       └────Deactivate──────┴──────Deactivate──────┘
//
// The clock itself is passive: something else calls Tick once per elapsed
// second. Every activation gets a new epoch so a tick armed for an earlier
// activation can be recognised and dropped by the caller.

package game

import "fmt"

// TimerState is the clock's lifecycle state.
type TimerState string

const (
	TimerInactive TimerState = "inactive"
	TimerActive   TimerState = "active"
	TimerExpired  TimerState = "expired"
)

// SurvivalTimer counts down the seconds left in a survival session.
type SurvivalTimer struct {
	initial   int
	remaining int
	state     TimerState
	epoch     uint64
}

// NewSurvivalTimer returns an inactive clock that starts at initialSeconds on activation.
func NewSurvivalTimer(initialSeconds int) *SurvivalTimer {
	return &SurvivalTimer{
		initial:   initialSeconds,
		remaining: initialSeconds,
		state:     TimerInactive,
	}
}

// Activate starts a countdown from the configured initial value.
func (t *SurvivalTimer) Activate() error {
	if t.state != TimerInactive {
		return fmt.Errorf("%w: activate while %s", ErrTimerState, t.state)
	}
	t.state = TimerActive
	t.remaining = t.initial
	t.epoch++
	return nil
}

// Tick removes one second. It reports true when the clock just expired.
func (t *SurvivalTimer) Tick() (bool, error) {
	if t.state != TimerActive {
		return false, fmt.Errorf("%w: tick while %s", ErrTimerState, t.state)
	}
	t.remaining--
	if t.remaining <= 0 {
		t.remaining = 0
		t.state = TimerExpired
		return true, nil
	}
	return false, nil
}

// Bonus adds seconds to an active clock. There is no upper bound.
func (t *SurvivalTimer) Bonus(seconds int) error {
	if t.state != TimerActive {
		return fmt.Errorf("%w: bonus while %s", ErrTimerState, t.state)
	}
	t.remaining += seconds
	return nil
}

// Deactivate stops the clock and rearms it at the initial value.
func (t *SurvivalTimer) Deactivate() error {
	if t.state == TimerInactive {
		return fmt.Errorf("%w: deactivate while inactive", ErrTimerState)
	}
	t.state = TimerInactive
	t.remaining = t.initial
	t.epoch++
	return nil
}

// State returns the lifecycle state.
func (t *SurvivalTimer) State() TimerState { return t.state }

// Remaining returns the seconds left.
func (t *SurvivalTimer) Remaining() int { return t.remaining }

// Initial returns the configured starting value.
func (t *SurvivalTimer) Initial() int { return t.initial }

// Epoch identifies the current activation.
func (t *SurvivalTimer) Epoch() uint64 { return t.epoch }
