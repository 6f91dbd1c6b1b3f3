// internal/game/types.go
//
// Core type definitions for the quiz engine.
// Defines:
//   - Mode: normal vs. survival scoring rules.
//   - Outcome: result of submitting an answer to a round.
//   - View: the read-only round snapshot handed to UI layers.
//   - Sentinel errors shared by the engine, score and clock.

package game

import "errors"

// ChoiceCount is the number of definitions offered per round.
const ChoiceCount = 4

// NoSelection marks a round that has not been answered yet.
const NoSelection = -1

// Mode selects the scoring rules applied to an outcome.
type Mode string

const (
	ModeNormal   Mode = "normal"
	ModeSurvival Mode = "survival"
)

var (
	// ErrInvalidChoice is returned for a choice index outside [0, ChoiceCount).
	ErrInvalidChoice = errors.New("game: invalid choice")
	// ErrCorpusTooSmall is returned when the bank cannot supply a target and three decoys.
	ErrCorpusTooSmall = errors.New("game: corpus too small for a round")
	// ErrTimerState is returned for a clock operation not valid in the current state.
	ErrTimerState = errors.New("game: invalid timer state")
)

// Outcome is the result of an answer submission.
type Outcome struct {
	Correct      bool `json:"correct"`
	Selected     int  `json:"selected"`
	CorrectIndex int  `json:"correctIndex"`
	// Replayed is set when the round had already been answered; the other
	// fields then describe the first submission.
	Replayed bool `json:"replayed,omitempty"`
}

// View is a snapshot of a round for display.
type View struct {
	Word     string   `json:"word"`
	Category string   `json:"category"`
	Choices  []string `json:"choices"`
	Answered bool     `json:"answered"`
	Selected *int     `json:"selected,omitempty"`
	// Correct flags each choice once the round is answered.
	Correct []bool `json:"correct,omitempty"`
}
