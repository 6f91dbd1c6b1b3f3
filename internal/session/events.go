package session

import (
	"github.com/robalobadob/motsrares/internal/game"
	"github.com/robalobadob/motsrares/internal/leaderboard"
)

// EventType names a controller notification.
type EventType string

const (
	EventRound              EventType = "round"
	EventAnswer             EventType = "answer"
	EventScore              EventType = "score"
	EventMode               EventType = "mode"
	EventTick               EventType = "tick"
	EventSessionEnded       EventType = "session_ended"
	EventLeaderboardUpdated EventType = "leaderboard_updated"
	EventError              EventType = "error"
)

// Event is pushed to subscribers after each state change.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

type ScorePayload struct {
	Score int `json:"score"`
}

type ModePayload struct {
	Mode game.Mode `json:"mode"`
}

// TimerView is the clock as seen by clients.
type TimerView struct {
	State     game.TimerState `json:"state"`
	Remaining int             `json:"remaining"`
	Initial   int             `json:"initial"`
}

// SessionEnded carries the score captured at the moment the clock expired.
type SessionEnded struct {
	Score     int  `json:"score"`
	Qualifies bool `json:"qualifies"`
}

type LeaderboardUpdate struct {
	Rank    int                 `json:"rank"`
	Entries []leaderboard.Entry `json:"entries"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}
