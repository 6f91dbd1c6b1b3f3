// internal/session/session.go
//
// Session controller: one player's quiz state.
// Responsibilities:
//   - Owning the current round, the score, the mode and the survival clock.
//   - Serialising every mutation behind one mutex (the single logical actor).
//   - Driving the survival clock from a cancellable scheduled tick.
//   - Ending a survival session at expiry and collecting a leaderboard name.
//   - Fanning events out to subscribers after the lock is released, in the
//     order the state changes happened.

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/motsrares/internal/daily"
	"github.com/robalobadob/motsrares/internal/game"
	"github.com/robalobadob/motsrares/internal/leaderboard"
	"github.com/robalobadob/motsrares/internal/words"
)

var (
	ErrNoRound        = errors.New("session: no round in progress")
	ErrNoPendingEntry = errors.New("session: no pending leaderboard entry")
	ErrClosed         = errors.New("session: closed")
)

const (
	subscriberBuffer = 32
	persistTimeout   = 5 * time.Second
)

// Options tune a controller. Zero fields take the defaults used by the server.
type Options struct {
	ID             string
	InitialSeconds int
	BonusSeconds   int
	TickInterval   time.Duration
	Scheduler      Scheduler
	Now            func() time.Time
}

func (o *Options) applyDefaults() {
	if o.InitialSeconds <= 0 {
		o.InitialSeconds = 15
	}
	if o.BonusSeconds < 0 {
		o.BonusSeconds = 0
	}
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	if o.Scheduler == nil {
		o.Scheduler = TickerScheduler()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// PendingEntry is a qualifying final score waiting for the player's name.
type PendingEntry struct {
	Score int    `json:"score"`
	Date  string `json:"date"`
}

// State is a snapshot of the controller for clients.
type State struct {
	ID           string        `json:"id"`
	Round        *game.View    `json:"round,omitempty"`
	Score        int           `json:"score"`
	Mode         game.Mode     `json:"mode"`
	Timer        TimerView     `json:"timer"`
	PendingEntry *PendingEntry `json:"pendingEntry,omitempty"`
}

// Controller composes the round engine, score, clock and leaderboard.
type Controller struct {
	opts   Options
	engine *game.Engine
	board  *leaderboard.Board

	// emitMu is taken before mu and held until a mutation's events are sent.
	emitMu sync.Mutex

	mu       sync.Mutex
	round    *game.Round
	score    game.Score
	mode     game.Mode
	timer    *game.SurvivalTimer
	stopTick func()
	pending  *PendingEntry
	closed   bool

	// submitMu serialises name submissions so one pending entry is written once.
	submitMu sync.Mutex

	subsMu sync.Mutex
	subs   map[chan Event]struct{}
}

// New returns a controller in normal mode with no round started.
func New(engine *game.Engine, board *leaderboard.Board, opts Options) *Controller {
	opts.applyDefaults()
	return &Controller{
		opts:   opts,
		engine: engine,
		board:  board,
		mode:   game.ModeNormal,
		timer:  game.NewSurvivalTimer(opts.InitialSeconds),
		subs:   make(map[chan Event]struct{}),
	}
}

// ID returns the identifier given in Options.
func (c *Controller) ID() string { return c.opts.ID }

// NewRound starts a round whose target differs from the previous one.
func (c *Controller) NewRound() (game.View, error) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return game.View{}, ErrClosed
	}
	var previous *words.Entry
	if c.round != nil {
		target := c.round.Target
		previous = &target
	}
	r, err := c.engine.StartRound(previous)
	if err != nil {
		c.mu.Unlock()
		return game.View{}, fmt.Errorf("start round: %w", err)
	}
	c.round = r
	view := r.View()
	c.mu.Unlock()

	c.emit(Event{Type: EventRound, Payload: view})
	return view, nil
}

// SelectAnswer submits choice for the current round. A repeated submission
// returns the first outcome and changes nothing.
func (c *Controller) SelectAnswer(choice int) (game.Outcome, error) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return game.Outcome{}, ErrClosed
	}
	if c.round == nil {
		c.mu.Unlock()
		return game.Outcome{}, ErrNoRound
	}
	out, err := c.round.Submit(choice)
	if err != nil {
		c.mu.Unlock()
		return game.Outcome{}, err
	}

	events := []Event{{Type: EventAnswer, Payload: out}}
	if !out.Replayed {
		score := c.score.Apply(out, c.mode)
		events = append(events, Event{Type: EventScore, Payload: ScorePayload{Score: score}})
		if out.Correct && c.mode == game.ModeSurvival {
			if err := c.timer.Bonus(c.opts.BonusSeconds); err == nil {
				events = append(events, Event{Type: EventTick, Payload: c.timerViewLocked()})
			}
		}
	}
	c.mu.Unlock()

	c.emit(events...)
	return out, nil
}

// ToggleSurvival flips between normal and survival mode. Either direction
// resets the score and the clock. Entering survival starts the countdown.
func (c *Controller) ToggleSurvival() (game.Mode, error) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}

	c.cancelTickLocked()
	if c.timer.State() != game.TimerInactive {
		_ = c.timer.Deactivate()
	}
	c.score.Reset()

	if c.mode == game.ModeSurvival {
		c.mode = game.ModeNormal
	} else {
		c.mode = game.ModeSurvival
		if err := c.timer.Activate(); err != nil {
			c.mode = game.ModeNormal
			c.mu.Unlock()
			return "", err
		}
		c.armTickLocked()
	}
	mode := c.mode
	events := []Event{
		{Type: EventMode, Payload: ModePayload{Mode: mode}},
		{Type: EventScore, Payload: ScorePayload{Score: 0}},
		{Type: EventTick, Payload: c.timerViewLocked()},
	}
	c.mu.Unlock()

	log.Debug().Str("session", c.opts.ID).Str("mode", string(mode)).Msg("mode toggled")
	c.emit(events...)
	return mode, nil
}

// TickClock removes one second from the survival clock now.
// It fails with game.ErrTimerState outside survival mode.
func (c *Controller) TickClock() (TimerView, error) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return TimerView{}, ErrClosed
	}
	events, err := c.tickLocked()
	view := c.timerViewLocked()
	c.mu.Unlock()
	if err != nil {
		return view, err
	}

	c.emit(events...)
	return view, nil
}

// scheduledTick is the scheduler callback. Ticks armed for an earlier
// activation are dropped.
func (c *Controller) scheduledTick(epoch uint64) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.mu.Lock()
	if c.closed || c.timer.Epoch() != epoch || c.timer.State() != game.TimerActive {
		c.mu.Unlock()
		return
	}
	events, _ := c.tickLocked()
	c.mu.Unlock()

	c.emit(events...)
}

func (c *Controller) tickLocked() ([]Event, error) {
	expired, err := c.timer.Tick()
	if err != nil {
		return nil, err
	}
	events := []Event{{Type: EventTick, Payload: c.timerViewLocked()}}
	if expired {
		events = append(events, c.endSessionLocked()...)
	}
	return events, nil
}

// endSessionLocked runs at expiry. The score is captured before anything is reset.
func (c *Controller) endSessionLocked() []Event {
	final := c.score.Value()

	c.cancelTickLocked()
	_ = c.timer.Deactivate()
	c.mode = game.ModeNormal
	c.score.Reset()

	// A run that does not qualify leaves an earlier unclaimed entry pending.
	qualifies := c.board.Qualifies(final)
	if qualifies {
		c.pending = &PendingEntry{Score: final, Date: daily.DateKey(c.opts.Now())}
	}

	log.Info().
		Str("session", c.opts.ID).
		Int("score", final).
		Bool("qualifies", qualifies).
		Msg("survival session ended")

	return []Event{
		{Type: EventSessionEnded, Payload: SessionEnded{Score: final, Qualifies: qualifies}},
		{Type: EventMode, Payload: ModePayload{Mode: game.ModeNormal}},
		{Type: EventScore, Payload: ScorePayload{Score: 0}},
		{Type: EventTick, Payload: c.timerViewLocked()},
	}
}

func (c *Controller) armTickLocked() {
	epoch := c.timer.Epoch()
	c.stopTick = c.opts.Scheduler.Every(c.opts.TickInterval, func() { c.scheduledTick(epoch) })
}

func (c *Controller) cancelTickLocked() {
	if c.stopTick != nil {
		c.stopTick()
		c.stopTick = nil
	}
}

func (c *Controller) timerViewLocked() TimerView {
	return TimerView{
		State:     c.timer.State(),
		Remaining: c.timer.Remaining(),
		Initial:   c.timer.Initial(),
	}
}

// SubmitName records the pending final score under name and returns its rank.
// An invalid name or a failed write keeps the entry pending so the player
// can retry. A score pushed off the table clears it.
func (c *Controller) SubmitName(ctx context.Context, name string) (int, error) {
	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrClosed
	}
	p := c.pending
	c.mu.Unlock()
	if p == nil {
		return 0, ErrNoPendingEntry
	}

	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	rank, err := c.board.Submit(ctx, name, p.Score, p.Date)
	switch {
	case errors.Is(err, leaderboard.ErrInvalidName):
		return 0, err
	case errors.Is(err, leaderboard.ErrNotRanked):
		c.clearPending(p)
		c.send(Event{Type: EventError, Payload: ErrorPayload{Error: err.Error()}})
		return 0, err
	case err != nil:
		log.Error().Err(err).Str("session", c.opts.ID).Msg("leaderboard write failed")
		c.send(Event{Type: EventError, Payload: ErrorPayload{Error: err.Error()}})
		return 0, err
	}

	c.clearPending(p)
	log.Info().Str("session", c.opts.ID).Int("score", p.Score).Int("rank", rank).Msg("leaderboard entry added")
	c.send(Event{Type: EventLeaderboardUpdated, Payload: LeaderboardUpdate{Rank: rank, Entries: c.board.Entries()}})
	return rank, nil
}

// DismissNameEntry drops the pending entry without writing it.
func (c *Controller) DismissNameEntry() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return ErrNoPendingEntry
	}
	c.pending = nil
	return nil
}

// clearPending removes p unless a newer entry has replaced it.
func (c *Controller) clearPending(p *PendingEntry) {
	c.mu.Lock()
	if c.pending == p {
		c.pending = nil
	}
	c.mu.Unlock()
}

// State returns a snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := State{
		ID:    c.opts.ID,
		Score: c.score.Value(),
		Mode:  c.mode,
		Timer: c.timerViewLocked(),
	}
	if c.round != nil {
		v := c.round.View()
		st.Round = &v
	}
	if c.pending != nil {
		p := *c.pending
		st.PendingEntry = &p
	}
	return st
}

// Subscribe returns a channel of events and a func that ends the subscription.
// A subscriber that falls behind misses events rather than blocking the controller.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	c.subsMu.Lock()
	if c.subs == nil {
		c.subsMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	c.subs[ch] = struct{}{}
	c.subsMu.Unlock()

	return ch, func() {
		c.subsMu.Lock()
		defer c.subsMu.Unlock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
	}
}

// send emits events that were not built under mu.
func (c *Controller) send(events ...Event) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.emit(events...)
}

// emit requires emitMu.
func (c *Controller) emit(events ...Event) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for ch := range c.subs {
		for _, ev := range events {
			select {
			case ch <- ev:
			default:
				log.Warn().Str("session", c.opts.ID).Str("event", string(ev.Type)).Msg("subscriber buffer full, dropping event")
			}
		}
	}
}

// Close stops the clock and ends all subscriptions. No tick fires afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.cancelTickLocked()
	c.mu.Unlock()

	c.subsMu.Lock()
	for ch := range c.subs {
		close(ch)
	}
	c.subs = nil
	c.subsMu.Unlock()
}
