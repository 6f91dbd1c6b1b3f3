// internal/game/engine.go
//
// Round engine for the definition quiz.
// Responsibilities:
//   - Build rounds: one target word plus three decoy definitions, shuffled.
//   - Evaluate answers exactly once per round (later submissions replay the first).
//
// Notes:
//   - Entries come from the words package; the engine never mutates them.
//   - The four offered definitions are always distinct texts.
//   - Shuffling uses the bank's randomness source (Fisher–Yates).
package game

import (
	"fmt"
	"slices"

	"github.com/robalobadob/motsrares/internal/words"
)

// Engine builds rounds from a word bank.
type Engine struct {
	bank *words.Bank
}

// NewEngine validates that bank can support rounds.
// A bank with fewer than ChoiceCount distinct definitions is rejected up front.
func NewEngine(bank *words.Bank) (*Engine, error) {
	if bank == nil || bank.Len() == 0 {
		return nil, words.ErrEmptyCorpus
	}
	if bank.DistinctDefinitions() < ChoiceCount {
		return nil, fmt.Errorf("%w: %d distinct definitions", ErrCorpusTooSmall, bank.DistinctDefinitions())
	}
	return &Engine{bank: bank}, nil
}

// Bank returns the engine's word bank.
func (e *Engine) Bank() *words.Bank { return e.bank }

// StartRound draws a target (different from previous, when given), three
// decoys and shuffles the four definitions.
func (e *Engine) StartRound(previous *words.Entry) (*Round, error) {
	target, err := e.bank.Sample(previous)
	if err != nil {
		return nil, fmt.Errorf("%w: draw target: %w", ErrCorpusTooSmall, err)
	}

	// Decoys come from other words with other definitions. Make sure enough
	// distinct texts pass both filters before rejection sampling.
	pool := make(map[string]struct{})
	for w := range e.bank.All() {
		if w.Word != target.Word && w.Definition != target.Definition {
			pool[w.Definition] = struct{}{}
		}
	}
	if len(pool) < ChoiceCount-1 {
		return nil, fmt.Errorf("%w: %d decoy definitions for %q", ErrCorpusTooSmall, len(pool), target.Word)
	}

	var choices [ChoiceCount]string
	choices[0] = target.Definition
	for n := 1; n < ChoiceCount; {
		d, err := e.bank.Sample(&target)
		if err != nil {
			return nil, fmt.Errorf("draw decoy: %w", err)
		}
		if slices.Contains(choices[:n], d.Definition) {
			continue
		}
		choices[n] = d.Definition
		n++
	}

	correct := 0
	for i := ChoiceCount - 1; i > 0; i-- {
		j := e.bank.IntN(i + 1)
		choices[i], choices[j] = choices[j], choices[i]
		switch correct {
		case i:
			correct = j
		case j:
			correct = i
		}
	}

	return &Round{
		Target:   target,
		Choices:  choices,
		Selected: NoSelection,
		correct:  correct,
	}, nil
}

// Round is one question: a target entry and its four definition choices.
type Round struct {
	Target   words.Entry
	Choices  [ChoiceCount]string
	Answered bool
	Selected int // NoSelection until answered

	correct int
	outcome Outcome
}

// CorrectIndex returns the position holding the target definition.
func (r *Round) CorrectIndex() int { return r.correct }

// Submit records the player's choice.
// The first submission wins: later calls return the first outcome with Replayed set.
func (r *Round) Submit(choice int) (Outcome, error) {
	if r.Answered {
		o := r.outcome
		o.Replayed = true
		return o, nil
	}
	if choice < 0 || choice >= ChoiceCount {
		return Outcome{}, fmt.Errorf("%w: %d", ErrInvalidChoice, choice)
	}
	r.Answered = true
	r.Selected = choice
	r.outcome = Outcome{
		Correct:      choice == r.correct,
		Selected:     choice,
		CorrectIndex: r.correct,
	}
	return r.outcome, nil
}

// View returns a display snapshot. Correctness is revealed only once answered.
func (r *Round) View() View {
	v := View{
		Word:     r.Target.Word,
		Category: r.Target.Category,
		Choices:  append([]string(nil), r.Choices[:]...),
		Answered: r.Answered,
	}
	if r.Answered {
		sel := r.Selected
		v.Selected = &sel
		v.Correct = make([]bool, ChoiceCount)
		v.Correct[r.correct] = true
	}
	return v
}
