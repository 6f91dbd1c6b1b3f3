package game

// Score is the cumulative session score.
// Normal mode only ever adds; survival mode subtracts on a miss but never goes below zero.
type Score struct {
	value int
}

// Apply folds an outcome into the score under mode and returns the new value.
func (s *Score) Apply(o Outcome, mode Mode) int {
	switch {
	case o.Correct:
		s.value++
	case mode == ModeSurvival:
		s.value = max(0, s.value-1)
	}
	return s.value
}

// Reset zeroes the score.
func (s *Score) Reset() int {
	s.value = 0
	return 0
}

// Value returns the current score.
func (s *Score) Value() int { return s.value }
