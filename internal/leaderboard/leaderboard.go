// internal/leaderboard/leaderboard.go
//
// Persistent top-10 high-score table.
// Responsibilities:
//   - Loading the stored table once at startup (missing key = empty table).
//   - Deciding whether a final score qualifies for entry.
//   - Inserting a named entry, keeping the table sorted and capped, and
//     persisting the whole list before exposing it in memory.

package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/robalobadob/motsrares/internal/kv"
)

const (
	// Key is the store key the table is written under.
	Key = "leaderboard"
	// MaxEntries caps the table length.
	MaxEntries = 10
	// MaxNameLen is the longest accepted name, in runes.
	MaxNameLen = 20
)

var (
	ErrInvalidName = errors.New("invalid name")
	ErrPersistence = errors.New("leaderboard persistence failure")
	// ErrNotRanked is returned when a submitted score falls off the table.
	ErrNotRanked = errors.New("score not ranked")
)

// Entry is one row of the table. Date is YYYY-MM-DD.
type Entry struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
	Date  string `json:"date"`
}

// Board is the in-memory table backed by a kv.Store.
type Board struct {
	mu      sync.RWMutex
	store   kv.Store
	entries []Entry
}

// Load reads the table from store. A missing key yields an empty board.
// On any other failure the returned board is empty but usable and the
// error wraps ErrPersistence.
func Load(ctx context.Context, store kv.Store) (*Board, error) {
	b := &Board{store: store}

	raw, err := store.Get(ctx, Key)
	if errors.Is(err, kv.ErrNotFound) {
		return b, nil
	}
	if err != nil {
		return b, fmt.Errorf("%w: read: %w", ErrPersistence, err)
	}

	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return b, fmt.Errorf("%w: decode: %w", ErrPersistence, err)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}
	b.entries = entries
	return b, nil
}

// Qualifies reports whether score would enter the table.
func (b *Board) Qualifies(score int) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return qualifies(b.entries, score)
}

func qualifies(entries []Entry, score int) bool {
	if len(entries) < MaxEntries {
		return true
	}
	return score > entries[MaxEntries-1].Score
}

// NormalizeName trims name and caps it at MaxNameLen runes.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidName
	}
	if utf8.RuneCountInString(name) > MaxNameLen {
		name = strings.TrimSpace(string([]rune(name)[:MaxNameLen]))
	}
	return name, nil
}

// Submit inserts an entry and persists the table. rank is 1-based.
// Equal scores keep insertion order, so a new entry ranks below existing
// entries with the same score.
func (b *Board) Submit(ctx context.Context, name string, score int, date string) (int, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	next := make([]Entry, len(b.entries), len(b.entries)+1)
	copy(next, b.entries)
	next = append(next, Entry{Name: name, Score: score, Date: date})
	newIdx := len(next) - 1

	// Track the new entry through the sort by position in a parallel slice.
	order := make([]int, len(next))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return next[order[i]].Score > next[order[j]].Score })

	sorted := make([]Entry, 0, len(next))
	rank := 0
	for pos, idx := range order {
		if pos >= MaxEntries {
			break
		}
		sorted = append(sorted, next[idx])
		if idx == newIdx {
			rank = pos + 1
		}
	}
	if rank == 0 {
		return 0, ErrNotRanked
	}

	raw, err := json.Marshal(sorted)
	if err != nil {
		return 0, fmt.Errorf("%w: encode: %w", ErrPersistence, err)
	}
	if err := b.store.Put(ctx, Key, raw); err != nil {
		return 0, fmt.Errorf("%w: write: %w", ErrPersistence, err)
	}

	b.entries = sorted
	return rank, nil
}

// Entries returns a copy of the table, best first.
func (b *Board) Entries() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}
