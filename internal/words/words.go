// internal/words/words.go
//
// Word bank for the quiz engine.
//
// Responsibilities:
//   - Load the {word, category, definition} corpus from a JSON file named by
//     WORDS_FILE or fall back to the embedded default (assets/words.json).
//   - Provide exclusion-aware uniform sampling (Bank.Sample) for round setup.
//   - Supply corpus stats (Len, Categories, DistinctDefinitions).
//
// Corpus format:
//   [
//     {"word": "Abscons", "category": "Adjectif", "definition": "Difficile à comprendre."},
//     ...
//   ]
//
// Constraints:
//   • Records with an empty word or definition are dropped while loading.
//   • Duplicate words are kept and treated as distinct draws.
//   • The bank is read-only once built and safe for concurrent use.

package words

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"math/big"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/robalobadob/motsrares/assets"
)

var (
	// ErrEmptyCorpus is returned when no usable record could be loaded.
	ErrEmptyCorpus = errors.New("words: corpus is empty")
	// ErrNoAlternative is returned by Sample when every entry shares the excluded word.
	ErrNoAlternative = errors.New("words: no entry with a different word")
)

// Entry is one immutable corpus record.
type Entry struct {
	Word       string `json:"word"`
	Category   string `json:"category"`
	Definition string `json:"definition"`
}

// Rand is the randomness source used for sampling and shuffling.
// *math/rand/v2.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

// cryptoRand draws from crypto/rand.
type cryptoRand struct{}

func (cryptoRand) IntN(n int) int {
	nBig, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic(fmt.Sprintf("words: crypto/rand failed: %v", err))
	}
	return int(nBig.Int64())
}

// CryptoRand returns a Rand backed by crypto/rand.
func CryptoRand() Rand { return cryptoRand{} }

// Bank is a read-only accessor over the corpus.
type Bank struct {
	entries []Entry

	mu  sync.Mutex // guards rng; math/rand sources are not goroutine safe
	rng Rand

	distinctWords int
	firstWord     string
}

// New builds a Bank over entries. A nil rng selects CryptoRand.
func New(entries []Entry, rng Rand) (*Bank, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyCorpus
	}
	if rng == nil {
		rng = CryptoRand()
	}
	b := &Bank{
		entries:   append([]Entry(nil), entries...),
		rng:       rng,
		firstWord: entries[0].Word,
	}
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		seen[e.Word] = struct{}{}
	}
	b.distinctWords = len(seen)
	return b, nil
}

// Load reads the corpus from path, or from the embedded default when path is empty.
func Load(path string) ([]Entry, error) {
	var (
		data []byte
		err  error
	)
	if path == "" {
		data, err = assets.WordsJSON()
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	return Parse(data)
}

// Parse decodes a JSON corpus, trimming fields and dropping unusable records.
func Parse(data []byte) ([]Entry, error) {
	var raw []Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode corpus: %w", err)
	}
	out := make([]Entry, 0, len(raw))
	for _, e := range raw {
		e.Word = strings.TrimSpace(e.Word)
		e.Category = strings.TrimSpace(e.Category)
		e.Definition = strings.TrimSpace(e.Definition)
		if e.Word == "" || e.Definition == "" {
			continue
		}
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil, ErrEmptyCorpus
	}
	return out, nil
}

// Sample returns a uniformly random entry. When exclude is non-nil the draw is
// repeated until its word differs from exclude.Word.
func (b *Bank) Sample(exclude *Entry) (Entry, error) {
	if len(b.entries) == 0 {
		return Entry{}, ErrEmptyCorpus
	}
	if exclude != nil && b.distinctWords == 1 && b.firstWord == exclude.Word {
		return Entry{}, ErrNoAlternative
	}
	for {
		e := b.entries[b.IntN(len(b.entries))]
		if exclude == nil || e.Word != exclude.Word {
			return e, nil
		}
	}
}

// IntN draws from the bank's randomness source under its lock.
func (b *Bank) IntN(n int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rng.IntN(n)
}

// All iterates over the entries in corpus order.
func (b *Bank) All() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, e := range b.entries {
			if !yield(e) {
				return
			}
		}
	}
}

// Len returns the number of entries.
func (b *Bank) Len() int { return len(b.entries) }

// At returns the entry at index i.
func (b *Bank) At(i int) Entry { return b.entries[i] }

// DistinctDefinitions counts unique definition texts.
func (b *Bank) DistinctDefinitions() int {
	seen := make(map[string]struct{}, len(b.entries))
	for _, e := range b.entries {
		seen[e.Definition] = struct{}{}
	}
	return len(seen)
}

// Categories returns the sorted set of categories present in the corpus.
func (b *Bank) Categories() []string {
	seen := make(map[string]struct{})
	for _, e := range b.entries {
		if e.Category != "" {
			seen[e.Category] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
