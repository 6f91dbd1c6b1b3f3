// Package daily derives date-stable values: the YYYY-MM-DD key stamped on
// leaderboard entries and the deterministic "word of the day".
package daily

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"time"

	"github.com/robalobadob/motsrares/internal/words"
)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// WordIndex returns HMAC(salt, YYYY-MM-DD) mod n, or 0 when n <= 0.
func WordIndex(date time.Time, salt string, n int) int {
	if n <= 0 {
		return 0
	}
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(DateKey(date)))
	sum := h.Sum(nil)
	v := binary.BigEndian.Uint64(sum[:8])
	return int(v % uint64(n))
}

// WordOf picks the bank entry for date. Everyone sharing a salt sees the same word.
func WordOf(bank *words.Bank, date time.Time, salt string) words.Entry {
	return bank.At(WordIndex(date, salt, bank.Len()))
}
