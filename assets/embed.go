// assets/embed.go
//
// Embedded default word corpus. The server falls back to this file when
// WORDS_FILE is not configured.

package assets

import (
	"embed"
	"io"
)

//go:embed words.json
var FS embed.FS

// WordsJSON returns the raw embedded corpus (JSON array of records).
func WordsJSON() ([]byte, error) {
	f, err := FS.Open("words.json")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
