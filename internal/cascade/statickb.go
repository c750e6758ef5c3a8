package cascade

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/kalambet/endpointd/internal/similarity"
)

// StaticEntry is one row of the legacy JSON keyword table.
type StaticEntry struct {
	Keywords []string `json:"keywords"`
	Answer   string   `json:"answer"`
}

// staticScoreFloor is the minimum keyword similarity for a kb-json hit.
const staticScoreFloor = 0.6

//go:embed kb.json
var defaultStaticJSON []byte

// DefaultStatic returns the built-in keyword table.
func DefaultStatic() []StaticEntry {
	var entries []StaticEntry
	// the embedded table is fixed at build time
	if err := json.Unmarshal(defaultStaticJSON, &entries); err != nil {
		panic(fmt.Sprintf("embedded kb.json is invalid: %v", err))
	}
	return entries
}

// LoadStatic reads a keyword table from path, falling back to the
// built-in table when path is empty.
func LoadStatic(path string) ([]StaticEntry, error) {
	if path == "" {
		return DefaultStatic(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading static kb %s: %w", path, err)
	}
	var entries []StaticEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing static kb %s: %w", path, err)
	}
	return entries, nil
}

// staticLookup returns the answer whose keyword best matches q, if the
// best score clears the floor.
func staticLookup(entries []StaticEntry, q string) (string, bool) {
	var best *StaticEntry
	bestScore := 0.0
	for i := range entries {
		for _, kw := range entries[i].Keywords {
			if s := similarity.Ratio(q, strings.ToLower(kw)); s > bestScore {
				bestScore = s
				best = &entries[i]
			}
		}
	}
	if best == nil || bestScore <= staticScoreFloor {
		return "", false
	}
	return best.Answer, true
}
