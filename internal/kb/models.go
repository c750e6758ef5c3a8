package kb

import (
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Entry is one canned question/answer pair in the knowledge base.
// Keywords are extra match surface only; the answer is returned verbatim.
type Entry struct {
	ID       int64    `json:"id"`
	Category string   `json:"category"`
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Keywords []string `json:"keywords"`
}

// JoinKeywords renders keywords in their comma-delimited storage form.
func JoinKeywords(keywords []string) string {
	return strings.Join(keywords, ",")
}

// SplitKeywords parses the comma-delimited storage form, trimming each
// token and dropping empties.
func SplitKeywords(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, kw := range strings.Split(s, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// LogLine is one endpoint log entry, used by deep research.
type LogLine struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// DeviceHealth is one device health snapshot, used by deep research.
type DeviceHealth struct {
	ID       int64     `json:"id"`
	CPUUsage int       `json:"cpu_usage"`
	RAMUsage int       `json:"ram_usage"`
	Status   string    `json:"status"`
	Recorded time.Time `json:"timestamp"`
}
