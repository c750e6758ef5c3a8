package cascade

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kalambet/endpointd/internal/similarity"
)

// dataFileScoreFloor is the minimum whole-file similarity that counts as a
// data-file hit.
const dataFileScoreFloor = 0.2

// dataFileSnippetChars caps how much of a matched file is quoted back.
const dataFileSnippetChars = 600

// searchUploadedLines scans every file in the upload directories and
// collects lines containing the query as a substring. Unreadable files are
// skipped; an empty query matches nothing.
func (r *Responder) searchUploadedLines(q string) []string {
	if q == "" {
		return nil
	}
	var hits []string
	for _, dir := range r.opts.UploadDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			hits = append(hits, grepFile(filepath.Join(dir, e.Name()), q)...)
		}
	}
	return hits
}

func grepFile(path, q string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var hits []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(strings.ToLower(line), q) {
			hits = append(hits, strings.TrimSpace(line))
		}
	}
	return hits
}

// searchDataFiles scores the query against every .txt file in the data
// directory as a whole and quotes the head of the best match. The
// whole-file ratio is crude but catches runbooks whose body restates the
// question.
func (r *Responder) searchDataFiles(q string) (string, bool) {
	if q == "" || r.opts.DataDir == "" {
		return "", false
	}
	entries, err := os.ReadDir(r.opts.DataDir)
	if err != nil {
		return "", false
	}

	bestScore := 0.0
	bestName := ""
	bestText := ""
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".txt") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(r.opts.DataDir, e.Name()))
		if err != nil {
			continue
		}
		text := string(data)
		if s := similarity.Ratio(q, strings.ToLower(text)); s > bestScore {
			bestScore = s
			bestName = e.Name()
			bestText = text
		}
	}

	if bestName == "" || bestScore <= dataFileScoreFloor {
		return "", false
	}
	return fmt.Sprintf("From file %s (similarity=%.2f):\n%s", bestName, bestScore, headRunes(bestText, dataFileSnippetChars)), true
}

func headRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
