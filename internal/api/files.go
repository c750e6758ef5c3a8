package api

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kalambet/endpointd/internal/extract"
	"github.com/kalambet/endpointd/internal/similarity"
)

var wordRe = regexp.MustCompile(`\w+`)

func handleUpload(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		defer r.Body.Close()

		file, header, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "no file uploaded")
			return
		}
		defer file.Close()

		if err := os.MkdirAll(deps.UploadDir, 0o755); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "creating upload dir: %v", err)
			return
		}

		// Base strips any path components a client smuggles into the name.
		name := filepath.Base(header.Filename)
		savePath := filepath.Join(deps.UploadDir, name)
		dst, err := os.Create(savePath)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "saving file: %v", err)
			return
		}
		defer dst.Close()
		if _, err := io.Copy(dst, file); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "saving file: %v", err)
			return
		}

		writeJSON(w, map[string]string{
			"message":  "uploaded",
			"filename": name,
			"path":     savePath,
		})
	}
}

func handleDriveAttach(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Filename string `json:"filename"`
		}
		if !decodeBody(w, r, &req) {
			return
		}

		name := filepath.Base(strings.TrimSpace(req.Filename))
		path := filepath.Join(deps.DataDir, name)
		if _, err := os.Stat(path); err != nil {
			writeJSONStatus(w, http.StatusNotFound, map[string]string{
				"error": "file not found",
				"path":  path,
			})
			return
		}
		writeJSON(w, map[string]string{"path": path, "filename": name})
	}
}

func handleSearchFile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Path  string `json:"path"`
			Query string `json:"query"`
		}
		if !decodeBody(w, r, &req) {
			return
		}

		query := strings.ToLower(strings.TrimSpace(req.Query))
		if req.Path == "" {
			writeJSONStatus(w, http.StatusNotFound, map[string]string{"error": "file not found"})
			return
		}
		if _, err := os.Stat(req.Path); err != nil {
			writeJSONStatus(w, http.StatusNotFound, map[string]string{"error": "file not found"})
			return
		}
		if query == "" {
			writeJSONStatus(w, http.StatusBadRequest, map[string]string{"error": "empty query"})
			return
		}

		text, err := extract.Text(req.Path)
		text = strings.ToLower(text)
		if err != nil || text == "" {
			writeJSONStatus(w, http.StatusBadRequest, map[string]string{"error": "file unreadable or empty"})
			return
		}

		if strings.Contains(text, query) {
			writeJSON(w, map[string]string{
				"result": fmt.Sprintf("Exact match for %q found in file.", query),
			})
			return
		}

		// No exact hit: report the single closest word in the file.
		best := ""
		bestScore := 0.0
		for _, word := range wordRe.FindAllString(text, -1) {
			if s := similarity.Ratio(query, word); s > bestScore {
				bestScore = s
				best = word
			}
		}
		writeJSON(w, map[string]any{
			"result":        "No exact match",
			"closest_match": best,
			"score":         bestScore,
		})
	}
}
