// Package api exposes the helpdesk over HTTP: question answering, file
// upload and file-scoped search, knowledge-base administration, and the
// vector ingestion endpoints.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/endpointd/internal/cascade"
	"github.com/kalambet/endpointd/internal/kb"
	"github.com/kalambet/endpointd/internal/search"
)

const maxRequestBodySize = 1 << 20 // 1MB
const maxUploadSize = 10 << 20     // 10MB

// Asker answers questions through the decision cascade.
type Asker interface {
	Answer(ctx context.Context, question string) *cascade.Answer
	DeepResearch(ctx context.Context, question string) *cascade.ResearchAnswer
}

// Indexer populates the vector index.
type Indexer interface {
	IndexFromKB(ctx context.Context) (*search.KBIndexSummary, error)
	IndexFromDir(ctx context.Context, dir string) (*search.DirIndexSummary, error)
}

// KBAdmin is the direct knowledge-base surface behind /db.
type KBAdmin interface {
	FuzzySearch(query string) (*kb.Entry, float64, error)
	Insert(category, question, answer string, keywords []string) (int64, error)
}

// Deps holds everything the handlers dispatch to.
type Deps struct {
	Asker   Asker
	Indexer Indexer
	KB      KBAdmin
	// UploadDir receives files posted to /upload.
	UploadDir string
	// IndexDirs are what /vector/index/uploads walks (the upload dir plus
	// any attached document directories).
	IndexDirs []string
	// DataDir is checked by /drive-attach.
	DataDir string
}

// NewHandler builds the HTTP routing table.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(cors)

	r.Get("/health", handleHealth)
	r.Post("/ask", handleAsk(deps))
	r.Post("/deep-research", handleDeepResearch(deps))
	r.Post("/upload", handleUpload(deps))
	r.Post("/drive-attach", handleDriveAttach(deps))
	r.Post("/search-file", handleSearchFile(deps))
	r.Post("/db/search", handleDBSearch(deps))
	r.Post("/db/add-kb", handleDBAddKB(deps))
	r.Post("/vector/index/sqlite", handleIndexSQLite(deps))
	r.Post("/vector/index/uploads", handleIndexUploads(deps))

	return r
}

// cors allows browser clients from any origin. OPTIONS preflights are
// answered here, before routing, so every endpoint gets them for free.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type askRequest struct {
	Question string `json:"question"`
}

func handleAsk(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req askRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Question == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question is required")
			return
		}
		writeJSON(w, deps.Asker.Answer(r.Context(), req.Question))
	}
}

func handleDeepResearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req askRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Question == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question is required")
			return
		}
		writeJSON(w, deps.Asker.DeepResearch(r.Context(), req.Question))
	}
}

func handleDBSearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query string `json:"query"`
		}
		if !decodeBody(w, r, &req) {
			return
		}

		entry, score, err := deps.KB.FuzzySearch(req.Query)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "kb search failed: %v", err)
			return
		}
		if entry != nil && score > 0.35 {
			writeJSON(w, map[string]any{
				"source":     "database",
				"answer":     entry.Answer,
				"question":   entry.Question,
				"category":   entry.Category,
				"confidence": score,
			})
			return
		}
		writeJSON(w, map[string]any{
			"source":     "database",
			"answer":     nil,
			"confidence": score,
		})
	}
}

func handleDBAddKB(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Category string `json:"category"`
			Question string `json:"question"`
			Answer   string `json:"answer"`
			Keywords string `json:"keywords"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Category == "" {
			req.Category = "general"
		}

		if _, err := deps.KB.Insert(req.Category, req.Question, req.Answer, kb.SplitKeywords(req.Keywords)); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "kb insert failed: %v", err)
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	}
}

func handleIndexSQLite(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := deps.Indexer.IndexFromKB(r.Context())
		if err != nil {
			writeJSONStatus(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		writeJSON(w, map[string]any{"ok": true, "result": summary})
	}
}

func handleIndexUploads(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := make([]*search.DirIndexSummary, 0, len(deps.IndexDirs))
		for _, dir := range deps.IndexDirs {
			summary, err := deps.Indexer.IndexFromDir(r.Context(), dir)
			if err != nil {
				writeJSONStatus(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
				return
			}
			results = append(results, summary)
		}
		writeJSON(w, map[string]any{"ok": true, "results": results})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
