// Package cascade decides which answer a question gets. Stages run in a
// fixed order and the first hit wins: uploaded files, the local documents
// directory, a domain gate, a hard-coded WiFi+VPN rule, the configured
// knowledge-base backend, the documents directory again, a static keyword
// table, and finally a generic fallback. Every stage swallows its own
// failures so a broken backend never takes the whole cascade down.
package cascade

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kalambet/endpointd/internal/kb"
	"github.com/kalambet/endpointd/internal/search"
)

// Answer is the cascade's response shape.
type Answer struct {
	Answer     string           `json:"answer"`
	Source     string           `json:"source"`
	Confidence float64          `json:"confidence"`
	Contexts   []search.Context `json:"contexts,omitempty"`
}

// Orchestrator is the knowledge-base search surface the cascade calls at
// its retrieval stage.
type Orchestrator interface {
	SearchKB(ctx context.Context, query string, where map[string]string, topK int) (*search.Result, error)
}

// Telemetry provides the device signals deep research folds in.
type Telemetry interface {
	RecentLogs(limit int) ([]kb.LogLine, error)
	LatestHealth() (*kb.DeviceHealth, error)
}

// Options locates the file-backed stages.
type Options struct {
	// UploadDirs are scanned line-by-line for exact substring hits.
	UploadDirs []string
	// DataDir holds the .txt runbooks matched by whole-file similarity.
	DataDir string
	// Static is the keyword table for the legacy JSON fallback.
	Static []StaticEntry
}

// Responder runs the decision cascade.
type Responder struct {
	log  *slog.Logger
	orch Orchestrator
	tel  Telemetry
	opts Options
}

func New(log *slog.Logger, orch Orchestrator, tel Telemetry, opts Options) *Responder {
	if log == nil {
		log = slog.Default()
	}
	return &Responder{log: log, orch: orch, tel: tel, opts: opts}
}

// domainKeywords gate the cascade: a question mentioning none of these is
// outside the endpoint-support demo domain and gets rejected outright.
var domainKeywords = []string{
	"wifi", "wi-fi", "wireless",
	"vpn", "tunnel", "remote access",
	"outlook", "email", "mail",
	"slow", "lag", "performance",
	"smart card", "piv", "badge",
	"endpoint", "device", "laptop",
	"automation", "patch", "health",
}

const domainFilterAnswer = "This demo assistant is focused on endpoint support " +
	"(WiFi, VPN, performance, Outlook, smart card, automation). " +
	"Your question doesn't look related to those topics."

const wifiVPNAnswer = "When WiFi drops only while VPN is connected, the usual causes are " +
	"unstable wireless signal, power-saving on the WiFi adapter, or " +
	"VPN keep-alive/timeouts.\n\n" +
	"Recommended steps:\n" +
	"1) Move closer to the access point or test another SSID.\n" +
	"2) Test on wired (no WiFi) to see if the issue is WiFi-specific.\n" +
	"3) Disable WiFi power-saving on the network adapter.\n" +
	"4) Reinstall or repair the VPN client/profile.\n" +
	"5) Capture exact time, device name, and VPN error messages for escalation."

const noAnswerFallback = "I'm not sure. Try rephrasing the question with more detail or " +
	"upload a related document to search within."

// Answer runs the cascade for one question.
func (r *Responder) Answer(ctx context.Context, question string) *Answer {
	q := strings.ToLower(strings.TrimSpace(question))

	// 1) uploaded files always win
	if lines := r.searchUploadedLines(q); len(lines) > 0 {
		r.log.Debug("cascade hit", "source", "uploaded-file", "lines", len(lines))
		return &Answer{
			Answer:     "Found in uploaded file:\n\n" + strings.Join(lines, "\n"),
			Source:     "uploaded-file",
			Confidence: 1.0,
		}
	}

	// 2) local documents directory
	if snippet, ok := r.searchDataFiles(q); ok {
		r.log.Debug("cascade hit", "source", "data-file")
		return &Answer{
			Answer:     "Found in data files:\n\n" + snippet,
			Source:     "data-file",
			Confidence: 0.9,
		}
	}

	// 3) domain gate: a miss here vetoes the rest of the cascade
	if !mentionsDomain(q) {
		return &Answer{Answer: domainFilterAnswer, Source: "domain-filter"}
	}

	// 4) WiFi dropping under VPN is common enough to hard-code
	if mentionsWiFi(q) && strings.Contains(q, "vpn") {
		r.log.Debug("cascade hit", "source", "rule-wifi-vpn")
		return &Answer{Answer: wifiVPNAnswer, Source: "rule-wifi-vpn", Confidence: 1.0}
	}

	// 5) configured knowledge-base backend
	if res, err := r.orch.SearchKB(ctx, q, nil, 0); err != nil {
		r.log.Warn("kb search failed", "error", err)
	} else if res.Answer != "" && res.Confidence >= 0.45 {
		r.log.Debug("cascade hit", "source", res.Source, "confidence", res.Confidence)
		ans := &Answer{Answer: res.Answer, Source: res.Source, Confidence: res.Confidence}
		if strings.HasPrefix(res.Source, "vector") {
			ans.Contexts = res.Contexts
		}
		return ans
	}

	// 6) documents directory again, this time below the KB in priority
	if snippet, ok := r.searchDataFiles(q); ok {
		r.log.Debug("cascade hit", "source", "files")
		return &Answer{Answer: snippet, Source: "files", Confidence: 0.4}
	}

	// 7) static keyword table
	if answer, ok := staticLookup(r.opts.Static, q); ok {
		r.log.Debug("cascade hit", "source", "kb-json")
		return &Answer{Answer: answer, Source: "kb-json", Confidence: 0.35}
	}

	// 8) out of ideas
	return &Answer{Answer: noAnswerFallback, Source: "none"}
}

func mentionsDomain(q string) bool {
	for _, kw := range domainKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

func mentionsWiFi(q string) bool {
	return strings.Contains(q, "wifi") || strings.Contains(q, "wi-fi") || strings.Contains(q, "wireless")
}
