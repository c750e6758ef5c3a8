package cascade

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kalambet/endpointd/internal/kb"
)

// ResearchAnswer is the deep-research response shape. The *_used flags
// report which signal sources contributed to the write-up.
type ResearchAnswer struct {
	Answer     string `json:"answer"`
	Source     string `json:"source"`
	KBUsed     bool   `json:"kb_used"`
	FileUsed   bool   `json:"file_used"`
	HealthUsed bool   `json:"health_used"`
	LogsUsed   bool   `json:"logs_used"`
}

// researchKBFloor is the lower confidence bar for folding a KB answer into
// deep research; weaker matches still help as supporting context here.
const researchKBFloor = 0.3

// DeepResearch combines the knowledge base, local documents, device health
// and recent logs into one triage write-up. Each signal source is optional
// and failures are logged, never fatal.
func (r *Responder) DeepResearch(ctx context.Context, question string) *ResearchAnswer {
	q := strings.ToLower(strings.TrimSpace(question))

	var kbAnswer string
	var kbCategory string
	if res, err := r.orch.SearchKB(ctx, q, nil, 5); err != nil {
		r.log.Warn("deep research kb search failed", "error", err)
	} else if res.Answer != "" && res.Confidence >= researchKBFloor {
		kbAnswer = res.Answer
		if len(res.Contexts) > 0 {
			kbCategory = res.Contexts[0].Metadata["category"]
		}
	}

	fileSnippet, fileUsed := r.searchDataFiles(q)

	var health *kb.DeviceHealth
	var logs []kb.LogLine
	if r.tel != nil {
		var err error
		health, err = r.tel.LatestHealth()
		if err != nil && !errors.Is(err, kb.ErrNotFound) {
			r.log.Warn("deep research health lookup failed", "error", err)
		}
		logs, err = r.tel.RecentLogs(3)
		if err != nil {
			r.log.Warn("deep research log lookup failed", "error", err)
		}
	}

	var causes, recommended, supporting []string
	if kbAnswer != "" {
		causes = append(causes, "Known pattern matched in endpoint KB.")
		recommended = append(recommended, "Follow the standard steps from the KB response.")
		supporting = append(supporting, "KB category: "+kbCategory)
	}
	if fileUsed {
		causes = append(causes, "User question appears in historical docs or runbooks.")
		supporting = append(supporting, "Document snippet:\n"+fileSnippet)
	}
	if health != nil {
		supporting = append(supporting, fmt.Sprintf("Latest device health: CPU %d%%, RAM %d%%, status=%s.",
			health.CPUUsage, health.RAMUsage, health.Status))
		if health.CPUUsage > 80 || health.RAMUsage > 80 {
			causes = append(causes, "High resource usage on the device.")
			recommended = append(recommended, "Close heavy apps, reboot, and re-test after load drops.")
		}
	}
	if len(logs) > 0 {
		supporting = append(supporting, "Recent endpoint log: "+logs[0].Text)
	}

	if len(causes) == 0 {
		causes = append(causes, "No strong signals found; issue may be intermittent or outside endpoint scope.")
		recommended = append(recommended, "Gather more details (time, app, network) and escalate to L2 support.")
	}
	if len(recommended) == 0 {
		recommended = append(recommended, "Collect more diagnostics and escalate.")
	}
	if len(supporting) == 0 {
		supporting = append(supporting, "No additional signals found.")
	}

	summary := "Deep research completed across the local KB, logs, health data, documents, and attached Drive/local files."
	switch {
	case strings.Contains(q, "vpn"):
		summary = "Deep research indicates this is likely a VPN connectivity or configuration issue."
	case strings.Contains(q, "wifi") || strings.Contains(q, "wireless"):
		summary = "Deep research suggests unstable WiFi or local network conditions."
	case strings.Contains(q, "slow") || strings.Contains(q, "performance"):
		summary = "Deep research points to device performance and resource usage as likely contributors."
	}

	var sb strings.Builder
	sb.WriteString(summary)
	sb.WriteString("\n\nProbable causes:\n- ")
	sb.WriteString(strings.Join(causes, "\n- "))
	sb.WriteString("\n\nRecommended actions:\n- ")
	sb.WriteString(strings.Join(recommended, "\n- "))
	sb.WriteString("\n\nSupporting signals:\n- ")
	sb.WriteString(strings.Join(supporting, "\n- "))

	return &ResearchAnswer{
		Answer:     sb.String(),
		Source:     "deep-research",
		KBUsed:     kbAnswer != "",
		FileUsed:   fileUsed,
		HealthUsed: health != nil,
		LogsUsed:   len(logs) > 0,
	}
}
