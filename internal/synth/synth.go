// Package synth turns retrieved context into a triage answer by shelling
// out to a local assistant CLI. The CLI's output is returned verbatim;
// parsing or validating it is left to the caller's client.
package synth

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a single CLI invocation.
const DefaultTimeout = 120 * time.Second

// Context is one retrieved snippet handed to the synthesizer.
type Context struct {
	Text     string
	Metadata map[string]string
}

// BuildPrompt renders the triage prompt: the user question followed by an
// enumerated context block and instructions to answer as a JSON object.
func BuildPrompt(userQuery string, contexts []Context) string {
	var blocks []string
	for i, c := range contexts {
		header := strings.TrimSpace(fmt.Sprintf("#%d source=%s category=%s file=%s",
			i+1, metaOr(c.Metadata, "source", "?"), c.Metadata["category"], c.Metadata["filename"]))
		blocks = append(blocks, header+"\n"+c.Text+"\n")
	}
	ctxBlock := "(no context retrieved)"
	if len(blocks) > 0 {
		ctxBlock = strings.Join(blocks, "\n---\n")
	}

	return fmt.Sprintf(`You are an Endpoint Support Triage Assistant.

User question:
%s

Relevant context (top matches):
%s

Return ONLY a JSON object with keys:
- root_cause (string)
- next_actions (array of strings)
- followup_questions (array of strings)
- confidence (0 to 1)

Be concise and action-oriented.
`, userQuery, ctxBlock)
}

func metaOr(m map[string]string, key, fallback string) string {
	if v, ok := m[key]; ok && v != "" {
		return v
	}
	return fallback
}

// Synthesizer runs a local assistant binary with the prompt on stdin.
type Synthesizer struct {
	bin     string
	timeout time.Duration
}

// New returns a Synthesizer invoking bin. A zero timeout means
// DefaultTimeout.
func New(bin string, timeout time.Duration) *Synthesizer {
	if bin == "" {
		bin = "claude"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Synthesizer{bin: bin, timeout: timeout}
}

// Synthesize builds the triage prompt and runs the CLI. The raw stdout is
// returned when non-empty, stderr otherwise; a binary that produced no
// output at all yields an empty string. The exit code is deliberately
// ignored so a partial answer still reaches the user.
func (s *Synthesizer) Synthesize(ctx context.Context, userQuery string, contexts []Context) (string, error) {
	return s.run(ctx, BuildPrompt(userQuery, contexts))
}

func (s *Synthesizer) run(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.bin)
	cmd.Stdin = strings.NewReader(prompt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return "", fmt.Errorf("running %s: %w", s.bin, ctx.Err())
	}
	if _, ok := err.(*exec.ExitError); err != nil && !ok {
		return "", fmt.Errorf("running %s: %w", s.bin, err)
	}

	if out := strings.TrimSpace(stdout.String()); out != "" {
		return out, nil
	}
	return strings.TrimSpace(stderr.String()), nil
}
