package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestAskRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /ask": `{"answer":"Reconnect the VPN.","source":"rule","confidence":1.0}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/ask", map[string]string{"question": "wifi drops when vpn connects"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var answer struct {
		Answer     string  `json:"answer"`
		Source     string  `json:"source"`
		Confidence float64 `json:"confidence"`
	}
	if err := decodeJSON(resp, &answer); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if answer.Source != "rule" {
		t.Errorf("source = %q, want rule", answer.Source)
	}
	if answer.Confidence != 1.0 {
		t.Errorf("confidence = %f, want 1.0", answer.Confidence)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}

	r := ts.requests[0]
	if r.Method != "POST" || r.Path != "/ask" {
		t.Errorf("request = %s %s, want POST /ask", r.Method, r.Path)
	}

	var body map[string]string
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["question"] != "wifi drops when vpn connects" {
		t.Errorf("body.question = %q", body["question"])
	}
}

func TestResearchRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /deep-research": `{"answer":"Probable causes:\n- unstable WiFi","source":"deep-research","kb_used":true,"file_used":false,"health_used":true,"logs_used":false}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/deep-research", map[string]string{"question": "vpn keeps dropping"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		Source     string `json:"source"`
		KBUsed     bool   `json:"kb_used"`
		HealthUsed bool   `json:"health_used"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if result.Source != "deep-research" {
		t.Errorf("source = %q, want deep-research", result.Source)
	}
	if !result.KBUsed || !result.HealthUsed {
		t.Errorf("signals = kb:%v health:%v, want both true", result.KBUsed, result.HealthUsed)
	}
}

func TestIndexSQLiteSummary(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /vector/index/sqlite": `{"ok":true,"result":{"kb_rows":6,"indexed_chunks":6,"collection":"endpoint_kb","vector_dir":"/tmp/vectors"}}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/vector/index/sqlite", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		OK     bool `json:"ok"`
		Result struct {
			KBRows        int    `json:"kb_rows"`
			IndexedChunks int    `json:"indexed_chunks"`
			Collection    string `json:"collection"`
		} `json:"result"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if !result.OK {
		t.Error("ok = false, want true")
	}
	if result.Result.KBRows != 6 || result.Result.IndexedChunks != 6 {
		t.Errorf("summary = %+v", result.Result)
	}
	if result.Result.Collection != "endpoint_kb" {
		t.Errorf("collection = %q, want endpoint_kb", result.Result.Collection)
	}
}

func TestIndexCommand_UnknownTarget(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"index", "bogus"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for unknown index target")
	}
	if !strings.Contains(err.Error(), "unknown index target") {
		t.Errorf("error = %q, want it to mention 'unknown index target'", err.Error())
	}
}

func TestStatusCommand_Stopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	client := ts.client()
	_, err := client.get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(400)
		w.Write([]byte(`{"error":{"message":"question is required","type":"invalid_request_error"}}`))
	}))
	defer ts.Close()

	client := &apiClient{
		baseURL:    ts.URL,
		httpClient: ts.Client(),
	}

	resp, err := client.post(ctx, "/ask", map[string]string{})
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var result any
	err = decodeJSON(resp, &result)
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("error = %q, want it to contain '400'", err.Error())
	}
	if !strings.Contains(err.Error(), "question is required") {
		t.Errorf("error = %q, want it to include the server message", err.Error())
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestPIDFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := pidFilePath(filepath.Join(dir, "data"))

	if _, err := readPIDFile(path); err == nil {
		t.Fatal("expected error reading missing PID file")
	}

	if err := writePIDFile(path); err != nil {
		t.Fatalf("write error: %v", err)
	}

	pid, err := readPIDFile(path)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}

	removePIDFile(path)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected PID file to be removed")
	}
}
