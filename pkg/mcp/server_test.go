package mcp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("expected content in result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return text.Text
}

func callTool(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	}
}

func TestMCPServer_ReadTasks(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tasks" {
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"tasks":[{"id":"t1","kind":"cpu","state":"running"}],"running":1}`)
			return
		}
		http.NotFound(w, r)
	}))
	defer ts.Close()

	s := NewServer(ts.URL, "test")
	result, err := s.handleReadTasks(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "loadsim://tasks"},
	})
	if err != nil {
		t.Fatalf("handleReadTasks failed: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("expected 1 resource content, got %d", len(result))
	}

	content, ok := result[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents")
	}
	if content.MIMEType != "application/json" {
		t.Errorf("expected application/json, got %s", content.MIMEType)
	}

	var list struct {
		Tasks   []map[string]any `json:"tasks"`
		Running int              `json:"running"`
	}
	if err := json.Unmarshal([]byte(content.Text), &list); err != nil {
		t.Fatalf("failed to parse result JSON: %v", err)
	}
	if len(list.Tasks) != 1 || list.Running != 1 {
		t.Errorf("unexpected task list: %+v", list)
	}
}

func TestMCPServer_Simulate(t *testing.T) {
	var gotPath, gotBody string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		io.WriteString(w, `{"message":"CPU simulation started: 90.0% for 00:10","status":"critical","duration":10,"taskId":"t-9"}`)
	}))
	defer ts.Close()

	s := NewServer(ts.URL, "test")
	result, err := s.handleSimulate("cpu")(context.Background(), callTool("simulate_cpu", map[string]any{
		"percentage": 90,
		"duration":   "00:10",
	}))
	if err != nil {
		t.Fatalf("handleSimulate failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got %s", toolText(t, result))
	}

	if gotPath != "/api/simulate/cpu" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if gotBody != `{"percentage":90,"duration":"00:10"}` {
		t.Errorf("unexpected body %s", gotBody)
	}
	if text := toolText(t, result); !strings.Contains(text, "Task: t-9") || !strings.Contains(text, "critical") {
		t.Errorf("unexpected text %q", text)
	}
}

func TestMCPServer_GenerateLogsError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":"Invalid log level"}`)
	}))
	defer ts.Close()

	s := NewServer(ts.URL, "test")
	result, err := s.handleGenerateLogs(context.Background(), callTool("generate_logs", map[string]any{"level": "TRACE"}))
	if err != nil {
		t.Fatalf("handleGenerateLogs failed: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected a tool error")
	}
	if text := toolText(t, result); !strings.Contains(text, "Invalid log level") {
		t.Errorf("unexpected text %q", text)
	}
}

func TestMCPServer_GenerateTrace(t *testing.T) {
	var gotBody string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		io.WriteString(w, `{"message":"Trace generated","traceId":"abc","spans":[{"spanId":"s1","service":"service-1","duration":0.5,"status":"success"}]}`)
	}))
	defer ts.Close()

	s := NewServer(ts.URL, "test")
	result, err := s.handleGenerateTrace(context.Background(), callTool("generate_trace", map[string]any{
		"services":   1,
		"error_rate": 0,
	}))
	if err != nil {
		t.Fatalf("handleGenerateTrace failed: %v", err)
	}
	if !strings.Contains(gotBody, `"errorRate":0`) {
		t.Errorf("explicit zero error rate not forwarded: %s", gotBody)
	}
	if text := toolText(t, result); !strings.Contains(text, "Trace abc") || !strings.Contains(text, "service-1") {
		t.Errorf("unexpected text %q", text)
	}
}

func TestMCPServer_CancelTask(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/api/tasks/t1" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, `{"id":"t1","state":"canceled"}`)
	}))
	defer ts.Close()

	s := NewServer(ts.URL, "test")
	result, err := s.handleCancelTask(context.Background(), callTool("cancel_task", map[string]any{"task_id": "t1"}))
	if err != nil {
		t.Fatalf("handleCancelTask failed: %v", err)
	}
	if text := toolText(t, result); text != "Task t1 is canceled" {
		t.Errorf("unexpected text %q", text)
	}

	result, _ = s.handleCancelTask(context.Background(), callTool("cancel_task", map[string]any{}))
	if !result.IsError {
		t.Error("expected error without task_id")
	}
}

func TestMCPServer_Prompt(t *testing.T) {
	s := NewServer("http://127.0.0.1:1", "test")

	req := mcp.GetPromptRequest{}
	req.Params.Name = "loadsim-aware"
	result, err := s.handleGetPrompt(context.Background(), req)
	if err != nil {
		t.Fatalf("handleGetPrompt failed: %v", err)
	}
	if len(result.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(result.Messages))
	}

	req.Params.Name = "other"
	if _, err := s.handleGetPrompt(context.Background(), req); err == nil {
		t.Error("expected error for unknown prompt")
	}
}
