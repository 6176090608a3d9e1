package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rmax-ai/loadsim/pkg/client"
)

// Server exposes the loadsim API as Model Context Protocol tools.
type Server struct {
	mcpServer *server.MCPServer
	apiClient *client.Client
}

// NewServer creates a new MCP server talking to the daemon at apiURL.
func NewServer(apiURL, version string) *Server {
	if version == "" {
		version = "dev"
	}
	s := &Server{
		mcpServer: server.NewMCPServer("loadsim", version),
		apiClient: client.NewClient(apiURL),
	}
	s.registerResources()
	s.registerTools()
	s.registerPrompts()
	return s
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// --- Resources ---

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(
		"loadsim://tasks",
		"Simulation Tasks",
		mcp.WithResourceDescription("Running and recently finished simulation tasks, newest first"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadTasks)
}

// --- Tools ---

func (s *Server) registerTools() {
	for _, kind := range []string{"memory", "cpu", "disk"} {
		s.mcpServer.AddTool(mcp.NewTool(
			"simulate_"+kind,
			mcp.WithDescription(fmt.Sprintf("Start a background %s load simulation. Returns the task id.", kindLabel(kind))),
			mcp.WithNumber("percentage", mcp.Description("Target load in percent (default 50)")),
			mcp.WithString("duration", mcp.Description("Duration as MM:SS (default 00:30)")),
		), s.handleSimulate(kind))
	}

	s.mcpServer.AddTool(mcp.NewTool(
		"generate_logs",
		mcp.WithDescription("Write synthetic log lines on the daemon"),
		mcp.WithString("level", mcp.Enum("INFO", "WARN", "ERROR"), mcp.Description("Log level (default INFO)")),
		mcp.WithString("message", mcp.Description("Message text (default 'Test log message')")),
		mcp.WithNumber("count", mcp.Description("Number of lines (default 1)")),
	), s.handleGenerateLogs)

	s.mcpServer.AddTool(mcp.NewTool(
		"emit_metric",
		mcp.WithDescription("Record a custom metric value"),
		mcp.WithString("name", mcp.Description("Metric name (default custom_metric)")),
		mcp.WithNumber("value", mcp.Description("Metric value (default 0)")),
		mcp.WithString("unit", mcp.Description("Unit (default Count)")),
	), s.handleEmitMetric)

	s.mcpServer.AddTool(mcp.NewTool(
		"generate_trace",
		mcp.WithDescription("Generate a synthetic distributed trace. Blocks for the simulated processing time."),
		mcp.WithNumber("services", mcp.Description("Number of spans in the chain (default 3)")),
		mcp.WithNumber("error_rate", mcp.Description("Per-span failure probability between 0 and 1 (default 0.1)")),
	), s.handleGenerateTrace)

	s.mcpServer.AddTool(mcp.NewTool(
		"cancel_task",
		mcp.WithDescription("Cancel a running simulation task"),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task id returned by a simulate tool")),
	), s.handleCancelTask)
}

// --- Prompts ---

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt(
		"loadsim-aware",
		mcp.WithPromptDescription("Explains what the loadsim tools do and how to use them safely"),
	), s.handleGetPrompt)
}

// --- Handlers ---

func (s *Server) handleReadTasks(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	list, err := s.apiClient.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tasks: %w", err)
	}

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tasks: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleSimulate(kind string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		req := client.SimulationRequest{
			Percentage: mcp.ParseFloat64(request, "percentage", 50),
			Duration:   mcp.ParseString(request, "duration", ""),
		}

		resp, err := s.apiClient.Simulate(ctx, kind, req)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("%s\nStatus: %s\nTask: %s", resp.Message, resp.Status, resp.TaskID)), nil
	}
}

func (s *Server) handleGenerateLogs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := s.apiClient.GenerateLogs(ctx, client.LogRequest{
		Level:   mcp.ParseString(request, "level", ""),
		Message: mcp.ParseString(request, "message", ""),
		Count:   mcp.ParseInt(request, "count", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}
	return mcp.NewToolResultText(resp.Message), nil
}

func (s *Server) handleEmitMetric(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := s.apiClient.EmitMetric(ctx, client.MetricRequest{
		Name:  mcp.ParseString(request, "name", ""),
		Value: mcp.ParseFloat64(request, "value", 0),
		Unit:  mcp.ParseString(request, "unit", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s = %v %s", resp.Message, resp.Value, resp.Unit)), nil
}

func (s *Server) handleGenerateTrace(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := client.TraceRequest{Services: mcp.ParseInt(request, "services", 0)}
	if _, ok := request.GetArguments()["error_rate"]; ok {
		rate := mcp.ParseFloat64(request, "error_rate", 0)
		req.ErrorRate = &rate
	}

	resp, err := s.apiClient.GenerateTrace(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Trace %s\n", resp.TraceID)
	for _, span := range resp.Spans {
		fmt.Fprintf(&b, "- %s %s %.3fs %s\n", span.SpanID, span.Service, span.Duration, span.Status)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleCancelTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := mcp.ParseString(request, "task_id", "")
	if id == "" {
		return mcp.NewToolResultError("task_id is required"), nil
	}

	task, err := s.apiClient.CancelTask(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Task %s is %s", task.ID, task.State)), nil
}

func (s *Server) handleGetPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	if name != "loadsim-aware" {
		return nil, fmt.Errorf("prompt not found: %s", name)
	}

	promptText := `You are connected to loadsim, a demo service that generates synthetic load and telemetry.

Tools:
- simulate_memory / simulate_cpu / simulate_disk: start a background workload. Percentage is 0-100, duration is MM:SS.
  The call returns immediately with a task id; the load keeps running on the daemon host.
- generate_logs, emit_metric, generate_trace: produce synthetic logs, metric values and trace spans.
- cancel_task: stop a workload early.

The loadsim://tasks resource lists running and finished tasks.
Simulations consume real resources on the host. Prefer short durations and cancel tasks you no longer need.
`

	return mcp.NewGetPromptResult(
		"loadsim-aware",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(promptText)),
		},
	), nil
}

func kindLabel(kind string) string {
	if kind == "cpu" {
		return "CPU"
	}
	return kind
}
