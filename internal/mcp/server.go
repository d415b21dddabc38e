package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/a3tai/assay-sheets/internal/batch"
	"github.com/a3tai/assay-sheets/internal/config"
	"github.com/a3tai/assay-sheets/internal/descriptions"
	"github.com/a3tai/assay-sheets/internal/job"
	"github.com/a3tai/assay-sheets/internal/probe"
)

// ServerName is the MCP implementation name
const ServerName = "assay-sheets"

// Server exposes the pipeline as MCP tools over stdio
type Server struct {
	config       *config.Config
	orchestrator *job.Orchestrator
	logger       *zap.Logger
	mcpServer    *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, orchestrator *job.Orchestrator, logger *zap.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if orchestrator == nil {
		return nil, fmt.Errorf("orchestrator cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		config:       cfg,
		orchestrator: orchestrator,
		logger:       logger,
		mcpServer:    mcpServer,
	}
	s.registerTools()
	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"assay_submit",
		mcp.WithDescription(descriptions.AssaySubmitDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the PDF report"),
		),
	), s.handleSubmit)

	s.mcpServer.AddTool(mcp.NewTool(
		"assay_batch",
		mcp.WithDescription(descriptions.AssayBatchDescription),
		mcp.WithString("directory",
			mcp.Required(),
			mcp.Description("Directory containing PDF reports"),
		),
		mcp.WithBoolean("recursive",
			mcp.Description("Also process PDFs in subdirectories"),
		),
	), s.handleBatch)

	s.mcpServer.AddTool(mcp.NewTool(
		"assay_job_state",
		mcp.WithDescription(descriptions.AssayJobStateDescription),
		mcp.WithString("job_id",
			mcp.Description("Job id (16 hex characters); lists all jobs when empty"),
		),
	), s.handleJobState)

	s.mcpServer.AddTool(mcp.NewTool(
		"assay_list_dumps",
		mcp.WithDescription(descriptions.AssayListDumpsDescription),
		mcp.WithString("job_id",
			mcp.Description("Restrict to one job; lists dumps of all jobs when empty"),
		),
	), s.handleListDumps)

	s.mcpServer.AddTool(mcp.NewTool(
		"assay_regex_test",
		mcp.WithDescription(descriptions.AssayRegexTestDescription),
		mcp.WithString("target",
			mcp.Required(),
			mcp.Description("Dump file name in the jobs directory, e.g. <job_id>_normalized.txt"),
		),
		mcp.WithString("pattern",
			mcp.Required(),
			mcp.Description("Regular expression (RE2 syntax)"),
		),
		mcp.WithString("flags",
			mcp.Description("NONE, MULTILINE, DOTALL or MULTILINE|DOTALL (default MULTILINE)"),
		),
	), s.handleRegexTest)
}

func (s *Server) handleSubmit(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res := s.orchestrator.Submit(path)
	return jsonResult(res)
}

func (s *Server) handleBatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dir, err := request.RequireString("directory")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	recursive := false
	if r, ok := request.GetArguments()["recursive"].(bool); ok {
		recursive = r
	}

	files, err := batch.FindPDFs(dir, recursive)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	summary := batch.NewRunner(s.logger).Run(ctx, s.orchestrator, files)
	return jsonResult(summary)
}

func (s *Server) handleJobState(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	store := s.orchestrator.Store()

	if jobID := optionalString(request, "job_id"); jobID != "" {
		if !validJobID(jobID) {
			return mcp.NewToolResultError(fmt.Sprintf("invalid job id: %s", jobID)), nil
		}
		st, err := store.Load(jobID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("job state not found: %s", jobID)), nil
		}
		return jsonResult(st)
	}

	states, err := store.List()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(states) == 0 {
		return mcp.NewToolResultText("No jobs found in " + store.Dir()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d job(s) in %s\n", len(states), store.Dir())
	for _, st := range states {
		fmt.Fprintf(&b, "%s  %-15s  %s", st.JobID, st.Status, st.PDFPath)
		if st.Error != "" {
			fmt.Fprintf(&b, "  (%s)", st.Error)
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleListDumps(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := optionalString(request, "job_id")
	if jobID != "" && !validJobID(jobID) {
		return mcp.NewToolResultError(fmt.Sprintf("invalid job id: %s", jobID)), nil
	}

	dumps, err := probe.ListDumps(s.orchestrator.Store().Dir(), jobID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(dumps) == 0 {
		return mcp.NewToolResultText("No debug dumps found"), nil
	}

	names := make([]string, len(dumps))
	for i, d := range dumps {
		names[i] = filepath.Base(d)
	}
	return mcp.NewToolResultText(strings.Join(names, "\n")), nil
}

func (s *Server) handleRegexTest(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target, err := request.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pattern, err := request.RequireString("pattern")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	flagText := optionalString(request, "flags")
	if flagText == "" {
		flagText = "MULTILINE"
	}
	flags, err := probe.ParseFlags(flagText)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	// only dump files inside the jobs directory may be read
	if target != filepath.Base(target) || !isDumpName(target) {
		return mcp.NewToolResultError(fmt.Sprintf("target must be a dump file name, got %q", target)), nil
	}
	path := filepath.Join(s.orchestrator.Store().Dir(), target)

	m, err := probe.TestFile(path, pattern, flags)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatMatch(target, pattern, flags, m)), nil
}

func formatMatch(target, pattern string, flags probe.Flags, m *probe.Match) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Target: %s\nFlags: %s\nRegex: %s\n", target, flags, pattern)
	if !m.Found {
		b.WriteString("-> No match.\n")
		return b.String()
	}
	b.WriteString("-> Match found.\n")
	fmt.Fprintf(&b, "   match[0]: %s\n", m.Text)
	for i, g := range m.Groups {
		fmt.Fprintf(&b, "   group(%d): %s\n", i+1, g)
	}
	fmt.Fprintf(&b, "\n--- Context (line %d) ---\n%s\n", m.Line, m.Context)
	return b.String()
}

func optionalString(request mcp.CallToolRequest, key string) string {
	if v, ok := request.GetArguments()[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func validJobID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}

func isDumpName(name string) bool {
	return strings.HasSuffix(name, "_normalized.txt") || strings.HasSuffix(name, "_block.txt")
}

// Run serves the tools over stdio until the client disconnects
func (s *Server) Run(_ context.Context) error {
	s.logger.Info("Starting MCP server in stdio mode",
		zap.String("root", s.config.Root),
		zap.String("rules_dir", s.config.RulesDir),
		zap.String("output_dir", s.config.OutputDir))

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
