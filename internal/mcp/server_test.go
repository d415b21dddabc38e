package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/a3tai/assay-sheets/internal/config"
	"github.com/a3tai/assay-sheets/internal/job"
	"github.com/a3tai/assay-sheets/internal/pdf"
)

const testIndex = `{"assays": [{"assay_key": "(5f03)", "ruleset_file": "tpo.json"}]}`

const testRules = `{
  "assay_key": "(5f03)",
  "assay_name": "Anti-TPO IgG",
  "lot_rule": {"regex": "Lot:\\s*(\\S+)"},
  "extract_rules": {"fields": [
    {"key": "test", "regex": "Test:\\s*(\\S+)", "required": true},
    {"key": "date", "regex": "Date:\\s*(\\S+)", "required": true},
    {"key": "time", "regex": "Time:\\s*(\\S+)", "required": true}
  ]},
  "excel_rules": {}
}`

type linesParser struct {
	lines []string
}

func (p *linesParser) Parse(path string) (*pdf.ParsedDocument, error) {
	return &pdf.ParsedDocument{
		SourcePath: path,
		Pages:      []pdf.ParsedPage{{PageNumber: 1, Lines: p.lines}},
		Meta:       pdf.DocumentMeta{PageCount: 1, Engine: "stub"},
	}, nil
}

func newTestServer(t *testing.T) (*Server, *config.Config) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Root = t.TempDir()
	cfg.RulesDir = filepath.Join(cfg.Root, "rules")
	cfg.OutputDir = filepath.Join(cfg.Root, "output")
	cfg.JobsDir = filepath.Join(cfg.Root, "jobs")
	cfg.LocksDir = filepath.Join(cfg.Root, "locks")

	if err := os.MkdirAll(cfg.RulesDir, 0o755); err != nil {
		t.Fatalf("failed to create rules dir: %v", err)
	}
	for name, content := range map[string]string{"index.json": testIndex, "tpo.json": testRules} {
		if err := os.WriteFile(filepath.Join(cfg.RulesDir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}

	parser := &linesParser{lines: []string{
		"Anti-TPO IgG",
		"Assay (5f03)",
		"Lot: L123",
		"Test: T-42",
		"Date: 2024-01-02",
		"Time: 10:15",
	}}
	orch := job.NewOrchestrator(cfg.Layout(), job.WithParser(parser))

	s, err := NewServer(cfg, orch, nil)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return s, cfg
}

func writeReport(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("%PDF-1.4 "+name), 0o644); err != nil {
		t.Fatalf("failed to write report: %v", err)
	}
	return path
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
}

func TestNewServer(t *testing.T) {
	cfg := config.DefaultConfig()
	orch := job.NewOrchestrator(cfg.Layout())

	tests := []struct {
		name        string
		config      *config.Config
		orch        *job.Orchestrator
		expectError bool
	}{
		{name: "valid", config: cfg, orch: orch},
		{name: "nil config", config: nil, orch: orch, expectError: true},
		{name: "nil orchestrator", config: cfg, orch: nil, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewServer(tt.config, tt.orch, nil)
			if tt.expectError {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.mcpServer == nil {
				t.Error("MCP server not initialized")
			}
		})
	}
}

func TestHandleSubmit(t *testing.T) {
	s, cfg := newTestServer(t)
	ctx := context.Background()
	report := writeReport(t, t.TempDir(), "report.pdf")

	result, err := s.handleSubmit(ctx, callRequest(map[string]interface{}{"path": report}))
	if err != nil {
		t.Fatalf("handleSubmit() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", extractTextFromResult(result))
	}

	var res job.Result
	if err := json.Unmarshal([]byte(extractTextFromResult(result)), &res); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if res.Status != job.ResultDone {
		t.Fatalf("status = %s, want DONE (%s)", res.Status, res.Details.Error)
	}
	if len(res.Details.Writes) != 1 {
		t.Fatalf("expected 1 write, got %d", len(res.Details.Writes))
	}
	want := filepath.Join(cfg.OutputDir, "Anti-TPO_IgG.xlsx")
	if res.Details.Writes[0].ExcelPath != want {
		t.Errorf("excel path = %s, want %s", res.Details.Writes[0].ExcelPath, want)
	}

	// resubmission is skipped
	result, _ = s.handleSubmit(ctx, callRequest(map[string]interface{}{"path": report}))
	if !strings.Contains(extractTextFromResult(result), job.ReasonAlreadyDone) {
		t.Errorf("expected already_done, got %s", extractTextFromResult(result))
	}
}

func TestHandleSubmit_Errors(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	result, err := s.handleSubmit(ctx, callRequest(map[string]interface{}{}))
	if err != nil {
		t.Fatalf("handleSubmit() error = %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for missing path")
	}

	// a missing PDF is a regular FAILED result, not a tool error
	result, _ = s.handleSubmit(ctx, callRequest(map[string]interface{}{"path": "/nonexistent/report.pdf"}))
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", extractTextFromResult(result))
	}
	text := extractTextFromResult(result)
	if !strings.Contains(text, `"FAILED"`) || !strings.Contains(text, job.ErrPDFNotFound) {
		t.Errorf("expected pdf_not_found failure, got %s", text)
	}
}

func TestHandleBatch(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	dir := t.TempDir()
	writeReport(t, dir, "a.pdf")
	writeReport(t, dir, "notes.txt")
	sub := filepath.Join(dir, "nested")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	writeReport(t, sub, "b.PDF")

	tests := []struct {
		name      string
		recursive bool
		wantDone  int
	}{
		{name: "flat", recursive: false, wantDone: 1},
		{name: "recursive", recursive: true, wantDone: 1}, // a.pdf is already done
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.handleBatch(ctx, callRequest(map[string]interface{}{
				"directory": dir,
				"recursive": tt.recursive,
			}))
			if err != nil {
				t.Fatalf("handleBatch() error = %v", err)
			}
			text := extractTextFromResult(result)
			if result.IsError {
				t.Fatalf("unexpected tool error: %s", text)
			}
			var summary struct {
				Done    int `json:"done"`
				Skipped int `json:"skipped"`
			}
			if err := json.Unmarshal([]byte(text), &summary); err != nil {
				t.Fatalf("summary is not JSON: %v", err)
			}
			if summary.Done != tt.wantDone {
				t.Errorf("done = %d, want %d", summary.Done, tt.wantDone)
			}
		})
	}

	result, _ := s.handleBatch(ctx, callRequest(map[string]interface{}{"directory": filepath.Join(dir, "missing")}))
	if !result.IsError {
		t.Error("expected tool error for missing directory")
	}
}

func TestHandleJobStateAndDumps(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	result, _ := s.handleJobState(ctx, callRequest(map[string]interface{}{}))
	if !strings.Contains(extractTextFromResult(result), "No jobs found") {
		t.Errorf("expected empty listing, got %s", extractTextFromResult(result))
	}

	report := writeReport(t, t.TempDir(), "report.pdf")
	res := s.orchestrator.Submit(report)
	if res.Status != job.ResultDone {
		t.Fatalf("submit status = %s", res.Status)
	}

	result, _ = s.handleJobState(ctx, callRequest(map[string]interface{}{"job_id": res.JobID}))
	var st job.State
	if err := json.Unmarshal([]byte(extractTextFromResult(result)), &st); err != nil {
		t.Fatalf("state is not JSON: %v", err)
	}
	if st.Status != job.StatusDone {
		t.Errorf("state status = %s, want DONE", st.Status)
	}

	result, _ = s.handleJobState(ctx, callRequest(map[string]interface{}{}))
	if !strings.Contains(extractTextFromResult(result), res.JobID) {
		t.Errorf("listing does not contain job %s", res.JobID)
	}

	for _, id := range []string{"../etc", "0000000000000000"} {
		result, _ = s.handleJobState(ctx, callRequest(map[string]interface{}{"job_id": id}))
		if !result.IsError {
			t.Errorf("expected tool error for job id %q", id)
		}
	}

	result, _ = s.handleListDumps(ctx, callRequest(map[string]interface{}{"job_id": res.JobID}))
	want := res.JobID + "_normalized.txt\n" + res.JobID + "_5f03_block.txt"
	if got := extractTextFromResult(result); got != want {
		t.Errorf("dumps = %q, want %q", got, want)
	}
}

func TestHandleRegexTest(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	res := s.orchestrator.Submit(writeReport(t, t.TempDir(), "report.pdf"))
	if res.Status != job.ResultDone {
		t.Fatalf("submit status = %s", res.Status)
	}
	block := res.JobID + "_5f03_block.txt"

	tests := []struct {
		name        string
		args        map[string]interface{}
		expectError bool
		contains    []string
	}{
		{
			name:     "match with group",
			args:     map[string]interface{}{"target": block, "pattern": `Lot:\s*(\S+)`},
			contains: []string{"-> Match found.", "group(1): L123", ">> Lot: L123"},
		},
		{
			name:     "no match",
			args:     map[string]interface{}{"target": block, "pattern": `Expiry:\s*(\S+)`, "flags": "NONE"},
			contains: []string{"-> No match."},
		},
		{
			name:        "path traversal",
			args:        map[string]interface{}{"target": "../" + block, "pattern": "x"},
			expectError: true,
		},
		{
			name:        "not a dump",
			args:        map[string]interface{}{"target": res.JobID + ".json", "pattern": "x"},
			expectError: true,
		},
		{
			name:        "invalid regex",
			args:        map[string]interface{}{"target": block, "pattern": "("},
			expectError: true,
		},
		{
			name:        "invalid flags",
			args:        map[string]interface{}{"target": block, "pattern": "x", "flags": "IGNORECASE"},
			expectError: true,
		},
		{
			name:        "missing pattern",
			args:        map[string]interface{}{"target": block},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.handleRegexTest(ctx, callRequest(tt.args))
			if err != nil {
				t.Fatalf("handleRegexTest() error = %v", err)
			}
			text := extractTextFromResult(result)
			if result.IsError != tt.expectError {
				t.Fatalf("IsError = %v, want %v (%s)", result.IsError, tt.expectError, text)
			}
			for _, want := range tt.contains {
				if !strings.Contains(text, want) {
					t.Errorf("output missing %q:\n%s", want, text)
				}
			}
		})
	}
}

func TestValidJobID(t *testing.T) {
	tests := map[string]bool{
		"0123456789abcdef": true,
		"":                 false,
		"ABCDEF":           false,
		"../x":             false,
		"12_34":            false,
	}
	for id, want := range tests {
		if got := validJobID(id); got != want {
			t.Errorf("validJobID(%q) = %v, want %v", id, got, want)
		}
	}
}

// extractTextFromResult extracts text content from MCP CallToolResult
func extractTextFromResult(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}

	for _, content := range result.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			return textContent.Text
		}
		if textContentPtr, ok := content.(*mcp.TextContent); ok {
			return textContentPtr.Text
		}
	}

	return ""
}
