package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/dshills/ptags/internal/config"
	"github.com/dshills/ptags/internal/indexer"
	"github.com/dshills/ptags/internal/report"
	"github.com/dshills/ptags/internal/storage"
)

// fakeGit lists every regular file in the directory it runs in
type fakeGit struct{}

func (fakeGit) Run(_ context.Context, dir string, _ string, args ...string) ([]byte, []byte, error) {
	if len(args) > 0 && args[0] != "ls-files" {
		return nil, nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}
	var b strings.Builder
	for _, e := range entries {
		if e.Type().IsRegular() && e.Name() != "tags" {
			b.WriteString(e.Name())
			b.WriteByte(0)
		}
	}
	return []byte(b.String()), nil, nil
}

const fakeTagger = `#!/bin/sh
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    -f) out="$2"; shift 2 ;;
    *) shift ;;
  esac
done
: > "$out"
while IFS= read -r f; do
  cat "$f" >> "$out"
done
`

type ServerSuite struct {
	suite.Suite

	project string
	history *storage.SQLiteStorage
	server  *Server
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) SetupTest() {
	if runtime.GOOS == "windows" {
		s.T().Skip("fake tagger requires a POSIX shell")
	}

	s.project = s.T().TempDir()
	for name, content := range map[string]string{
		"a.c": "TAG_A\n",
		"b.c": "TAG_B\n",
		"c.c": "TAG_B\nTAG_C\n",
	} {
		s.Require().NoError(os.WriteFile(filepath.Join(s.project, name), []byte(content), 0644))
	}

	tagger := filepath.Join(s.T().TempDir(), "fake-ctags")
	s.Require().NoError(os.WriteFile(tagger, []byte(fakeTagger), 0755))

	history, err := storage.NewSQLiteStorage(":memory:")
	s.Require().NoError(err)
	s.history = history

	base := config.Default()
	base.Tagger.Binary = tagger
	base.Workers = 2

	idx := indexer.New(indexer.Options{Executor: fakeGit{}, History: history})
	s.server = NewServer(base, idx, history, nil)
}

func (s *ServerSuite) TearDownTest() {
	if s.history != nil {
		_ = s.history.Close()
	}
}

func (s *ServerSuite) generate(args map[string]interface{}) report.Summary {
	result, err := s.server.handleGenerateTags(context.Background(), callRequest("generate_tags", args))
	s.Require().NoError(err)

	var summary report.Summary
	s.Require().NoError(json.Unmarshal([]byte(resultText(s.T(), result)), &summary))
	return summary
}

func (s *ServerSuite) TestGenerateTags() {
	summary := s.generate(map[string]interface{}{"path": s.project})

	s.Equal("complete", summary.Status)
	s.Equal(3, summary.FilesScanned)
	s.Equal(3, summary.Entries)
	s.Equal(1, summary.Duplicates)
	s.Equal(filepath.Join(s.project, "tags"), summary.Output)

	content, err := os.ReadFile(filepath.Join(s.project, "tags"))
	s.Require().NoError(err)
	s.Equal("TAG_A\nTAG_B\nTAG_C\n", string(content))
}

func (s *ServerSuite) TestGenerateTagsOverrides() {
	out := filepath.Join(s.T().TempDir(), "TAGS")
	summary := s.generate(map[string]interface{}{
		"path":    s.project,
		"output":  out,
		"workers": float64(3),
		"merge":   "sorted",
		"exclude": []interface{}{"c.c"},
	})

	s.Equal(out, summary.Output)
	s.Equal(3, summary.Workers)
	s.Equal("sorted", summary.Strategy)
	s.Equal(2, summary.FilesScanned)
	s.FileExists(out)
	s.NoFileExists(filepath.Join(s.project, "tags"))
}

func (s *ServerSuite) TestGenerateTagsInvalidParams() {
	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"missing path", map[string]interface{}{}},
		{"relative path", map[string]interface{}{"path": "relative/dir"}},
		{"missing directory", map[string]interface{}{"path": filepath.Join(s.project, "nope")}},
		{"file as path", map[string]interface{}{"path": filepath.Join(s.project, "a.c")}},
		{"zero workers", map[string]interface{}{"path": s.project, "workers": float64(0)}},
		{"unknown merge", map[string]interface{}{"path": s.project, "merge": "shuffle"}},
		{"bad exclude", map[string]interface{}{"path": s.project, "exclude": []interface{}{"[a-"}}},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.server.handleGenerateTags(context.Background(), callRequest("generate_tags", tt.args))
			assertMCPError(s.T(), err, ErrorCodeInvalidParams)
		})
	}
}

func (s *ServerSuite) TestListAndGetRuns() {
	first := s.generate(map[string]interface{}{"path": s.project})
	second := s.generate(map[string]interface{}{"path": s.project, "merge": "sorted"})

	result, err := s.server.handleListRuns(context.Background(), callRequest("list_runs", map[string]interface{}{
		"path": s.project,
	}))
	s.Require().NoError(err)

	var listed struct {
		Count int              `json:"count"`
		Runs  []report.Summary `json:"runs"`
	}
	s.Require().NoError(json.Unmarshal([]byte(resultText(s.T(), result)), &listed))
	s.Equal(2, listed.Count)
	s.Require().Len(listed.Runs, 2)
	s.Equal(second.RunID, listed.Runs[0].RunID)
	s.Equal(first.RunID, listed.Runs[1].RunID)

	result, err = s.server.handleGetRun(context.Background(), callRequest("get_run", map[string]interface{}{
		"run_id": first.RunID,
	}))
	s.Require().NoError(err)

	var got report.Summary
	s.Require().NoError(json.Unmarshal([]byte(resultText(s.T(), result)), &got))
	s.Equal(first.RunID, got.RunID)
	s.Equal(first.Entries, got.Entries)
	s.Len(got.Chunks, 2)
}

func (s *ServerSuite) TestListRunsLimit() {
	for _, limit := range []float64{0, 101} {
		_, err := s.server.handleListRuns(context.Background(), callRequest("list_runs", map[string]interface{}{
			"limit": limit,
		}))
		assertMCPError(s.T(), err, ErrorCodeInvalidParams)
	}
}

func (s *ServerSuite) TestGetRunNotFound() {
	_, err := s.server.handleGetRun(context.Background(), callRequest("get_run", map[string]interface{}{
		"run_id": "does-not-exist",
	}))
	assertMCPError(s.T(), err, ErrorCodeRunNotFound)

	_, err = s.server.handleGetRun(context.Background(), callRequest("get_run", map[string]interface{}{}))
	assertMCPError(s.T(), err, ErrorCodeInvalidParams)
}

func TestHistoryDisabled(t *testing.T) {
	server := NewServer(nil, indexer.New(indexer.Options{}), nil, nil)

	_, err := server.handleListRuns(context.Background(), callRequest("list_runs", nil))
	assertMCPError(t, err, ErrorCodeHistoryDisabled)

	_, err = server.handleGetRun(context.Background(), callRequest("get_run", map[string]interface{}{"run_id": "x"}))
	assertMCPError(t, err, ErrorCodeHistoryDisabled)
}

func TestToolDefinitions(t *testing.T) {
	for _, tool := range []mcp.Tool{generateTagsTool(), listRunsTool(), getRunTool()} {
		assert.NotEmpty(t, tool.Description, tool.Name)
		assert.Equal(t, "object", tool.InputSchema.Type, tool.Name)
		for _, required := range tool.InputSchema.Required {
			assert.Contains(t, tool.InputSchema.Properties, required, tool.Name)
		}
	}
}

func TestGetStringSlice(t *testing.T) {
	got, ok := getStringSlice(map[string]interface{}{"x": []interface{}{"a", 1, "b"}}, "x")
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, got)

	_, ok = getStringSlice(map[string]interface{}{}, "x")
	assert.False(t, ok)
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	var request mcp.CallToolRequest
	request.Params.Name = name
	if args != nil {
		request.Params.Arguments = args
	}
	return request
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func assertMCPError(t *testing.T, err error, code int) {
	t.Helper()
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, code, mcpErr.Code, mcpErr.Message)
}
