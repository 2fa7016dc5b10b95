package mcpsurface

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/dictd/dictd/internal/config"
	"github.com/dictd/dictd/internal/store"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Cache.Root = t.TempDir()
	return New("dictd-test", store.New(cfg))
}

func callToolRequest(t *testing.T, params any) *mcp.CallToolRequest {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	return &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Arguments: raw}}
}

func decodeText(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &v))
	return v
}

func TestHandleBuildStatusIdleBeforeAnyBuild(t *testing.T) {
	s := testServer(t)
	req := callToolRequest(t, zipPathParams{ZipPath: "/nowhere.zip"})

	result, err := s.handleBuildStatus(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError)

	body := decodeText(t, result)
	require.Equal(t, "idle", body["phase"])
}

func TestHandleBuildStartAcceptsMissingFileWithoutErrorResponse(t *testing.T) {
	s := testServer(t)
	req := callToolRequest(t, zipPathParams{ZipPath: filepath.Join(t.TempDir(), "missing.zip")})

	result, err := s.handleBuildStart(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError)

	status, err := s.handleBuildStatus(context.Background(), req)
	require.NoError(t, err)
	_ = status
}

func TestHandleEntryDetailReturnsErrorResponseForUnbuiltDataset(t *testing.T) {
	s := testServer(t)
	req := callToolRequest(t, entryDetailParams{ZipPath: filepath.Join(t.TempDir(), "missing.zip"), ID: 1})

	result, err := s.handleEntryDetail(context.Background(), req)
	require.NoError(t, err)
	require.True(t, result.IsError)

	body := decodeText(t, result)
	require.Equal(t, "entry_detail", body["operation"])
	require.Equal(t, false, body["success"])
}

func TestHandleSearchEntriesRejectsMalformedArguments(t *testing.T) {
	s := testServer(t)
	req := &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Arguments: []byte("not json")}}

	result, err := s.handleSearchEntries(context.Background(), req)
	require.NoError(t, err)
	require.True(t, result.IsError)
}
