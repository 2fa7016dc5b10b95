package mcpsurface

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dictd/dictd/internal/dataset"
)

func unmarshalParams(req *mcp.CallToolRequest, v any) error {
	if err := json.Unmarshal(req.Params.Arguments, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

type zipPathParams struct {
	ZipPath string `json:"zipPath"`
}

func (s *Server) handleBuildStart(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p zipPathParams
	if err := unmarshalParams(req, &p); err != nil {
		return errorResponse("build_start", err)
	}
	key, err := s.store.StartBuild(p.ZipPath)
	if err != nil {
		return errorResponse("build_start", err)
	}
	return jsonResponse(map[string]any{"success": true, "key": key})
}

func (s *Server) handleBuildStatus(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p zipPathParams
	if err := unmarshalParams(req, &p); err != nil {
		return errorResponse("build_status", err)
	}
	return jsonResponse(s.store.GetBuildStatus(p.ZipPath))
}

func (s *Server) handleMasterContents(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p zipPathParams
	if err := unmarshalParams(req, &p); err != nil {
		return errorResponse("master_contents", err)
	}
	contents, err := s.store.GetMasterContents(p.ZipPath)
	if err != nil {
		return errorResponse("master_contents", err)
	}
	return jsonResponse(map[string]any{"contents": contents})
}

type indexEntriesParams struct {
	ZipPath string `json:"zipPath"`
	Prefix  string `json:"prefix"`
	Limit   int    `json:"limit"`
}

func (s *Server) handleIndexEntries(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p indexEntriesParams
	if err := unmarshalParams(req, &p); err != nil {
		return errorResponse("index_entries", err)
	}
	entries, err := s.store.GetIndexEntries(p.ZipPath, p.Prefix, p.Limit)
	if err != nil {
		return errorResponse("index_entries", err)
	}
	return jsonResponse(map[string]any{"entries": entries})
}

type searchEntriesParams struct {
	ZipPath string `json:"zipPath"`
	Query   string `json:"query"`
	Limit   int    `json:"limit"`
}

func (s *Server) handleSearchEntries(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p searchEntriesParams
	if err := unmarshalParams(req, &p); err != nil {
		return errorResponse("search_entries", err)
	}
	hits, err := s.store.SearchEntries(p.ZipPath, p.Query, p.Limit)
	if err != nil {
		return errorResponse("search_entries", err)
	}
	result := map[string]any{"hits": hits}
	if len(hits) == 0 {
		if suggestions, serr := s.store.SuggestHeadwords(p.ZipPath, p.Query, 5); serr == nil && len(suggestions) > 0 {
			result["suggestions"] = suggestions
		}
	}
	return jsonResponse(result)
}

type entryDetailParams struct {
	ZipPath string `json:"zipPath"`
	ID      int    `json:"id"`
}

func (s *Server) handleEntryDetail(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p entryDetailParams
	if err := unmarshalParams(req, &p); err != nil {
		return errorResponse("entry_detail", err)
	}
	entry, err := s.store.GetEntryDetail(p.ZipPath, p.ID)
	if err != nil {
		return errorResponse("entry_detail", err)
	}
	return jsonResponse(entry)
}

type contentPageParams struct {
	ZipPath    string `json:"zipPath"`
	SourcePath string `json:"sourcePath"`
	Local      string `json:"local"`
}

func (s *Server) handleContentPage(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p contentPageParams
	if err := unmarshalParams(req, &p); err != nil {
		return errorResponse("content_page", err)
	}
	page, err := s.store.GetContentPage(p.ZipPath, p.SourcePath, p.Local)
	if err != nil {
		return errorResponse("content_page", err)
	}
	return jsonResponse(page)
}

type linkParams struct {
	ZipPath           string `json:"zipPath"`
	Href              string `json:"href"`
	CurrentSourcePath string `json:"currentSourcePath"`
	CurrentLocal      string `json:"currentLocal"`
}

func (s *Server) handleResolveLink(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p linkParams
	if err := unmarshalParams(req, &p); err != nil {
		return errorResponse("resolve_link", err)
	}
	target, err := s.store.ResolveLinkTarget(p.ZipPath, p.Href, p.CurrentSourcePath, p.CurrentLocal)
	if err != nil {
		return errorResponse("resolve_link", err)
	}
	return jsonResponse(target)
}

func (s *Server) handleResolveMedia(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p linkParams
	if err := unmarshalParams(req, &p); err != nil {
		return errorResponse("resolve_media", err)
	}
	dataURL, err := s.store.ResolveMediaDataURL(p.ZipPath, p.Href, p.CurrentSourcePath, p.CurrentLocal)
	if err != nil {
		return errorResponse("resolve_media", err)
	}
	return jsonResponse(map[string]any{"dataUrl": dataURL})
}

func (s *Server) handleDatasetSummary(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p zipPathParams
	if err := unmarshalParams(req, &p); err != nil {
		return errorResponse("dataset_summary", err)
	}
	resolved, err := dataset.ResolveZipPath(p.ZipPath)
	if err != nil {
		return errorResponse("dataset_summary", err)
	}
	summary, err := dataset.SummarizeZip(resolved)
	if err != nil {
		return errorResponse("dataset_summary", err)
	}
	return jsonResponse(summary)
}
