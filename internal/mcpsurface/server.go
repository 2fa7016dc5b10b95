// Package mcpsurface exposes the dictionary backend's operations over
// the Model Context Protocol's stdio transport: one tool per §6
// operation (build, status, contents, entries, search, entry, page,
// resolve-link, resolve-media) plus dataset_summary, each with a
// JSON-schema-described input and a JSON-encoded result.
package mcpsurface

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dictd/dictd/internal/debug"
	"github.com/dictd/dictd/internal/store"
	"github.com/dictd/dictd/internal/version"
)

// Server wraps an *mcp.Server bound to one *store.Store, exposing
// dictd's operations as MCP tools.
type Server struct {
	server *mcp.Server
	store  *store.Store
}

// New creates the MCP server and registers every dictionary tool. It
// also puts internal/debug into MCP mode, since that package's
// fallback stderr/file output must never compete with the stdio
// transport for the process's standard streams.
func New(name string, st *store.Store) *Server {
	debug.SetMCPMode(true)
	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{Name: name, Version: version.Version}, nil),
		store:  st,
	}
	s.registerTools()
	return s
}

// Run serves the MCP protocol over stdio until ctx is cancelled or the
// client disconnects.
func (s *Server) Run(ctx context.Context) error {
	debug.LogMCP("serving stdio transport")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func jsonResponse(data any) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(content)}}}, nil
}

func errorResponse(operation string, err error) (*mcp.CallToolResult, error) {
	resp, merr := jsonResponse(map[string]any{
		"success":   false,
		"operation": operation,
		"error":     err.Error(),
	})
	if merr != nil {
		return nil, merr
	}
	resp.IsError = true
	return resp, nil
}

func schema(props map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object", Properties: props, Required: required}
}

func stringProp(desc string) *jsonschema.Schema  { return &jsonschema.Schema{Type: "string", Description: desc} }
func integerProp(desc string) *jsonschema.Schema { return &jsonschema.Schema{Type: "integer", Description: desc} }

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "build_start",
		Description: "Start (or resume) ingesting a dictionary dataset ZIP into a queryable runtime. Returns immediately; poll build_status for progress.",
		InputSchema: schema(map[string]*jsonschema.Schema{
			"zipPath": stringProp("Path to the dataset ZIP file"),
		}, "zipPath"),
	}, s.handleBuildStart)

	s.server.AddTool(&mcp.Tool{
		Name:        "build_status",
		Description: "Get the current build status for a dataset ZIP: phase, progress counters, and a summary once done.",
		InputSchema: schema(map[string]*jsonschema.Schema{
			"zipPath": stringProp("Path to the dataset ZIP file"),
		}, "zipPath"),
	}, s.handleBuildStatus)

	s.server.AddTool(&mcp.Tool{
		Name:        "master_contents",
		Description: "Get the sitemap content tree (title/local pairs) for a built dataset.",
		InputSchema: schema(map[string]*jsonschema.Schema{
			"zipPath": stringProp("Path to the dataset ZIP file"),
		}, "zipPath"),
	}, s.handleMasterContents)

	s.server.AddTool(&mcp.Tool{
		Name:        "index_entries",
		Description: "List dictionary entries whose headword starts with prefix (German umlaut/ß-insensitive). Empty prefix lists everything.",
		InputSchema: schema(map[string]*jsonschema.Schema{
			"zipPath": stringProp("Path to the dataset ZIP file"),
			"prefix":  stringProp("Headword prefix, empty for all entries"),
			"limit":   integerProp("Maximum entries to return"),
		}, "zipPath"),
	}, s.handleIndexEntries)

	s.server.AddTool(&mcp.Tool{
		Name:        "search_entries",
		Description: "Full-text search across headwords, aliases, and definitions. Terms are AND-combined; results are ranked by relevance.",
		InputSchema: schema(map[string]*jsonschema.Schema{
			"zipPath": stringProp("Path to the dataset ZIP file"),
			"query":   stringProp("Search query, whitespace-separated terms"),
			"limit":   integerProp("Maximum hits to return"),
		}, "zipPath", "query"),
	}, s.handleSearchEntries)

	s.server.AddTool(&mcp.Tool{
		Name:        "entry_detail",
		Description: "Get a dictionary entry's full detail (aliases, definition text/HTML), hydrating it from the dataset on first access.",
		InputSchema: schema(map[string]*jsonschema.Schema{
			"zipPath": stringProp("Path to the dataset ZIP file"),
			"id":      integerProp("Entry ID"),
		}, "zipPath", "id"),
	}, s.handleEntryDetail)

	s.server.AddTool(&mcp.Tool{
		Name:        "content_page",
		Description: "Get a decoded content page (title/body) by its local path within a source CHM, defaulting to master.chm.",
		InputSchema: schema(map[string]*jsonschema.Schema{
			"zipPath":    stringProp("Path to the dataset ZIP file"),
			"sourcePath": stringProp("Source CHM name, defaults to master.chm"),
			"local":      stringProp("Local path within the source CHM"),
		}, "zipPath", "local"),
	}, s.handleContentPage)

	s.server.AddTool(&mcp.Tool{
		Name:        "resolve_link",
		Description: "Resolve an in-dictionary href found on a page to either a content page or a dictionary entry.",
		InputSchema: schema(map[string]*jsonschema.Schema{
			"zipPath":           stringProp("Path to the dataset ZIP file"),
			"href":              stringProp("The href to resolve"),
			"currentSourcePath": stringProp("Source CHM of the page the href was found on"),
			"currentLocal":      stringProp("Local path of the page the href was found on"),
		}, "zipPath", "href", "currentSourcePath", "currentLocal"),
	}, s.handleResolveLink)

	s.server.AddTool(&mcp.Tool{
		Name:        "resolve_media",
		Description: "Resolve an in-dictionary media href to a base64 data: URL.",
		InputSchema: schema(map[string]*jsonschema.Schema{
			"zipPath":           stringProp("Path to the dataset ZIP file"),
			"href":              stringProp("The media href to resolve"),
			"currentSourcePath": stringProp("Source CHM of the page the href was found on"),
			"currentLocal":      stringProp("Local path of the page the href was found on"),
		}, "zipPath", "href", "currentSourcePath", "currentLocal"),
	}, s.handleResolveMedia)

	s.server.AddTool(&mcp.Tool{
		Name:        "dataset_summary",
		Description: "Summarize a dataset ZIP without building it: file/byte counts, merge-volume coverage, and extension breakdown.",
		InputSchema: schema(map[string]*jsonschema.Schema{
			"zipPath": stringProp("Path to the dataset ZIP file"),
		}, "zipPath"),
	}, s.handleDatasetSummary)
}
