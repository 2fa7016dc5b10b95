package config

import (
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// applyKDL parses KDL content and overlays recognized fields onto cfg.
// Unrecognized nodes are ignored, matching the teacher's tolerant
// parse-on-top-of-defaults approach.
func applyKDL(cfg *Config, content string) error {
	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return err
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "cache":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "root":
					if s, ok := firstStringArg(cn); ok {
						cfg.Cache.Root = s
					}
				}
			}
		case "dataset":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "max_workers":
					if v, ok := firstIntArg(cn); ok {
						cfg.Dataset.MaxWorkers = v
					}
				case "progress_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Dataset.ProgressMs = v
					}
				case "reserved_stems":
					if stems := collectStringArgs(cn); len(stems) > 0 {
						cfg.Dataset.ReservedStems = stems
					}
				}
			}
		case "search":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "normalize_cache_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Search.NormalizeCacheSize = v
					}
				case "prefix_default_limit":
					if v, ok := firstIntArg(cn); ok {
						cfg.Search.PrefixDefaultLimit = v
					}
				case "prefix_max_limit":
					if v, ok := firstIntArg(cn); ok {
						cfg.Search.PrefixMaxLimit = v
					}
				case "search_max_limit":
					if v, ok := firstIntArg(cn); ok {
						cfg.Search.SearchMaxLimit = v
					}
				case "snippet_length":
					if v, ok := firstIntArg(cn); ok {
						cfg.Search.SnippetLength = v
					}
				case "enable_bleve_index":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Search.EnableBleveIndex = b
					}
				case "enable_fuzzy_suggest":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Search.EnableFuzzySuggest = b
					}
				}
			}
		case "mcp":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "server_name":
					if s, ok := firstStringArg(cn); ok {
						cfg.MCP.ServerName = s
					}
				}
			}
		}
	}
	return nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}
