package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v2"

	"github.com/dictd/dictd/internal/chm"
	"github.com/dictd/dictd/internal/config"
	"github.com/dictd/dictd/internal/dataset"
	"github.com/dictd/dictd/internal/debug"
	"github.com/dictd/dictd/internal/mcpsurface"
	"github.com/dictd/dictd/internal/store"
	"github.com/dictd/dictd/internal/version"
)

var (
	st     *store.Store
	loaded *config.Config
)

func loadConfig(c *cli.Context) (*config.Config, error) {
	if loaded != nil {
		return loaded, nil
	}
	projectRoot := c.String("root")
	if projectRoot == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		projectRoot = cwd
	}
	cfg, err := config.Load(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	loaded = cfg
	return cfg, nil
}

func loadStore(c *cli.Context) (*store.Store, error) {
	if st != nil {
		return st, nil
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	st = store.New(cfg)
	return st, nil
}

func beforeCommand(c *cli.Context) error {
	if !c.Bool("debug-log") {
		return nil
	}
	path, err := debug.InitDebugLogFile()
	if err != nil {
		return fmt.Errorf("init debug log: %w", err)
	}
	fmt.Fprintln(os.Stderr, "dictd: debug log at", path)
	return nil
}

func afterCommand(c *cli.Context) error {
	return debug.CloseDebugLog()
}

// zipArg resolves the command's dataset ZIP argument. With no
// positional argument it falls back to the most recently managed ZIP
// (internal/store's managed-zip directory), so a workflow that always
// imports before building never needs to repeat the path.
func zipArg(c *cli.Context) (string, error) {
	input := c.Args().First()
	if input != "" {
		return dataset.ResolveZipPath(input)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return "", err
	}
	latest, err := store.LatestManagedZip(cfg)
	if err != nil || latest == "" {
		return "", fmt.Errorf("dataset ZIP path required")
	}
	return latest, nil
}

// printOutput encodes v to stdout as JSON (the default) or TOML,
// selected by the global --format flag. TOML is offered for operators
// piping dictd output into other KDL/TOML-speaking tooling without a
// JSON step in between.
func printOutput(c *cli.Context, v any) error {
	switch c.String("format") {
	case "toml":
		enc := toml.NewEncoder(os.Stdout)
		return enc.Encode(v)
	default:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

func main() {
	app := &cli.App{
		Name:                   "dictd",
		Usage:                  "Legacy bilingual CHM dictionary backend",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root to load .dictd.kdl from (defaults to the working directory)",
			},
			&cli.BoolFlag{
				Name:  "debug-log",
				Usage: "Write diagnostic output to a timestamped file under the OS temp directory",
			},
			&cli.StringFlag{
				Name:  "format",
				Value: "json",
				Usage: "Output encoding for query results: json or toml",
			},
		},
		Before: beforeCommand,
		After:  afterCommand,
		Commands: []*cli.Command{
			{
				Name:      "build",
				Usage:     "Start ingesting a dataset ZIP into a queryable runtime",
				ArgsUsage: "<dataset.zip>",
				Action:    buildCommand,
			},
			{
				Name:      "status",
				Usage:     "Show the current build status for a dataset ZIP",
				ArgsUsage: "<dataset.zip>",
				Action:    statusCommand,
			},
			{
				Name:   "metrics",
				Usage:  "Show process-wide cache/build/search counters",
				Action: metricsCommand,
			},
			{
				Name:      "contents",
				Usage:     "Print the master sitemap content tree",
				ArgsUsage: "<dataset.zip>",
				Action:    contentsCommand,
			},
			{
				Name:      "entries",
				Usage:     "List dictionary entries by headword prefix",
				ArgsUsage: "<dataset.zip>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "prefix", Usage: "Headword prefix filter"},
					&cli.IntFlag{Name: "limit", Usage: "Maximum entries to return"},
				},
				Action: entriesCommand,
			},
			{
				Name:      "search",
				Usage:     "Full-text search across headwords, aliases, and definitions",
				ArgsUsage: "<dataset.zip> <query>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Usage: "Maximum hits to return"},
				},
				Action: searchCommand,
			},
			{
				Name:      "entry",
				Usage:     "Show one dictionary entry's hydrated detail",
				ArgsUsage: "<dataset.zip> <id>",
				Action:    entryCommand,
			},
			{
				Name:      "page",
				Usage:     "Show a decoded content page",
				ArgsUsage: "<dataset.zip> <local>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "source", Usage: "Source CHM name, defaults to master.chm"},
				},
				Action: pageCommand,
			},
			{
				Name:      "resolve-link",
				Usage:     "Resolve an href found on a page to a content page or dictionary entry",
				ArgsUsage: "<dataset.zip> <href>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "source", Value: "master.chm", Usage: "Source CHM name the href was found on, defaults to master.chm"},
					&cli.StringFlag{Name: "local", Usage: "Local path the href was found on"},
				},
				Action: resolveLinkCommand,
			},
			{
				Name:      "resolve-media",
				Usage:     "Resolve an href to a media data URL",
				ArgsUsage: "<dataset.zip> <href>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "source", Value: "master.chm", Usage: "Source CHM name the href was found on, defaults to master.chm"},
					&cli.StringFlag{Name: "local", Usage: "Local path the href was found on"},
				},
				Action: resolveMediaCommand,
			},
			{
				Name:   "dataset",
				Usage:  "Dataset diagnostics",
				Subcommands: []*cli.Command{
					{
						Name:      "summary",
						Usage:     "Summarize a dataset ZIP without building it",
						ArgsUsage: "<dataset.zip>",
						Action:    datasetSummaryCommand,
					},
					{
						Name:      "import",
						Usage:     "Copy a dataset ZIP into the managed ZIP directory",
						ArgsUsage: "<dataset.zip>",
						Action:    datasetImportCommand,
					},
				},
			},
			{
				Name:  "chm",
				Usage: "Low-level CHM archive diagnostics",
				Subcommands: []*cli.Command{
					{
						Name:      "inspect",
						Usage:     "List the directory entries of a single .chm file",
						ArgsUsage: "<file.chm>",
						Action:    chmInspectCommand,
					},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Start the MCP (Model Context Protocol) server with stdio transport",
				Action: mcpCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "dictd:", err)
		os.Exit(1)
	}
}

func buildCommand(c *cli.Context) error {
	zipPath, err := zipArg(c)
	if err != nil {
		return err
	}
	s, err := loadStore(c)
	if err != nil {
		return err
	}
	key, err := s.StartBuild(zipPath)
	if err != nil {
		return err
	}
	fmt.Printf("build started: %s\n", key)
	return nil
}

func statusCommand(c *cli.Context) error {
	zipPath, err := zipArg(c)
	if err != nil {
		return err
	}
	s, err := loadStore(c)
	if err != nil {
		return err
	}
	return printOutput(c, s.GetBuildStatus(zipPath))
}

func metricsCommand(c *cli.Context) error {
	s, err := loadStore(c)
	if err != nil {
		return err
	}
	return printOutput(c, s.Metrics().Snapshot())
}

func contentsCommand(c *cli.Context) error {
	zipPath, err := zipArg(c)
	if err != nil {
		return err
	}
	s, err := loadStore(c)
	if err != nil {
		return err
	}
	contents, err := s.GetMasterContents(zipPath)
	if err != nil {
		return err
	}
	return printOutput(c, contents)
}

func entriesCommand(c *cli.Context) error {
	zipPath, err := zipArg(c)
	if err != nil {
		return err
	}
	s, err := loadStore(c)
	if err != nil {
		return err
	}
	entries, err := s.GetIndexEntries(zipPath, c.String("prefix"), c.Int("limit"))
	if err != nil {
		return err
	}
	return printOutput(c, entries)
}

func searchCommand(c *cli.Context) error {
	zipPath, err := zipArg(c)
	if err != nil {
		return err
	}
	query := c.Args().Get(1)
	if query == "" {
		return fmt.Errorf("search query required")
	}
	s, err := loadStore(c)
	if err != nil {
		return err
	}
	hits, err := s.SearchEntries(zipPath, query, c.Int("limit"))
	if err != nil {
		return err
	}
	return printOutput(c, hits)
}

func entryCommand(c *cli.Context) error {
	zipPath, err := zipArg(c)
	if err != nil {
		return err
	}
	idArg := c.Args().Get(1)
	if idArg == "" {
		return fmt.Errorf("entry id required")
	}
	var id int
	if _, err := fmt.Sscanf(idArg, "%d", &id); err != nil {
		return fmt.Errorf("invalid entry id %q: %w", idArg, err)
	}
	s, err := loadStore(c)
	if err != nil {
		return err
	}
	entry, err := s.GetEntryDetail(zipPath, id)
	if err != nil {
		return err
	}
	return printOutput(c, entry)
}

func pageCommand(c *cli.Context) error {
	zipPath, err := zipArg(c)
	if err != nil {
		return err
	}
	local := c.Args().Get(1)
	if local == "" {
		return fmt.Errorf("page local path required")
	}
	s, err := loadStore(c)
	if err != nil {
		return err
	}
	page, err := s.GetContentPage(zipPath, c.String("source"), local)
	if err != nil {
		return err
	}
	return printOutput(c, page)
}

func resolveLinkCommand(c *cli.Context) error {
	zipPath, err := zipArg(c)
	if err != nil {
		return err
	}
	href := c.Args().Get(1)
	if href == "" {
		return fmt.Errorf("href required")
	}
	s, err := loadStore(c)
	if err != nil {
		return err
	}
	target, err := s.ResolveLinkTarget(zipPath, href, c.String("source"), c.String("local"))
	if err != nil {
		return err
	}
	return printOutput(c, target)
}

func resolveMediaCommand(c *cli.Context) error {
	zipPath, err := zipArg(c)
	if err != nil {
		return err
	}
	href := c.Args().Get(1)
	if href == "" {
		return fmt.Errorf("href required")
	}
	s, err := loadStore(c)
	if err != nil {
		return err
	}
	dataURL, err := s.ResolveMediaDataURL(zipPath, href, c.String("source"), c.String("local"))
	if err != nil {
		return err
	}
	return printOutput(c, map[string]string{"dataUrl": dataURL})
}

func datasetSummaryCommand(c *cli.Context) error {
	zipPath, err := zipArg(c)
	if err != nil {
		return err
	}
	summary, err := dataset.SummarizeZip(zipPath)
	if err != nil {
		return err
	}
	return printOutput(c, summary)
}

func datasetImportCommand(c *cli.Context) error {
	zipPath, err := zipArg(c)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	managed, err := store.EnsureManagedZipCopy(cfg, zipPath)
	if err != nil {
		return err
	}
	return printOutput(c, map[string]string{"managedPath": managed})
}

func chmInspectCommand(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf(".chm file path required")
	}
	arc, err := chm.OpenFile(path)
	if err != nil {
		return err
	}
	defer arc.Close()

	entries := arc.Entries()
	fmt.Printf("%s: %d entries\n", path, len(entries))
	for _, e := range entries {
		fmt.Printf("  %s (%d bytes)\n", e.Path, e.Length)
	}
	return nil
}

func mcpCommand(c *cli.Context) error {
	s, err := loadStore(c)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	server := mcpsurface.New(cfg.MCP.ServerName, s)
	return server.Run(ctx)
}
