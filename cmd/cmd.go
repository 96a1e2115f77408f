// Package cmd provides CLI command implementations for codegraph.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/codegraph-dev/codegraph/internal/config"
	"github.com/codegraph-dev/codegraph/internal/graph"
	"github.com/codegraph-dev/codegraph/internal/scan"
	"github.com/codegraph-dev/codegraph/internal/server"
	"github.com/codegraph-dev/codegraph/internal/storage"
	"github.com/codegraph-dev/codegraph/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

// BuildCmd scans a workspace and persists its dependency graph.
type BuildCmd struct {
	Path string `arg:"" optional:"" default:"." help:"Workspace root"`
}

// Run executes the build command.
func (c *BuildCmd) Run(cli *CLI) error {
	ctx := context.Background()
	started := time.Now()

	root, cfg, err := resolveWorkspace(c.Path, cli.Config)
	if err != nil {
		return err
	}

	color.Green("Building graph for %s", root)

	payload, result, err := buildPayload(ctx, root, cfg, cli.logger())
	if err != nil {
		return err
	}

	store, err := openStorage(root, cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	meta := storage.Meta{
		Root:    root,
		BuiltAt: time.Now().UTC(),
		Files:   len(result.Records),
	}
	if err := store.SaveGraph(ctx, payload, meta); err != nil {
		return fmt.Errorf("saving graph: %w", err)
	}

	if err := writeMetaFile(cfg.StorageDir(root), meta, payload.Stats); err != nil {
		return err
	}

	color.Green("\n✓ Graph built")
	fmt.Printf("  Files:      %d\n", len(result.Records))
	fmt.Printf("  Nodes:      %d (folders: %d, files: %d, functions: %d)\n",
		payload.Stats.TotalNodes,
		payload.Stats.NodesByType.Folder,
		payload.Stats.NodesByType.File,
		payload.Stats.NodesByType.Function)
	fmt.Printf("  Edges:      %d (contains: %d, imports: %d, calls: %d)\n",
		payload.Stats.TotalEdges,
		payload.Stats.EdgesByType.Contains,
		payload.Stats.EdgesByType.Imports,
		payload.Stats.EdgesByType.Calls)
	fmt.Printf("  Duration:   %.2fs\n", time.Since(started).Seconds())
	if result.Skipped > 0 {
		color.Yellow("  Skipped %d file(s) over the max_files limit", result.Skipped)
	}

	return nil
}

// ServeCmd serves the graph over HTTP and WebSocket.
type ServeCmd struct {
	Path  string `arg:"" optional:"" default:"." help:"Workspace root"`
	Addr  string `help:"Listen address (overrides config)"`
	Watch bool   `short:"w" help:"Rebuild and broadcast on file changes"`
}

// Run executes the serve command.
func (c *ServeCmd) Run(cli *CLI) error {
	root, cfg, err := resolveWorkspace(c.Path, cli.Config)
	if err != nil {
		return err
	}
	log := cli.logger()

	// Watch mode needs a writable store for rebuilds; otherwise a prior
	// build must exist.
	var store *storage.BadgerBackend
	if c.Watch {
		store, err = openStorage(root, cfg, false)
	} else {
		store, err = openExistingStorage(root, cfg)
	}
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// An empty watch-mode store would serve nothing but 404s until the
	// first change, so build up front.
	if c.Watch {
		if _, err := store.Stats(ctx); err == storage.ErrNoGraph {
			if err := rebuild(ctx, root, cfg, log, store, nil); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
	}

	srv := server.New(store, log)

	if c.Watch {
		watcher, err := scan.NewWatcher(root, cfg.Watch.Debounce, log, func(ctx context.Context) error {
			return rebuild(ctx, root, cfg, log, store, srv)
		})
		if err != nil {
			return err
		}
		go func() {
			if err := watcher.Run(ctx); err != nil && err != context.Canceled {
				log.WithError(err).Error("watcher stopped")
			}
		}()
	}

	addr := c.Addr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	color.Green("Serving graph on http://%s (Ctrl+C to stop)", addr)
	return srv.Run(ctx, addr)
}

// WatchCmd rebuilds the stored graph on every file change.
type WatchCmd struct {
	Path string `arg:"" optional:"" default:"." help:"Workspace root"`
}

// Run executes the watch command.
func (c *WatchCmd) Run(cli *CLI) error {
	root, cfg, err := resolveWorkspace(c.Path, cli.Config)
	if err != nil {
		return err
	}
	log := cli.logger()

	store, err := openStorage(root, cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initial build so the store never serves a stale snapshot.
	if err := rebuild(ctx, root, cfg, log, store, nil); err != nil {
		return err
	}

	fmt.Printf("Watching %s for changes (Ctrl+C to stop)\n", root)

	watcher, err := scan.NewWatcher(root, cfg.Watch.Debounce, log, func(ctx context.Context) error {
		return rebuild(ctx, root, cfg, log, store, nil)
	})
	if err != nil {
		return err
	}

	if err := watcher.Run(ctx); err != nil && err != context.Canceled {
		return fmt.Errorf("watch error: %w", err)
	}

	fmt.Println("Watch mode stopped.")
	return nil
}

// MCPCmd starts the MCP server (stdio transport).
type MCPCmd struct {
	Path string `arg:"" optional:"" default:"." help:"Workspace root"`
}

// Run executes the mcp command.
func (c *MCPCmd) Run(cli *CLI) error {
	root, cfg, err := resolveWorkspace(c.Path, cli.Config)
	if err != nil {
		return err
	}

	store, err := openExistingStorage(root, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	// Note: No output to stdout - the MCP server uses stdio for JSON-RPC only
	return mcp.NewServer(store).Run(context.Background(), os.Stdin, os.Stdout)
}

// FindCmd searches stored nodes by name or path.
type FindCmd struct {
	Query string `arg:"" help:"Substring to match against node labels and paths"`
	Limit int    `short:"n" default:"20" help:"Maximum results"`
}

// Run executes the find command.
func (c *FindCmd) Run(cli *CLI) error {
	ctx := context.Background()

	root, cfg, err := resolveWorkspace(".", cli.Config)
	if err != nil {
		return err
	}
	store, err := openExistingStorage(root, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	nodes, err := store.FindNodes(ctx, c.Query, c.Limit)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}
	if len(nodes) == 0 {
		fmt.Println("No results found")
		return nil
	}

	for i, n := range nodes {
		fmt.Printf("\n%d. %s (%s, id: %s)\n", i+1, n.Label, n.Type, n.ID)
		fmt.Printf("   Path: %s\n", n.Path)
		if n.Type == graph.NodeFunction {
			fmt.Printf("   Lines: %d-%d\n", n.Line, n.EndLine)
		}
	}

	return nil
}

// StatsCmd prints stats for the stored graph.
type StatsCmd struct{}

// Run executes the stats command.
func (c *StatsCmd) Run(cli *CLI) error {
	ctx := context.Background()

	root, cfg, err := resolveWorkspace(".", cli.Config)
	if err != nil {
		return err
	}
	store, err := openExistingStorage(root, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	_, meta, err := store.LoadGraph(ctx)
	if err == storage.ErrNoGraph {
		return fmt.Errorf("no graph found for %s, run 'codegraph build' first", root)
	}
	if err != nil {
		return err
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Graph for %s\n", meta.Root)
	fmt.Printf("  Built:      %s\n", meta.BuiltAt.Format(time.RFC3339))
	fmt.Printf("  Files:      %d\n", meta.Files)
	fmt.Printf("  Nodes:      %d\n", stats.TotalNodes)
	fmt.Printf("    folder:   %d\n", stats.NodesByType.Folder)
	fmt.Printf("    file:     %d\n", stats.NodesByType.File)
	fmt.Printf("    function: %d\n", stats.NodesByType.Function)
	fmt.Printf("  Edges:      %d\n", stats.TotalEdges)
	fmt.Printf("    contains: %d\n", stats.EdgesByType.Contains)
	fmt.Printf("    imports:  %d\n", stats.EdgesByType.Imports)
	fmt.Printf("    calls:    %d\n", stats.EdgesByType.Calls)

	return nil
}

// FilterCmd prints the stored graph reduced to the given node types.
type FilterCmd struct {
	Types []string `arg:"" help:"Node types to keep (folder, file, function)"`
}

// Run executes the filter command.
func (c *FilterCmd) Run(cli *CLI) error {
	ctx := context.Background()

	allowed := make([]graph.NodeType, 0, len(c.Types))
	for _, raw := range c.Types {
		switch t := graph.NodeType(strings.TrimSpace(raw)); t {
		case graph.NodeFolder, graph.NodeFile, graph.NodeFunction:
			allowed = append(allowed, t)
		default:
			return fmt.Errorf("unknown node type %q (allowed: folder, file, function)", raw)
		}
	}

	root, cfg, err := resolveWorkspace(".", cli.Config)
	if err != nil {
		return err
	}
	store, err := openExistingStorage(root, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	payload, _, err := store.LoadGraph(ctx)
	if err == storage.ErrNoGraph {
		return fmt.Errorf("no graph found for %s, run 'codegraph build' first", root)
	}
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(graph.Filter(payload, allowed...), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling graph: %w", err)
	}
	fmt.Println(string(data))

	return nil
}

// CleanCmd deletes the stored graph for a workspace.
type CleanCmd struct {
	Path  string `arg:"" optional:"" default:"." help:"Workspace root"`
	Force bool   `short:"f" help:"Skip confirmation"`
}

// Run executes the clean command.
func (c *CleanCmd) Run(cli *CLI) error {
	root, cfg, err := resolveWorkspace(c.Path, cli.Config)
	if err != nil {
		return err
	}

	dir := cfg.StorageDir(root)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("no graph found at %s, nothing to clean", dir)
	}

	if !c.Force {
		fmt.Printf("Delete graph store at %s? [y/N] ", dir)
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted")
			return nil
		}
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("deleting graph store: %w", err)
	}

	color.Green("Deleted %s", dir)
	return nil
}

// Helper functions

// resolveWorkspace resolves the workspace root and loads its config.
func resolveWorkspace(path, configPath string) (string, *config.Config, error) {
	root, err := filepath.Abs(path)
	if err != nil {
		return "", nil, fmt.Errorf("resolving path: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", nil, fmt.Errorf("accessing %s: %w", root, err)
	}
	if !info.IsDir() {
		return "", nil, fmt.Errorf("%s is not a directory", root)
	}

	cfg, err := config.Load(root, configPath)
	if err != nil {
		return "", nil, err
	}
	return root, cfg, nil
}

// buildPayload scans the workspace and builds a fresh graph payload.
func buildPayload(ctx context.Context, root string, cfg *config.Config, log *logrus.Logger) (*graph.Payload, *scan.Result, error) {
	scanner, err := scan.NewScanner(root, cfg.Scan, log)
	if err != nil {
		return nil, nil, err
	}
	result, err := scanner.Scan(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("scanning %s: %w", root, err)
	}

	payload := graph.NewBuilder(root).Build(result.Records)
	return payload, result, nil
}

// rebuild scans, rebuilds, persists, and (when srv is non-nil) broadcasts
// the fresh payload.
func rebuild(ctx context.Context, root string, cfg *config.Config, log *logrus.Logger, store storage.Backend, srv *server.Server) error {
	payload, result, err := buildPayload(ctx, root, cfg, log)
	if err != nil {
		return err
	}

	meta := storage.Meta{Root: root, BuiltAt: time.Now().UTC(), Files: len(result.Records)}
	if err := store.SaveGraph(ctx, payload, meta); err != nil {
		return fmt.Errorf("saving graph: %w", err)
	}
	if err := writeMetaFile(cfg.StorageDir(root), meta, payload.Stats); err != nil {
		return err
	}

	if srv != nil {
		srv.Broadcast(payload)
	}
	log.WithFields(logrus.Fields{
		"nodes": payload.Stats.TotalNodes,
		"edges": payload.Stats.TotalEdges,
	}).Info("graph rebuilt")

	return nil
}

// openStorage opens (creating if needed) the badger store for a workspace.
func openStorage(root string, cfg *config.Config, readOnly bool) (*storage.BadgerBackend, error) {
	dir := cfg.StorageDir(root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}

	store := storage.NewBadgerBackend()
	if err := store.Initialize(filepath.Join(dir, "badger"), readOnly); err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	return store, nil
}

// openExistingStorage opens the store read-only and fails when no build
// has happened yet.
func openExistingStorage(root string, cfg *config.Config) (*storage.BadgerBackend, error) {
	dbPath := filepath.Join(cfg.StorageDir(root), "badger")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("no graph found for %s, run 'codegraph build' first", root)
	}

	store := storage.NewBadgerBackend()
	if err := store.Initialize(dbPath, true); err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	return store, nil
}

// writeMetaFile writes meta.json beside the badger store.
func writeMetaFile(dir string, meta storage.Meta, stats graph.Stats) error {
	doc := map[string]any{
		"version":  Version,
		"name":     filepath.Base(meta.Root),
		"path":     meta.Root,
		"files":    meta.Files,
		"stats":    stats,
		"built_at": meta.BuiltAt.Format(time.RFC3339),
	}

	data, _ := json.MarshalIndent(doc, "", "  ")
	data = append(data, '\n')
	if err := os.WriteFile(filepath.Join(dir, "meta.json"), data, 0o644); err != nil {
		return fmt.Errorf("writing meta.json: %w", err)
	}
	return nil
}

// CLI is the root Kong command structure.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`
	Config  string           `short:"c" help:"Path to config file" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`

	// Commands
	Build  BuildCmd  `cmd:"" help:"Scan a workspace and build its dependency graph"`
	Serve  ServeCmd  `cmd:"" help:"Serve the graph over HTTP and WebSocket"`
	Watch  WatchCmd  `cmd:"" help:"Rebuild the graph on every file change"`
	MCP    MCPCmd    `cmd:"" help:"Start MCP server (stdio transport)"`
	Find   FindCmd   `cmd:"" help:"Search graph nodes by name or path"`
	Stats  StatsCmd  `cmd:"" help:"Show stats for the stored graph"`
	Filter FilterCmd `cmd:"" help:"Print the graph reduced to given node types"`
	Clean  CleanCmd  `cmd:"" help:"Delete the stored graph"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// logger builds the logrus logger shared by long-running components.
func (c *CLI) logger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if c.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	kongCtx := kong.Parse(c,
		kong.Name("codegraph"),
		kong.Description("Dependency graph explorer for source trees"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
	)

	return kongCtx.Run(c)
}
