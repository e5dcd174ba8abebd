// Package main is the entry point for the prosecheck demo editor: a
// minimal terminal text pad with live spell/grammar annotations and
// ghost-text suggestions.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dshills/prosecheck/internal/annotate"
	"github.com/dshills/prosecheck/internal/config"
	"github.com/dshills/prosecheck/internal/suggest/backend"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

type options struct {
	configPath string
	dictPath   string
	backend    string
	model      string
	filePath   string
}

func run() int {
	opts := parseFlags()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if opts.dictPath != "" {
		cfg.Dictionary.Path = opts.dictPath
	}
	if opts.backend != "" {
		cfg.Suggest.Backend = opts.backend
	}
	if opts.model != "" {
		cfg.Suggest.Model = opts.model
	}

	store, err := config.OpenStore(cfg.Dictionary.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open dictionary: %v\n", err)
		return 1
	}
	defer store.Close()

	ctx := context.Background()
	bk, err := backend.New(ctx, cfg.Suggest.Backend, apiKeyFor(cfg.Suggest.Backend), cfg.Suggest.Model)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	var text string
	if opts.filePath != "" {
		data, err := os.ReadFile(opts.filePath)
		if err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error: reading %s: %v\n", opts.filePath, err)
			return 1
		}
		text = string(data)
	}

	scripts, err := loadLuaScripts(cfg.Rules.Lua)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	engine := annotate.NewEngine(text,
		annotate.WithBackend(bk),
		annotate.WithExtraLookups(store),
		annotate.WithLuaScripts(scripts...),
		annotate.WithCheckDebounce(cfg.CheckDebounce()),
		annotate.WithCheckTimeout(cfg.CheckTimeout()),
		annotate.WithSuggestDebounce(cfg.SuggestDebounce()),
		annotate.WithCacheCapacity(cfg.Check.CacheCapacity),
		annotate.WithWorkers(cfg.Check.Workers),
		annotate.WithTriggerMarker(cfg.TriggerMarker()),
	)

	// External edits to the word list invalidate cached results.
	if err := store.Watch(engine.RuleEpochBump); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to watch dictionary: %v\n", err)
		return 1
	}

	ed, err := newEditor(engine, opts.filePath, store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create terminal: %v\n", err)
		return 1
	}

	engine.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = engine.Stop(stopCtx)
	}()

	if err := ed.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// apiKeyFor reads the conventional environment variable for a backend.
func apiKeyFor(name string) string {
	switch name {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "gemini":
		return os.Getenv("GEMINI_API_KEY")
	default:
		return ""
	}
}

func loadLuaScripts(paths []string) ([]annotate.LuaScript, error) {
	var out []annotate.LuaScript
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading lua rule %s: %w", p, err)
		}
		out = append(out, annotate.LuaScript{Name: p, Script: string(data)})
	}
	return out, nil
}

func parseFlags() options {
	var opts options
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.configPath, "config", config.DefaultPath(), "Path to configuration file")
	flag.StringVar(&opts.configPath, "c", config.DefaultPath(), "Path to configuration file (shorthand)")
	flag.StringVar(&opts.dictPath, "dict", "", "Path to personal dictionary file")
	flag.StringVar(&opts.backend, "backend", "", "Suggestion backend (static, openai, anthropic, gemini)")
	flag.StringVar(&opts.model, "model", "", "Model override for the suggestion backend")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Prosecheck - live writing annotations in your terminal\n\n")
		fmt.Fprintf(os.Stderr, "Usage: prosecheck [options] [file]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nKeys:\n")
		fmt.Fprintf(os.Stderr, "  type ++      Request a suggestion at the cursor\n")
		fmt.Fprintf(os.Stderr, "  Tab          Accept the displayed suggestion\n")
		fmt.Fprintf(os.Stderr, "  Esc          Dismiss the displayed suggestion\n")
		fmt.Fprintf(os.Stderr, "  Ctrl+A       Accept the first fix under the cursor\n")
		fmt.Fprintf(os.Stderr, "  Ctrl+G       Ignore the finding under the cursor\n")
		fmt.Fprintf(os.Stderr, "  Ctrl+D       Add the word under the cursor to the dictionary\n")
		fmt.Fprintf(os.Stderr, "  Ctrl+S       Save (when a file was given)\n")
		fmt.Fprintf(os.Stderr, "  Ctrl+Q       Quit\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if showVersion {
		fmt.Printf("prosecheck %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		os.Exit(0)
	}

	if flag.NArg() > 0 {
		opts.filePath = flag.Arg(0)
	}
	return opts
}
