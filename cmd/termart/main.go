// Package main is the entry point for the termart viewer, a small
// host that renders the graphics blocks of a markdown file into the
// current terminal.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	xterm "golang.org/x/term"

	"github.com/dshills/termart/internal/applog"
	"github.com/dshills/termart/internal/config"
	"github.com/dshills/termart/internal/engine"
	"github.com/dshills/termart/internal/render/core"
	"github.com/dshills/termart/internal/renderext"
	"github.com/dshills/termart/internal/term"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// drawInterval is how often the viewer polls the draw loop.
const drawInterval = 50 * time.Millisecond

type options struct {
	configPath string
	logLevel   string
	topLine    int
	file       string
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		return 1
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	log := applog.New(applog.Config{
		Level:  applog.ParseLevel(cfg.Log.Level),
		Prefix: "termart",
	})

	runner, err := renderext.New(cfg.Render, log.WithComponent("renderext"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize renderer: %v\n", err)
		return 1
	}

	fd := int(os.Stdout.Fd())
	cellW, cellH := term.CellSize(fd)

	eng, err := engine.New(cfg, runner,
		engine.WithLogger(log),
		engine.WithCellSize(cellW, cellH),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize engine: %v\n", err)
		return 1
	}
	defer eng.Close()

	cols, rows, err := xterm.GetSize(fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: stdout is not a terminal: %v\n", err)
		return 1
	}

	text, err := os.ReadFile(opts.file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	eng.UpdateMetadata(core.Metadata{
		TopLine:    opts.topLine,
		BottomLine: opts.topLine + rows - 1,
		Rows:       rows,
		Cols:       cols,
		CursorLine: opts.topLine,
		OriginRow:  1,
	})
	delta := eng.UpdateContent(string(text))
	reportMessages(delta.Messages)

	// Handle signals for graceful shutdown: erase graphics before exit.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(drawInterval)
	defer ticker.Stop()

	for {
		select {
		case <-signals:
			if err := eng.ClearAll(os.Stdout); err != nil {
				log.Error("clear failed: %v", err)
				return 1
			}
			return 0
		case <-ticker.C:
			rep, err := eng.Draw(os.Stdout)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: draw failed: %v\n", err)
				return 1
			}
			reportMessages(rep.Messages)
		}
	}
}

func reportMessages(msgs []string) {
	for _, m := range msgs {
		fmt.Fprintf(os.Stderr, "termart: %s\n", m)
	}
}

func parseFlags() options {
	var opts options
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.configPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.IntVar(&opts.topLine, "top", 1, "First visible buffer line")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Termart - terminal graphics for markdown buffers\n\n")
		fmt.Fprintf(os.Stderr, "Usage: termart [options] file.md\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  termart notes.md            Render graphics blocks of a file\n")
		fmt.Fprintf(os.Stderr, "  termart -top 50 notes.md    Render as if scrolled to line 50\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("Termart %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	opts.file = flag.Arg(0)
	return opts
}
