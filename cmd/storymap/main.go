// Storymap: BPMN story-mapping MCP Server
//
// An MCP server that keeps a BPMN 2.0 business process next to the user
// stories that implement it, linking stories to process steps many-to-many
// and highlighting every step that has work attached.
//
// Usage:
//
//	storymap serve            # Start MCP server (stdio transport)
//	storymap export [path]    # Write the session backup to path or stdout
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/HendryAvila/storymap/internal/config"
	"github.com/HendryAvila/storymap/internal/logging"
	"github.com/HendryAvila/storymap/internal/metrics"
	smserver "github.com/HendryAvila/storymap/internal/server"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = run()
	case "export":
		path := ""
		if len(os.Args) > 2 {
			path = os.Args[2]
		}
		err = runExport(path)
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("storymap v%s\n", smserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads configuration and the logger shared by every command.
func setup() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("loading config: %w", err)
	}
	log, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("creating logger: %w", err)
	}
	return cfg, log, nil
}

func run() error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	// Graceful shutdown on interrupt.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := smserver.Bootstrap(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	log.Info("storymap ready",
		zap.String("version", smserver.Version),
		zap.String("storage", app.Backend),
		zap.String("diagram", app.Start.DiagramSource),
		zap.Int("highlighted", app.Start.Highlighted),
	)

	s := smserver.New(app)
	g, gctx := errgroup.WithContext(ctx)

	if app.Registry != nil {
		g.Go(func() error {
			log.Info("serving metrics", zap.String("addr", cfg.MetricsAddr))
			return metrics.Serve(gctx, cfg.MetricsAddr, app.Registry)
		})
	}

	g.Go(func() error {
		// stdout belongs to the MCP transport; everything else logs to stderr.
		err := server.NewStdioServer(s).Listen(gctx, os.Stdin, os.Stdout)
		stop()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	return g.Wait()
}

// runExport writes the stored session as an indented backup document.
// It reads the configured storage directly and never starts a session.
func runExport(path string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	data, err := smserver.ExportStored(context.Background(), cfg, log)
	if err != nil {
		return err
	}

	if path == "" {
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing backup: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Session exported to %s\n", path)
	return nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Storymap v%s — BPMN story-mapping MCP Server

Usage:
  storymap serve           Start the MCP server (stdio transport)
  storymap export [path]   Write the session backup to path (default stdout)
  storymap version         Print the version

Configuration:
  Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "storymap": {
        "command": "storymap",
        "args": ["serve"]
      }
    }
  }

  Settings are read from ~/.storymap/config.yaml and STORYMAP_* variables:
    STORYMAP_DATA_DIR     data directory (default ~/.storymap)
    STORYMAP_STORAGE      file | sqlite | redis | memory
    STORYMAP_REDIS_URL    redis connection URL
    STORYMAP_METRICS_ADDR expose Prometheus metrics on this address
    STORYMAP_LOG_LEVEL    debug | info | warn | error
`, smserver.Version)
}
