package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ironsheep/craft-text-detector/internal/config"
	"github.com/ironsheep/craft-text-detector/internal/detection"
	"github.com/ironsheep/craft-text-detector/internal/ocr"
	"github.com/ironsheep/craft-text-detector/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	config.Program = "craft-mcp"
	config.Version = fmt.Sprintf("%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	config.LoadDotenv()

	// Help and version go to stderr; stdout is for MCP protocol
	opts, err := config.Parse(os.Args[1:], os.Stderr)
	if errors.Is(err, config.ErrHelp) || errors.Is(err, config.ErrVersion) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "craft-mcp: %v\n", err)
		os.Exit(2)
	}

	if lvl := os.Getenv("CRAFT_MCP_LOG_LEVEL"); lvl != "" {
		opts.LogLevel = lvl
	}
	log, err := config.NewLogger(opts.LogLevel, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "craft-mcp: %v\n", err)
		os.Exit(2)
	}
	log.Debugf("CRAFT MCP Server v%s (built %s, commit %s)", Version, BuildTime, GitCommit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	det, err := detection.New(opts, log)
	if err != nil {
		log.Fatalf("Failed to load detector: %v", err)
	}
	defer det.Close()

	srvOpts := []server.Option{server.WithVersion(Version)}
	if opts.Recognize {
		rec, err := ocr.NewRecognizer(opts.Lang, "")
		if err != nil {
			log.Fatalf("Failed to start recognizer: %v", err)
		}
		// The detector closes it on shutdown.
		det.SetRecognizer(rec)
		srvOpts = append(srvOpts, server.WithRecognizer(rec))
	}

	srv := server.New(det, log, srvOpts...)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("Server error: %v", err)
		det.Close()
		os.Exit(1)
	}
}
