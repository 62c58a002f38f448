package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ironsheep/craft-text-detector/internal/batch"
	"github.com/ironsheep/craft-text-detector/internal/config"
	"github.com/ironsheep/craft-text-detector/internal/detection"
	"github.com/ironsheep/craft-text-detector/internal/ocr"
	"github.com/ironsheep/craft-text-detector/internal/report"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	config.Version = fmt.Sprintf("%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	config.LoadDotenv()

	opts, err := config.Parse(os.Args[1:], os.Stdout)
	if errors.Is(err, config.ErrHelp) || errors.Is(err, config.ErrVersion) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "craft: %v\n", err)
		os.Exit(2)
	}

	log, err := config.NewLogger(opts.LogLevel, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "craft: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	det, err := detection.New(opts, log)
	if err != nil {
		log.Fatalf("Failed to load detector: %v", err)
	}
	defer det.Close()

	if opts.Recognize {
		rec, err := ocr.NewRecognizer(opts.Lang, "")
		if err != nil {
			log.Fatalf("Failed to start recognizer: %v", err)
		}
		det.SetRecognizer(rec)
	}

	sum, err := batch.NewRunner(det, opts.Workers, log).Run(ctx, opts.TestFolder)
	if err != nil {
		log.Errorf("Batch failed: %v", err)
		det.Close()
		os.Exit(1)
	}

	if opts.ShowTime && len(sum.Items) > 1 {
		path, err := report.WriteTimingChart(sum, opts.ResultFolder)
		if err != nil {
			log.Warnf("Timing chart not written: %v", err)
		} else {
			log.Infof("Timing chart written to %s", path)
		}
	}

	if n := sum.Failed(); n > 0 {
		log.Warnf("%d of %d images failed", n, len(sum.Items))
		det.Close()
		os.Exit(1)
	}
}
