package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/ayusman/handtrace/internal/analyzer"
	"github.com/ayusman/handtrace/internal/capture"
	"github.com/ayusman/handtrace/internal/record"
	"github.com/ayusman/handtrace/internal/session"
	"github.com/ayusman/handtrace/internal/store"
)

func runAnalyze(args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	configPath := fs.String("config", "", "Configuration file")
	in := fs.String("in", "", "Video clip to analyze (required)")
	name := fs.String("name", "", "Session name (default: clip file name)")
	csvPath := fs.String("csv", "", "Also write the frame records to this CSV file")
	quiet := fs.Bool("quiet", false, "Do not print progress")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if *in == "" {
		fmt.Fprintln(os.Stderr, "Error: -in is required")
		fs.Usage()
		return errUsage
	}
	if *name == "" {
		*name = filepath.Base(*in)
	}

	cfg, logger, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	d, err := newDetector(cfg, logger)
	if err != nil {
		return fmt.Errorf("hand detector unavailable: %w", err)
	}
	defer d.Close()

	runner := session.NewRunner(st, d,
		session.WithLogger(logger),
		session.WithBatchSize(cfg.Analysis.BatchSize),
		session.WithAnalyzerOptions(
			analyzer.WithLogger(logger),
			analyzer.WithMaxImageSide(cfg.Analysis.MaxImageSide),
		),
	)

	sess := &store.Session{Name: *name, Source: *in}
	if err := st.Sessions().Create(sess); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var progress session.Progress
	if !*quiet {
		progress = printProgress
	}

	frames, err := runner.Analyze(ctx, capture.NewFile(*in), sess.ID, progress)
	if !*quiet {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return fmt.Errorf("analysis of %s stopped after %d frames: %w", *in, frames, err)
	}

	fmt.Printf("Session %s: %d frames analyzed\n", sess.ID, frames)

	if *csvPath != "" {
		rows, err := st.Records().List(sess.ID)
		if err != nil {
			return fmt.Errorf("failed to load records: %w", err)
		}
		if err := writeCSVFile(*csvPath, rows); err != nil {
			return err
		}
		logger.Info("records written", zap.String("path", *csvPath), zap.Int("rows", len(rows)))
	}
	return nil
}

func printProgress(done, total int) {
	if total > 0 {
		fmt.Fprintf(os.Stderr, "\rAnalyzed %d/%d frames (%.0f%%)", done, total, 100*float64(done)/float64(total))
		return
	}
	fmt.Fprintf(os.Stderr, "\rAnalyzed %d frames", done)
}

func writeCSVFile(path string, rows []record.Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := record.WriteCSV(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func readCSVFile(path string) ([]record.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := record.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return rows, nil
}
