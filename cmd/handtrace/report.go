package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/ayusman/handtrace/internal/record"
	"github.com/ayusman/handtrace/internal/report"
)

func runReport(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	csvPath := fs.String("csv", "", "Frame records CSV (required)")
	out := fs.String("out", "", "Chart file, .png or .html (default: summary only)")
	statsFlag := fs.String("stats", "", "Comma-separated stats to chart (default: velocity,speed,distance,direction_changes)")
	title := fs.String("title", "", "Chart title (default: CSV file name)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if *csvPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -csv is required")
		fs.Usage()
		return errUsage
	}

	stats, err := parseStats(*statsFlag)
	if err != nil {
		return err
	}

	rows, err := readCSVFile(*csvPath)
	if err != nil {
		return err
	}

	writeSummary(stdout, rows)

	if *out == "" {
		return nil
	}
	if *title == "" {
		*title = filepath.Base(*csvPath)
	}
	if err := writeChart(*out, *title, rows, stats); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "\nWrote chart to %s\n", *out)
	return nil
}

// parseStats splits a comma-separated stat list and checks every name.
func parseStats(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var stats []string
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !slices.Contains(record.StatNames, name) {
			return nil, fmt.Errorf("unknown stat %q, expected one of %s", name, strings.Join(record.StatNames, ", "))
		}
		stats = append(stats, name)
	}
	return stats, nil
}

// writeChart writes an HTML page of every stat, or a PNG of the first one.
func writeChart(path, title string, rows []record.Row, stats []string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".png" && ext != ".html" && ext != ".htm" {
		return fmt.Errorf("unsupported chart format %q, use .png or .html", ext)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if ext == ".png" {
		stat := record.StatVelocity
		if len(stats) > 0 {
			stat = stats[0]
		}
		err = report.WritePNG(f, rows, stat)
	} else {
		err = report.WriteHTML(f, title, rows, stats...)
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func writeSummary(w io.Writer, rows []record.Row) {
	fmt.Fprintf(w, "%d frames\n\n", len(rows))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HAND\tDETECTED\tMAX VELOCITY\tMEAN VELOCITY\tMAX DISTANCE\tTOTAL DISTANCE\tDIRECTION CHANGES\tMEAN CONFIDENCE")
	for _, s := range report.Summarize(rows) {
		fmt.Fprintf(tw, "%s\t%d\t%.4f\t%.4f\t%.4f\t%.4f\t%d\t%.2f\n",
			s.Side, s.DetectedFrames, s.MaxVelocity, s.MeanVelocity, s.MaxDistance, s.TotalDistance, s.DirectionChanges, s.MeanConfidence)
	}
	tw.Flush()
}
