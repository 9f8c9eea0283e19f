package main

import (
	"flag"
	"fmt"
	"os"

	"gocv.io/x/gocv"

	"github.com/ayusman/handtrace/internal/capture"
	"github.com/ayusman/handtrace/internal/render"
)

const (
	modeTrail   = "trail"
	modeHeatmap = "heatmap"
)

func runRender(args []string) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	configPath := fs.String("config", "", "Configuration file")
	in := fs.String("in", "", "Source video clip (required)")
	csvPath := fs.String("csv", "", "Frame records CSV (required)")
	frame := fs.Int("frame", 0, "Frame to draw on")
	mode := fs.String("mode", modeTrail, "Overlay: trail or heatmap")
	out := fs.String("out", "", "Output image, format chosen by extension (required)")
	start := fs.Int("start", -1, "First frame stamped into the heatmap (default: all)")
	end := fs.Int("end", -1, "Last frame stamped into the heatmap (default: all)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if *in == "" || *csvPath == "" || *out == "" {
		fmt.Fprintln(os.Stderr, "Error: -in, -csv and -out are required")
		fs.Usage()
		return errUsage
	}
	if *mode != modeTrail && *mode != modeHeatmap {
		fmt.Fprintf(os.Stderr, "Error: unknown mode %q\n", *mode)
		fs.Usage()
		return errUsage
	}

	cfg, logger, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	rows, err := readCSVFile(*csvPath)
	if err != nil {
		return err
	}
	if *frame < 0 || *frame >= len(rows) {
		return fmt.Errorf("frame %d out of range, %s has %d records", *frame, *csvPath, len(rows))
	}

	src := capture.NewFile(*in)
	if err := src.Open(); err != nil {
		return fmt.Errorf("failed to open %s: %w", *in, err)
	}
	defer src.Close()

	bg, err := src.ReadFrameAt(*frame)
	if err != nil {
		return fmt.Errorf("failed to read frame %d: %w", *frame, err)
	}
	defer bg.Close()

	renderer := render.New(cfg.Visualization)

	var img gocv.Mat
	switch *mode {
	case modeTrail:
		img = renderer.Trail(*bg, rows, *frame)
	case modeHeatmap:
		var opts []render.HeatmapOption
		if *start >= 0 || *end >= 0 {
			lo, hi := *start, *end
			if lo < 0 {
				lo = 0
			}
			if hi < 0 {
				hi = len(rows) - 1
			}
			opts = append(opts, render.WithRange(lo, hi))
		}
		img = renderer.Heatmap(*bg, rows, *frame, opts...)
	}
	defer img.Close()

	if !gocv.IMWrite(*out, img) {
		return fmt.Errorf("failed to write %s", *out)
	}
	fmt.Printf("Wrote %s overlay of frame %d to %s\n", *mode, *frame, *out)
	return nil
}
