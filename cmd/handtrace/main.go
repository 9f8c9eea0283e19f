package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ayusman/handtrace/internal/config"
	"github.com/ayusman/handtrace/internal/detector"
	"github.com/ayusman/handtrace/internal/logging"
)

const version = "0.1.0"

// errUsage marks argument errors; the subcommand's usage has already been
// printed.
var errUsage = errors.New("invalid arguments")

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	var err error
	switch command {
	case "serve":
		err = runServe(args)
	case "analyze":
		err = runAnalyze(args)
	case "render":
		err = runRender(args)
	case "report":
		err = runReport(args, os.Stdout)
	case "version":
		fmt.Printf("handtrace version %s\n", version)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`handtrace - Hand motion analysis and visualization

Usage: handtrace <command> [options]

Commands:
  serve      Run the HTTP API (and the live camera pipeline if enabled)
  analyze    Analyze a video clip into frame records
  render     Draw a trail or heatmap overlay for one frame
  report     Chart per-frame statistics from a records CSV
  version    Show handtrace version
  help       Show this help message

Common Flags:
  -config <file>   Configuration file (default: handtrace.yaml or $HANDTRACE_CONFIG)

Examples:
  handtrace serve -config handtrace.yaml
  handtrace analyze -in clip.mp4 -csv clip.csv
  handtrace render -in clip.mp4 -csv clip.csv -frame 120 -mode heatmap -out heat.jpg
  handtrace report -csv clip.csv -out clip.html -stats velocity,speed`)
}

// setup loads configuration and builds the logger shared by all commands.
func setup(configPath string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

// newDetector starts the MediaPipe landmark service behind a circuit breaker.
func newDetector(cfg *config.Config, logger *zap.Logger) (detector.Detector, error) {
	mp, err := detector.NewMediaPipeDetector(cfg.Detector, logger)
	if err != nil {
		return nil, err
	}
	return detector.NewBreakerDetector(mp, cfg.Breaker, logger), nil
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.handtrace/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".handtrace", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
