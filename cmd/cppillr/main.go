package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/xplshn/cppillr/pkg/cli"
	"github.com/xplshn/cppillr/pkg/config"
	"github.com/xplshn/cppillr/pkg/eval"
	"github.com/xplshn/cppillr/pkg/metrics"
	"github.com/xplshn/cppillr/pkg/pipeline"
	"github.com/xplshn/cppillr/pkg/report"
	"github.com/xplshn/cppillr/pkg/telemetry"
	"github.com/xplshn/cppillr/pkg/util"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	threads       int
	filelist      string
	configFile    string
	metricsFile   string
	traceFile     string
	verbose       bool
	wall          bool
	wnoall        bool
	showTime      bool
	showTokens    bool
	showIncludes  bool
	showFunctions bool
	countTokens   bool
	countLines    bool
	keywordStats  bool
	summary       bool
}

func run(args []string, stdout, stderr io.Writer) int {
	app := cli.NewApp("cppillr")
	app.Synopsis = "<command> [options] <files...>"
	app.Description = "Lexes and parses C-family source files in parallel. The 'run' command then evaluates the only main function and exits with the value it returns."
	app.Authors = []string{"xplshn"}
	app.Repository = "<https://github.com/xplshn/cppillr>"
	app.Commands = []cli.Command{
		{Name: "run", Usage: "Parse the files and evaluate main."},
		{Name: "parse", Usage: "Parse the files and print the requested reports."},
	}
	app.Stdout, app.Stderr = stdout, stderr

	var opts options
	fs := app.FlagSet
	fs.Int(&opts.threads, "threads", "j", 0, "Number of worker threads (0 uses the configured value or the CPU count).", "n")
	fs.String(&opts.filelist, "filelist", "", "", "Read more input files from <file>, one per line.", "file")
	fs.String(&opts.configFile, "config", "c", "", "Load settings from a YAML file.", "file")
	fs.String(&opts.metricsFile, "metrics-file", "", "", "Write Prometheus metrics to <file> on exit.", "file")
	fs.String(&opts.traceFile, "trace-file", "", "", "Write OpenTelemetry spans as JSON to <file>.", "file")
	fs.Bool(&opts.verbose, "verbose", "v", false, "Log progress to standard error.")
	fs.Bool(&opts.wall, "Wall", "", false, "Enable all warnings.")
	fs.Bool(&opts.wnoall, "Wno-all", "", false, "Disable all warnings.")
	fs.Bool(&opts.showTime, "show-time", "", false, "Print the time spent in each stage.")
	fs.Bool(&opts.showTokens, "show-tokens", "", false, "Dump the tokens of every file.")
	fs.Bool(&opts.showIncludes, "show-includes", "", false, "List the included headers with their #if conditions.")
	fs.Bool(&opts.showFunctions, "show-functions", "", false, "List the function definitions found.")
	fs.Bool(&opts.countTokens, "count-tokens", "", false, "Print the total number of tokens.")
	fs.Bool(&opts.countLines, "count-lines", "", false, "Print the total number of lines holding tokens.")
	fs.Bool(&opts.keywordStats, "keyword-stats", "", false, "Print how often each keyword is used.")
	fs.Bool(&opts.summary, "summary", "", false, "Print a per-file summary.")

	cfg := config.NewConfig()
	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)

	status := 0
	app.Action = func(command string, files []string) error {
		util.SetOutput(stderr)

		level := slog.LevelWarn
		if opts.verbose {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

		if opts.configFile != "" {
			if err := cfg.LoadFile(opts.configFile); err != nil {
				return err
			}
		}
		// Flags take precedence over the file; -Wall first so that single
		// warnings can still be turned off after it.
		if opts.wall {
			cfg.SetAllWarnings(true)
		}
		if opts.wnoall {
			cfg.SetAllWarnings(false)
		}
		cfg.ApplyFlagGroups(warningFlags, featureFlags)
		if opts.threads < 0 {
			return fmt.Errorf("invalid thread count %d", opts.threads)
		}
		if opts.threads > 0 {
			cfg.Threads = opts.threads
		}

		if opts.filelist != "" {
			more, err := readFileList(opts.filelist)
			if err != nil {
				return err
			}
			files = append(files, more...)
		}
		if len(files) == 0 {
			files = []string{"-"}
		}

		var err error
		status, err = analyze(command, files, cfg, &opts, logger, stdout)
		return err
	}

	// Usage errors are printed by app.Run itself
	app.Action = reportErrors(app.Action)
	if err := app.Run(args); err != nil {
		return max(status, 1)
	}
	return status
}

func reportErrors(action func(string, []string) error) func(string, []string) error {
	return func(command string, args []string) error {
		err := action(command, args)
		if err != nil {
			util.Report(err)
		}
		return err
	}
}

func analyze(command string, files []string, cfg *config.Config, opts *options, logger *slog.Logger, stdout io.Writer) (int, error) {
	ctx := context.Background()
	logger.Debug("running command", "command", command, "files", len(files), "threads", cfg.Threads)

	var traceOut io.Writer
	if opts.traceFile != "" {
		f, err := os.Create(opts.traceFile)
		if err != nil {
			return 1, err
		}
		defer f.Close()
		traceOut = f
	}
	shutdown, err := telemetry.Init(traceOut, version)
	if err != nil {
		return 1, err
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			logger.Error("flushing traces", "err", err)
		}
	}()

	m := metrics.New()
	if opts.metricsFile != "" {
		defer func() {
			if err := m.WriteFile(opts.metricsFile); err != nil {
				logger.Error("writing metrics", "file", opts.metricsFile, "err", err)
			}
		}()
	}

	start := time.Now()
	res := pipeline.Run(ctx, cfg, files, pipeline.Options{Metrics: m, Logger: logger})
	elapsed := time.Since(start)
	if opts.showTime {
		fmt.Fprintf(stdout, "parse files: %s\n", elapsed.Round(time.Microsecond))
	}

	if err := printReports(ctx, stdout, res, cfg, opts, elapsed); err != nil {
		return 1, err
	}

	status := 0
	if res.FileErrors != nil {
		status = 1
	}
	if command != "run" {
		return status, nil
	}

	start = time.Now()
	status, err = eval.Run(res.Store, cfg)
	if err != nil {
		util.Report(err)
		return 1, nil
	}
	if opts.showTime {
		fmt.Fprintf(stdout, "run main: %s\n", time.Since(start).Round(time.Microsecond))
	}
	logger.Debug("main returned", "status", status)
	return status, nil
}

func printReports(ctx context.Context, w io.Writer, res *pipeline.Result, cfg *config.Config, opts *options, elapsed time.Duration) error {
	lexes := report.Sorted(res.Store)

	if opts.countTokens {
		total := 0
		for _, r := range lexes {
			total += len(r.Tokens)
		}
		fmt.Fprintf(w, "total tokens %d\n", total)
	}
	if opts.countLines {
		total := 0
		for _, r := range lexes {
			total += report.CountLines(r)
		}
		fmt.Fprintf(w, "total lines %d\n", total)
	}
	if opts.keywordStats {
		report.KeywordStats(w, lexes)
	}
	if opts.showTokens {
		for _, r := range lexes {
			report.Tokens(w, r)
		}
	}
	if opts.showIncludes {
		for _, r := range lexes {
			report.Includes(w, r)
		}
	}
	if opts.showFunctions {
		report.Functions(w, res.Store.ParseResults())
	}
	if opts.summary {
		files, err := report.Summarize(ctx, res.Store, cfg.Threads)
		if err != nil {
			return err
		}
		if !opts.showTime {
			elapsed = 0
		}
		report.Summary(w, files, elapsed)
	}
	return nil
}

// readFileList returns the non-empty lines of path.
func readFileList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &util.FileOpenError{File: path, Err: err}
	}
	defer f.Close()

	var files []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			files = append(files, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return files, nil
}
