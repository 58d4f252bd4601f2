// gtest runs cppillr over the programs in tests/ and compares every run with
// the golden .<name>.json file stored next to the source.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

type Execution struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration,omitempty"`
	TimedOut bool          `json:"timed_out,omitempty"`
}

type TestRun struct {
	Name   string    `json:"name"`
	Args   []string  `json:"args"`
	Result Execution `json:"result"`
}

// Golden is the content of a .<name>.json file. SourceHash is the xxhash of
// the source it was generated from.
type Golden struct {
	SourceHash string    `json:"source_hash"`
	Runs       []TestRun `json:"runs"`
}

type FileTestResult struct {
	File    string `json:"file"`
	Status  string `json:"status"` // PASS, FAIL, STALE, SKIP, ERROR
	Message string `json:"message,omitempty"`
	Diff    string `json:"diff,omitempty"`
}

var (
	target         = flag.String("target", "./cppillr", "Path to the cppillr binary to test.")
	generateGolden = flag.String("generate-golden", "", "Generate golden .json files for the given source files (space-separated).")
	testFiles      = flag.String("test-files", "tests/*.c", "Glob pattern(s) for files to test (space-separated).")
	skipFiles      = flag.String("skip-files", "", "Files to skip (space-separated).")
	outputJSON     = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	timeout        = flag.Duration("timeout", 5*time.Second, "Timeout for each command execution.")
	jobs           = flag.Int("j", 4, "Number of parallel test jobs.")
	verbose        = flag.Bool("v", false, "Print the diff of every failing run.")
	ignoreLines    = flag.String("ignore-lines", "", "Comma-separated substrings to ignore during output comparison.")
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

// testRuns lists the invocations recorded for every source file.
func testRuns(file string) []TestRun {
	return []TestRun{
		{Name: "run", Args: []string{"run", "-j", "2", file}},
		{Name: "functions", Args: []string{"parse", "--show-functions", "--count-tokens", file}},
	}
}

func main() {
	flag.Parse()
	log.SetFlags(0)

	if *generateGolden != "" {
		for _, file := range strings.Fields(*generateGolden) {
			if err := writeGolden(file); err != nil {
				log.Fatalf("%s[ERROR]%s %v\n", cRed, cNone, err)
			}
			log.Printf("%s[SUCCESS]%s Golden file created at %s\n", cGreen, cNone, getJSONPath(file))
		}
		return
	}

	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
	}
	if len(files) == 0 {
		log.Println("No test files found matching the pattern(s).")
		return
	}

	results := runSuite(files)
	printSummary(results)
	writeJSONReport(results)
	if hasFailures(results) {
		os.Exit(1)
	}
}

func getJSONPath(sourceFile string) string {
	return filepath.Join(filepath.Dir(sourceFile), "."+filepath.Base(sourceFile)+".json")
}

// hashFile computes the xxhash of a file's content
func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", xxhash.Sum64(data)), nil
}

func writeGolden(file string) error {
	hash, err := hashFile(file)
	if err != nil {
		return fmt.Errorf("could not hash %s: %w", file, err)
	}
	golden := Golden{SourceHash: hash, Runs: executeRuns(file)}
	for i := range golden.Runs {
		golden.Runs[i].Result.Duration = 0
	}
	data, err := json.MarshalIndent(golden, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(getJSONPath(file), append(data, '\n'), 0o644)
}

func runSuite(files []string) []*FileTestResult {
	skipList := make(map[string]bool)
	for _, f := range strings.Fields(*skipFiles) {
		skipList[filepath.Clean(f)] = true
	}

	tasks := make(chan string)
	var (
		mu      sync.Mutex
		results []*FileTestResult
		wg      sync.WaitGroup
	)
	add := func(r *FileTestResult) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}

	for i := 0; i < max(*jobs, 1); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range tasks {
				add(testFile(file))
			}
		}()
	}
	for _, file := range files {
		if skipList[file] {
			add(&FileTestResult{File: file, Status: "SKIP", Message: "Explicitly skipped"})
			continue
		}
		tasks <- file
	}
	close(tasks)
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].File < results[j].File })
	return results
}

func testFile(file string) *FileTestResult {
	goldenFile := getJSONPath(file)
	data, err := os.ReadFile(goldenFile)
	if errors.Is(err, os.ErrNotExist) {
		return &FileTestResult{File: file, Status: "SKIP", Message: "No golden file, run with -generate-golden"}
	}
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Could not read golden file %s: %v", goldenFile, err)}
	}
	var golden Golden
	if err := json.Unmarshal(data, &golden); err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Could not parse golden file %s: %v", goldenFile, err)}
	}

	hash, err := hashFile(file)
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to hash source file: %v", err)}
	}
	if hash != golden.SourceHash {
		return &FileTestResult{File: file, Status: "STALE", Message: fmt.Sprintf("Source changed since %s was generated", filepath.Base(goldenFile))}
	}

	return compareRuns(file, golden.Runs, executeRuns(file))
}

func executeRuns(file string) []TestRun {
	runs := testRuns(file)
	for i := range runs {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		runs[i].Result = executeCommand(ctx, *target, runs[i].Args...)
		cancel()
	}
	return runs
}

func compareRuns(file string, want, got []TestRun) *FileTestResult {
	ignored := strings.Split(*ignoreLines, ",")
	filter := cmp.Transformer("filterOutput", func(s string) string { return filterOutput(s, ignored) })
	opts := cmp.Options{cmpopts.IgnoreFields(Execution{}, "Duration"), filter}

	var diffs strings.Builder
	gotByName := make(map[string]TestRun, len(got))
	for _, r := range got {
		gotByName[r.Name] = r
	}
	for _, w := range want {
		g, ok := gotByName[w.Name]
		if !ok {
			fmt.Fprintf(&diffs, "Run '%s' missing in target results.\n", w.Name)
			continue
		}
		if g.Result.TimedOut {
			fmt.Fprintf(&diffs, "Run '%s' timed out after %s.\n", w.Name, *timeout)
			continue
		}
		if d := cmp.Diff(w.Result, g.Result, opts); d != "" {
			fmt.Fprintf(&diffs, "Run '%s' mismatch (-golden +target):\n%s", w.Name, d)
		}
	}
	if diffs.Len() > 0 {
		return &FileTestResult{File: file, Status: "FAIL", Message: "Output does not match the golden file", Diff: diffs.String()}
	}
	return &FileTestResult{File: file, Status: "PASS"}
}

// executeCommand runs a command with a timeout and captures its output
func executeCommand(ctx context.Context, command string, args ...string) Execution {
	startTime := time.Now()
	cmd := exec.CommandContext(ctx, command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Execution{Stdout: stdout.String(), Stderr: stderr.String(), Duration: time.Since(startTime)}

	var exitErr *exec.ExitError
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		res.TimedOut = true
		res.ExitCode = -1
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	case err != nil:
		res.ExitCode = -2
		res.Stderr += "\nExecution error: " + err.Error()
	}
	return res
}

// filterOutput removes lines containing any of the given substrings
func filterOutput(output string, ignoredSubstrings []string) string {
	if output == "" {
		return output
	}
	lines := strings.Split(output, "\n")
	kept := lines[:0]
	for _, line := range lines {
		ignore := false
		for _, sub := range ignoredSubstrings {
			if sub != "" && strings.Contains(line, sub) {
				ignore = true
				break
			}
		}
		if !ignore {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func printSummary(results []*FileTestResult) {
	counts := make(map[string]int)
	for _, r := range results {
		counts[r.Status]++
		color := cGreen
		switch r.Status {
		case "FAIL", "ERROR":
			color = cRed
		case "STALE", "SKIP":
			color = cYellow
		}
		if r.Status != "PASS" || *verbose {
			fmt.Printf("%s[%s]%s %s", color, r.Status, cNone, r.File)
			if r.Message != "" {
				fmt.Printf(": %s", r.Message)
			}
			fmt.Println()
		}
		if r.Diff != "" && (*verbose || r.Status == "FAIL") {
			fmt.Print(formatDiff(r.Diff))
		}
	}
	fmt.Printf("\n%sSummary:%s %s%d passed%s, %s%d failed%s, %s%d stale%s, %d skipped, %d errors\n",
		cBold, cNone,
		cGreen, counts["PASS"], cNone,
		cRed, counts["FAIL"], cNone,
		cYellow, counts["STALE"], cNone,
		counts["SKIP"], counts["ERROR"])
}

func formatDiff(diff string) string {
	var builder strings.Builder
	builder.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(strings.TrimRight(diff, "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "-"):
			builder.WriteString(cRed)
		case strings.HasPrefix(trimmed, "+"):
			builder.WriteString(cGreen)
		}
		builder.WriteString("    " + line + cNone + "\n")
	}
	return builder.String()
}

func writeJSONReport(results []*FileTestResult) {
	resultsMap := make(map[string]*FileTestResult, len(results))
	for _, r := range results {
		resultsMap[r.File] = r
	}
	jsonData, err := json.MarshalIndent(resultsMap, "", "  ")
	if err != nil {
		log.Printf("%s[ERROR]%s Failed to marshal results to JSON: %v\n", cRed, cNone, err)
		return
	}
	if err := os.WriteFile(*outputJSON, jsonData, 0o644); err != nil {
		log.Printf("%s[ERROR]%s Failed to write JSON report to %s: %v\n", cRed, cNone, *outputJSON, err)
		return
	}
	fmt.Printf("Full test report saved to %s\n", *outputJSON)
}

func hasFailures(results []*FileTestResult) bool {
	for _, r := range results {
		switch r.Status {
		case "FAIL", "ERROR", "STALE":
			return true
		}
	}
	return false
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		files, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		for _, file := range files {
			file = filepath.Clean(file)
			if seen[file] {
				continue
			}
			if info, err := os.Stat(file); err == nil && info.Mode().IsRegular() {
				allFiles = append(allFiles, file)
				seen[file] = true
			}
		}
	}
	return allFiles, nil
}
