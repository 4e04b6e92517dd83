// gtest checks the interpreter against golden files: every tests/*.c program has a
// .<name>.c.json next to it recording what a run printed and how it ended.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
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

	"github.com/xplshn/cinterp/pkg/config"
	"github.com/xplshn/cinterp/pkg/session"
	"github.com/xplshn/cinterp/pkg/util"
)

type Execution struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timed_out,omitempty"`
}

type Golden struct {
	Phase  string    `json:"phase"`
	Result Execution `json:"result"`
}

type FileTestResult struct {
	File    string     `json:"file"`
	Status  string     `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message string     `json:"message,omitempty"`
	Diff    string     `json:"diff,omitempty"`
	Golden  *Execution `json:"golden,omitempty"`
	Target  *Execution `json:"target,omitempty"`
}

type TestSuiteResults map[string]*FileTestResult

var (
	target         = flag.String("target", "", "Run this cinterp binary instead of the in-process pipeline.")
	generateGolden = flag.Bool("generate-golden", false, "Write golden files for the matched sources instead of checking them.")
	testFiles      = flag.String("test-files", "tests/*.c", "Glob pattern(s) for files to test (space-separated).")
	skipFiles      = flag.String("skip-files", "", "Files to skip (space-separated).")
	phaseName      = flag.String("phase", "run", "Last phase to run (lex, syntax, semantic, run).")
	outputJSON     = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	timeout        = flag.Duration("timeout", 5*time.Second, "Timeout for each external execution.")
	jobs           = flag.Int("j", 4, "Number of parallel test jobs.")
	verbose        = flag.Bool("v", false, "Enable verbose logging.")
	jsonDir        = flag.String("dir", "", "Directory to store/read golden JSON files (defaults to source file dir).")
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	phase, err := session.ParsePhase(*phaseName)
	if err != nil {
		log.Fatalf("%s[ERROR]%s %v\n", cRed, cNone, err)
	}

	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
	}
	if len(files) == 0 {
		log.Println("No test files found matching the pattern(s).")
		return
	}

	results := runSuite(files, phase)
	printSummary(os.Stdout, results)
	if *generateGolden {
		return
	}
	if hasFailures(writeJSONReport(results)) {
		os.Exit(1)
	}
}

func getJSONPath(sourceFile string) string {
	jsonFileName := "." + filepath.Base(sourceFile) + ".json"
	if *jsonDir != "" {
		return filepath.Join(*jsonDir, jsonFileName)
	}
	return filepath.Join(filepath.Dir(sourceFile), jsonFileName)
}

// runSuite feeds files to a pool of workers. Files whose content was already queued are
// skipped.
func runSuite(files []string, phase session.Phase) []*FileTestResult {
	skipList := make(map[string]bool)
	for _, f := range strings.Fields(*skipFiles) {
		skipList[f] = true
	}

	tasks := make(chan string, len(files))
	resultsChan := make(chan *FileTestResult, len(files))
	var wg sync.WaitGroup

	for range max(*jobs, 1) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range tasks {
				if *generateGolden {
					resultsChan <- writeGolden(file, phase)
				} else {
					resultsChan <- testFile(file, phase)
				}
			}
		}()
	}

	seenHashes := make(map[uint64]string)
	for _, file := range files {
		if skipList[file] {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: "Explicitly skipped"}
			continue
		}
		data, err := os.ReadFile(file)
		if err != nil {
			resultsChan <- &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to read file for hashing: %v", err)}
			continue
		}
		fileHash := xxhash.Sum64(data)
		if originalFile, seen := seenHashes[fileHash]; seen {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: fmt.Sprintf("Content is identical to %s", originalFile)}
			continue
		}
		seenHashes[fileHash] = file
		tasks <- file
	}
	close(tasks)

	wg.Wait()
	close(resultsChan)

	var allResults []*FileTestResult
	for result := range resultsChan {
		allResults = append(allResults, result)
	}
	sort.Slice(allResults, func(i, j int) bool {
		return allResults[i].File < allResults[j].File
	})
	return allResults
}

func writeGolden(file string, phase session.Phase) *FileTestResult {
	res, err := execute(file, phase)
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: err.Error()}
	}
	jsonData, err := json.MarshalIndent(Golden{Phase: phase.String(), Result: res}, "", "  ")
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to marshal golden data: %v", err)}
	}
	goldenFile := getJSONPath(file)
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0755); err != nil {
			return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to create directory %s: %v", *jsonDir, err)}
		}
	}
	if err := os.WriteFile(goldenFile, jsonData, 0644); err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to write golden file %s: %v", goldenFile, err)}
	}
	return &FileTestResult{File: file, Status: "PASS", Message: "Golden file written to " + goldenFile, Target: &res}
}

func testFile(file string, phase session.Phase) *FileTestResult {
	goldenFile := getJSONPath(file)
	goldenData, err := os.ReadFile(goldenFile)
	if err != nil {
		return &FileTestResult{File: file, Status: "SKIP", Message: "Cannot test without a corresponding .json golden file"}
	}
	var golden Golden
	if err := json.Unmarshal(goldenData, &golden); err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Could not parse golden file %s: %v", goldenFile, err)}
	}
	if golden.Phase != "" {
		if phase, err = session.ParsePhase(golden.Phase); err != nil {
			return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("%s: %v", goldenFile, err)}
		}
	}

	got, err := execute(file, phase)
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: err.Error()}
	}
	return compareResults(file, &golden.Result, &got)
}

func compareResults(file string, want, got *Execution) *FileTestResult {
	var diffs strings.Builder
	if want.ExitCode != got.ExitCode {
		fmt.Fprintf(&diffs, "Exit Code mismatch:\n  - Golden: %d\n  - Target: %d\n", want.ExitCode, got.ExitCode)
	}
	if want.Stdout != got.Stdout {
		fmt.Fprintf(&diffs, "STDOUT mismatch:\n%s", cmp.Diff(want.Stdout, got.Stdout))
	}
	if want.Stderr != got.Stderr {
		fmt.Fprintf(&diffs, "STDERR mismatch:\n%s", cmp.Diff(want.Stderr, got.Stderr))
	}
	if got.TimedOut {
		diffs.WriteString("Execution timed out.\n")
	}
	if diffs.Len() > 0 {
		return &FileTestResult{File: file, Status: "FAIL", Message: "Output or exit code mismatch", Diff: diffs.String(), Golden: want, Target: got}
	}
	return &FileTestResult{File: file, Status: "PASS", Message: "Matches golden file", Golden: want, Target: got}
}

// execute runs one source file either in-process or through the external binary. Stderr
// holds the rendered warnings and error exactly as the driver prints them without color.
func execute(file string, phase session.Phase) (Execution, error) {
	if *target != "" {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()
		return executeCommand(ctx, *target, "--phase", phase.String(), file), nil
	}

	src, err := os.ReadFile(file)
	if err != nil {
		return Execution{}, fmt.Errorf("could not read file '%s': %w", file, err)
	}
	start := time.Now()
	r := session.New(config.NewConfig()).Run(string(src), phase)
	result := Execution{Stdout: r.Output, Duration: time.Since(start)}

	var stderr bytes.Buffer
	for _, w := range r.Warnings {
		util.RenderWarning(&stderr, file, string(src), w, false)
	}
	if r.Err != nil {
		util.Render(&stderr, file, string(src), r.Err, false)
		result.ExitCode = 1
	}
	result.Stderr = stderr.String()
	if *verbose {
		log.Printf("[%s] run %s finished in %s", file, r.RunID, result.Duration)
	}
	return result, nil
}

// executeCommand runs a command with a timeout and captures its output
func executeCommand(ctx context.Context, command string, args ...string) Execution {
	startTime := time.Now()
	cmd := exec.CommandContext(ctx, command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Execution{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(startTime),
	}

	if ctx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		result.ExitCode = -1
	} else if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -2
			result.Stderr += "\nExecution error: " + err.Error()
		}
	}
	return result
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%6dµs", d.Microseconds())
	}
	return fmt.Sprintf("%6dms", d.Milliseconds())
}

func printSummary(w io.Writer, results []*FileTestResult) {
	var passed, failed, skipped, errored int
	var total time.Duration

	for _, result := range results {
		fmt.Fprintln(w, "----------------------------------------------------------------------")
		fmt.Fprintf(w, "Testing %s%s%s...\n", cCyan, result.File, cNone)

		switch result.Status {
		case "PASS":
			passed++
			fmt.Fprintf(w, "  [%sPASS%s] %s\n", cGreen, cNone, result.Message)
		case "FAIL":
			failed++
			fmt.Fprintf(w, "  [%sFAIL%s] %s\n", cRed, cNone, result.Message)
			fmt.Fprintln(w, formatDiff(result.Diff))
		case "SKIP":
			skipped++
			fmt.Fprintf(w, "  [%sSKIP%s] %s\n", cYellow, cNone, result.Message)
		case "ERROR":
			errored++
			fmt.Fprintf(w, "  [%sERROR%s] %s\n", cRed, cNone, result.Message)
		}
		if result.Target != nil {
			total += result.Target.Duration
			if *verbose {
				fmt.Fprintf(w, "  [%s]\n", formatDuration(result.Target.Duration))
			}
		}
	}

	fmt.Fprintln(w, "----------------------------------------------------------------------")
	fmt.Fprintf(w, "%sTest Summary:%s %s%d Passed%s, %s%d Failed%s, %s%d Skipped%s, %s%d Errored%s, %d Total (%s)\n",
		cBold, cNone, cGreen, passed, cNone, cRed, failed, cNone, cYellow, skipped, cNone, cRed, errored, cNone, len(results), strings.TrimSpace(formatDuration(total)))
}

func formatDiff(diff string) string {
	if diff == "" {
		return ""
	}
	var builder strings.Builder
	builder.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(diff, "\n") {
		trimmedLine := strings.TrimSpace(line)
		if strings.HasPrefix(trimmedLine, "-") {
			builder.WriteString(cRed)
		} else if strings.HasPrefix(trimmedLine, "+") {
			builder.WriteString(cGreen)
		}
		builder.WriteString("    " + line)
		builder.WriteString(cNone)
		builder.WriteString("\n")
	}
	return builder.String()
}

func writeJSONReport(results []*FileTestResult) TestSuiteResults {
	resultsMap := make(TestSuiteResults, len(results))
	for _, r := range results {
		resultsMap[r.File] = r
	}

	jsonData, err := json.MarshalIndent(resultsMap, "", "  ")
	if err != nil {
		log.Printf("%s[ERROR]%s Failed to marshal results to JSON: %v\n", cRed, cNone, err)
		return resultsMap
	}

	outputFile := *outputJSON
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0755); err != nil {
			log.Printf("%s[ERROR]%s Failed to create dir %s: %v\n", cRed, cNone, *jsonDir, err)
		}
		outputFile = filepath.Join(*jsonDir, *outputJSON)
	}

	if err := os.WriteFile(outputFile, jsonData, 0644); err != nil {
		log.Printf("%s[ERROR]%s Failed to write JSON report to %s: %v\n", cRed, cNone, outputFile, err)
	}
	return resultsMap
}

func hasFailures(results TestSuiteResults) bool {
	for _, result := range results {
		if result.Status == "FAIL" || result.Status == "ERROR" {
			return true
		}
	}
	return false
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	return files, nil
}
