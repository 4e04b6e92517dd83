package main

import (
	"strings"
	"testing"

	"github.com/xplshn/cinterp/pkg/session"
)

// The golden files under tests/ record paths relative to the repository root.
func TestGoldenFiles(t *testing.T) {
	t.Chdir("../..")
	files, err := expandGlobPatterns("tests/*.c")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 {
		t.Fatal("no test programs found")
	}
	for _, r := range runSuite(files, session.PhaseRun) {
		t.Run(r.File, func(t *testing.T) {
			if r.Status != "PASS" {
				t.Errorf("%s: %s\n%s", r.Status, r.Message, r.Diff)
			}
		})
	}
}

func TestCompareResults(t *testing.T) {
	want := &Execution{Stdout: "1\n2\n", ExitCode: 0}
	if r := compareResults("a.c", want, &Execution{Stdout: "1\n2\n", Duration: 5}); r.Status != "PASS" {
		t.Errorf("status = %s, want PASS (durations are not compared)", r.Status)
	}
	r := compareResults("a.c", want, &Execution{Stdout: "1\n3\n", ExitCode: 1})
	if r.Status != "FAIL" {
		t.Fatalf("status = %s, want FAIL", r.Status)
	}
	for _, part := range []string{"Exit Code mismatch", "STDOUT mismatch"} {
		if !strings.Contains(r.Diff, part) {
			t.Errorf("diff does not mention %q:\n%s", part, r.Diff)
		}
	}
}

func TestDuplicateContentIsSkipped(t *testing.T) {
	t.Chdir("../..")
	results := runSuite([]string{"tests/hello.c", "tests/./hello.c"}, session.PhaseRun)
	var skipped int
	for _, r := range results {
		if r.Status == "SKIP" {
			skipped++
		}
	}
	if skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}
}
