// SPDX-License-Identifier: MPL-2.0

package testreport

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/invowk/buildmatrix/internal/testutil"
	"github.com/invowk/buildmatrix/pkg/types"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		xml  string
		want Counts
	}{
		{
			name: "single suite",
			xml:  testutil.JUnitSuite("unit", 5, 2, 1),
			want: Counts{Tests: 5, Failures: 2, Errors: 1},
		},
		{
			name: "suites root sums children",
			xml:  testutil.JUnitSuites(testutil.JUnitSuite("a", 3, 1, 0), testutil.JUnitSuite("b", 4, 0, 2)),
			want: Counts{Tests: 7, Failures: 1, Errors: 2},
		},
		{
			name: "attributes missing",
			xml: `<testsuite name="bare">
  <testcase name="ok"/>
  <testcase name="bad"><failure/></testcase>
  <testcase name="skip"><skipped/></testcase>
  <testcase name="boom"><error/></testcase>
</testsuite>`,
			want: Counts{Tests: 4, Failures: 1, Errors: 1, Skipped: 1},
		},
		{
			name: "attributes win over children",
			xml:  `<testsuite tests="10" failures="4" errors="0"><testcase><failure/></testcase></testsuite>`,
			want: Counts{Tests: 10, Failures: 4},
		},
		{
			name: "malformed attribute falls back",
			xml:  `<testsuite failures="many"><testcase><failure/></testcase><testcase><failure/></testcase></testsuite>`,
			want: Counts{Tests: 2, Failures: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Parse(strings.NewReader(tt.xml))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Parse() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	if _, err := Parse(strings.NewReader("<html><body/></html>")); !errors.Is(err, ErrNotJUnit) {
		t.Errorf("html: error = %v, want ErrNotJUnit", err)
	}
	if _, err := Parse(strings.NewReader("<testsuite>")); err == nil {
		t.Error("truncated XML parsed")
	}
	if _, err := Parse(strings.NewReader("")); err == nil {
		t.Error("empty input parsed")
	}
}

func TestCollect(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.MustMkdirAll(t, filepath.Join(dir, "reports"), 0o755)
	testutil.MustWriteFile(t, filepath.Join(dir, "reports", "unit.xml"), testutil.JUnitSuite("unit", 4, 1, 0))
	testutil.MustWriteFile(t, filepath.Join(dir, "reports", "it.xml"), testutil.JUnitSuite("it", 2, 0, 1))
	testutil.MustWriteFile(t, filepath.Join(dir, "reports", "broken.xml"), "not xml at all")
	testutil.MustWriteFile(t, filepath.Join(dir, "other.txt"), "ignored")

	col, err := Collect(dir, []string{"reports/*.xml", "reports/unit.xml"})
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(col.Files) != 2 {
		t.Errorf("Files = %v, want 2 (duplicates read once)", col.Files)
	}
	if len(col.Unparsable) != 1 {
		t.Errorf("Unparsable = %v, want broken.xml", col.Unparsable)
	}
	if want := (Counts{Tests: 6, Failures: 1, Errors: 1}); col.Counts != want {
		t.Errorf("Counts = %+v, want %+v", col.Counts, want)
	}

	if _, err := Collect(dir, []string{"["}); err == nil {
		t.Error("bad pattern accepted")
	}

	empty, err := Collect(dir, []string{"missing/*.xml"})
	if err != nil || empty.Found() {
		t.Errorf("Collect(missing) = %+v, %v", empty, err)
	}
}

func TestCompute(t *testing.T) {
	t.Parallel()

	reports := func(failures, errs int) Collection {
		return Collection{Counts: Counts{Failures: failures, Errors: errs}, Files: []string{"r.xml"}}
	}

	tests := []struct {
		name  string
		col   Collection
		codes []types.ExitCode
		want  Tally
	}{
		{name: "no reports all passed", codes: []types.ExitCode{0, 0}, want: Tally{}},
		{name: "no reports counts failing commands", codes: []types.ExitCode{1, 0, 2}, want: Tally{FailureCount: 2}},
		{name: "reports win over exit codes", col: reports(3, 1), codes: []types.ExitCode{1}, want: Tally{FailureCount: 3, ErrorCount: 1}},
		{name: "clean reports but failing command", col: reports(0, 0), codes: []types.ExitCode{0, 1}, want: Tally{ErrorCount: 1}},
		{name: "clean reports clean commands", col: reports(0, 0), codes: []types.ExitCode{0}, want: Tally{}},
		{
			name:  "unparsable report adds an error",
			col:   Collection{Counts: Counts{Failures: 2}, Files: []string{"a.xml"}, Unparsable: map[string]error{"b.xml": ErrNotJUnit}},
			codes: []types.ExitCode{1},
			want:  Tally{FailureCount: 2, ErrorCount: 1},
		},
		{
			name:  "only unparsable reports",
			col:   Collection{Unparsable: map[string]error{"b.xml": ErrNotJUnit}},
			codes: []types.ExitCode{1},
			want:  Tally{ErrorCount: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Compute(tt.col, tt.codes); got != tt.want {
				t.Errorf("Compute() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
