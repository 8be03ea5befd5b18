// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *ActionableError
		want string
	}{
		{name: "operation only", err: &ActionableError{Operation: "load configuration"}, want: "failed to load configuration"},
		{
			name: "with resource",
			err:  &ActionableError{Operation: "load matrix file", Resource: "m.cue"},
			want: "failed to load matrix file: m.cue",
		},
		{
			name: "with cause",
			err:  &ActionableError{Operation: "load matrix file", Resource: "m.cue", Cause: errors.New("boom")},
			want: "failed to load matrix file: m.cue: boom",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestActionableError_Unwrap(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("sentinel")
	err := WrapWithContext(fmt.Errorf("wrapped: %w", sentinel), "run", "matrix")
	if !errors.Is(err, sentinel) {
		t.Error("errors.Is did not reach the cause")
	}
	if WrapWithContext(nil, "run", "x") != nil {
		t.Error("WrapWithContext(nil) != nil")
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	cause := errors.Join(errors.New("first"), fmt.Errorf("second: %w", errors.New("inner")))
	err := NewErrorContext().
		WithOperation("validate matrix").
		WithSuggestion("fix names").
		WithSuggestion("fix thresholds").
		Wrap(cause).
		Build()

	short := err.Format(false)
	if !strings.Contains(short, "• fix names") || !strings.Contains(short, "• fix thresholds") {
		t.Errorf("Format(false) missing suggestions:\n%s", short)
	}
	if strings.Contains(short, "Error chain") {
		t.Error("Format(false) includes the error chain")
	}

	long := err.Format(true)
	for _, want := range []string{"Error chain:", "first", "second: inner", "inner"} {
		if !strings.Contains(long, want) {
			t.Errorf("Format(true) missing %q:\n%s", want, long)
		}
	}
}

func TestErrorContext_Build(t *testing.T) {
	t.Parallel()

	if NewErrorContext().WithResource("x").Build() != nil {
		t.Error("Build() without operation returned non-nil")
	}
	if err := NewErrorContext().BuildError(); err != nil {
		t.Errorf("BuildError() = %v, want nil interface", err)
	}

	ctx := NewErrorContext().WithOperation("op").WithSuggestion("a").WithIssue(CheckoutFailedId)
	first := ctx.Build()
	ctx.WithSuggestion("b")
	if len(first.Suggestions) != 1 {
		t.Errorf("built error shares suggestions with its builder: %v", first.Suggestions)
	}
	if first.Issue != CheckoutFailedId {
		t.Errorf("Issue = %d", first.Issue)
	}
}

func TestCatalog(t *testing.T) {
	t.Parallel()

	values := Values()
	if len(values) != 6 {
		t.Fatalf("Values() has %d issues", len(values))
	}
	for i, is := range values {
		if is.Id() != Id(i+1) {
			t.Errorf("Values()[%d].Id() = %d", i, is.Id())
		}
		if Get(is.Id()) != is {
			t.Errorf("Get(%d) mismatch", is.Id())
		}
		if strings.TrimSpace(string(is.MarkdownMsg())) == "" {
			t.Errorf("issue %d has no message", is.Id())
		}
	}
	if Get(999) != nil {
		t.Error("Get(999) != nil")
	}
}

func TestIssue_Render(t *testing.T) {
	t.Parallel()

	out, err := Get(MatrixFileInvalidId).Render("notty")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(out, "Invalid matrix file") {
		t.Errorf("Render() output missing title:\n%s", out)
	}
}
