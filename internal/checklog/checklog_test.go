package checklog

import (
	"strings"
	"testing"
	"time"
)

func TestRecordCheckFailureCounts(t *testing.T) {
	l := New()
	l.RecordCheckFailure(Standard, "1 != 2")
	l.RecordCheckFailure(FalsePositive, "caught a good value")
	l.RecordCheckFailure(FalseNegative, "missed a bad value")

	s := l.Summarize("counts", time.Millisecond)
	if s.StandardChecks != 1 || s.FalsePositiveChecks != 1 || s.FalseNegativeChecks != 1 {
		t.Fatalf("unexpected per-kind counts: %+v", s)
	}
	if s.Failures != 3 {
		t.Fatalf("Failures = %d, want 3", s.Failures)
	}
	if s.CriticalFailures != 0 || s.Exceptions != 0 {
		t.Fatalf("check failures must not count as critical: %+v", s)
	}
}

// TestSentinelRecordsPanicExactlyOnce exercises the exactly-once guarantee
// under nesting: a panic unwinding through two sentinel scopes produces a
// single critical failure, recorded against the outermost description, and
// the panic does not escape the test body.
func TestSentinelRecordsPanicExactlyOnce(t *testing.T) {
	l := New()

	body := func() {
		outer := l.OpenSentinel("outer scope")
		defer outer.Close()
		inner := l.OpenSentinel("inner scope")
		defer inner.Close()
		panic("boom")
	}
	body() // must return normally: the outermost sentinel stops the unwind

	s := l.Summarize("nested", 0)
	if s.CriticalFailures != 1 {
		t.Fatalf("CriticalFailures = %d, want exactly 1", s.CriticalFailures)
	}
	if s.Exceptions != 1 {
		t.Fatalf("Exceptions = %d, want 1", s.Exceptions)
	}
	out := l.CaughtExceptionsOutput()
	if !strings.Contains(out, "outer scope") {
		t.Fatalf("expected the outermost description in %q", out)
	}
	if !strings.Contains(out, "boom") {
		t.Fatalf("expected the panic value in %q", out)
	}
}

func TestSentinelCleanScopeRecordsNothing(t *testing.T) {
	l := New()
	func() {
		s := l.OpenSentinel("clean scope")
		defer s.Close()
	}()
	if got := l.Summarize("clean", 0); got.CriticalFailures != 0 || got.Failures != 0 {
		t.Fatalf("clean scope must record nothing, got %+v", got)
	}
}

func TestRecordsTotallyOrdered(t *testing.T) {
	l := New()
	l.RecordCheckFailure(Standard, "first")
	l.RecordCheckFailure(FalseNegative, "second")

	recs := l.Records()
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].Index != 0 || recs[0].Message != "first" {
		t.Fatalf("unexpected first record: %+v", recs[0])
	}
	if recs[1].Index != 1 || recs[1].Kind != FalseNegative {
		t.Fatalf("unexpected second record: %+v", recs[1])
	}
}

func TestFormatEquality(t *testing.T) {
	type pair struct{ A, B int }
	got := FormatEquality(pair{1, 2}, pair{1, 3})
	if !strings.Contains(got, "operator== returned false") {
		t.Fatalf("missing preamble in %q", got)
	}
	if !strings.Contains(got, "predicted vs obtained") {
		t.Fatalf("missing predicted-vs-obtained block in %q", got)
	}
}

func TestEnterHookSeesEachScope(t *testing.T) {
	l := New()
	var entered []string
	l.EnterHook = func(desc string) { entered = append(entered, desc) }

	func() {
		s := l.OpenSentinel("first check")
		defer s.Close()
	}()
	func() {
		s := l.OpenSentinel("second check")
		defer s.Close()
	}()

	if len(entered) != 2 || entered[0] != "first check" || entered[1] != "second check" {
		t.Fatalf("hook saw %v", entered)
	}
	if got := l.LastEntered(); got != "second check" {
		t.Fatalf("LastEntered() = %q", got)
	}
}

func TestDiagnosticsOutputAccumulates(t *testing.T) {
	l := New()
	l.RecordCheckFailure(Standard, "alpha")
	l.RecordCheckFailure(Performance, "too slow")

	out := l.DiagnosticsOutput()
	if !strings.Contains(out, "alpha") || !strings.Contains(out, "too slow") {
		t.Fatalf("diagnostics missing messages: %q", out)
	}
	if i, j := strings.Index(out, "alpha"), strings.Index(out, "too slow"); i > j {
		t.Fatalf("diagnostics out of order: %q", out)
	}
}
