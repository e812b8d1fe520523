// Package checklog records the outcome of every check performed by a test
// while preserving enough context to reproduce a failure message and to
// detect an exception unwinding through the test body. One Logger is
// created per test and discarded at its end.
package checklog

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/seqtest/seqtest/internal/summary"
)

// Kind classifies a recorded check.
type Kind int

const (
	Standard Kind = iota
	FalsePositive
	FalseNegative
	Performance
)

func (k Kind) String() string {
	switch k {
	case Standard:
		return "standard"
	case FalsePositive:
		return "false positive"
	case FalseNegative:
		return "false negative"
	case Performance:
		return "performance"
	default:
		return "unknown"
	}
}

// Record is the outcome of a single check, totally ordered by (Index,
// Message).
type Record struct {
	Index   int
	Message string
	Kind    Kind
}

func Less(a, b Record) bool {
	if a.Index != b.Index {
		return a.Index < b.Index
	}
	return a.Message < b.Message
}

// Logger accumulates check outcomes for one test. The zero value is not
// usable; construct with New.
type Logger struct {
	// EnterHook, when non-nil, is called with each check's description as
	// its scope opens. The runner points it at the recovery journal when
	// recovery mode is active, so a crash names the in-progress check.
	EnterHook func(description string)

	mu sync.Mutex

	records []Record
	nextIdx int

	standard      int
	falsePositive int
	falseNegative int
	failures      int
	critical      int
	exceptions    int

	diagnostics strings.Builder
	caught      strings.Builder

	depth           int
	lastDescription string
}

// New returns a fresh Logger for one test invocation.
func New() *Logger {
	return &Logger{}
}

// Sentinel is a stack-bound scope guard: its Close, called via defer,
// finalizes the logical check scope it opened. If a panic is unwinding
// through Close, the outermost sentinel records it as a critical failure
// naming the description the scope was opened with and stops the unwind
// there: the test is over, the process and the remaining tests continue.
type Sentinel struct {
	logger      *Logger
	description string
}

// OpenSentinel begins a logical check scope named description.
func (l *Logger) OpenSentinel(description string) *Sentinel {
	l.mu.Lock()
	l.depth++
	l.lastDescription = description
	l.mu.Unlock()
	if l.EnterHook != nil {
		l.EnterHook(description)
	}
	return &Sentinel{logger: l, description: description}
}

// LastEntered returns the description of the most recently opened scope.
func (l *Logger) LastEntered() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastDescription
}

// Close finalizes the scope. Call it via defer immediately after
// OpenSentinel.
func (s *Sentinel) Close() {
	r := recover()

	s.logger.mu.Lock()
	s.logger.depth--
	outermost := s.logger.depth == 0
	s.logger.mu.Unlock()

	if r == nil {
		return
	}

	// Only the outermost sentinel records and swallows: an exception
	// unwinding through several nested scopes must produce exactly one
	// critical failure, not one per frame.
	if !outermost {
		panic(r)
	}
	s.logger.recordCriticalFailure(s.description, fmt.Sprint(r))
}

// RecordCheckFailure appends message to the diagnostics buffer and
// increments the counter for kind.
func (l *Logger) RecordCheckFailure(kind Kind, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.nextIdx
	l.nextIdx++
	l.records = append(l.records, Record{Index: idx, Message: message, Kind: kind})

	switch kind {
	case Standard:
		l.standard++
		l.failures++
	case FalsePositive:
		l.falsePositive++
		l.failures++
	case FalseNegative:
		l.falseNegative++
		l.failures++
	case Performance:
		l.failures++
	}

	fmt.Fprintf(&l.diagnostics, "[%d] %s failure: %s\n", idx, kind, message)
}

func (l *Logger) recordCriticalFailure(context, what string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.nextIdx
	l.nextIdx++
	message := fmt.Sprintf("unrecoverable exception in %q: %s", context, what)
	l.records = append(l.records, Record{Index: idx, Message: message, Kind: Standard})
	l.critical++
	l.exceptions++
	fmt.Fprintf(&l.caught, "[%d] %s\n", idx, message)
}

// RecordCriticalFailure records an unrecoverable failure directly, without
// going through a Sentinel. Used by the runner for infrastructure faults
// surfaced inside a test's execution (e.g. a materials directory that
// became unreadable mid-test).
func (l *Logger) RecordCriticalFailure(context, what string) {
	l.recordCriticalFailure(context, what)
}

// FormatEquality renders a "predicted vs obtained" diagnostic block for a
// failed equality check, recursing into struct/slice/map decomposition via
// cmp.Diff.
func FormatEquality(predicted, obtained interface{}) string {
	diff := cmp.Diff(predicted, obtained)
	if diff == "" {
		return "operator== returned false, but no structural diff was found"
	}
	var b strings.Builder
	b.WriteString("operator== returned false\n")
	fmt.Fprintf(&b, "predicted vs obtained (-predicted +obtained):\n%s", diff)
	return b.String()
}

// DiagnosticsOutput returns the formatted check-failure buffer.
func (l *Logger) DiagnosticsOutput() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.diagnostics.String()
}

// CaughtExceptionsOutput returns the formatted critical-failure buffer.
func (l *Logger) CaughtExceptionsOutput() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.caught.String()
}

// Records returns a sorted copy of every recorded check.
func (l *Logger) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := append([]Record(nil), l.records...)
	sort.Slice(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return out
}

// Summarize produces the per-test Summary for name, having taken duration
// to run.
func (l *Logger) Summarize(name string, duration time.Duration) summary.Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := summary.Summary{
		Name:                name,
		StandardChecks:      l.standard,
		FalsePositiveChecks: l.falsePositive,
		FalseNegativeChecks: l.falseNegative,
		Failures:            l.failures,
		CriticalFailures:    l.critical,
		Exceptions:          l.exceptions,
		Duration:            duration,
	}
	if l.diagnostics.Len() > 0 {
		s.FailureMessages = l.diagnostics.String()
	}
	if l.caught.Len() > 0 {
		s.FailureMessages += l.caught.String()
	}
	return s
}
