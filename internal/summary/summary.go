// Package summary implements per-test, per-suite and grand-total
// aggregation of check counts, failure messages and durations.
package summary

import (
	"fmt"
	"strings"
	"time"
)

// Summary is the additive aggregation unit: for all sequences of check
// outcomes, summing per-test Summaries equals the Summary obtained by
// running the whole suite.
type Summary struct {
	Name string

	StandardChecks      int
	FalsePositiveChecks int
	FalseNegativeChecks int
	Failures            int
	CriticalFailures    int
	Exceptions          int

	Duration time.Duration

	// FailureMessages accumulates formatted diagnostics, concatenated (not
	// deduplicated) as Summaries compose.
	FailureMessages string
}

// Add returns the element-wise sum of s and other, with FailureMessages
// concatenated and Name taken from s (callers re-title the result at each
// aggregation level).
func (s Summary) Add(other Summary) Summary {
	out := Summary{
		Name:                s.Name,
		StandardChecks:      s.StandardChecks + other.StandardChecks,
		FalsePositiveChecks: s.FalsePositiveChecks + other.FalsePositiveChecks,
		FalseNegativeChecks: s.FalseNegativeChecks + other.FalseNegativeChecks,
		Failures:            s.Failures + other.Failures,
		CriticalFailures:    s.CriticalFailures + other.CriticalFailures,
		Exceptions:          s.Exceptions + other.Exceptions,
		Duration:            s.Duration + other.Duration,
	}
	switch {
	case s.FailureMessages == "":
		out.FailureMessages = other.FailureMessages
	case other.FailureMessages == "":
		out.FailureMessages = s.FailureMessages
	default:
		out.FailureMessages = s.FailureMessages + other.FailureMessages
	}
	return out
}

// Sum adds every element of summaries together, starting from a zero
// Summary named name.
func Sum(name string, summaries []Summary) Summary {
	out := Summary{Name: name}
	for _, s := range summaries {
		out = out.Add(s)
	}
	return out
}

// TotalChecks is the number of checks of any kind that were performed.
func (s Summary) TotalChecks() int {
	return s.StandardChecks + s.FalsePositiveChecks + s.FalseNegativeChecks
}

// Passed reports whether s represents a clean run: no failures, critical
// failures or exceptions.
func (s Summary) Passed() bool {
	return s.Failures == 0 && s.CriticalFailures == 0 && s.Exceptions == 0
}

// Detail is a bitmask controlling how much of a Summary is rendered by
// Format.
type Detail uint

const (
	DetailNone            Detail = 0
	DetailAbsentChecks    Detail = 1 << 0
	DetailFailureMessages Detail = 1 << 1
	DetailTimings         Detail = 1 << 2
)

// Has reports whether d includes bit.
func (d Detail) Has(bit Detail) bool { return d&bit != 0 }

// stringifiedDuration picks the largest time unit (ns, µs, ms, s) in which
// d is >= 1, formatted to three significant figures.
func stringifiedDuration(d time.Duration) (value string, unit string) {
	ns := float64(d.Nanoseconds())
	units := []struct {
		name   string
		factor float64
	}{
		{"s", 1e9},
		{"ms", 1e6},
		{"\u00b5s", 1e3},
		{"ns", 1},
	}
	for _, u := range units {
		scaled := ns / u.factor
		if scaled >= 1 || u.name == "ns" {
			return threeSigFigs(scaled), u.name
		}
	}
	return "0", "ns"
}

func threeSigFigs(v float64) string {
	if v == 0 {
		return "0"
	}
	digits := 1
	for n := v; n >= 10; n /= 10 {
		digits++
	}
	precision := 3 - digits
	if precision < 0 {
		precision = 0
	}
	s := fmt.Sprintf("%.*f", precision, v)
	if precision > 0 {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	return s
}

// ReportTime formats a duration associated with a Summary, e.g. "1.23 ms".
func ReportTime(d time.Duration) string {
	value, unit := stringifiedDuration(d)
	return value + " " + unit
}

// Format renders s as a human-readable block at the given indentation,
// including a subheading built from namesuffix (e.g. " [suite]" or
// " [test]"). It is recreated fresh on every run, never persisted
// structurally.
func Format(s Summary, namesuffix string, verbosity Detail, indent string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s%s%s:\n", indent, s.Name, namesuffix)
	fmt.Fprintf(&b, "%s  standard checks: %d, false positives: %d, false negatives: %d\n",
		indent, s.StandardChecks, s.FalsePositiveChecks, s.FalseNegativeChecks)
	fmt.Fprintf(&b, "%s  failures: %d, critical failures: %d, exceptions: %d\n",
		indent, s.Failures, s.CriticalFailures, s.Exceptions)

	if verbosity.Has(DetailTimings) {
		fmt.Fprintf(&b, "%s  time taken: %s\n", indent, ReportTime(s.Duration))
	}

	if verbosity.Has(DetailFailureMessages) && s.FailureMessages != "" {
		fmt.Fprintf(&b, "%s  messages:\n%s\n", indent, indentLines(s.FailureMessages, indent+"    "))
	}

	return b.String()
}

func indentLines(text, indent string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, l := range lines {
		lines[i] = indent + l
	}
	return strings.Join(lines, "\n")
}
