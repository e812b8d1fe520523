// Package registry implements the test registry: a collection of test
// instances keyed by suite, with deduplication on full identity and
// selection by either explicit user choice or by the set the dependency
// analyzer marked stale.
package registry

import (
	"golang.org/x/xerrors"

	"github.com/seqtest/seqtest/internal/checklog"
)

// Identity uniquely names a test: no two tests registered together may
// share all three fields.
type Identity struct {
	Suite  string
	Test   string
	Source string // canonical path under tests_root
}

// Test is one registered unit of work. Body is the test's actual check
// sequence, supplied by whoever registers the suite; the registry itself
// never executes anything, it only holds and selects.
type Test struct {
	Identity
	Body func(l *checklog.Logger)
}

// Registry holds every known test, grouped by suite in registration order,
// plus the accumulated run selection.
type Registry struct {
	suiteOrder []string
	bySuite    map[string][]Test
	seen       map[Identity]bool

	selected map[Identity]bool
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		bySuite:  map[string][]Test{},
		seen:     map[Identity]bool{},
		selected: map[Identity]bool{},
	}
}

// AddSuite registers tests under suite name. It is an error for any test's
// full identity to collide with one already registered, in this suite or
// another.
func (r *Registry) AddSuite(name string, tests []Test) error {
	incoming := map[Identity]bool{}
	for _, t := range tests {
		id := Identity{Suite: name, Test: t.Test, Source: t.Source}
		if r.seen[id] || incoming[id] {
			return xerrors.Errorf("registry: duplicate test %+v", id)
		}
		incoming[id] = true
	}
	if _, ok := r.bySuite[name]; !ok {
		r.suiteOrder = append(r.suiteOrder, name)
	}
	for _, t := range tests {
		id := Identity{Suite: name, Test: t.Test, Source: t.Source}
		r.seen[id] = true
		r.bySuite[name] = append(r.bySuite[name], Test{Identity: id, Body: t.Body})
	}
	return nil
}

// Suites returns the registered suite names in registration order.
func (r *Registry) Suites() []string {
	return append([]string(nil), r.suiteOrder...)
}

// TestsInSuite returns the tests registered under name, in registration
// order, or nil if the suite is unknown.
func (r *Registry) TestsInSuite(name string) []Test {
	return append([]Test(nil), r.bySuite[name]...)
}

// IterAll returns every registered test, suite by suite, in registration
// order.
func (r *Registry) IterAll() []Test {
	var out []Test
	for _, suite := range r.suiteOrder {
		out = append(out, r.bySuite[suite]...)
	}
	return out
}

// SelectBySuite accumulates every test in suite into the run selection.
// Selecting an unknown suite is a no-op warning left for the caller to
// report; it returns false when the suite does not exist.
func (r *Registry) SelectBySuite(name string) bool {
	tests, ok := r.bySuite[name]
	if !ok {
		return false
	}
	for _, t := range tests {
		r.selected[t.Identity] = true
	}
	return true
}

// SelectBySource accumulates every test whose canonical source file path
// equals source into the run selection. Returns false when no test matches.
func (r *Registry) SelectBySource(source string) bool {
	matched := false
	for _, suite := range r.suiteOrder {
		for _, t := range r.bySuite[suite] {
			if t.Source == source {
				r.selected[t.Identity] = true
				matched = true
			}
		}
	}
	return matched
}

// SelectByRelativeSource is like SelectBySource but matches against the
// rerun set emitted by the dependency analyzer (relative to tests_root).
// rel is compared against each test's Source with the toRel function
// (typically filepath.Rel(testsRoot, source)).
func (r *Registry) SelectByRelativeSource(rel string, toRel func(source string) (string, error)) bool {
	matched := false
	for _, suite := range r.suiteOrder {
		for _, t := range r.bySuite[suite] {
			got, err := toRel(t.Source)
			if err != nil {
				continue
			}
			if got == rel {
				r.selected[t.Identity] = true
				matched = true
			}
		}
	}
	return matched
}

// Selected accumulates indefinitely: selection is idempotent, and the run
// set is the union of every Select* call made so far. The selected tests
// are returned in registration order.
func (r *Registry) Selected() []Test {
	var out []Test
	for _, suite := range r.suiteOrder {
		for _, t := range r.bySuite[suite] {
			if r.selected[t.Identity] {
				out = append(out, t)
			}
		}
	}
	return out
}

// SelectionEmpty reports whether no Select* call has matched anything yet,
// used by the runner to decide whether explicit selections were given at
// all.
func (r *Registry) SelectionEmpty() bool {
	return len(r.selected) == 0
}
