package prune

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoadAbsentStampReturnsNil(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	state, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if state != nil {
		t.Fatalf("Load() = %+v, want nil (no stamp means run everything)", state)
	}
}

// TestStoreLoadIsAdditive exercises the store/load identity in the case
// where every prior failure that is re-executed fails again:
//
//	load(store(S, F, E, t)) = (t, S.failures + F, (S.passes + (E \ F)) \ F, S.externals)
func TestStoreLoadIsAdditive(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	t0 := time.Now().Add(-time.Hour).Truncate(time.Second)
	if err := s.Store([]string{"a/Test1.cpp"}, []string{"a/Test1.cpp", "b/Test2.cpp"}, t0); err != nil {
		t.Fatal(err)
	}

	state, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got, want := state.Failures, []string{"a/Test1.cpp"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Failures = %v, want %v", got, want)
	}
	if got, want := state.Passes, []string{"b/Test2.cpp"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Passes = %v, want %v", got, want)
	}

	// Second round, F ⊆ E: the prior failure a/Test1.cpp is re-executed
	// and fails again (F), and b/Test2.cpp, c/Test3.cpp pass.
	t1 := t0.Add(time.Minute)
	if err := s.Store([]string{"a/Test1.cpp"}, []string{"a/Test1.cpp", "b/Test2.cpp", "c/Test3.cpp"}, t1); err != nil {
		t.Fatal(err)
	}

	state, err = s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got, want := state.Failures, []string{"a/Test1.cpp"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Failures = %v, want %v", got, want)
	}
	if got, want := state.Passes, []string{"b/Test2.cpp", "c/Test3.cpp"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Passes = %v, want %v", got, want)
	}
	if !state.Stamp.Equal(t1) {
		t.Errorf("Stamp = %v, want %v", state.Stamp, t1)
	}
}

func TestAggregateInstability(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.ResetInstability(); err != nil {
		t.Fatal(err)
	}

	r0, err := s.Replica(0)
	if err != nil {
		t.Fatal(err)
	}
	r1, err := s.Replica(1)
	if err != nil {
		t.Fatal(err)
	}

	// Replica 0: Foo fails, Bar passes. Replica 1: Bar fails, Foo passes.
	// The aggregator must report both in the union of failures and nothing
	// in the intersection of passes.
	if err := writeLines(r0.dir, failuresFile, []string{"Foo.cpp"}); err != nil {
		t.Fatal(err)
	}
	if err := writeLines(r0.dir, passesFile, []string{"Bar.cpp"}); err != nil {
		t.Fatal(err)
	}
	if err := writeLines(r1.dir, failuresFile, []string{"Bar.cpp"}); err != nil {
		t.Fatal(err)
	}
	if err := writeLines(r1.dir, passesFile, []string{"Foo.cpp"}); err != nil {
		t.Fatal(err)
	}

	failures, passes, err := s.AggregateInstability(2)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := failures, []string{"Bar.cpp", "Foo.cpp"}; !reflect.DeepEqual(got, want) {
		t.Errorf("failures = %v, want %v", got, want)
	}
	if len(passes) != 0 {
		t.Errorf("passes = %v, want empty intersection", passes)
	}
}

func TestStoreAtomicRewrite(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Store([]string{"a.cpp"}, []string{"a.cpp"}, time.Now()); err != nil {
		t.Fatal(err)
	}
	// A second write must fully replace, not append to, the failures file:
	// a.cpp was rerun and did not fail this time, so it must leave the
	// failures list rather than linger there via naive set union.
	if err := s.Store(nil, []string{"a.cpp"}, time.Now()); err != nil {
		t.Fatal(err)
	}
	state, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(state.Failures) != 0 {
		t.Errorf("Failures = %v, want empty (a.cpp passed on rerun)", state.Failures)
	}
	if got, want := state.Passes, []string{"a.cpp"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Passes = %v, want %v", got, want)
	}

	if _, err := os.Stat(filepath.Join(dir, failuresFile)); err != nil {
		t.Fatal(err)
	}
}
