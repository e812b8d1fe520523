package recovery

import (
	"path/filepath"
	"testing"
)

func TestEnterTruncates(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Recovery")
	j, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	if err := j.Enter("suite Arithmetic, test AddOverflow"); err != nil {
		t.Fatal(err)
	}
	if err := j.Enter("suite Arithmetic, test SubUnderflow"); err != nil {
		t.Fatal(err)
	}

	got, err := j.LastEntry()
	if err != nil {
		t.Fatal(err)
	}
	if want := "suite Arithmetic, test SubUnderflow\n"; got != want {
		t.Errorf("LastEntry() = %q, want %q (Enter must truncate, not append)", got, want)
	}
}

func TestDumpAppends(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Recovery")
	j, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	if err := j.Dump("first crash context"); err != nil {
		t.Fatal(err)
	}
	if err := j.Dump("second crash context"); err != nil {
		t.Fatal(err)
	}

	got, err := j.Dumps()
	if err != nil {
		t.Fatal(err)
	}
	want := "first crash context\nsecond crash context\n"
	if got != want {
		t.Errorf("Dumps() = %q, want %q", got, want)
	}
}

func TestLastEntryAbsent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Recovery")
	j, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	got, err := j.LastEntry()
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Errorf("LastEntry() = %q, want empty before any Enter", got)
	}
}
