package materials

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/seqtest/seqtest/internal/testsupport"
)

func TestSoftUpdateCopiesChangedFile(t *testing.T) {
	working := testsupport.MkdirAll(t, filepath.Join(t.TempDir(), "working"))
	prediction := testsupport.MkdirAll(t, filepath.Join(t.TempDir(), "prediction"))

	testsupport.WriteFile(t, filepath.Join(working, "Foo.txt"), "new contents")
	testsupport.WriteFile(t, filepath.Join(prediction, "Foo.txt"), "old contents")

	if err := SoftUpdate(working, prediction); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(filepath.Join(prediction, "Foo.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new contents" {
		t.Fatalf("got %q, want %q", got, "new contents")
	}
}

func TestSoftUpdateLeavesUnchangedFileTimeAlone(t *testing.T) {
	working := testsupport.MkdirAll(t, filepath.Join(t.TempDir(), "working"))
	prediction := testsupport.MkdirAll(t, filepath.Join(t.TempDir(), "prediction"))

	testsupport.WriteFile(t, filepath.Join(working, "Foo.txt"), "same")
	testsupport.WriteFile(t, filepath.Join(prediction, "Foo.txt"), "same")

	before, err := os.Stat(filepath.Join(prediction, "Foo.txt"))
	if err != nil {
		t.Fatal(err)
	}

	if err := SoftUpdate(working, prediction); err != nil {
		t.Fatal(err)
	}

	after, err := os.Stat(filepath.Join(prediction, "Foo.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !before.ModTime().Equal(after.ModTime()) {
		t.Fatalf("modtime changed for byte-equal file: %v -> %v", before.ModTime(), after.ModTime())
	}
}

func TestSoftUpdateAddsAndRemoves(t *testing.T) {
	working := testsupport.MkdirAll(t, filepath.Join(t.TempDir(), "working"))
	prediction := testsupport.MkdirAll(t, filepath.Join(t.TempDir(), "prediction"))

	testsupport.WriteFile(t, filepath.Join(working, "New.txt"), "added")
	testsupport.WriteFile(t, filepath.Join(prediction, "Stale.txt"), "should be removed")

	if err := SoftUpdate(working, prediction); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(prediction, "New.txt")); err != nil {
		t.Fatalf("expected New.txt to be added: %v", err)
	}
	if _, err := os.Stat(filepath.Join(prediction, "Stale.txt")); !os.IsNotExist(err) {
		t.Fatalf("expected Stale.txt to be removed, stat err = %v", err)
	}
}

func TestSoftUpdatePreservesKeepAndSeqpat(t *testing.T) {
	working := testsupport.MkdirAll(t, filepath.Join(t.TempDir(), "working"))
	prediction := testsupport.MkdirAll(t, filepath.Join(t.TempDir(), "prediction"))

	testsupport.WriteFile(t, filepath.Join(prediction, ".keep"), "marker")
	testsupport.WriteFile(t, filepath.Join(prediction, "Seq.seqpat"), "pattern")

	if err := SoftUpdate(working, prediction); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(prediction, ".keep")); err != nil {
		t.Fatalf(".keep should survive: %v", err)
	}
	if _, err := os.Stat(filepath.Join(prediction, "Seq.seqpat")); err != nil {
		t.Fatalf(".seqpat should survive: %v", err)
	}
	// With no same-stem sibling in working, the pattern must not be
	// planted there.
	if _, err := os.Stat(filepath.Join(working, "Seq.seqpat")); !os.IsNotExist(err) {
		t.Fatalf("orphan .seqpat must not be copied into working, stat err = %v", err)
	}
}

func TestSoftUpdateSeqpatCopiedOnlyNextToStemSibling(t *testing.T) {
	working := testsupport.MkdirAll(t, filepath.Join(t.TempDir(), "working"))
	prediction := testsupport.MkdirAll(t, filepath.Join(t.TempDir(), "prediction"))

	testsupport.WriteFile(t, filepath.Join(working, "Seq.txt"), "produced output")
	testsupport.WriteFile(t, filepath.Join(prediction, "Seq.seqpat"), "pattern")

	if err := SoftUpdate(working, prediction); err != nil {
		t.Fatal(err)
	}

	// The sibling Seq.txt makes the pattern applicable, so it is copied
	// into working and therefore never rewritten in prediction.
	if _, err := os.Stat(filepath.Join(working, "Seq.seqpat")); err != nil {
		t.Fatalf(".seqpat with a stem sibling should be copied into working: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(prediction, "Seq.seqpat"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "pattern" {
		t.Fatalf("prediction pattern rewritten: %q", got)
	}
}

func TestSoftUpdateIdempotent(t *testing.T) {
	working := testsupport.MkdirAll(t, filepath.Join(t.TempDir(), "working"))
	prediction := testsupport.MkdirAll(t, filepath.Join(t.TempDir(), "prediction"))

	testsupport.WriteFile(t, filepath.Join(working, "Sub", "A.txt"), "a")
	testsupport.WriteFile(t, filepath.Join(prediction, "Sub", "A.txt"), "old")
	testsupport.WriteFile(t, filepath.Join(prediction, "Extra.txt"), "gone after first update")

	if err := SoftUpdate(working, prediction); err != nil {
		t.Fatal(err)
	}
	firstA, err := os.Stat(filepath.Join(prediction, "Sub", "A.txt"))
	if err != nil {
		t.Fatal(err)
	}

	if err := SoftUpdate(working, prediction); err != nil {
		t.Fatal(err)
	}
	secondA, err := os.Stat(filepath.Join(prediction, "Sub", "A.txt"))
	if err != nil {
		t.Fatal(err)
	}

	if !firstA.ModTime().Equal(secondA.ModTime()) {
		t.Fatalf("second SoftUpdate rewrote an already-converged file")
	}
	if _, err := os.Stat(filepath.Join(prediction, "Extra.txt")); !os.IsNotExist(err) {
		t.Fatalf("Extra.txt should have been removed on the first update")
	}
}
