package shell

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAndComposesAndDropsEmpty(t *testing.T) {
	a := New("echo one")
	b := New("echo two")
	if got := a.And(b).String(); got != "echo one && echo two" {
		t.Fatalf("got %q", got)
	}
	if got := a.And(Command{}).String(); got != "echo one" {
		t.Fatalf("expected empty rhs to be dropped, got %q", got)
	}
	if got := (Command{}).And(b).String(); got != "echo two" {
		t.Fatalf("expected empty lhs to be dropped, got %q", got)
	}
}

func TestWithRedirectTruncateVsAppend(t *testing.T) {
	c := New("build")
	if got := c.WithRedirect("out.log", false).String(); got != "build > out.log 2>&1" {
		t.Fatalf("got %q", got)
	}
	if got := c.WithRedirect("out.log", true).String(); got != "build >> out.log 2>&1" {
		t.Fatalf("got %q", got)
	}
	if got := c.WithRedirect("", false).String(); got != "build" {
		t.Fatalf("empty output should be a no-op, got %q", got)
	}
}

func TestInDirPrefixesCd(t *testing.T) {
	got := InDir("/tmp/work", New("make")).String()
	want := "cd /tmp/work && make"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestInvokeCapturesFailureOutput(t *testing.T) {
	err := Invoke(context.Background(), New("echo failing >&2; exit 1"))
	if err == nil {
		t.Fatal("expected non-zero exit to produce an error")
	}
	if !strings.Contains(err.Error(), "failing") {
		t.Fatalf("expected captured stderr in error, got %v", err)
	}
}

func TestInvokeEmptyCommandIsNoop(t *testing.T) {
	if err := Invoke(context.Background(), Command{}); err != nil {
		t.Fatalf("empty command should never fail: %v", err)
	}
}

func TestInvokeRunsAgainstRealFilesystem(t *testing.T) {
	dir := t.TempDir()
	cmd := InDir(dir, New("touch marker"))
	if err := Invoke(context.Background(), cmd); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "marker")); err != nil {
		t.Fatalf("expected marker file to be created: %v", err)
	}
}
