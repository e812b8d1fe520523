// Package testsupport provides small helpers shared by seqtest's own
// *_test.go files: scratch project trees and cleanup assertions.
package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// RemoveAll wraps os.RemoveAll and fails the test on failure.
func RemoveAll(t testing.TB, path string) {
	t.Helper()
	if err := os.RemoveAll(path); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
}

// MkdirAll wraps os.MkdirAll and fails the test on failure, returning path
// for chaining.
func MkdirAll(t testing.TB, path string) string {
	t.Helper()
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	return path
}

// WriteFile creates path (and its parent directories) containing contents,
// failing the test on error, and returns path for chaining.
func WriteFile(t testing.TB, path, contents string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// Project scaffolds a minimal seqtest project tree under a t.TempDir(),
// mirroring the directory layout internal/paths expects, and returns its
// root.
func Project(t testing.TB, name string) string {
	t.Helper()
	root := t.TempDir()
	lower := strings.ToLower(name)
	MkdirAll(t, filepath.Join(root, "Source", lower))
	MkdirAll(t, filepath.Join(root, "TestMaterials"))
	mainDir := filepath.Join(root, "build", "CMade", "gcc")
	MkdirAll(t, mainDir)
	WriteFile(t, filepath.Join(root, "Tests", name+"Main.cpp"), "int main() { return 0; }\n")
	WriteFile(t, filepath.Join(root, "Tests", "TestCommon", "TestIncludes.hpp"), "#pragma once\n")
	return root
}
