package paths

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func mkdirAll(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// freshProject lays out a minimal valid project: Source/foo/, Tests/,
// TestMaterials/, build/CMade/gcc/TestAll, TestAll/TestAllMain.cpp,
// TestCommon/TestIncludes.hpp.
func freshProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	mkdirAll(t, filepath.Join(root, "Source", "foo"))
	mkdirAll(t, filepath.Join(root, "TestMaterials"))
	mkdirAll(t, filepath.Join(root, "build", "CMade", "gcc", "TestAll"))
	writeFile(t, filepath.Join(root, "Tests", "TestAll", "TestAllMain.cpp"), "int main(){}\n")
	writeFile(t, filepath.Join(root, "Tests", "TestCommon", "TestIncludes.hpp"), "#pragma once\n")
	return root
}

func TestNewFreshProject(t *testing.T) {
	root := freshProject(t)

	p, err := New(Config{
		ProjectRoot: root,
		ProjectName: "Foo",
		MainCpp:     filepath.Join("TestAll", "TestAllMain.cpp"),
		CompilerTag: "gcc",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if got, want := filepath.Base(p.SourceProject()), "foo"; got != want {
		t.Errorf("SourceProject() ends in %q, want %q", got, want)
	}

	for _, d := range []string{
		p.Root(), p.SourceRoot(), p.SourceProject(), p.TestsRoot(),
		p.MaterialsRoot(), p.BuildRoot(), p.CanonicalBuildDir(),
		p.AuxRoot(), p.OutputRoot(),
	} {
		fi, err := os.Stat(d)
		if err != nil {
			t.Errorf("dir %s: %v", d, err)
			continue
		}
		if !fi.IsDir() {
			t.Errorf("%s is not a directory", d)
		}
	}

	for _, f := range []string{p.Main().File(), p.CommonIncludes()} {
		fi, err := os.Stat(f)
		if err != nil {
			t.Errorf("file %s: %v", f, err)
			continue
		}
		if fi.IsDir() {
			t.Errorf("%s is a directory, want a file", f)
		}
	}

	if !strings.HasPrefix(p.CanonicalBuildDir(), filepath.Join(p.BuildRoot(), "CMade", "gcc")) {
		t.Errorf("CanonicalBuildDir() = %s, want prefix build/CMade/gcc", p.CanonicalBuildDir())
	}
}

func TestNewMissingRoot(t *testing.T) {
	if _, err := New(Config{ProjectRoot: "", ProjectName: "Foo"}); err == nil {
		t.Fatal("New with empty ProjectRoot: want error, got nil")
	}
}

func TestNewMissingMainCpp(t *testing.T) {
	root := freshProject(t)
	// Remove the main cpp to exercise the "file must exist" invariant.
	if err := os.Remove(filepath.Join(root, "Tests", "TestAll", "TestAllMain.cpp")); err != nil {
		t.Fatal(err)
	}

	_, err := New(Config{
		ProjectRoot: root,
		ProjectName: "Foo",
		MainCpp:     filepath.Join("TestAll", "TestAllMain.cpp"),
		CompilerTag: "gcc",
	})
	if err == nil {
		t.Fatal("New with missing main cpp: want error, got nil")
	}
}
