package scaffold

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCreateTestWritesHeaderAndSource(t *testing.T) {
	root := t.TempDir()

	header, err := CreateTest(root, Request{
		Kind:      RegularTest,
		Family:    "Maths",
		Forename:  "probability",
		GenSource: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(header) != "ProbabilityTest.hpp" {
		t.Fatalf("unexpected header name %q", header)
	}
	contents, err := os.ReadFile(header)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(contents), "class ProbabilityTest") {
		t.Fatalf("header missing class: %s", contents)
	}

	source := filepath.Join(root, "Maths", "ProbabilityTest.cpp")
	if _, err := os.Stat(source); err != nil {
		t.Fatalf("expected generated source: %v", err)
	}
}

func TestCreateTestRefusesOverwrite(t *testing.T) {
	root := t.TempDir()
	req := Request{Kind: FreeTest, Family: "Stuff", Forename: "foo"}
	if _, err := CreateTest(root, req); err != nil {
		t.Fatal(err)
	}
	if _, err := CreateTest(root, req); err == nil {
		t.Fatal("expected error on second create of the same test")
	}
}

func TestCreateTestUnknownKind(t *testing.T) {
	root := t.TempDir()
	_, err := CreateTest(root, Request{Kind: Kind("bogus"), Family: "Stuff", Forename: "foo"})
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestInitProjectScaffoldsLayout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "MyProject")
	if err := os.MkdirAll(root, 0755); err != nil {
		t.Fatal(err)
	}

	if err := InitProject(ProjectRequest{Copyright: "Jane Doe", Path: root}); err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		filepath.Join(root, "Source", "myproject"),
		filepath.Join(root, "Tests"),
		filepath.Join(root, "TestMaterials"),
		filepath.Join(root, "Tests", "MyProjectMain.cpp"),
		filepath.Join(root, "Tests", "TestCommon", "TestIncludes.hpp"),
	} {
		if _, err := os.Stat(want); err != nil {
			t.Fatalf("expected %s to exist: %v", want, err)
		}
	}
}
