// Package scaffold creates the artefacts the rest of seqtest consumes:
// test source skeletons under a project's Tests tree and the directory
// layout internal/paths expects for a brand-new project. It is
// deliberately thin; everything it emits exists to be picked up by the
// dependency analyzer and the runner.
package scaffold

import (
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"golang.org/x/xerrors"

	"github.com/seqtest/seqtest/internal/casing"
	"github.com/seqtest/seqtest/internal/env"
)

// Kind names one of the six test skeleton flavours `create` accepts.
type Kind string

const (
	RegularTest            Kind = "regular_test"
	MoveOnlyTest           Kind = "move_only_test"
	RegularAllocationTest  Kind = "regular_allocation_test"
	MoveOnlyAllocationTest Kind = "move_only_allocation_test"
	FreeTest               Kind = "free_test"
	PerformanceTest        Kind = "performance_test"
)

var baseClasses = map[Kind]string{
	RegularTest:            "regular_test",
	MoveOnlyTest:           "move_only_test",
	RegularAllocationTest:  "regular_allocation_test",
	MoveOnlyAllocationTest: "move_only_allocation_test",
	FreeTest:               "free_test",
	PerformanceTest:        "performance_test",
}

// Request describes one `create` invocation.
type Request struct {
	Kind Kind

	// Family is the suite/family this test belongs to (--family/-f).
	Family string
	// ClassHeader is the header declaring the type under test
	// (--class-header/-ch); empty for FreeTest.
	ClassHeader string
	// Forename names the generated test, e.g. "foo" -> FooTest.
	Forename string
	// EquivalentType is the type check_equality compares against
	// (--equivalent-type/-e); optional.
	EquivalentType string
	// GenSource requests that a matching .cpp is generated too, beside the
	// header in the family directory ("gen-source" positional keyword).
	GenSource bool
}

// ClassName derives the generated test class name from the forename, e.g.
// "foo" -> "FooTest".
func (r Request) ClassName() string {
	return casing.ToPascalCase(r.Forename) + "Test"
}

// FileStem derives the scaffolded file's stem, e.g. "foo" -> "FooTest".
func (r Request) FileStem() string { return r.ClassName() }

var testTmpl = template.Must(template.New("test").Parse(
	`#ifndef {{.Guard}}
#define {{.Guard}}

{{if .ClassHeader}}#include "{{.ClassHeader}}"
{{end}}#include "seqtest/TestFramework/{{.BaseClass}}.hpp"

namespace seqtest::testing
{
  class {{.ClassName}} final : public {{.BaseClass}}<{{.ClassName}}>
  {
  public:
    using {{.BaseClass}}<{{.ClassName}}>::{{.BaseClass}};

    [[nodiscard]]
    std::string_view source_file() const noexcept final { return __FILE__; }

  private:
    void run_tests() final;
  };
}

#endif
`))

var sourceTmpl = template.Must(template.New("source").Parse(
	`#include "{{.HeaderName}}"

namespace seqtest::testing
{
  void {{.ClassName}}::run_tests()
  {
    // populate with checks against {{if .EquivalentType}}{{.EquivalentType}}{{else}}the type under test{{end}}
  }
}
`))

type templateData struct {
	Guard          string
	ClassHeader    string
	BaseClass      string
	ClassName      string
	HeaderName     string
	EquivalentType string
}

// CreateTest writes a header (and, if requested, a source file) for req
// under testsRoot/Family, returning the header's path. It never overwrites
// an existing file.
func CreateTest(testsRoot string, req Request) (headerPath string, err error) {
	base, ok := baseClasses[req.Kind]
	if !ok {
		return "", xerrors.Errorf("scaffold: unknown test kind %q", req.Kind)
	}
	if req.Forename == "" {
		return "", xerrors.New("scaffold: forename must not be empty")
	}

	dir := filepath.Join(testsRoot, req.Family)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", xerrors.Errorf("scaffold: creating %s: %w", dir, err)
	}

	stem := req.FileStem()
	headerName := stem + ".hpp"
	headerPath = filepath.Join(dir, headerName)
	sourcePath := filepath.Join(dir, stem+".cpp")

	data := templateData{
		Guard:          casing.ToSnakeCase(req.Family+"_"+stem) + "_HPP",
		ClassHeader:    req.ClassHeader,
		BaseClass:      base,
		ClassName:      req.ClassName(),
		HeaderName:     headerName,
		EquivalentType: req.EquivalentType,
	}

	if err := writeNewFile(headerPath, testTmpl, data); err != nil {
		return "", err
	}
	if req.GenSource {
		if err := writeNewFile(sourcePath, sourceTmpl, data); err != nil {
			return "", err
		}
	}
	return headerPath, nil
}

func writeNewFile(path string, tmpl *template.Template, data templateData) error {
	if _, err := os.Stat(path); err == nil {
		return xerrors.Errorf("scaffold: %s already exists", path)
	} else if !os.IsNotExist(err) {
		return xerrors.Errorf("scaffold: stat %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return xerrors.Errorf("scaffold: creating %s: %w", path, err)
	}
	defer f.Close()
	if err := tmpl.Execute(f, data); err != nil {
		return xerrors.Errorf("scaffold: rendering %s: %w", path, err)
	}
	return nil
}

// ProjectRequest describes an `init` invocation.
type ProjectRequest struct {
	Copyright string
	Path      string
	ToFiles   bool // stamp a copyright line into the generated main .cpp; other generated files are not stamped
	NoIDE     bool // skip IDE project-file scaffolding
	NoGit     bool // skip `git init`
}

// InitProject creates the directory layout internal/paths.New expects for
// a brand-new project rooted at req.Path, named after its base directory.
func InitProject(req ProjectRequest) error {
	root := req.Path
	name := filepath.Base(root)

	dirs := []string{
		filepath.Join(root, "Source", strings.ToLower(name)),
		filepath.Join(root, "Tests", "TestCommon"),
		filepath.Join(root, "TestMaterials"),
		filepath.Join(root, "build", "CMade"),
		filepath.Join(root, "aux_files", "TestTemplates"),
		filepath.Join(root, "aux_files", "SourceTemplates"),
		filepath.Join(root, "aux_files", "ProjectTemplate"),
		filepath.Join(root, "output"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return xerrors.Errorf("scaffold: creating %s: %w", d, err)
		}
	}

	mainCpp := filepath.Join(root, "Tests", name+"Main.cpp")
	mainText := "int main(int argc, char** argv)\n{\n  return 0;\n}\n"
	if req.ToFiles {
		mainText = "// Copyright " + req.Copyright + "\n" + mainText
	}
	if err := writeIfAbsent(mainCpp, mainText); err != nil {
		return err
	}

	includesHpp := filepath.Join(root, "Tests", "TestCommon", "TestIncludes.hpp")
	if err := writeIfAbsent(includesHpp, "#pragma once\n"); err != nil {
		return err
	}

	// The canonical build directory for a main cpp sitting directly under
	// Tests/ is build/CMade/<compiler>, with no further subdirectory; it
	// must exist before paths.New will accept the project.
	compilerDir := filepath.Join(root, "build", "CMade", env.CompilerTag())
	if err := os.MkdirAll(compilerDir, 0755); err != nil {
		return xerrors.Errorf("scaffold: creating %s: %w", compilerDir, err)
	}

	if !req.NoIDE {
		settings := filepath.Join(root, ".vscode", "settings.json")
		if err := os.MkdirAll(filepath.Dir(settings), 0755); err != nil {
			return xerrors.Errorf("scaffold: creating %s: %w", filepath.Dir(settings), err)
		}
		if err := writeIfAbsent(settings, "{\n  \"C_Cpp.default.cppStandard\": \"c++20\",\n  \"files.associations\": { \"*.hpp\": \"cpp\" }\n}\n"); err != nil {
			return err
		}
	}

	return nil
}

func writeIfAbsent(path, contents string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return xerrors.Errorf("scaffold: stat %s: %w", path, err)
	}
	return os.WriteFile(path, []byte(contents), 0644)
}
