// Package paths implements the canonical project directory layout a
// seqtest project is built around: a bundle of derived absolute paths
// rooted at a project root, immutable once constructed. The roots, the
// canonical build directory and the main and common-include files are
// verified to exist at construction time (aux_files and output are
// created), so that later components (the dependency analyzer, the prune
// database, the runner) never have to re-check for missing roots. Paths
// derived below output and aux_files (RecoveryDir, PruneDir and the like)
// and Executable are not checked.
package paths

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/xerrors"

	"github.com/seqtest/seqtest/internal/env"
)

// Config describes the inputs needed to derive a Project's paths. Only
// ProjectRoot and ProjectName are required; everything else has a
// conventional default.
type Config struct {
	ProjectRoot string
	ProjectName string

	// MainCpp is the path to the main translation unit, relative to
	// TestsRoot. Defaults to "<ProjectName>Main.cpp".
	MainCpp string

	// CommonIncludes is the path to the common includes header, relative to
	// TestsRoot. Defaults to "TestCommon/TestIncludes.hpp".
	CommonIncludes string

	// AncillaryMainCpps are additional main translation units (e.g. for a
	// performance-test binary built alongside the primary one), relative to
	// TestsRoot.
	AncillaryMainCpps []string

	// CompilerTag names the toolchain subdirectory under build/CMade. If
	// empty, env.CompilerTag() is consulted.
	CompilerTag string
}

// MainPaths describes the file and directory of one main translation unit.
type MainPaths struct {
	file string
	dir  string
}

func (m MainPaths) File() string { return m.file }
func (m MainPaths) Dir() string  { return m.dir }

// Project is the immutable bundle of derived paths for one seqtest project.
type Project struct {
	root        string
	projectName string

	sourceRoot    string
	sourceProject string

	testsRoot     string
	materialsRoot string
	buildRoot     string
	auxRoot       string
	outputRoot    string

	main           MainPaths
	ancillaryMains []MainPaths
	commonIncludes string
	canonicalBuild string
	compilerTag    string
}

// New constructs a Project from cfg, verifying that the roots, the
// canonical build directory and the main and common-include files exist,
// and creating aux_files and output. The project root must be an ancestor
// of every verified directory.
func New(cfg Config) (*Project, error) {
	if cfg.ProjectRoot == "" {
		return nil, xerrors.New("paths: ProjectRoot must not be empty")
	}
	if cfg.ProjectName == "" {
		return nil, xerrors.New("paths: ProjectName must not be empty")
	}
	root, err := filepath.Abs(cfg.ProjectRoot)
	if err != nil {
		return nil, xerrors.Errorf("paths: resolving project root: %w", err)
	}

	mainCpp := cfg.MainCpp
	if mainCpp == "" {
		mainCpp = cfg.ProjectName + "Main.cpp"
	}
	commonIncludes := cfg.CommonIncludes
	if commonIncludes == "" {
		commonIncludes = filepath.Join("TestCommon", "TestIncludes.hpp")
	}
	compilerTag := cfg.CompilerTag
	if compilerTag == "" {
		compilerTag = env.CompilerTag()
	}

	p := &Project{
		root:          root,
		projectName:   cfg.ProjectName,
		sourceRoot:    filepath.Join(root, "Source"),
		sourceProject: filepath.Join(root, "Source", strings.ToLower(cfg.ProjectName)),
		testsRoot:     filepath.Join(root, "Tests"),
		materialsRoot: filepath.Join(root, "TestMaterials"),
		buildRoot:     filepath.Join(root, "build"),
		auxRoot:       filepath.Join(root, "aux_files"),
		outputRoot:    filepath.Join(root, "output"),
		compilerTag:   compilerTag,
	}

	mainFile := filepath.Join(p.testsRoot, mainCpp)
	p.main = MainPaths{file: mainFile, dir: filepath.Dir(mainFile)}
	p.commonIncludes = filepath.Join(p.testsRoot, commonIncludes)

	for _, rel := range cfg.AncillaryMainCpps {
		f := filepath.Join(p.testsRoot, rel)
		p.ancillaryMains = append(p.ancillaryMains, MainPaths{file: f, dir: filepath.Dir(f)})
	}

	relMainDir, err := filepath.Rel(p.testsRoot, p.main.dir)
	if err != nil {
		return nil, xerrors.Errorf("paths: main cpp is not under Tests: %w", err)
	}
	p.canonicalBuild = filepath.Join(p.buildRoot, "CMade", compilerTag, relMainDir)

	if err := p.validate(); err != nil {
		return nil, err
	}

	// aux_files and output are ephemeral scratch areas the harness itself
	// populates (templates, recovery journal, diagnostics); unlike Source,
	// Tests and the build directory, a fresh project need not pre-create
	// them, so seqtest does on the project's behalf.
	for _, d := range []string{p.auxRoot, p.outputRoot} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, xerrors.Errorf("paths: creating %s: %w", d, err)
		}
	}

	return p, nil
}

func (p *Project) validate() error {
	dirs := []string{
		p.root, p.sourceRoot, p.sourceProject, p.testsRoot, p.materialsRoot,
		p.buildRoot, p.canonicalBuild, p.main.dir,
	}
	for _, d := range dirs {
		if err := requireDir(d); err != nil {
			return err
		}
	}
	files := []string{p.main.file, p.commonIncludes}
	for _, f := range files {
		if err := requireFile(f); err != nil {
			return err
		}
	}
	for _, m := range p.ancillaryMains {
		if err := requireDir(m.dir); err != nil {
			return err
		}
		if err := requireFile(m.file); err != nil {
			return err
		}
	}
	for _, d := range dirs {
		if !isAncestor(p.root, d) {
			return xerrors.Errorf("paths: %s is not under project root %s", d, p.root)
		}
	}
	return nil
}

func requireDir(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return xerrors.Errorf("paths: required directory %s: %w", path, err)
	}
	if !fi.IsDir() {
		return xerrors.Errorf("paths: %s exists but is not a directory", path)
	}
	return nil
}

func requireFile(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return xerrors.Errorf("paths: required file %s: %w", path, err)
	}
	if fi.IsDir() {
		return xerrors.Errorf("paths: %s exists but is a directory", path)
	}
	return nil
}

func isAncestor(root, path string) bool {
	if root == path {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (p *Project) Root() string          { return p.root }
func (p *Project) ProjectName() string   { return p.projectName }
func (p *Project) SourceRoot() string    { return p.sourceRoot }
func (p *Project) SourceProject() string { return p.sourceProject }
func (p *Project) TestsRoot() string     { return p.testsRoot }
func (p *Project) MaterialsRoot() string { return p.materialsRoot }
func (p *Project) BuildRoot() string     { return p.buildRoot }
func (p *Project) AuxRoot() string       { return p.auxRoot }
func (p *Project) OutputRoot() string    { return p.outputRoot }
func (p *Project) Main() MainPaths       { return p.main }

func (p *Project) AncillaryMains() []MainPaths {
	return append([]MainPaths(nil), p.ancillaryMains...)
}

func (p *Project) CommonIncludes() string    { return p.commonIncludes }
func (p *Project) CanonicalBuildDir() string { return p.canonicalBuild }
func (p *Project) CompilerTag() string       { return p.compilerTag }

// Executable is the path to the built test binary inside the canonical
// build directory.
func (p *Project) Executable() string {
	return filepath.Join(p.canonicalBuild, p.projectName)
}

// RecoveryDir is output/Recovery.
func (p *Project) RecoveryDir() string { return filepath.Join(p.outputRoot, "Recovery") }

// DiagnosticsDir is output/DiagnosticsOutput.
func (p *Project) DiagnosticsDir() string { return filepath.Join(p.outputRoot, "DiagnosticsOutput") }

// SummariesDir is output/TestSummaries.
func (p *Project) SummariesDir() string { return filepath.Join(p.outputRoot, "TestSummaries") }

// PruneDir is the build-directory-specific prune database location,
// output/Prune/<build-sub>, where build-sub disambiguates multiple build
// directories sharing one output root.
func (p *Project) PruneDir() string {
	rel := strings.ReplaceAll(strings.Trim(p.canonicalBuild[len(p.buildRoot):], string(filepath.Separator)), string(filepath.Separator), "_")
	return filepath.Join(p.outputRoot, "Prune", rel)
}

// TestTemplatesDir is aux_files/TestTemplates.
func (p *Project) TestTemplatesDir() string { return filepath.Join(p.auxRoot, "TestTemplates") }

// SourceTemplatesDir is aux_files/SourceTemplates.
func (p *Project) SourceTemplatesDir() string { return filepath.Join(p.auxRoot, "SourceTemplates") }

// ProjectTemplateDir is aux_files/ProjectTemplate.
func (p *Project) ProjectTemplateDir() string { return filepath.Join(p.auxRoot, "ProjectTemplate") }
