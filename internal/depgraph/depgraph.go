// Package depgraph builds a directed include graph over a project's
// source, test and materials trees and uses it to compute the minimal set
// of tests that need to rerun since the last successful prune.
//
// Nodes are source files; an edge from u to v means "u textually
// includes v".
// Staleness propagates backwards along edges: a file that includes a stale
// header is itself stale, because rebuilding it would pick up the change.
package depgraph

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/xerrors"
	"gonum.org/v1/gonum/graph/simple"
)

var cppExts = map[string]bool{".cpp": true, ".cc": true, ".cxx": true}
var hdrExts = map[string]bool{".hpp": true, ".h": true, ".hxx": true}

func sourceExt(ext string) bool { return cppExts[ext] || hdrExts[ext] }

// Config parameterizes one analysis run.
type Config struct {
	SourceRoot      string
	TestsRoot       string
	MaterialsRoot   string
	AdditionalRoots []string

	// Cutoff terminates per-file scanning at the first line containing
	// this token. Empty means scan the whole file.
	Cutoff string

	// HasStamp/StampTime: HasStamp false means "no prune stamp exists",
	// in which case Analyze returns (nil, nil) meaning "run everything"
	// without doing any work.
	HasStamp  bool
	StampTime time.Time

	// HasExecutable/ExecutableModTime: when present, any source node
	// newer than the executable fails the analysis outright.
	HasExecutable     bool
	ExecutableModTime time.Time

	// PreviousPasses/PassesModTime support the passing-test reprieve:
	// a test already marked stale can be un-staled if it appears in
	// PreviousPasses and every one of its own inputs is older than
	// PassesModTime.
	PreviousPasses []string
	PassesModTime  time.Time
}

// Result is the outcome of one analysis.
type Result struct {
	// Stale lists the relative (to TestsRoot) paths of tests that need
	// to rerun, sorted.
	Stale []string
	// Externals lists include directives that could not be resolved
	// against any known root, sorted and deduplicated.
	Externals []string
}

type node struct {
	id      int64
	path    string // absolute, cleaned
	name    string // base name, e.g. "Foo.cpp"
	stale   bool
	modTime time.Time
	// includes holds the raw include text extracted from the file,
	// resolved into edges once every node is known.
	includes []string
}

func (n *node) ID() int64 { return n.id }

// Analyze runs the full pipeline described by the dependency analyzer: node
// gathering, sorting, include extraction, edge insertion, staleness
// propagation, the materials check and the passing-test reprieve.
func Analyze(cfg Config) (*Result, error) {
	if !cfg.HasStamp {
		return nil, nil // no stamp means "run everything"
	}

	nodes, byPath, err := gatherNodes(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.HasExecutable {
		for _, n := range nodes {
			if n.modTime.After(cfg.ExecutableModTime) {
				return nil, xerrors.Errorf("depgraph: executable is out of date (source %s newer than executable)", n.path)
			}
		}
	}

	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].name != nodes[j].name {
			return nodes[i].name < nodes[j].name
		}
		return nodes[i].path < nodes[j].path
	})

	for i, n := range nodes {
		n.id = int64(i)
	}

	g := simple.NewDirectedGraph()
	for _, n := range nodes {
		g.AddNode(n)
	}

	roots := append([]string{cfg.SourceRoot, cfg.TestsRoot}, cfg.AdditionalRoots...)
	externals := map[string]bool{}
	for _, n := range nodes {
		for _, inc := range n.includes {
			target, ok := resolveInclude(inc, n.path, roots, byPath)
			if !ok {
				externals[inc] = true
				continue
			}
			if target.id == n.id {
				continue
			}
			if !g.HasEdgeFromTo(n.id, target.id) {
				g.SetEdge(g.NewEdge(n, target))
			}
		}
	}

	propagateOwnStem(nodes, g)
	computeStaleness(nodes, g)

	if err := applyMaterialsCheck(nodes, cfg); err != nil {
		return nil, err
	}
	applyPassingReprieve(nodes, cfg)

	var stale []string
	for _, n := range nodes {
		if !n.stale {
			continue
		}
		if !cppExts[filepath.Ext(n.path)] {
			continue
		}
		rel, err := filepath.Rel(cfg.TestsRoot, n.path)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue // not under tests_root
		}
		stale = append(stale, filepath.ToSlash(rel))
	}
	sort.Strings(stale)

	extList := make([]string, 0, len(externals))
	for e := range externals {
		extList = append(extList, e)
	}
	sort.Strings(extList)

	return &Result{Stale: stale, Externals: extList}, nil
}

func gatherNodes(cfg Config) ([]*node, map[string]*node, error) {
	var nodes []*node
	byPath := map[string]*node{}

	roots := append([]string{cfg.SourceRoot, cfg.TestsRoot}, cfg.AdditionalRoots...)
	for _, root := range roots {
		if root == "" {
			continue
		}
		err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}
			if !sourceExt(filepath.Ext(path)) {
				return nil
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return err
			}
			abs = filepath.Clean(abs)
			if byPath[abs] != nil {
				return nil // already gathered from another root
			}
			includes, err := extractIncludes(abs, cfg.Cutoff)
			if err != nil {
				return err
			}
			n := &node{
				path:     abs,
				name:     filepath.Base(abs),
				modTime:  info.ModTime(),
				stale:    info.ModTime().After(cfg.StampTime),
				includes: includes,
			}
			byPath[abs] = n
			nodes = append(nodes, n)
			return nil
		})
		if err != nil && !os.IsNotExist(err) {
			return nil, nil, xerrors.Errorf("depgraph: walking %s: %w", root, err)
		}
	}
	return nodes, byPath, nil
}

var includeDirective = func() func(line string) (target string, ok bool) {
	return func(line string) (string, bool) {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			return "", false
		}
		rest := strings.TrimSpace(trimmed[1:])
		if !strings.HasPrefix(rest, "include") {
			return "", false
		}
		rest = strings.TrimSpace(rest[len("include"):])
		if len(rest) < 2 {
			return "", false
		}
		var open, close byte
		switch rest[0] {
		case '"':
			open, close = '"', '"'
		case '<':
			open, close = '<', '>'
		default:
			return "", false
		}
		end := strings.IndexByte(rest[1:], close)
		if end < 0 {
			return "", false
		}
		_ = open
		return rest[1 : 1+end], true
	}
}()

// extractIncludes scans path for #include directives, honoring line and
// block comments, and stops at the first line containing cutoff (if
// cutoff is non-empty).
func extractIncludes(path, cutoff string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("depgraph: opening %s: %w", path, err)
	}
	defer f.Close()

	var includes []string
	inBlockComment := false
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if cutoff != "" && strings.Contains(line, cutoff) {
			break
		}
		stripped, stillInBlock := stripComments(line, inBlockComment)
		inBlockComment = stillInBlock
		if target, ok := includeDirective(stripped); ok {
			includes = append(includes, target)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, xerrors.Errorf("depgraph: scanning %s: %w", path, err)
	}
	return includes, nil
}

// stripComments removes // line comments and /* */ block comments from a
// single line, tracking whether a block comment begun on a previous line
// is still open.
func stripComments(line string, inBlock bool) (string, bool) {
	var b strings.Builder
	i := 0
	for i < len(line) {
		if inBlock {
			end := strings.Index(line[i:], "*/")
			if end < 0 {
				return b.String(), true
			}
			i += end + 2
			inBlock = false
			continue
		}
		if i+1 < len(line) && line[i] == '/' && line[i+1] == '/' {
			break // rest of line is a comment
		}
		if i+1 < len(line) && line[i] == '/' && line[i+1] == '*' {
			inBlock = true
			i += 2
			continue
		}
		b.WriteByte(line[i])
		i++
	}
	return b.String(), inBlock
}

// resolveInclude resolves an extracted include text against, in order: an
// absolute path, the including file's directory, source_root, tests_root,
// then each additional root.
func resolveInclude(inc, includingFile string, roots []string, byPath map[string]*node) (*node, bool) {
	if filepath.IsAbs(inc) {
		if n, ok := byPath[filepath.Clean(inc)]; ok {
			return n, true
		}
	}
	candidates := []string{filepath.Join(filepath.Dir(includingFile), inc)}
	for _, root := range roots {
		if root == "" {
			continue
		}
		candidates = append(candidates, filepath.Join(root, inc))
	}
	for _, c := range candidates {
		abs, err := filepath.Abs(c)
		if err != nil {
			continue
		}
		if n, ok := byPath[filepath.Clean(abs)]; ok {
			return n, true
		}
	}
	return nil, false
}

// propagateOwnStem implements the "own-stem cpp/hpp" rule: a cpp that
// includes its same-directory, same-stem header shares timestamp and
// staleness with it, and an include found on the cpp with a *different*
// stem is also furnished onto the header, since the header is what other
// files transitively include. A pair that merely shares a stem without the
// cpp actually including the header is left alone.
func propagateOwnStem(nodes []*node, g *simple.DirectedGraph) {
	byStem := map[string][]*node{}
	for _, n := range nodes {
		stem := strings.TrimSuffix(n.path, filepath.Ext(n.path))
		byStem[stem] = append(byStem[stem], n)
	}
	for _, group := range byStem {
		var cpp, hdr *node
		for _, n := range group {
			ext := filepath.Ext(n.path)
			if cppExts[ext] {
				cpp = n
			} else if hdrExts[ext] {
				hdr = n
			}
		}
		if cpp == nil || hdr == nil {
			continue
		}
		if !g.HasEdgeFromTo(cpp.ID(), hdr.ID()) {
			continue
		}
		maxTime := cpp.modTime
		if hdr.modTime.After(maxTime) {
			maxTime = hdr.modTime
		}
		stale := cpp.stale || hdr.stale
		cpp.modTime, hdr.modTime = maxTime, maxTime
		cpp.stale, hdr.stale = stale, stale

		from := g.From(cpp.ID())
		for from.Next() {
			target := from.Node()
			if target.ID() == hdr.ID() {
				continue
			}
			if !g.HasEdgeFromTo(hdr.ID(), target.ID()) {
				g.SetEdge(g.NewEdge(hdr, target))
			}
		}
	}
}

// computeStaleness performs the depth-first staleness/timestamp
// propagation: a node inherits the logical-or of staleness and the max
// timestamp of everything it (directly or transitively) includes. Cycles are broken with a three-state visited
// set: a node currently being visited contributes nothing further to its
// own cycle.
func computeStaleness(nodes []*node, g *simple.DirectedGraph) {
	const (
		unvisited = iota
		inProgress
		done
	)
	state := make(map[int64]int, len(nodes))

	var visit func(n *node) (bool, time.Time)
	visit = func(n *node) (bool, time.Time) {
		switch state[n.id] {
		case done:
			return n.stale, n.modTime
		case inProgress:
			return false, time.Time{}
		}
		state[n.id] = inProgress

		stale := n.stale
		maxTime := n.modTime
		from := g.From(n.id)
		for from.Next() {
			child := from.Node().(*node)
			cs, ct := visit(child)
			if cs {
				stale = true
			}
			if ct.After(maxTime) {
				maxTime = ct
			}
		}
		n.stale = stale
		n.modTime = maxTime
		state[n.id] = done
		return stale, maxTime
	}

	for _, n := range nodes {
		visit(n)
	}
}

// applyMaterialsCheck marks a test cpp node stale if any file under its
// expected materials directory is newer than the prune stamp.
func applyMaterialsCheck(nodes []*node, cfg Config) error {
	if cfg.MaterialsRoot == "" {
		return nil
	}
	for _, n := range nodes {
		if !cppExts[filepath.Ext(n.path)] {
			continue
		}
		rel, err := filepath.Rel(cfg.TestsRoot, n.path)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		relNoExt := strings.TrimSuffix(rel, filepath.Ext(rel))
		dir := filepath.Join(cfg.MaterialsRoot, relNoExt)
		stale, latest, err := materialsStale(dir, cfg.StampTime)
		if err != nil {
			return err
		}
		if stale {
			n.stale = true
			if latest.After(n.modTime) {
				n.modTime = latest
			}
		}
	}
	return nil
}

func materialsStale(dir string, stamp time.Time) (bool, time.Time, error) {
	var stale bool
	var latest time.Time
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		if info.ModTime().After(stamp) {
			stale = true
		}
		return nil
	})
	if os.IsNotExist(err) {
		return false, time.Time{}, nil
	}
	if err != nil {
		return false, time.Time{}, xerrors.Errorf("depgraph: walking materials %s: %w", dir, err)
	}
	return stale, latest, nil
}

// applyPassingReprieve un-stales a test that is in the previous passes
// list, provided every one of its own inputs is older than the passes
// file's own modification time.
func applyPassingReprieve(nodes []*node, cfg Config) {
	if len(cfg.PreviousPasses) == 0 {
		return
	}
	passing := make(map[string]bool, len(cfg.PreviousPasses))
	for _, p := range cfg.PreviousPasses {
		passing[filepath.ToSlash(p)] = true
	}
	for _, n := range nodes {
		if !n.stale || !cppExts[filepath.Ext(n.path)] {
			continue
		}
		rel, err := filepath.Rel(cfg.TestsRoot, n.path)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		rel = filepath.ToSlash(rel)
		if !passing[rel] {
			continue
		}
		if n.modTime.After(cfg.PassesModTime) {
			continue
		}
		n.stale = false
	}
}
