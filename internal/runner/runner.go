// Package runner implements the top-level driver: discovery, prune,
// execute, update-prune and summarize, in both serial and concurrent
// dispatch modes, plus the instability-analysis mode that repeats a
// selection across independent replicas and reports non-deterministic
// outcomes. The scheduler is a worker pool reading from a channel of
// work, with golang.org/x/sync/errgroup managing worker-group lifetime
// and an isatty-gated terminal status line.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/seqtest/seqtest/internal/checklog"
	"github.com/seqtest/seqtest/internal/depgraph"
	"github.com/seqtest/seqtest/internal/paths"
	"github.com/seqtest/seqtest/internal/prune"
	"github.com/seqtest/seqtest/internal/recovery"
	"github.com/seqtest/seqtest/internal/registry"
	"github.com/seqtest/seqtest/internal/summary"
	"github.com/seqtest/seqtest/internal/trace"
)

// Mode selects how the selected tests are dispatched.
type Mode int

const (
	Serial Mode = iota
	Suite
	TestByTest
	Dynamic
)

func (m Mode) String() string {
	switch m {
	case Serial:
		return "serial"
	case Suite:
		return "suite"
	case TestByTest:
		return "test"
	case Dynamic:
		return "dynamic"
	default:
		return "unknown"
	}
}

// Config parameterizes one `run` invocation.
type Config struct {
	Project  *paths.Project
	Registry *registry.Registry

	Concurrency Mode
	AsyncDepth  int // worker count; 0 means runtime.GOMAXPROCS

	Prune  bool // consult the dependency analyzer when no explicit selection was made
	Cutoff string

	Recovery bool // requires Serial concurrency (Validate rejects any other mode); journals the in-flight test
	Verbose  bool

	// SandboxOutputRoot, when non-empty, replaces Project.OutputRoot() as
	// the root Run writes diagnostics and test summaries under. Locate
	// writes no diagnostics or summaries, and its replica prune databases
	// stay under Project.PruneDir() whether or not this is set.
	SandboxOutputRoot string
}

// Validate rejects inconsistent configurations before anything runs.
func (c Config) Validate() error {
	if c.Recovery && c.Concurrency != Serial {
		return xerrors.New("runner: recovery mode requires serial concurrency")
	}
	return nil
}

// Result is everything one `run` produced, ready for the caller to print
// or act on.
type Result struct {
	Grand     summary.Summary
	PerSuite  []summary.Summary
	PerTest   []summary.Summary
	Warnings  []string
	AnyFailed bool
}

func outputRoot(cfg Config) string {
	if cfg.SandboxOutputRoot != "" {
		return cfg.SandboxOutputRoot
	}
	return cfg.Project.OutputRoot()
}

// Run drives one full run: selection (explicit or prune-derived),
// dispatch, prune-database update, and summarization.
func Run(ctx context.Context, cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	store, err := prune.Open(cfg.Project.PruneDir())
	if err != nil {
		return Result{}, err
	}

	tests, selective, warnings, err := selectTests(cfg, store)
	if err != nil {
		return Result{}, err
	}

	mode := resolveMode(cfg.Concurrency, tests)

	var journal *recovery.Journal
	if cfg.Recovery {
		journal, err = recovery.Open(cfg.Project.RecoveryDir())
		if err != nil {
			return Result{}, err
		}
	}

	results, err := dispatch(ctx, cfg, mode, tests, journal)
	if err != nil {
		return Result{}, err
	}

	if err := writeDiagnostics(cfg, tests, results); err != nil {
		return Result{}, err
	}

	if err := updatePruneDB(cfg, store, tests, results, selective); err != nil {
		return Result{}, err
	}

	return summarize(tests, results, warnings), nil
}

// selectTests builds the run set: explicit selections, if any, override
// prune; otherwise, when pruning is enabled, the dependency analyzer
// supplies the rerun set; otherwise every registered test runs.
func selectTests(cfg Config, store *prune.Store) (tests []registry.Test, selective bool, warnings []string, err error) {
	if !cfg.Registry.SelectionEmpty() {
		return cfg.Registry.Selected(), true, nil, nil
	}

	if !cfg.Prune {
		return cfg.Registry.IterAll(), false, nil, nil
	}

	state, err := store.Load()
	if err != nil {
		return nil, false, nil, err
	}

	analyzerCfg := depgraph.Config{
		SourceRoot:    cfg.Project.SourceRoot(),
		TestsRoot:     cfg.Project.TestsRoot(),
		MaterialsRoot: cfg.Project.MaterialsRoot(),
		Cutoff:        cfg.Cutoff,
	}
	if state != nil {
		analyzerCfg.HasStamp = true
		analyzerCfg.StampTime = state.Stamp
		analyzerCfg.PreviousPasses = state.Passes
		if t, ok := store.PassesStamp(); ok {
			analyzerCfg.PassesModTime = t
		}
	}
	if fi, statErr := os.Stat(cfg.Project.Executable()); statErr == nil {
		analyzerCfg.HasExecutable = true
		analyzerCfg.ExecutableModTime = fi.ModTime()
	}

	result, err := depgraph.Analyze(analyzerCfg)
	if err != nil {
		return nil, false, nil, err
	}
	if result == nil {
		// No stamp: run everything.
		return cfg.Registry.IterAll(), false, nil, nil
	}
	if err := store.StoreExternals(result.Externals); err != nil {
		return nil, false, nil, err
	}

	for _, rel := range result.Stale {
		abs := filepath.Join(cfg.Project.TestsRoot(), filepath.FromSlash(rel))
		if !cfg.Registry.SelectBySource(abs) {
			warnings = append(warnings, fmt.Sprintf("stale test %s has no matching registered test", rel))
		}
	}
	return cfg.Registry.Selected(), false, warnings, nil
}

// resolveMode resolves Dynamic into a concrete mode: test-by-test
// dispatch when the selection spans fewer than 4 suites, suite dispatch
// otherwise.
func resolveMode(m Mode, tests []registry.Test) Mode {
	if m != Dynamic {
		return m
	}
	suites := map[string]bool{}
	for _, t := range tests {
		suites[t.Suite] = true
	}
	if len(suites) < 4 {
		return TestByTest
	}
	return Suite
}

type testResult struct {
	summary summary.Summary
	logger  *checklog.Logger
}

// dispatch runs tests under mode, returning one testResult per test in the
// same order as tests (registration order), regardless of execution order,
// so reported output is identical across concurrency modes.
func dispatch(ctx context.Context, cfg Config, mode Mode, tests []registry.Test, journal *recovery.Journal) ([]testResult, error) {
	results := make([]testResult, len(tests))

	runOne := func(t registry.Test, slot int) testResult {
		l := checklog.New()
		if journal != nil {
			journal.Enter(t.Suite + "::" + t.Test)
			l.EnterHook = func(desc string) {
				journal.Enter(t.Suite + "::" + t.Test + ": " + desc)
			}
		}
		ev := trace.Event("test "+t.Suite+"::"+t.Test, slot)
		start := time.Now()
		runBody(l, t)
		ev.Done()
		return testResult{summary: l.Summarize(t.Suite+"::"+t.Test, time.Since(start)), logger: l}
	}

	if mode == Serial || mode == Suite {
		return dispatchGrouped(ctx, cfg, mode, tests, runOne, results)
	}
	return dispatchTestByTest(ctx, cfg, tests, runOne, results)
}

// runBody executes a test's body, converting a panic raised outside any
// sentinel scope into a critical failure instead of letting it escape and
// stop the run.
func runBody(l *checklog.Logger, t registry.Test) {
	defer func() {
		if r := recover(); r != nil {
			l.RecordCriticalFailure(t.Suite+"::"+t.Test, fmt.Sprint(r))
		}
	}()
	if t.Body != nil {
		t.Body(l)
	}
}

func dispatchGrouped(ctx context.Context, cfg Config, mode Mode, tests []registry.Test, runOne func(registry.Test, int) testResult, results []testResult) ([]testResult, error) {
	if mode == Serial {
		for i, t := range tests {
			results[i] = runOne(t, 0)
			if cfg.Verbose {
				printStatus(fmt.Sprintf("[%d/%d] %s::%s", i+1, len(tests), t.Suite, t.Test))
			}
		}
		return results, nil
	}

	// Suite mode: the unit of dispatch is a whole suite, run serially
	// within one worker, so a suite's diagnostics stay coherent.
	bySuite := map[string][]int{}
	var encounterOrder []string
	for i, t := range tests {
		if _, ok := bySuite[t.Suite]; !ok {
			encounterOrder = append(encounterOrder, t.Suite)
		}
		bySuite[t.Suite] = append(bySuite[t.Suite], i)
	}
	order := suiteDispatchOrder(encounterOrder)

	work := make(chan []int, len(order))
	for _, suite := range order {
		work <- bySuite[suite]
	}
	close(work)

	return runWorkers(ctx, cfg, work, func(slot int, idxs []int) {
		for _, i := range idxs {
			results[i] = runOne(tests[i], slot)
			if cfg.Verbose {
				printStatus(fmt.Sprintf("%s::%s", tests[i].Suite, tests[i].Test))
			}
		}
	}, results)
}

type suiteNode struct {
	id   int64
	name string
}

func (n suiteNode) ID() int64 { return n.id }

// suiteDispatchOrder fixes the order whole suites are handed to the worker
// pool in. The edges carry no real dependency, only registration order
// (suite i before suite i+1), so topo.Sort fixes a deterministic,
// reproducible dispatch order without a hand-rolled stable sort.
func suiteDispatchOrder(encounterOrder []string) []string {
	g := simple.NewDirectedGraph()
	nodes := make([]suiteNode, len(encounterOrder))
	for i, name := range encounterOrder {
		nodes[i] = suiteNode{id: int64(i), name: name}
		g.AddNode(nodes[i])
	}
	for i := 0; i+1 < len(nodes); i++ {
		g.SetEdge(g.NewEdge(nodes[i], nodes[i+1]))
	}
	sorted, err := topo.Sort(g)
	if err != nil {
		// A cycle is impossible given the edges constructed above, but
		// fall back to encounter order rather than panic if gonum ever
		// disagrees.
		return encounterOrder
	}
	out := make([]string, len(sorted))
	for i, n := range sorted {
		out[i] = n.(suiteNode).name
	}
	return out
}

func dispatchTestByTest(ctx context.Context, cfg Config, tests []registry.Test, runOne func(registry.Test, int) testResult, results []testResult) ([]testResult, error) {
	work := make(chan []int, len(tests))
	for i := range tests {
		work <- []int{i}
	}
	close(work)

	return runWorkers(ctx, cfg, work, func(slot int, idxs []int) {
		i := idxs[0]
		results[i] = runOne(tests[i], slot)
		if cfg.Verbose {
			printStatus(fmt.Sprintf("%s::%s", tests[i].Suite, tests[i].Test))
		}
	}, results)
}

// runWorkers fans work out over up to workerCount(cfg) goroutines, each
// draining index groups (whole tests, or whole suites) from work.
func runWorkers(ctx context.Context, cfg Config, work chan []int, process func(int, []int), results []testResult) ([]testResult, error) {
	eg, _ := errgroup.WithContext(ctx)
	n := workerCount(cfg)
	if n > len(results) && len(results) > 0 {
		n = len(results)
	}
	if n < 1 {
		n = 1
	}
	for w := 0; w < n; w++ {
		w := w
		eg.Go(func() error {
			for idxs := range work {
				// process writes to disjoint indices of results, so
				// concurrent workers never touch the same element.
				process(w, idxs)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func workerCount(cfg Config) int {
	if cfg.AsyncDepth > 0 {
		return cfg.AsyncDepth
	}
	return runtime.GOMAXPROCS(0)
}

var statusMu sync.Mutex

// stdoutIsTerminal probes stdout's fd with IoctlGetTermios once at package
// init rather than on every status line. go-isatty supplements it as a
// portable fallback for platforms where the raw ioctl isn't available.
var stdoutIsTerminal = func() bool {
	if _, err := unix.IoctlGetTermios(int(os.Stdout.Fd()), unix.TCGETS); err == nil {
		return true
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}()

// printStatus writes a single-line, self-overwriting progress line when
// stdout is a real terminal.
func printStatus(line string) {
	if !stdoutIsTerminal {
		fmt.Println(line)
		return
	}
	statusMu.Lock()
	defer statusMu.Unlock()
	fmt.Printf("\r\033[K%s", line)
}

func writeDiagnostics(cfg Config, tests []registry.Test, results []testResult) error {
	root := outputRoot(cfg)
	for i, t := range tests {
		dir := filepath.Join(root, "DiagnosticsOutput", t.Suite)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return xerrors.Errorf("runner: creating %s: %w", dir, err)
		}
		path := filepath.Join(dir, t.Test+".txt")
		text := results[i].logger.DiagnosticsOutput() + results[i].logger.CaughtExceptionsOutput()
		if err := os.WriteFile(path, []byte(text), 0644); err != nil {
			return xerrors.Errorf("runner: writing %s: %w", path, err)
		}

		sdir := filepath.Join(root, "TestSummaries", t.Suite)
		if err := os.MkdirAll(sdir, 0755); err != nil {
			return xerrors.Errorf("runner: creating %s: %w", sdir, err)
		}
		spath := filepath.Join(sdir, t.Test+".txt")
		sf := summary.Format(results[i].summary, " [test]", summary.DetailTimings|summary.DetailFailureMessages, "")
		if err := os.WriteFile(spath, []byte(sf), 0644); err != nil {
			return xerrors.Errorf("runner: writing %s: %w", spath, err)
		}
	}
	return nil
}

func updatePruneDB(cfg Config, store *prune.Store, tests []registry.Test, results []testResult, selective bool) error {
	var newFailures, executed []string
	for i, t := range tests {
		rel, err := filepath.Rel(cfg.Project.TestsRoot(), t.Source)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)
		executed = append(executed, rel)
		if !results[i].summary.Passed() {
			newFailures = append(newFailures, rel)
		}
	}

	stampTime := time.Now()
	if selective {
		// A selective subset never advances the stamp: re-use whatever
		// stamp already exists, or now if there is none yet.
		if state, err := store.Load(); err == nil && state != nil {
			stampTime = state.Stamp
		}
	}
	return store.Store(newFailures, executed, stampTime)
}

func summarize(tests []registry.Test, results []testResult, warnings []string) Result {
	bySuite := map[string][]summary.Summary{}
	var order []string
	perTest := make([]summary.Summary, len(tests))
	for i, t := range tests {
		perTest[i] = results[i].summary
		if _, ok := bySuite[t.Suite]; !ok {
			order = append(order, t.Suite)
		}
		bySuite[t.Suite] = append(bySuite[t.Suite], results[i].summary)
	}

	var perSuite []summary.Summary
	for _, suite := range order {
		perSuite = append(perSuite, summary.Sum(suite, bySuite[suite]))
	}

	grand := summary.Sum("Grand total", perSuite)
	anyFailed := grand.Failures > 0 || grand.CriticalFailures > 0 || grand.Exceptions > 0

	return Result{
		Grand:     grand,
		PerSuite:  perSuite,
		PerTest:   perTest,
		Warnings:  warnings,
		AnyFailed: anyFailed,
	}
}

// FormatReport renders r as the human-readable text seqtest prints after a
// run: per-suite summaries, the grand total, then accumulated warnings.
func FormatReport(r Result, verbosity summary.Detail) string {
	var b strings.Builder
	for _, s := range r.PerSuite {
		b.WriteString(summary.Format(s, " [suite]", verbosity, ""))
	}
	b.WriteString(summary.Format(r.Grand, "", verbosity, ""))
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "warning: %s\n", w)
	}
	return b.String()
}

// InstabilityResult is the post-hoc comparison of N replica runs.
type InstabilityResult struct {
	Replicas      int
	UnionFailures []string
	StablePasses  []string
	// Unstable lists tests whose outcome (pass/fail) was not constant
	// across replicas, with the fraction of replicas in which it failed.
	Unstable []UnstableTest
}

// UnstableTest names one test whose outcome varied across replicas.
type UnstableTest struct {
	RelativeSource string
	FailureRate    float64 // e.g. 0.6 for "60% / 40%"
}

// Locate runs cfg's selection replicas times, each into its own prune
// replica database, then aggregates and reports which tests were unstable.
func Locate(ctx context.Context, cfg Config, replicas int) (InstabilityResult, error) {
	if cfg.Recovery {
		return InstabilityResult{}, xerrors.New("runner: locate-instability is incompatible with recovery mode")
	}
	store, err := prune.Open(cfg.Project.PruneDir())
	if err != nil {
		return InstabilityResult{}, err
	}
	if err := store.ResetInstability(); err != nil {
		return InstabilityResult{}, err
	}

	tests, _, _, err := selectTests(cfg, store)
	if err != nil {
		return InstabilityResult{}, err
	}

	perReplicaFailCount := map[string]int{}
	for i := 0; i < replicas; i++ {
		results, err := dispatch(ctx, cfg, resolveMode(cfg.Concurrency, tests), tests, nil)
		if err != nil {
			return InstabilityResult{}, err
		}

		var failures, executed []string
		for j, t := range tests {
			rel, relErr := filepath.Rel(cfg.Project.TestsRoot(), t.Source)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			executed = append(executed, rel)
			if !results[j].summary.Passed() {
				failures = append(failures, rel)
				perReplicaFailCount[rel]++
			}
		}

		replica, err := store.Replica(i)
		if err != nil {
			return InstabilityResult{}, err
		}
		if err := replica.Store(failures, executed, time.Now()); err != nil {
			return InstabilityResult{}, err
		}
	}

	failures, passes, err := store.AggregateInstability(replicas)
	if err != nil {
		return InstabilityResult{}, err
	}

	var unstable []UnstableTest
	for rel, failCount := range perReplicaFailCount {
		if failCount > 0 && failCount < replicas {
			unstable = append(unstable, UnstableTest{
				RelativeSource: rel,
				FailureRate:    float64(failCount) / float64(replicas),
			})
		}
	}
	sort.Slice(unstable, func(i, j int) bool { return unstable[i].RelativeSource < unstable[j].RelativeSource })

	return InstabilityResult{
		Replicas:      replicas,
		UnionFailures: failures,
		StablePasses:  passes,
		Unstable:      unstable,
	}, nil
}

// FormatInstability renders r with per-test outcome frequencies, e.g.
// "60% failed / 40% passed".
func FormatInstability(r InstabilityResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ran %d replicas\n", r.Replicas)
	if len(r.Unstable) == 0 {
		b.WriteString("no unstable tests detected\n")
		return b.String()
	}
	for _, u := range r.Unstable {
		fmt.Fprintf(&b, "%s: %.0f%% failed / %.0f%% passed\n", u.RelativeSource, u.FailureRate*100, (1-u.FailureRate)*100)
	}
	return b.String()
}
