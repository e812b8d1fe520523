// Package prune implements the persistent per-build-directory prune
// database: a stamp file whose modification time records the last
// successful full prune, and sorted, LF-terminated, UTF-8 text files
// listing failing and passing tests plus unresolved ("external")
// dependency paths the analyzer could not locate.
package prune

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/renameio"
	"golang.org/x/xerrors"
)

const (
	stampFile      = "stamp"
	failuresFile   = "failures"
	passesFile     = "passes"
	externalsFile  = "external-dependencies"
	instabilitySub = "InstabilityAnalysis"
)

// Store is a handle onto one build directory's prune database.
type Store struct {
	dir string
}

// Open returns a Store rooted at dir, creating dir if necessary. Opening
// does not read anything from disk; call Load for that.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, xerrors.Errorf("prune: creating %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// State is a snapshot of one prune database.
type State struct {
	Stamp     time.Time
	Failures  []string
	Passes    []string
	Externals []string
}

// Load reads the database. It returns (nil, nil) when the stamp file is
// absent, meaning "run everything".
func (s *Store) Load() (*State, error) {
	stampPath := filepath.Join(s.dir, stampFile)
	fi, err := os.Stat(stampPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, xerrors.Errorf("prune: stat stamp: %w", err)
	}

	failures, err := readLines(filepath.Join(s.dir, failuresFile))
	if err != nil {
		return nil, err
	}
	passes, err := readLines(filepath.Join(s.dir, passesFile))
	if err != nil {
		return nil, err
	}
	externals, err := readLines(filepath.Join(s.dir, externalsFile))
	if err != nil {
		return nil, err
	}

	return &State{
		Stamp:     fi.ModTime(),
		Failures:  failures,
		Passes:    passes,
		Externals: externals,
	}, nil
}

// PassesStamp returns the modification time of the passes file, used by
// the dependency analyzer's "passing-test reprieve" step, and whether the
// file exists at all.
func (s *Store) PassesStamp() (time.Time, bool) {
	fi, err := os.Stat(filepath.Join(s.dir, passesFile))
	if err != nil {
		return time.Time{}, false
	}
	return fi.ModTime(), true
}

// Store records one run's outcomes: given the failures newly observed
// (newFailures) and the full set of tests that were executed this run
// (executed), it union-updates the passes list with executed\newFailures,
// drops from the failures list any previous failure that was re-executed
// and is not in newFailures, then adds newFailures, and rewrites the
// stamp's modification time to stampTime.
//
// For a prior state S whose failures are disjoint from executed:
//
//	load(store(S, F, E, t)) = (t, S.failures + F, (S.passes + (E \ F)) \ F, S.externals)
//
// When S.failures and executed overlap, a previously-failing test that was
// rerun and passed must leave the failures list; a literal union of
// S.failures and F would leave it in both failures and passes at once.
func (s *Store) Store(newFailures, executed []string, stampTime time.Time) error {
	prior, err := s.Load()
	if err != nil {
		return err
	}
	var priorFailures, priorPasses, externals []string
	if prior != nil {
		priorFailures, priorPasses, externals = prior.Failures, prior.Passes, prior.Externals
	}

	passes := unionSorted(priorPasses, differenceSorted(sortCopy(executed), sortCopy(newFailures)))
	passes = differenceSorted(passes, sortCopy(newFailures))

	remainingPreviousFailures := differenceSorted(priorFailures, passes)
	failures := unionSorted(remainingPreviousFailures, sortCopy(newFailures))

	if err := writeLines(s.dir, failuresFile, failures); err != nil {
		return err
	}
	if err := writeLines(s.dir, passesFile, passes); err != nil {
		return err
	}
	if err := writeLines(s.dir, externalsFile, externals); err != nil {
		return err
	}
	return touchStamp(filepath.Join(s.dir, stampFile), stampTime)
}

// StoreExternals rewrites only the external-dependencies cache, leaving
// failures/passes/stamp untouched. Called by the analyzer after a node
// gathering pass even when no tests end up running.
func (s *Store) StoreExternals(externals []string) error {
	return writeLines(s.dir, externalsFile, sortCopy(externals))
}

// Replica returns the Store for instability-analysis replica id, rooted at
// InstabilityAnalysis/<id> beneath this Store's directory.
func (s *Store) Replica(id int) (*Store, error) {
	return Open(filepath.Join(s.dir, instabilitySub, fmt.Sprintf("%d", id)))
}

// ResetInstability removes and recreates the InstabilityAnalysis
// subdirectory, called before a fresh locate-instability run.
func (s *Store) ResetInstability() error {
	dir := filepath.Join(s.dir, instabilitySub)
	if err := os.RemoveAll(dir); err != nil {
		return xerrors.Errorf("prune: removing %s: %w", dir, err)
	}
	return os.MkdirAll(dir, 0755)
}

// AggregateInstability unions the failures and intersects the passes of
// numReplicas replica databases. If any replica lacks a passes file, passes
// is nil: nothing belongs in the intersected passes file when replicas
// disagree enough that one never recorded a clean pass list.
func (s *Store) AggregateInstability(numReplicas int) (failures, passes []string, err error) {
	var allFailures []string
	var intersection []string
	for i := 0; i < numReplicas; i++ {
		replica, err := s.Replica(i)
		if err != nil {
			return nil, nil, err
		}
		f, err := readLines(filepath.Join(replica.dir, failuresFile))
		if err != nil {
			return nil, nil, err
		}
		allFailures = append(allFailures, f...)

		passesPath := filepath.Join(replica.dir, passesFile)
		if _, statErr := os.Stat(passesPath); statErr != nil {
			intersection = nil
			continue
		}
		p, err := readLines(passesPath)
		if err != nil {
			return nil, nil, err
		}
		if i == 0 {
			intersection = sortCopy(p)
		} else if intersection != nil {
			intersection = intersectSorted(intersection, sortCopy(p))
		}
	}

	failures = dedupeSorted(sortCopy(allFailures))
	return failures, intersection, nil
}

func touchStamp(path string, t time.Time) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := renameio.WriteFile(path, nil, 0644); err != nil {
			return xerrors.Errorf("prune: creating stamp: %w", err)
		}
	} else if err != nil {
		return xerrors.Errorf("prune: stat stamp: %w", err)
	}
	if err := os.Chtimes(path, t, t); err != nil {
		return xerrors.Errorf("prune: touching stamp: %w", err)
	}
	return nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, xerrors.Errorf("prune: reading %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, xerrors.Errorf("prune: scanning %s: %w", path, err)
	}
	return lines, nil
}

// writeLines rewrites name under dir as a sorted, deduplicated,
// LF-terminated, UTF-8 text file, atomically (readers either see the old
// file or the new one, never a partial write).
func writeLines(dir, name string, lines []string) error {
	sorted := dedupeSorted(sortCopy(lines))
	var b strings.Builder
	for _, l := range sorted {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return renameio.WriteFile(filepath.Join(dir, name), []byte(b.String()), 0644)
}

func sortCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func dedupeSorted(sorted []string) []string {
	out := sorted[:0:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}

// unionSorted returns the sorted union of two sorted slices.
func unionSorted(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return dedupeSorted(out)
}

// differenceSorted returns the sorted set difference a \ b.
func differenceSorted(a, b []string) []string {
	out := make([]string, 0, len(a))
	i, j := 0, 0
	for i < len(a) {
		if j >= len(b) || a[i] < b[j] {
			out = append(out, a[i])
			i++
		} else if a[i] > b[j] {
			j++
		} else {
			i++
			j++
		}
	}
	return out
}

// intersectSorted returns the sorted set intersection of a and b.
func intersectSorted(a, b []string) []string {
	out := make([]string, 0)
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}
