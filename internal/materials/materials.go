// Package materials implements the soft-update copy from a test's
// "working" directory (what the test actually produced) back into its
// "prediction" directory (what future runs compare against).
package materials

import (
	"crypto/sha256"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/xerrors"
)

const keepFile = ".keep"
const seqpatExt = ".seqpat"

// SoftUpdate recursively syncs prediction to match working: a regular file
// present in working but absent (or content-different) in prediction is
// copied over; a directory present only in working is created and copied
// recursively; an entry present in prediction but not in working is
// removed. Byte-equal files are left untouched so their modification times
// stay stable. .keep files and files with a .seqpat extension are
// preserved: never removed from prediction, and first copied from
// prediction into working (a .seqpat pattern only when working already has
// a same-stem sibling for it to describe) so the subsequent comparison
// finds them already equal and never rewrites them.
//
// SoftUpdate is idempotent: running it twice in a row is a no-op the
// second time, since after the first run working and prediction agree on
// every path that isn't itself mutated by a further test run.
func SoftUpdate(working, prediction string) error {
	if _, err := os.Stat(working); err != nil {
		return xerrors.Errorf("materials: working dir: %w", err)
	}
	if _, err := os.Stat(prediction); err != nil {
		return xerrors.Errorf("materials: prediction dir: %w", err)
	}
	if err := copySpecialFiles(working, prediction); err != nil {
		return err
	}
	return syncDir(working, prediction)
}

// copySpecialFiles copies .keep and .seqpat-suffixed files found anywhere
// under prediction into the corresponding subdirectory of working, so that
// a subsequent content comparison treats them as unchanged and never
// rewrites the prediction's copy. A .keep marker is copied unconditionally;
// a .seqpat pattern is only copied when the working subdirectory already
// holds a sibling file with the same stem and a different extension, since
// the pattern exists to describe that sibling.
func copySpecialFiles(working, prediction string) error {
	return filepath.Walk(prediction, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !isSpecial(path) {
			return nil
		}
		rel, err := filepath.Rel(prediction, path)
		if err != nil {
			return err
		}
		dest := filepath.Join(working, rel)
		if filepath.Ext(path) == seqpatExt {
			ok, err := hasStemSibling(filepath.Dir(dest), filepath.Base(path))
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return err
		}
		return copyFile(path, dest)
	})
}

func isSpecial(path string) bool {
	base := filepath.Base(path)
	return base == keepFile || filepath.Ext(base) == seqpatExt
}

// hasStemSibling reports whether dir contains a file sharing seqpatName's
// stem under an extension other than .seqpat.
func hasStemSibling(dir, seqpatName string) (bool, error) {
	stem := strings.TrimSuffix(seqpatName, seqpatExt)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if ext == seqpatExt {
			continue
		}
		if strings.TrimSuffix(name, ext) == stem {
			return true, nil
		}
	}
	return false, nil
}

type entry struct {
	name  string
	isDir bool
}

func listDir(dir string) ([]entry, error) {
	fis, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]entry, 0, len(fis))
	for _, fi := range fis {
		out = append(out, entry{name: fi.Name(), isDir: fi.IsDir()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}

// syncDir makes prediction's direct children match working's: added,
// changed and removed entries, recursing into shared subdirectories.
func syncDir(working, prediction string) error {
	fromEntries, err := listDir(working)
	if err != nil {
		return xerrors.Errorf("materials: listing %s: %w", working, err)
	}
	toEntries, err := listDir(prediction)
	if err != nil {
		return xerrors.Errorf("materials: listing %s: %w", prediction, err)
	}

	fromByName := map[string]entry{}
	for _, e := range fromEntries {
		fromByName[e.name] = e
	}
	toByName := map[string]entry{}
	for _, e := range toEntries {
		toByName[e.name] = e
	}

	for _, e := range fromEntries {
		fromPath := filepath.Join(working, e.name)
		toPath := filepath.Join(prediction, e.name)
		other, existed := toByName[e.name]

		switch {
		case !existed:
			if e.isDir {
				if err := os.MkdirAll(toPath, 0755); err != nil {
					return err
				}
				if err := copyTree(fromPath, toPath); err != nil {
					return err
				}
			} else {
				if err := copyFile(fromPath, toPath); err != nil {
					return err
				}
			}
		case e.isDir && other.isDir:
			if err := syncDir(fromPath, toPath); err != nil {
				return err
			}
		case !e.isDir && !other.isDir:
			if err := syncFileIfDifferent(fromPath, toPath); err != nil {
				return err
			}
		default:
			// type changed (file<->dir): replace wholesale.
			if err := os.RemoveAll(toPath); err != nil {
				return err
			}
			if e.isDir {
				if err := os.MkdirAll(toPath, 0755); err != nil {
					return err
				}
				if err := copyTree(fromPath, toPath); err != nil {
					return err
				}
			} else if err := copyFile(fromPath, toPath); err != nil {
				return err
			}
		}
	}

	for _, e := range toEntries {
		if isSpecial(e.name) {
			// .keep markers and .seqpat patterns outlive the working copy.
			continue
		}
		if _, stillWanted := fromByName[e.name]; !stillWanted {
			if err := os.RemoveAll(filepath.Join(prediction, e.name)); err != nil {
				return err
			}
		}
	}
	return nil
}

func copyTree(from, to string) error {
	entries, err := listDir(from)
	if err != nil {
		return err
	}
	for _, e := range entries {
		src := filepath.Join(from, e.name)
		dst := filepath.Join(to, e.name)
		if e.isDir {
			if err := os.MkdirAll(dst, 0755); err != nil {
				return err
			}
			if err := copyTree(src, dst); err != nil {
				return err
			}
		} else if err := copyFile(src, dst); err != nil {
			return err
		}
	}
	return nil
}

// syncFileIfDifferent copies from over to only when their contents differ,
// so an unchanged prediction file keeps its original modification time.
func syncFileIfDifferent(from, to string) error {
	equal, err := filesEqual(from, to)
	if err != nil {
		return err
	}
	if equal {
		return nil
	}
	return copyFile(from, to)
}

// filesEqual compares a and b by streaming each through sha256 rather than
// holding both in memory, since materials files may be large fixtures.
func filesEqual(a, b string) (bool, error) {
	fa, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	fb, err := os.Stat(b)
	if err != nil {
		return false, err
	}
	if fa.Size() != fb.Size() {
		return false, nil
	}
	ha, err := hashFile(a)
	if err != nil {
		return false, err
	}
	hb, err := hashFile(b)
	if err != nil {
		return false, err
	}
	return ha == hb, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return string(h.Sum(nil)), nil
}

func copyFile(from, to string) error {
	src, err := os.Open(from)
	if err != nil {
		return xerrors.Errorf("materials: opening %s: %w", from, err)
	}
	defer src.Close()

	fi, err := src.Stat()
	if err != nil {
		return err
	}

	dst, err := os.OpenFile(to, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fi.Mode().Perm())
	if err != nil {
		return xerrors.Errorf("materials: creating %s: %w", to, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return xerrors.Errorf("materials: copying %s to %s: %w", from, to, err)
	}
	return nil
}
