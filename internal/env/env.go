// Package env captures details about the ambient seqtest environment:
// where the project root lives and which compiler toolchain produced the
// test executable. Inspect it using `seqtest env`.
package env

import (
	"os"
	"os/exec"
	"strings"
)

// ProjectRoot is the root directory of the project being tested: the value
// of $SEQTESTROOT when set, otherwise the working directory.
var ProjectRoot = findProjectRoot()

func findProjectRoot() string {
	if root := os.Getenv("SEQTESTROOT"); root != "" {
		return root
	}

	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// CompilerTag identifies the toolchain used to build the test executable,
// e.g. "gcc", "clang" or "msvc", resolved from environment state. The tag
// is only ever used to name the canonical build directory.
func CompilerTag() string {
	if tag := os.Getenv("SEQTEST_COMPILER"); tag != "" {
		return tag
	}
	for _, envVar := range []string{"CXX", "CC"} {
		v := os.Getenv(envVar)
		if v == "" {
			continue
		}
		if tag, ok := tagFromCompilerPath(v); ok {
			return tag
		}
	}
	for _, candidate := range []string{"clang++", "clang", "g++", "gcc", "cl"} {
		if path, err := exec.LookPath(candidate); err == nil {
			if tag, ok := tagFromCompilerPath(path); ok {
				return tag
			}
		}
	}
	return "unknown"
}

func tagFromCompilerPath(path string) (string, bool) {
	base := strings.ToLower(path)
	switch {
	case strings.Contains(base, "clang"):
		return "clang", true
	case strings.Contains(base, "cl.exe"), strings.HasSuffix(base, `\cl`):
		return "msvc", true
	case strings.Contains(base, "gcc"), strings.Contains(base, "g++"):
		return "gcc", true
	}
	return "", false
}
