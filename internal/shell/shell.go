// Package shell composes and invokes shell commands: a small value type
// supporting && chaining and output redirection, used by cmd/seqtest to
// run git and a project's build system.
package shell

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/xerrors"
)

// Command is an immutable, composable shell command line. The zero value
// is the empty command.
type Command struct {
	text string
}

// New wraps a literal command line.
func New(cmd string) Command { return Command{text: cmd} }

// Empty reports whether c carries no command text at all.
func (c Command) Empty() bool { return c.text == "" }

// String returns the composed command line.
func (c Command) String() string { return c.text }

// And composes c and rhs with a shell "&&", short-circuiting: rhs only
// runs if c succeeds. An empty operand is simply dropped.
func (c Command) And(rhs Command) Command {
	switch {
	case c.Empty():
		return rhs
	case rhs.Empty():
		return c
	default:
		return Command{text: c.text + " && " + rhs.text}
	}
}

// WithRedirect appends an output-file redirection to c, combining stdout
// and stderr (appendMode controls whether the redirection truncates or
// appends to output). The space before the operator keeps a command line
// ending in a digit from turning into a file-descriptor redirection.
func (c Command) WithRedirect(output string, appendMode bool) Command {
	if output == "" {
		return c
	}
	op := ">"
	if appendMode {
		op = ">>"
	}
	text := c.text
	if text != "" {
		text += " "
	}
	return Command{text: text + op + " " + output + " 2>&1"}
}

// CdCmd returns a command that changes the working directory to dir.
func CdCmd(dir string) Command {
	return New("cd " + dir)
}

// CMakeCmd returns the command that configures a freshly scaffolded build
// directory via cmake: an optional parent build directory is passed via
// -DPARENT_BUILD_DIR so the generated CMakeLists.txt can locate shared
// build-system files.
func CMakeCmd(parentBuildDir *string, buildDir, output string) Command {
	args := []string{"cmake", "-S", ".", "-B", buildDir}
	if parentBuildDir != nil && *parentBuildDir != "" {
		args = append(args, "-DPARENT_BUILD_DIR="+*parentBuildDir)
	}
	return New(strings.Join(args, " ")).WithRedirect(output, false)
}

// BuildCmd returns the command that builds buildDir via cmake --build.
func BuildCmd(buildDir, output string) Command {
	return New("cmake --build " + buildDir).WithRedirect(output, true)
}

// Invoke runs cmd through the platform shell, capturing combined output
// for the caller to surface on failure, since Command itself may already
// redirect output to a file.
func Invoke(ctx context.Context, cmd Command) error {
	if cmd.Empty() {
		return nil
	}
	c := exec.CommandContext(ctx, "sh", "-c", cmd.text)
	var out bytes.Buffer
	c.Stdout = &out
	c.Stderr = &out
	if err := c.Run(); err != nil {
		return xerrors.Errorf("shell: %q: %w\n%s", cmd.text, err, out.String())
	}
	return nil
}

// InDir returns cmd prefixed with a "cd dir &&", running a command rooted
// at a specific directory without mutating the calling process's working
// directory.
func InDir(dir string, cmd Command) Command {
	return CdCmd(filepath.Clean(dir)).And(cmd)
}
