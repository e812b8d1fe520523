package main

import (
	"github.com/seqtest/seqtest/internal/casing"
	"github.com/seqtest/seqtest/internal/checklog"
	"github.com/seqtest/seqtest/internal/registry"
	"github.com/seqtest/seqtest/internal/shell"
)

// registerBuiltinTests populates r with the framework's own suite of
// self-checks: tests of the name-casing and shell-composition helpers the
// scaffolder and build steps rely on, exercised through the same
// Logger/Body machinery any consumer's tests would use. An identity
// collision among the built-in tests is a programming error and surfaces
// as one.
func registerBuiltinTests(r *registry.Registry) error {
	check := func(l *checklog.Logger, description string, got, want interface{}) {
		if got != want {
			l.RecordCheckFailure(checklog.Standard, description+": "+checklog.FormatEquality(want, got))
		}
	}

	casingTests := []registry.Test{
		{
			Identity: registry.Identity{Suite: "Framework", Test: "SnakeCaseRoundTrip", Source: "builtin://casing"},
			Body: func(l *checklog.Logger) {
				s := l.OpenSentinel("snake case conversion")
				defer s.Close()
				check(l, "PascalCase to snake_case", casing.ToSnakeCase("ProbabilityTest"), "probability_test")
				check(l, "already snake_case is idempotent", casing.ToSnakeCase("already_snake"), "already_snake")
			},
		},
		{
			Identity: registry.Identity{Suite: "Framework", Test: "PascalCaseRoundTrip", Source: "builtin://casing"},
			Body: func(l *checklog.Logger) {
				s := l.OpenSentinel("pascal case conversion")
				defer s.Close()
				check(l, "snake_case to PascalCase", casing.ToPascalCase("probability_test"), "ProbabilityTest")
				check(l, "hyphenated words capitalize", casing.ToPascalCase("some-thing"), "SomeThing")
			},
		},
	}

	shellTests := []registry.Test{
		{
			Identity: registry.Identity{Suite: "Framework", Test: "CommandComposition", Source: "builtin://shell"},
			Body: func(l *checklog.Logger) {
				s := l.OpenSentinel("command composition")
				defer s.Close()
				a := shell.New("echo one")
				b := shell.New("echo two")
				check(l, "And joins with &&", a.And(b).String(), "echo one && echo two")
				check(l, "And drops an empty operand", a.And(shell.Command{}).String(), "echo one")
			},
		},
	}

	return r.AddSuite("Framework", append(casingTests, shellTests...))
}
