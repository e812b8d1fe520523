// Package casing implements the pure string helpers the test/project
// creator needs: copyright-line substitution and the handful of case
// conversions used to turn a user-supplied forename into file and class
// names.
package casing

import (
	"strings"
	"time"
)

// ReplaceAll replaces every occurrence of old with new in text, left to
// right, non-overlapping.
func ReplaceAll(text, old, new string) string {
	return strings.ReplaceAll(text, old, new)
}

// Replacement is one (old, new) pair applied by ReplaceAllPairs.
type Replacement struct {
	Old, New string
}

// ReplaceAllPairs applies every replacement in order; later pairs see the
// effect of earlier ones.
func ReplaceAllPairs(text string, replacements ...Replacement) string {
	for _, r := range replacements {
		text = strings.ReplaceAll(text, r.Old, r.New)
	}
	return text
}

// SetTopCopyright replaces the placeholder copyright line a scaffolded
// file is generated with ("Copyright COPYRIGHT_HOLDER CURRENT_YEAR") with
// holder and the given year (the current year when year is zero).
func SetTopCopyright(text, holder string, year int) string {
	return ReplaceAllPairs(text,
		Replacement{Old: "COPYRIGHT_HOLDER", New: holder},
		Replacement{Old: "CURRENT_YEAR", New: yearString(year)},
	)
}

func yearString(year int) string {
	if year <= 0 {
		year = time.Now().Year()
	}
	return itoa(year)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// TabsToSpacing replaces every literal tab in text with indent, for
// projects scaffolded with a space-based code style instead of the
// template's default tabs.
func TabsToSpacing(text, indent string) string {
	return strings.ReplaceAll(text, "\t", indent)
}

// ToSnakeCase lowercases name and inserts an underscore before every
// interior uppercase letter, e.g. "FooBarTest" -> "foo_bar_test". Used to
// derive directory/file names for scaffolded materials from a test's
// class/family name.
func ToSnakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if i > 0 && isUpper(r) {
			b.WriteByte('_')
		}
		b.WriteRune(toLower(r))
	}
	return b.String()
}

// ToPascalCase uppercases the first letter of each space-, underscore- or
// hyphen-separated word and concatenates them, e.g. "foo bar" -> "FooBar". Used
// to derive a generated test's class name from a user-supplied forename.
func ToPascalCase(name string) string {
	fields := strings.FieldsFunc(name, func(r rune) bool {
		return r == ' ' || r == '_' || r == '-'
	})
	var b strings.Builder
	for _, f := range fields {
		if f == "" {
			continue
		}
		runes := []rune(f)
		b.WriteRune(toUpper(runes[0]))
		for _, r := range runes[1:] {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Capitalize uppercases the first rune of s, leaving the rest untouched.
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = toUpper(runes[0])
	return string(runes)
}

func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r - 'A' + 'a'
	}
	return r
}

func toUpper(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - 'a' + 'A'
	}
	return r
}
