package casing

import "testing"

func TestSetTopCopyright(t *testing.T) {
	in := "Copyright COPYRIGHT_HOLDER CURRENT_YEAR\n"
	got := SetTopCopyright(in, "Jane Doe", 2024)
	want := "Copyright Jane Doe 2024\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSetTopCopyrightDefaultsToCurrentYearWhenZero(t *testing.T) {
	got := SetTopCopyright("year: CURRENT_YEAR", "X", 0)
	if got == "year: CURRENT_YEAR" {
		t.Fatal("expected CURRENT_YEAR to be substituted even with year=0")
	}
}

func TestToSnakeCase(t *testing.T) {
	cases := map[string]string{
		"FooBarTest":    "foo_bar_test",
		"A":             "a",
		"already_snake": "already_snake",
	}
	for in, want := range cases {
		if got := ToSnakeCase(in); got != want {
			t.Fatalf("ToSnakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestToPascalCase(t *testing.T) {
	cases := map[string]string{
		"foo bar":       "FooBar",
		"probability":   "Probability",
		"some_thing-ok": "SomeThingOk",
	}
	for in, want := range cases {
		if got := ToPascalCase(in); got != want {
			t.Fatalf("ToPascalCase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCapitalize(t *testing.T) {
	if got := Capitalize("probability"); got != "Probability" {
		t.Fatalf("got %q", got)
	}
	if got := Capitalize(""); got != "" {
		t.Fatalf("expected empty string unchanged, got %q", got)
	}
}

func TestTabsToSpacing(t *testing.T) {
	got := TabsToSpacing("a\tb\tc", "  ")
	if got != "a  b  c" {
		t.Fatalf("got %q", got)
	}
}

func TestReplaceAllPairsAppliesInOrder(t *testing.T) {
	got := ReplaceAllPairs("aXbXc", Replacement{Old: "X", New: "Y"}, Replacement{Old: "Y", New: "Z"})
	if got != "aZbZc" {
		t.Fatalf("got %q", got)
	}
}
