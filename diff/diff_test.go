package diff

import (
	"strings"
	"testing"
)

func TestEmptyIffEqual(t *testing.T) {
	cases := []struct {
		name               string
		original, proposed string
		wantEmpty          bool
	}{
		{"both empty", "", "", true},
		{"identical", "a\nb\nc\n", "a\nb\nc\n", true},
		{"identical no trailing newline", "a\nb", "a\nb", true},
		{"create", "", "[]", false},
		{"delete", "x\n", "", false},
		{"changed line", "a\nb\n", "a\nB\n", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Compute(tc.original, tc.proposed)
			if d.Empty() != tc.wantEmpty {
				t.Fatalf("Empty() = %v, want %v (added=%d removed=%d)",
					d.Empty(), tc.wantEmpty, d.Added, d.Removed)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name               string
		original, proposed string
	}{
		{"simple edit", "one\ntwo\nthree\n", "one\n2\nthree\n"},
		{"create", "", "package main\n\nfunc main() {}\n"},
		{"delete", "obsolete\ncontent\n", ""},
		{"no trailing newline", "a\nb\nc", "a\nc"},
		{"insert at top", "b\nc\n", "a\nb\nc\n"},
		{"append at bottom", "a\nb\n", "a\nb\nc\n"},
		{"total rewrite", "x\ny\nz\n", "p\nq\n"},
		{"identical", "same\n", "same\n"},
		{"blank lines", "a\n\n\nb\n", "a\n\nb\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Compute(tc.original, tc.proposed)
			if got := d.Proposed(); got != tc.proposed {
				t.Errorf("replaying add+context: got %q, want %q", got, tc.proposed)
			}
			if got := d.Original(); got != tc.original {
				t.Errorf("replaying remove+context: got %q, want %q", got, tc.original)
			}
		})
	}
}

func TestEveryLineCoveredOnce(t *testing.T) {
	original := "a\nb\nc\nd\n"
	proposed := "a\nB\nc\nd\ne\n"
	d := Compute(original, proposed)

	var fromOriginal, fromProposed int
	for _, line := range d.Lines {
		switch line.Op {
		case OpContext:
			fromOriginal++
			fromProposed++
		case OpRemove:
			fromOriginal++
		case OpAdd:
			fromProposed++
		}
	}
	if fromOriginal != 4 {
		t.Errorf("original lines covered %d times, want 4", fromOriginal)
	}
	if fromProposed != 5 {
		t.Errorf("proposed lines covered %d times, want 5", fromProposed)
	}
}

func TestTwoLineEdit(t *testing.T) {
	// Ten lines, two changed: exactly 2 removed + 2 added + 8 context.
	oldLines := []string{"l1", "l2", "l3", "l4", "l5", "l6", "l7", "l8", "l9", "l10"}
	newLines := append([]string(nil), oldLines...)
	newLines[2] = "l3 fixed"
	newLines[7] = "l8 fixed"

	d := Compute(strings.Join(oldLines, "\n")+"\n", strings.Join(newLines, "\n")+"\n")

	if d.Removed != 2 || d.Added != 2 {
		t.Fatalf("expected 2 removed + 2 added, got -%d +%d", d.Removed, d.Added)
	}
	var context int
	for _, line := range d.Lines {
		if line.Op == OpContext {
			context++
		}
	}
	if context != 8 {
		t.Fatalf("expected 8 context lines, got %d", context)
	}
}

func TestCreateIsAllAdd(t *testing.T) {
	d := Compute("", "[]")
	if d.Removed != 0 {
		t.Fatalf("create should remove nothing, removed %d", d.Removed)
	}
	if d.Added == 0 {
		t.Fatal("create should add at least one line")
	}
	for _, line := range d.Lines {
		if line.Op != OpAdd {
			t.Fatalf("create diff contains non-add record %v", line.Op)
		}
	}
}

func TestDeterministic(t *testing.T) {
	original := "alpha\nbeta\ngamma\nbeta\n"
	proposed := "alpha\nbeta\ndelta\nbeta\ngamma\n"
	first := Compute(original, proposed)
	for i := 0; i < 10; i++ {
		again := Compute(original, proposed)
		if len(again.Lines) != len(first.Lines) {
			t.Fatal("diff output varies between runs")
		}
		for j := range again.Lines {
			if again.Lines[j] != first.Lines[j] {
				t.Fatalf("line %d differs between runs", j)
			}
		}
	}
}

func TestRenderShape(t *testing.T) {
	d := Compute("keep\ndrop\n", "keep\nnew\n")
	rendered := d.Render()

	if !strings.Contains(rendered, "  keep") {
		t.Errorf("context line missing space prefix:\n%s", rendered)
	}
	if !strings.Contains(rendered, "- drop") {
		t.Errorf("removed line missing - prefix:\n%s", rendered)
	}
	if !strings.Contains(rendered, "+ new") {
		t.Errorf("added line missing + prefix:\n%s", rendered)
	}
	if !strings.Contains(rendered, "+1 -1") {
		t.Errorf("summary counts missing:\n%s", rendered)
	}
}
