// Package diff computes reviewable line-level diffs between an original
// and a proposed file body. Alignment runs on whole lines, so unrelated
// lines stay context instead of degrading into remove+add pairs, and the
// records reconstruct either side exactly.
package diff

import (
	"strconv"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Op classifies a single diff line.
type Op int

const (
	OpContext Op = iota
	OpAdd
	OpRemove
)

// String returns the one-character terminal prefix for the op.
func (o Op) String() string {
	switch o {
	case OpAdd:
		return "+"
	case OpRemove:
		return "-"
	default:
		return " "
	}
}

// Line is one record of a diff. Text keeps its trailing newline when the
// underlying content has one, so concatenating records reproduces the
// bodies byte for byte.
type Line struct {
	Op   Op
	Text string
}

// Diff is an ordered sequence of line records plus summary counts. It is
// derived state: recompute it whenever either body changes.
type Diff struct {
	Lines   []Line
	Added   int
	Removed int
}

// Compute aligns original against proposed line by line. The alignment is
// deterministic: identical inputs always produce identical output.
func Compute(original, proposed string) *Diff {
	d := &Diff{}
	if original == proposed {
		for _, text := range splitKeepEnds(original) {
			d.Lines = append(d.Lines, Line{Op: OpContext, Text: text})
		}
		return d
	}

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0

	// Line-mode diff: encode each distinct line as one rune, diff the
	// encodings, then map back. Fragment boundaries stay on line
	// boundaries, which is what makes the per-line records exact.
	encodedOld, encodedNew, lineArray := dmp.DiffLinesToChars(original, proposed)
	fragments := dmp.DiffMain(encodedOld, encodedNew, false)
	fragments = dmp.DiffCharsToLines(fragments, lineArray)

	for _, frag := range fragments {
		op := OpContext
		switch frag.Type {
		case diffmatchpatch.DiffInsert:
			op = OpAdd
		case diffmatchpatch.DiffDelete:
			op = OpRemove
		}
		for _, text := range splitKeepEnds(frag.Text) {
			d.Lines = append(d.Lines, Line{Op: op, Text: text})
			switch op {
			case OpAdd:
				d.Added++
			case OpRemove:
				d.Removed++
			}
		}
	}
	return d
}

// Empty reports whether the diff contains no additions or removals, which
// holds exactly when original equals proposed.
func (d *Diff) Empty() bool {
	return d.Added == 0 && d.Removed == 0
}

// Proposed replays add and context records in order, reconstructing the
// proposed body exactly.
func (d *Diff) Proposed() string {
	var b strings.Builder
	for _, line := range d.Lines {
		if line.Op == OpAdd || line.Op == OpContext {
			b.WriteString(line.Text)
		}
	}
	return b.String()
}

// Original replays remove and context records in order, reconstructing
// the original body exactly.
func (d *Diff) Original() string {
	var b strings.Builder
	for _, line := range d.Lines {
		if line.Op == OpRemove || line.Op == OpContext {
			b.WriteString(line.Text)
		}
	}
	return b.String()
}

// Render produces the terminal form: one prefixed line per record plus a
// summary line with the added/removed counts. This textual shape is the
// only observable artifact of the engine besides the Diff value itself.
func (d *Diff) Render() string {
	var b strings.Builder
	for _, line := range d.Lines {
		b.WriteString(line.Op.String())
		b.WriteString(" ")
		b.WriteString(strings.TrimSuffix(line.Text, "\n"))
		b.WriteString("\n")
	}
	b.WriteString(d.Summary())
	b.WriteString("\n")
	return b.String()
}

// Summary returns a compact "+N -M" count line.
func (d *Diff) Summary() string {
	return "+" + strconv.Itoa(d.Added) + " -" + strconv.Itoa(d.Removed)
}

// splitKeepEnds splits text into lines that keep their trailing newline.
// An empty string yields no lines at all.
func splitKeepEnds(text string) []string {
	if text == "" {
		return nil
	}
	parts := strings.SplitAfter(text, "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}
