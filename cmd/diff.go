package cmd

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// writeDiff prints a line diff of before and after under a header naming
// location. Binary content gets a one-line summary instead.
func writeDiff(w io.Writer, location string, before, after []byte) error {
	if bytes.Equal(before, after) {
		return nil
	}
	if !utf8.Valid(before) || !utf8.Valid(after) {
		_, err := fmt.Fprintf(w, "--- %s\n+++ %s\nbinary content differs (%d -> %d bytes)\n", location, location, len(before), len(after))
		return err
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(string(before), string(after))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out strings.Builder
	fmt.Fprintf(&out, "--- %s\n+++ %s\n", location, location)
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out.WriteString(prefix)
			out.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				out.WriteString("\n")
			}
		}
	}
	_, err := io.WriteString(w, out.String())
	return err
}
