package core

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Diff returns a line diff from current to rendered with full context,
// or "" when they are identical. path only labels the headers.
func Diff(path string, current, rendered []byte) string {
	if bytes.Equal(current, rendered) {
		return ""
	}

	dmp := diffmatchpatch.New()

	a, b, lineArray := dmp.DiffLinesToChars(string(current), string(rendered))
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var result strings.Builder
	result.WriteString(fmt.Sprintf("--- a/%s\n", path))
	result.WriteString(fmt.Sprintf("+++ b/%s\n", path))

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
			result.WriteString(prefix + line)
			if !strings.HasSuffix(line, "\n") {
				result.WriteString("\n\\ No newline at end of file\n")
			}
		}
	}
	return result.String()
}

// ChangedKeys compares two env files by variable name. Values are never
// returned, only which names were added, removed or changed.
func ChangedKeys(current, rendered map[string]string) (added, removed, changed []string) {
	for k, v := range rendered {
		old, ok := current[k]
		switch {
		case !ok:
			added = append(added, k)
		case old != v:
			changed = append(changed, k)
		}
	}
	for k := range current {
		if _, ok := rendered[k]; !ok {
			removed = append(removed, k)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	sort.Strings(changed)
	return added, removed, changed
}
