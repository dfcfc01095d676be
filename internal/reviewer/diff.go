package reviewer

import (
	"regexp"
	"strconv"
	"strings"
)

var hunkHeader = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+(\d+)(?:,\d+)? @@`)

// changedLines returns the new-file lines that are visible in a unified diff,
// the only lines an inline comment can be attached to
func changedLines(diff string) map[int]struct{} {
	lines := make(map[int]struct{})
	newLine := 0
	inHunk := false

	for _, line := range strings.Split(diff, "\n") {
		if m := hunkHeader.FindStringSubmatch(line); m != nil {
			newLine, _ = strconv.Atoi(m[1])
			inHunk = true
			continue
		}
		if !inHunk {
			continue
		}
		if line == "" {
			// context line with stripped whitespace
			line = " "
		}
		switch line[0] {
		case '+', ' ':
			lines[newLine] = struct{}{}
			newLine++
		case '-', '\\':
		default:
			inHunk = false
		}
	}
	return lines
}
