// Package stacktrace trims runtime stacks down to project frames.
package stacktrace

import (
	"bufio"
	"bytes"
	"strings"
)

const marker = "/internal/"

// InternalPaths returns the "internal/<pkg>/<file>.go:<line>" frames found in
// a debug.Stack dump, innermost first.
func InternalPaths(stack []byte) []string {
	var paths []string

	sc := bufio.NewScanner(bytes.NewReader(stack))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "/") || !strings.Contains(line, ".go:") {
			continue
		}

		idx := strings.Index(line, marker)
		if idx < 0 {
			continue
		}

		frame := line[idx+1:]
		if sp := strings.IndexByte(frame, ' '); sp >= 0 {
			frame = frame[:sp]
		}
		paths = append(paths, frame)
	}

	return paths
}
