package stacktrace

import (
	"runtime/debug"
	"strings"
)

// InternalPaths returns internal package stack frames from a raw stack trace.
//
// Each frame is reported as "internal/<pkg>/<file>.go:<line>", which keeps panic
// logs short while still pointing at this module's own code.
func InternalPaths(stack []byte) []string {
	lines := strings.Split(string(stack), "\n")
	paths := make([]string, 0, len(lines))
	for i := 0; i < len(lines)-1; i++ {
		if path, ok := internalFrame(strings.TrimSpace(lines[i+1])); ok {
			paths = append(paths, path)
		}
	}
	return paths
}

// Current captures the calling goroutine's stack and returns either the trimmed
// internal frames or, when none are found, the raw stack as a single element.
func Current() []string {
	stack := debug.Stack()
	if paths := InternalPaths(stack); len(paths) > 0 {
		return paths
	}
	return []string{string(stack)}
}

func internalFrame(line string) (string, bool) {
	if !strings.Contains(line, "/internal/") {
		return "", false
	}

	idx := strings.Index(line, ".go:")
	if idx == -1 {
		return "", false
	}

	end := strings.Index(line[idx:], " ")
	if end == -1 {
		end = len(line)
	} else {
		end += idx
	}

	shortPath := line[:end]
	internalIdx := strings.Index(shortPath, "/internal/")
	if internalIdx == -1 {
		return "", false
	}

	return shortPath[internalIdx+1:], true
}
