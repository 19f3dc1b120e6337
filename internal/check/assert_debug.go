//go:build debug

// Package check provides internal invariant assertions that cost nothing
// in release builds.
package check

import "fmt"

// Assert panics when cond is false. Compiled in only with the debug tag.
func Assert(cond bool, msg string) {
	if !cond {
		panic("invariant violated: " + msg)
	}
}

// Assertf is Assert with a formatted message.
func Assertf(cond bool, format string, args ...any) {
	if !cond {
		panic("invariant violated: " + fmt.Sprintf(format, args...))
	}
}
