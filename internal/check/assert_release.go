//go:build !debug

package check

// Assert compiles to nothing without the debug tag.
func Assert(bool, string) {}

// Assertf compiles to nothing without the debug tag.
func Assertf(bool, string, ...any) {}
