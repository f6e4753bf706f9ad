package assert

import "fmt"

// That panics with the formatted message when truth is false.
// Only use it for programming errors that can be caught at construction time.
func That(truth bool, format string, a ...any) {
	if !truth {
		panic(fmt.Sprintf(format, a...))
	}
}
