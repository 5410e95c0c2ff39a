//go:build !linux && !darwin

package logger

// isTerminal reports false where terminal detection is not implemented, so the default format is json.
func isTerminal(uintptr) bool {
	return false
}
