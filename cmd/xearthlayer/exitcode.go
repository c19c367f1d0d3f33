package main

import "errors"

// startupError wraps a failure that happens before the FUSE mount is
// attempted: bad config, unreadable scenery root, pool setup. Exit code 1.
type startupError struct{ err error }

func (e *startupError) Error() string { return e.err.Error() }
func (e *startupError) Unwrap() error { return e.err }

// mountError wraps a failure from the FUSE mount call itself. Exit code 2.
type mountError struct{ err error }

func (e *mountError) Error() string { return e.err.Error() }
func (e *mountError) Unwrap() error { return e.err }

// errInterrupted marks a deliberate signal-driven shutdown. Exit code 130,
// matching the conventional 128+SIGINT.
var errInterrupted = errors.New("xearthlayer: interrupted by signal")

// exitCode maps a RunE error to the process exit code: 0 normal, 1
// startup failure, 2 mount failure, 130 signal-interrupted shutdown.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, errInterrupted) {
		return 130
	}
	var me *mountError
	if errors.As(err, &me) {
		return 2
	}
	var se *startupError
	if errors.As(err, &se) {
		return 1
	}
	return 1
}
