package runner

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning matches every *AlreadyRunningError.
	ErrAlreadyRunning = errors.New("a program is already running")
	// ErrNilProgram is returned by Start when no program is given.
	ErrNilProgram = errors.New("program is nil")
	// ErrNoRun is returned by Wait before the first Start.
	ErrNoRun = errors.New("no program has been started")
	// ErrProgramExited reports a program whose goroutine exited without
	// returning, as runtime.Goexit does.
	ErrProgramExited = errors.New("program exited without returning")
)

// AlreadyRunningError is returned by Start when the supervisor is not idle.
type AlreadyRunningError struct {
	State State
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("cannot start: supervisor is %s", e.State)
}

func (e *AlreadyRunningError) Is(target error) bool { return target == ErrAlreadyRunning }

// PanicError reports a program that panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("program panicked: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
