package syntax

import (
	"errors"
	"fmt"
)

// ErrPattern matches every *PatternError via errors.Is.
var ErrPattern = errors.New("invalid pattern")

// PatternError reports a pattern rejected at registration time.
type PatternError struct {
	Label   string
	Pattern string
	Reason  string
	Err     error
}

func (e *PatternError) Error() string {
	msg := e.Reason
	if e.Label != "" {
		msg = fmt.Sprintf("%s: %s", e.Label, msg)
	}
	if e.Pattern != "" {
		msg = fmt.Sprintf("%s (pattern %q)", msg, e.Pattern)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *PatternError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrPattern) true for any PatternError.
func (e *PatternError) Is(target error) bool { return target == ErrPattern }
