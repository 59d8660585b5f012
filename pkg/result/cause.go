package result

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInterrupted is what Squash returns for a cause that only records an
// interruption.
var ErrInterrupted = errors.New("result: interrupted")

// DefectError wraps a defect that is not itself an error.
type DefectError struct {
	Value any
}

func (e *DefectError) Error() string {
	return fmt.Sprintf("defect: %v", e.Value)
}

// Cause describes why a computation failed. A cause can hold expected
// failures, unexpected defects (recovered panics) and interruption, or any
// combination when several causes are combined.
type Cause struct {
	failures    []error
	defects     []any
	interrupted bool
}

// Fail returns a cause holding the expected failure err.
func Fail(err error) *Cause {
	return &Cause{failures: []error{err}}
}

// Die returns a cause holding an unexpected defect, typically a recovered
// panic value.
func Die(defect any) *Cause {
	return &Cause{defects: []any{defect}}
}

// Interrupt returns a cause recording cancellation.
func Interrupt() *Cause {
	return &Cause{interrupted: true}
}

// Combine merges causes in order. nil causes are skipped.
func Combine(causes ...*Cause) *Cause {
	out := &Cause{}
	for _, c := range causes {
		if c == nil {
			continue
		}
		out.failures = append(out.failures, c.failures...)
		out.defects = append(out.defects, c.defects...)
		out.interrupted = out.interrupted || c.interrupted
	}
	return out
}

// Failures returns the expected failures, in order.
func (c *Cause) Failures() []error {
	if c == nil {
		return nil
	}
	return append([]error(nil), c.failures...)
}

// Defect returns the first defect.
func (c *Cause) Defect() (any, bool) {
	if c == nil || len(c.defects) == 0 {
		return nil, false
	}
	return c.defects[0], true
}

// IsInterrupted reports whether the cause records cancellation.
func (c *Cause) IsInterrupted() bool {
	return c != nil && c.interrupted
}

// Squash reduces the cause to the single error a caller should see: the
// first failure, otherwise the first defect, otherwise ErrInterrupted.
func (c *Cause) Squash() error {
	if c == nil {
		return nil
	}
	if len(c.failures) > 0 {
		return c.failures[0]
	}
	if len(c.defects) > 0 {
		if err, ok := c.defects[0].(error); ok {
			return err
		}
		return &DefectError{Value: c.defects[0]}
	}
	if c.interrupted {
		return ErrInterrupted
	}
	return nil
}

func (c *Cause) Error() string {
	if c == nil {
		return "<nil>"
	}
	var parts []string
	for _, err := range c.failures {
		parts = append(parts, err.Error())
	}
	for _, d := range c.defects {
		parts = append(parts, fmt.Sprintf("defect: %v", d))
	}
	if c.interrupted {
		parts = append(parts, "interrupted")
	}
	if len(parts) == 0 {
		return "empty cause"
	}
	return strings.Join(parts, "; ")
}

// Unwrap exposes failures and error-valued defects to errors.Is and
// errors.As.
func (c *Cause) Unwrap() []error {
	if c == nil {
		return nil
	}
	errs := append([]error(nil), c.failures...)
	for _, d := range c.defects {
		if err, ok := d.(error); ok {
			errs = append(errs, err)
		}
	}
	if c.interrupted {
		errs = append(errs, ErrInterrupted)
	}
	return errs
}
