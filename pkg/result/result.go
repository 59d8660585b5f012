// Package result models the resolution state of an asynchronous value.
//
// A Result is Initial until the first evaluation completes, then Success
// or Failure. Any result can additionally be waiting, which means a newer
// evaluation is in flight and the held state is stale.
package result

import (
	"encoding/json"
	"fmt"
)

// Tag identifies the variant of a Result.
type Tag uint8

const (
	TagInitial Tag = iota
	TagSuccess
	TagFailure
)

func (t Tag) String() string {
	switch t {
	case TagInitial:
		return "Initial"
	case TagSuccess:
		return "Success"
	case TagFailure:
		return "Failure"
	default:
		return fmt.Sprintf("Tag(%d)", uint8(t))
	}
}

// Result is an immutable tagged value. The zero Result is Initial and not
// waiting.
type Result[A any] struct {
	tag     Tag
	waiting bool

	value A
	cause *Cause

	// previous holds the last success of a Failure, if any.
	previous    A
	hasPrevious bool
}

// Initial returns a result that has never resolved.
func Initial[A any](waiting bool) Result[A] {
	return Result[A]{tag: TagInitial, waiting: waiting}
}

// Success returns a resolved result holding v.
func Success[A any](v A) Result[A] {
	return Result[A]{tag: TagSuccess, value: v}
}

// Failure returns a failed result with the given cause.
func Failure[A any](cause *Cause) Result[A] {
	return Result[A]{tag: TagFailure, cause: cause}
}

// FailWith is shorthand for Failure(Fail(err)).
func FailWith[A any](err error) Result[A] {
	return Failure[A](Fail(err))
}

// FailureWithPrevious returns a failed result that remembers the last
// success of prev, so callers can keep showing it.
func FailureWithPrevious[A any](cause *Cause, prev Result[A]) Result[A] {
	r := Failure[A](cause)
	if v, ok := prev.lastSuccess(); ok {
		r.previous = v
		r.hasPrevious = true
	}
	return r
}

func (r Result[A]) lastSuccess() (A, bool) {
	switch r.tag {
	case TagSuccess:
		return r.value, true
	case TagFailure:
		return r.previous, r.hasPrevious
	}
	var zero A
	return zero, false
}

func (r Result[A]) Tag() Tag        { return r.tag }
func (r Result[A]) IsInitial() bool { return r.tag == TagInitial }
func (r Result[A]) IsSuccess() bool { return r.tag == TagSuccess }
func (r Result[A]) IsFailure() bool { return r.tag == TagFailure }
func (r Result[A]) IsWaiting() bool { return r.waiting }

// Settled reports whether the result is resolved and not waiting.
func (r Result[A]) Settled() bool {
	return r.tag != TagInitial && !r.waiting
}

// Value returns the held value of a Success.
func (r Result[A]) Value() (A, bool) {
	if r.tag == TagSuccess {
		return r.value, true
	}
	var zero A
	return zero, false
}

// ValueOr returns the held value of a Success, or fallback.
func (r Result[A]) ValueOr(fallback A) A {
	if v, ok := r.Value(); ok {
		return v
	}
	return fallback
}

// Cause returns the cause of a Failure, or nil.
func (r Result[A]) Cause() *Cause {
	if r.tag != TagFailure {
		return nil
	}
	return r.cause
}

// Previous returns the last success recorded on a Failure.
func (r Result[A]) Previous() (A, bool) {
	if r.tag == TagFailure && r.hasPrevious {
		return r.previous, true
	}
	var zero A
	return zero, false
}

// AsWaiting returns a copy of r flagged as waiting.
func (r Result[A]) AsWaiting() Result[A] {
	r.waiting = true
	return r
}

func (r Result[A]) String() string {
	var s string
	switch r.tag {
	case TagSuccess:
		s = fmt.Sprintf("Success(%v)", r.value)
	case TagFailure:
		s = fmt.Sprintf("Failure(%v)", r.cause.Squash())
	default:
		s = "Initial"
	}
	if r.waiting {
		s += "[waiting]"
	}
	return s
}

type resultJSON struct {
	Tag     string `json:"tag"`
	Waiting bool   `json:"waiting,omitempty"`
	Value   any    `json:"value,omitempty"`
	Error   string `json:"error,omitempty"`
}

// MarshalJSON encodes the result for diagnostics. Results are not meant to
// be decoded back.
func (r Result[A]) MarshalJSON() ([]byte, error) {
	out := resultJSON{Tag: r.tag.String(), Waiting: r.waiting}
	switch r.tag {
	case TagSuccess:
		out.Value = r.value
	case TagFailure:
		if err := r.cause.Squash(); err != nil {
			out.Error = err.Error()
		}
	}
	return json.Marshal(out)
}
