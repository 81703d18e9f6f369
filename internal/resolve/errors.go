// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"errors"
	"fmt"
)

// ErrEmptyBeam is returned by Beam accessors when no states are held.
// The resolver treats an empty beam as legitimate exhaustion of the
// search space, not a failure. Per prd001-resolution R5.3.
var ErrEmptyBeam = errors.New("beam is empty")

// ErrSkipCandidate signals that the current candidate package version
// should be dropped while resolution of the state continues with other
// candidates. Recovered at the driver level only.
var ErrSkipCandidate = errors.New("skip candidate")

// NotAcceptableError discards the whole in-progress state: the state
// never re-enters the beam, the run continues. Per prd001-resolution R5.1.
type NotAcceptableError struct {
	Reason string
}

func (e *NotAcceptableError) Error() string {
	return "state not acceptable: " + e.Reason
}

// NotAcceptable builds a NotAcceptableError with a formatted reason.
func NotAcceptable(format string, args ...any) error {
	return &NotAcceptableError{Reason: fmt.Sprintf(format, args...)}
}

// EagerStopError aborts the whole resolution run. The driver surfaces
// it as an early-termination report carrying the products accumulated
// so far, never as a crash. Per prd001-resolution R5.2.
type EagerStopError struct {
	Reason string
}

func (e *EagerStopError) Error() string {
	return "eager stop: " + e.Reason
}

// EagerStop builds an EagerStopError with a formatted reason.
func EagerStop(format string, args ...any) error {
	return &EagerStopError{Reason: fmt.Sprintf(format, args...)}
}
