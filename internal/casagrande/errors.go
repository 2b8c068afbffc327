package casagrande

import (
	"errors"
	"fmt"
)

// Sentinel kinds for errors.Is. Every engine failure wraps exactly one of them.
var (
	ErrInsufficientData         = errors.New("insufficient data")
	ErrFitDegenerate            = errors.New("spline fit degenerate")
	ErrNoKneeFound              = errors.New("no knee found")
	ErrInsufficientVirginPoints = errors.New("insufficient virgin compression points")
	ErrNoIntersectionFound      = errors.New("no intersection found")
)

// Control surface misuse. These are not part of the estimation taxonomy and
// never invalidate the current estimate.
var (
	ErrUnknownControlPoint = errors.New("unknown control point")
	ErrDragInProgress      = errors.New("a control point is already being dragged")
	ErrNoSession           = errors.New("no series loaded")
)

// Stage names the pipeline step that produced an error.
type Stage string

const (
	StageFilter    Stage = "ascending filter"
	StageFit       Stage = "curve fit"
	StageKnee      Stage = "knee locator"
	StageVirgin    Stage = "virgin line"
	StageIntersect Stage = "intersection"
	StageRecompute Stage = "recompute"
)

// Error carries the failing stage and a user-facing description of the input
// that caused it.
type Error struct {
	Kind   error
	Stage  Stage
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func stageErr(kind error, stage Stage, format string, args ...any) *Error {
	return &Error{Kind: kind, Stage: stage, Detail: fmt.Sprintf(format, args...)}
}
