package types

import "errors"

// Error kinds surfaced by the engine. Every error returned by a run or a
// constructor wraps exactly one of these.
var (
	ErrInput         = errors.New("invalid input")
	ErrConfiguration = errors.New("invalid configuration")
	ErrModel         = errors.New("model evaluation failed")
	ErrEngine        = errors.New("engine invariant violated")
)
