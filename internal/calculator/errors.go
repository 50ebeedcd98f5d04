package calculator

import "errors"

// ErrInvalidInput is returned for mathematically undefined inputs: zero
// division, an inverted swing range or non-positive sizing parameters.
var ErrInvalidInput = errors.New("invalid input")

// ErrInsufficientData is returned by indicator functions when the series is
// too short for the requested period.
var ErrInsufficientData = errors.New("not enough data")
