package learn

import "errors"

var (
	// ErrEmpty is returned when a learner is given no rows.
	ErrEmpty = errors.New("no training rows")
	// ErrSingleClass is returned when labels contain only one class.
	ErrSingleClass = errors.New("labels contain a single class")
	// ErrShape is returned when rows and labels disagree in length.
	ErrShape = errors.New("rows and labels differ in length")
)
