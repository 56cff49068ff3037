package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Input alignment errors
	ErrNoOverlap           = errors.New("series have no overlapping years in window")
	ErrInsufficientOverlap = errors.New("insufficient overlapping years for fit")
	ErrMissingYear         = errors.New("year not present in series")
	ErrDuplicateYear       = errors.New("duplicate year in series")
	ErrDegenerateCovariate = errors.New("covariate has zero variance")

	// Fit errors
	ErrFitDivergence      = errors.New("gev fit did not converge")
	ErrBootstrapCollapsed = fmt.Errorf("%w: too many bootstrap resamples failed", ErrFitDivergence)
	ErrInvalidParameters  = errors.New("invalid gev parameters")

	// Geometry errors
	ErrEmptyShapefile = errors.New("shapefile contains no polygons")
)

// NewMissingYearError reports a year lookup that failed against a named series.
func NewMissingYearError(series string, year int) error {
	return fmt.Errorf("%w: %s has no value for %d", ErrMissingYear, series, year)
}

func NewInsufficientOverlapError(got, need int) error {
	return fmt.Errorf("%w: got %d, need at least %d", ErrInsufficientOverlap, got, need)
}

func NewFitDivergenceError(reason string) error {
	return fmt.Errorf("%w: %s", ErrFitDivergence, reason)
}

// IsInputAlignmentError reports whether err stems from joining or windowing the inputs.
func IsInputAlignmentError(err error) bool {
	return errors.Is(err, ErrNoOverlap) ||
		errors.Is(err, ErrMissingYear) ||
		errors.Is(err, ErrDuplicateYear)
}

func IsFitConvergenceError(err error) bool {
	return errors.Is(err, ErrFitDivergence)
}

func IsInsufficientDataError(err error) bool {
	return errors.Is(err, ErrInsufficientOverlap) ||
		errors.Is(err, ErrDegenerateCovariate)
}
