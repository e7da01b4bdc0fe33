package domain

import "errors"

var (
	// ErrLengthMismatch reports two series merged under the same key with
	// different lengths. It is fatal for the run.
	ErrLengthMismatch = errors.New("merged series length mismatch")

	// ErrEmptyWindow reports a window or series with no values.
	ErrEmptyWindow = errors.New("empty window")

	// ErrInvalidPolygon reports a polygon with fewer than three vertices.
	ErrInvalidPolygon = errors.New("polygon needs at least 3 vertices")
)
