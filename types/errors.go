package types

import "errors"

var (
	// ErrMalformedWitness marks witness data whose fixed-length fields do not match the
	// expected protocol layout. It is never recovered by truncating or padding.
	ErrMalformedWitness = errors.New("malformed witness data")

	// ErrLayout marks a mismatch between a committee record (or a public input vector) and
	// the fixed layout compiled into the circuits.
	ErrLayout = errors.New("layout mismatch")
)
