package models

import "errors"

var (
	// ErrDomain reports a measurement outside the domain of the log transform (zero counts).
	ErrDomain = errors.New("domain error")

	// ErrNumerical reports degenerate or ill-conditioned regression input.
	ErrNumerical = errors.New("numerical error")

	// ErrConfiguration reports invalid configuration or mismatched input series.
	ErrConfiguration = errors.New("configuration error")
)
