package storage

import "errors"

// ErrNoState is returned by Load when no state file exists yet.
var ErrNoState = errors.New("no saved state")

// ErrIncompatibleSnapshot is returned when a state file carries an
// unknown magic string or a layout version this build cannot read.
var ErrIncompatibleSnapshot = errors.New("incompatible snapshot")
