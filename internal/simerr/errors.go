// Package simerr holds the sentinel errors returned by simulation operations.
// All of them are recoverable: the rejected operation leaves run state untouched.
package simerr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned when an operation is not allowed in the current run state.
	ErrInvalidState = errors.New("invalid state")

	// ErrOutOfRange is returned for malformed element references.
	ErrOutOfRange = errors.New("out of range")
)

// Specialisations of ErrInvalidState. errors.Is matches both the specific and the general error.
var (
	ErrAlreadyDismantled   = fmt.Errorf("%w: element already dismantled", ErrInvalidState)
	ErrConfirmationPending = fmt.Errorf("%w: confirmation pending", ErrInvalidState)
	ErrNotPending          = fmt.Errorf("%w: no confirmation pending", ErrInvalidState)
	ErrCoolingDown         = fmt.Errorf("%w: keeper is still busy", ErrInvalidState)
)

// ErrNothingInReach is returned when the keeper interacts with no element in range.
var ErrNothingInReach = fmt.Errorf("%w: nothing within reach", ErrOutOfRange)
