package topology

import (
	"errors"
	"fmt"
)

// Error kinds returned by the topology store. Validation kinds are detected
// before any external command runs.
var (
	// ErrInvalidInput indicates a malformed name, CIDR, subnet type or rule.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidCIDR indicates a CIDR block that does not parse as a network prefix.
	ErrInvalidCIDR = fmt.Errorf("%w: invalid CIDR", ErrInvalidInput)

	// ErrNotFound indicates a referenced VPC, subnet or peering does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a duplicate VPC name, subnet name or peering.
	ErrAlreadyExists = errors.New("already exists")

	// ErrRangeViolation indicates an address range conflict.
	ErrRangeViolation = errors.New("range violation")

	// ErrOutOfRange indicates a subnet CIDR not strictly inside its VPC CIDR.
	ErrOutOfRange = fmt.Errorf("%w: out of range", ErrRangeViolation)

	// ErrOverlap indicates a CIDR that intersects a sibling subnet or peer VPC.
	ErrOverlap = fmt.Errorf("%w: overlap", ErrRangeViolation)

	// ErrLockTimeout indicates the state lock could not be acquired in time.
	ErrLockTimeout = errors.New("state lock timeout")
)

// IsValidation reports whether err is a validation failure: one that is
// detected before any side effect and is fully recoverable.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrRangeViolation)
}
