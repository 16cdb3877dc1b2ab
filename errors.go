package interntab

import "errors"

// ErrCapacityOverflow is raised (as a panic) when a requested capacity hint
// cannot be converted to a bucket count without overflowing uint64. This is
// the one documented fatal precondition in the core; see doc.go.
var ErrCapacityOverflow = errors.New("interntab: capacity hint overflows bucket count")
