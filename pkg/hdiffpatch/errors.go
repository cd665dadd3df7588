package hdiffpatch

import "errors"

// ErrOutputFailure covers directory creation, file open/write/flush, and
// in-place rename failures.
var ErrOutputFailure = errors.New("hdiffpatch: output failure")

// ErrReconstruction is returned when the cover/new-data bookkeeping fails
// its termination invariants: the cover list must be exhausted and the
// bytes copied from covers plus the bytes pulled from the new-data stream
// must total exactly DiffZ.newDataSize.
var ErrReconstruction = errors.New("hdiffpatch: reconstruction invariant violated")
