package vfsreader

import "errors"

// ErrSourceInconsistency covers a missing, short, or unreadable old file.
var ErrSourceInconsistency = errors.New("vfsreader: source directory inconsistent with diff manifest")
