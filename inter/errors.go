package inter

import "errors"

// ErrShortEvidence is returned when decoding an equivocation record that
// names fewer than two blocks.
var ErrShortEvidence = errors.New("equivocation evidence needs at least two blocks")
