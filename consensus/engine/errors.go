package engine

import (
	"errors"

	"github.com/rony4d/go-aura-asset/consensus/inherent"
	"github.com/rony4d/go-aura-asset/consensus/slots"
)

var (
	ErrWrongAuthor           = errors.New("block author does not own the slot")
	ErrEquivocationDetected  = errors.New("equivocation detected")
	ErrSnapshotUnavailable   = errors.New("authority snapshot unavailable")
	ErrNoSnapshotForPosition = errors.New("no authority snapshot for chain position")

	ErrInvalidTiming           = slots.ErrInvalidTiming
	ErrEmptyAuthoritySet       = slots.ErrEmptyAuthoritySet
	ErrTimestampOutsideSlot    = inherent.ErrTimestampOutsideSlot
	ErrTimestampTooFarInFuture = inherent.ErrTimestampTooFarInFuture
	ErrNonMonotonicTimestamp   = inherent.ErrNonMonotonicTimestamp
)

// IsFatal reports whether err points at broken external state rather than
// a bad block. Such errors deserve operator attention.
func IsFatal(err error) bool {
	return errors.Is(err, ErrEmptyAuthoritySet) || errors.Is(err, ErrNoSnapshotForPosition)
}
