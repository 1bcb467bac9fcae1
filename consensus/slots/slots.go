// Package slots maps wall-clock time onto the slot grid and slots onto
// authorities.
//
// Time is cut into fixed-width slots counted from epoch zero:
//
//	slot = (t - epochZero) / slotDuration
//
// and slot s belongs to authority s mod n of the epoch's snapshot. Every
// function here is pure, so all nodes with the same rules and snapshot agree
// on the author of a slot.
package slots

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"

	"github.com/rony4d/go-aura-asset/inter"
	"github.com/rony4d/go-aura-asset/inter/iauth"
)

var (
	// ErrInvalidTiming covers instants before epoch zero, non-positive slot
	// durations and slots whose start does not fit into a Timestamp.
	ErrInvalidTiming = errors.New("invalid timing")
	// ErrEmptyAuthoritySet is returned when a slot must be assigned but the
	// snapshot has no authorities.
	ErrEmptyAuthoritySet = iauth.ErrEmptyAuthoritySet
	// ErrNotAnAuthority is returned when asking for the slots of an id that
	// is not in the snapshot.
	ErrNotAnAuthority = errors.New("not an authority")
)

// SlotAt returns the slot containing t.
func SlotAt(t inter.Timestamp, slotDuration time.Duration, epochZero inter.Timestamp) (inter.Slot, error) {
	if slotDuration <= 0 {
		return 0, fmt.Errorf("%w: slot duration %s", ErrInvalidTiming, slotDuration)
	}
	if t < epochZero {
		return 0, fmt.Errorf("%w: %d is before epoch zero %d", ErrInvalidTiming, t, epochZero)
	}
	return inter.Slot(uint64(t-epochZero) / uint64(slotDuration)), nil
}

// SlotStart returns the first instant of slot.
func SlotStart(slot inter.Slot, slotDuration time.Duration, epochZero inter.Timestamp) (inter.Timestamp, error) {
	if slotDuration <= 0 {
		return 0, fmt.Errorf("%w: slot duration %s", ErrInvalidTiming, slotDuration)
	}
	if uint64(slot) > (math.MaxUint64-uint64(epochZero))/uint64(slotDuration) {
		return 0, fmt.Errorf("%w: slot %d overflows", ErrInvalidTiming, slot)
	}
	return epochZero + inter.Timestamp(uint64(slot)*uint64(slotDuration)), nil
}

// AuthorIndex is the rotation position owning slot among count authorities.
func AuthorIndex(slot inter.Slot, count int) (int, error) {
	if count <= 0 {
		return 0, ErrEmptyAuthoritySet
	}
	return int(uint64(slot) % uint64(count)), nil
}

// ExpectedAuthor returns the authority that owns slot under snapshot.
func ExpectedAuthor(slot inter.Slot, snapshot *iauth.Snapshot) (idx.ValidatorID, error) {
	i, err := AuthorIndex(slot, snapshot.Len())
	if err != nil {
		return 0, fmt.Errorf("epoch %d: %w", snapshot.Epoch(), err)
	}
	return snapshot.At(i), nil
}
