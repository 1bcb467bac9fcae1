// Package inherent checks the timestamp a block producer stamps into its
// block against the slot the block claims.
//
// Three checks run in a fixed order and the first failure is reported:
//
//  1. the timestamp lies inside the claimed slot,
//  2. it is at most MaxFutureDrift past the verifier's clock,
//  3. it is strictly later than the parent block's timestamp (and, with a
//     positive MinBlockGap, at least that much later).
package inherent

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rony4d/go-aura-asset/aura"
	"github.com/rony4d/go-aura-asset/consensus/slots"
	"github.com/rony4d/go-aura-asset/inter"
)

var (
	ErrTimestampOutsideSlot    = errors.New("timestamp outside claimed slot")
	ErrTimestampTooFarInFuture = errors.New("timestamp too far in the future")
	ErrNonMonotonicTimestamp   = errors.New("timestamp not after parent")
)

// Verifier holds the network's timing rules. It has no mutable state and
// may be shared between goroutines.
type Verifier struct {
	slots.Scheduler
	MaxFutureDrift time.Duration
	MinBlockGap    time.Duration
}

// New returns a Verifier for the given slot rules.
func New(rules aura.SlotRules) (*Verifier, error) {
	s, err := slots.NewScheduler(rules.Duration, rules.EpochZero)
	if err != nil {
		return nil, err
	}
	return &Verifier{
		Scheduler:      s,
		MaxFutureDrift: rules.MaxFutureDrift,
		MinBlockGap:    rules.MinBlockGap,
	}, nil
}

// Verify runs the checks against the local clock reading now.
func (v *Verifier) Verify(claim inter.SlotClaim, now inter.Timestamp) error {
	if err := v.VerifySlot(claim.Slot, claim.Time); err != nil {
		return err
	}
	if err := v.VerifyDrift(claim.Time, now); err != nil {
		return err
	}
	return v.VerifyParent(claim.Time, claim.ParentTime)
}

// VerifySlot checks t ∈ [start(slot), start(slot)+SlotDuration).
func (v *Verifier) VerifySlot(slot inter.Slot, t inter.Timestamp) error {
	start, err := v.SlotStart(slot)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTimestampOutsideSlot, err)
	}
	end := saturatingAdd(start, v.SlotDuration)
	if t < start || t >= end {
		return fmt.Errorf("%w: %d not in [%d, %d) of slot %d", ErrTimestampOutsideSlot, t, start, end, slot)
	}
	return nil
}

// VerifyDrift checks t <= now + MaxFutureDrift.
func (v *Verifier) VerifyDrift(t, now inter.Timestamp) error {
	limit := saturatingAdd(now, v.MaxFutureDrift)
	if t > limit {
		return fmt.Errorf("%w: %d is %s past local time %d", ErrTimestampTooFarInFuture, t, t.Sub(now), now)
	}
	return nil
}

// VerifyParent checks t > parent, and t >= parent + MinBlockGap when the gap is set.
func (v *Verifier) VerifyParent(t, parent inter.Timestamp) error {
	if t <= parent {
		return fmt.Errorf("%w: %d <= parent %d", ErrNonMonotonicTimestamp, t, parent)
	}
	if v.MinBlockGap > 0 && uint64(t-parent) < uint64(v.MinBlockGap) {
		return fmt.Errorf("%w: %s after parent, need %s", ErrNonMonotonicTimestamp, t.Sub(parent), v.MinBlockGap)
	}
	return nil
}

func saturatingAdd(t inter.Timestamp, d time.Duration) inter.Timestamp {
	if d <= 0 {
		return t
	}
	if uint64(t) > math.MaxUint64-uint64(d) {
		return math.MaxUint64
	}
	return t + inter.Timestamp(d)
}
