// Package aura defines the consensus-critical parameters of a slot-based
// network: slot width, the instant slot 0 starts, how far ahead of the local
// clock a block may be stamped, and how equivocations are handled.
//
// Rules are fixed at genesis. Every node of a network must run with the same
// Rules, otherwise they disagree on which authority owns a slot.
package aura

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rony4d/go-aura-asset/inter"
)

const (
	MainNetworkID uint64 = 0xa0
	TestNetworkID uint64 = 0xa1
	FakeNetworkID uint64 = 0xa2

	// DefaultMaxFutureDrift bounds clock skew between block producers.
	DefaultMaxFutureDrift = 2 * time.Second
	// DefaultRetentionWindow is how many slots of equivocation history are kept.
	DefaultRetentionWindow inter.Slot = 4096
)

var (
	ErrZeroSlotDuration    = errors.New("slot duration must be positive")
	ErrNegativeDrift       = errors.New("max future drift must not be negative")
	ErrNegativeBlockGap    = errors.New("min block gap must not be negative")
	ErrBlockGapTooLarge    = errors.New("min block gap must be shorter than a slot")
	ErrZeroRetentionWindow = errors.New("equivocation retention window must be positive")
)

// Rules describes a slot-based network.
type Rules struct {
	Name      string
	NetworkID uint64

	Slots        SlotRules
	Equivocation EquivocationRules
}

// SlotRules fix the slot grid and the timestamp inherent bounds.
type SlotRules struct {
	// Duration is the width of every slot.
	Duration time.Duration
	// EpochZero is the instant slot 0 starts.
	EpochZero inter.Timestamp
	// MaxFutureDrift is how far past the local clock a block timestamp may be.
	MaxFutureDrift time.Duration
	// MinBlockGap, when positive, is the minimum distance between a block's
	// timestamp and its parent's. Zero only requires strict growth.
	MinBlockGap time.Duration
}

// EquivocationRules configure the equivocation detector.
type EquivocationRules struct {
	// RetentionWindow is how many slots below the highest observed slot are
	// still tracked. Older observations are ignored.
	RetentionWindow inter.Slot
	// RejectBlocks rejects the second and later blocks of an equivocating
	// author. When false they are accepted and only the evidence is kept.
	RejectBlocks bool
}

// MainNetRules returns the production network rules.
func MainNetRules() Rules {
	return Rules{
		Name:      "main",
		NetworkID: MainNetworkID,
		Slots: SlotRules{
			Duration:       6 * time.Second,
			EpochZero:      inter.FromUnix(1640995200), // 2022-01-01T00:00:00Z
			MaxFutureDrift: DefaultMaxFutureDrift,
		},
		Equivocation: DefaultEquivocationRules(),
	}
}

// TestNetRules mirror mainnet on a later epoch zero.
func TestNetRules() Rules {
	r := MainNetRules()
	r.Name = "test"
	r.NetworkID = TestNetworkID
	r.Slots.EpochZero = inter.FromUnix(1672531200) // 2023-01-01T00:00:00Z
	return r
}

// FakeNetRules returns fast rules for local networks and tests.
func FakeNetRules() Rules {
	return Rules{
		Name:      "fake",
		NetworkID: FakeNetworkID,
		Slots: SlotRules{
			Duration:       2 * time.Second,
			EpochZero:      0,
			MaxFutureDrift: 500 * time.Millisecond,
		},
		Equivocation: EquivocationRules{
			RetentionWindow: 256,
			RejectBlocks:    true,
		},
	}
}

func DefaultEquivocationRules() EquivocationRules {
	return EquivocationRules{
		RetentionWindow: DefaultRetentionWindow,
		RejectBlocks:    true,
	}
}

// Validate checks the rules are usable.
func (r Rules) Validate() error {
	s := r.Slots
	if s.Duration <= 0 {
		return ErrZeroSlotDuration
	}
	if s.MaxFutureDrift < 0 {
		return ErrNegativeDrift
	}
	if s.MinBlockGap < 0 {
		return ErrNegativeBlockGap
	}
	if s.MinBlockGap >= s.Duration {
		return fmt.Errorf("%w: gap %s, slot %s", ErrBlockGapTooLarge, s.MinBlockGap, s.Duration)
	}
	if r.Equivocation.RetentionWindow == 0 {
		return ErrZeroRetentionWindow
	}
	return nil
}

// Copy returns a copy of the rules. Rules hold no references today; callers
// still use Copy so that adding one stays safe.
func (r Rules) Copy() Rules {
	return r
}

func (r Rules) String() string {
	b, _ := json.Marshal(&r)
	return string(b)
}
