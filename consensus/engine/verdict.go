package engine

import (
	"github.com/rony4d/go-aura-asset/inter"
)

// Stage is a step of block evaluation.
type Stage uint8

const (
	Received Stage = iota
	SnapshotResolved
	SlotComputed
	TimingVerified
	EquivocationChecked
)

func (s Stage) String() string {
	switch s {
	case Received:
		return "received"
	case SnapshotResolved:
		return "snapshot_resolved"
	case SlotComputed:
		return "slot_computed"
	case TimingVerified:
		return "timing_verified"
	case EquivocationChecked:
		return "equivocation_checked"
	default:
		return "unknown"
	}
}

// Status is the final outcome of an evaluation.
type Status uint8

const (
	Accepted Status = iota + 1
	Rejected
)

func (s Status) String() string {
	switch s {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Verdict is the result of Evaluate. Stage is the last step the claim
// passed. Evidence is set whenever the claim's block equivocates, whether or
// not it was rejected for it.
type Verdict struct {
	Status   Status
	Stage    Stage
	Err      error
	Evidence *inter.Equivocation
}

func (v Verdict) Accepted() bool {
	return v.Status == Accepted
}

// Equivocated reports whether the block was part of an equivocation.
func (v Verdict) Equivocated() bool {
	return v.Evidence != nil
}
