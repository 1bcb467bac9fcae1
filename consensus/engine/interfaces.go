package engine

import (
	"time"

	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/Fantom-foundation/lachesis-base/inter/idx"

	"github.com/rony4d/go-aura-asset/inter"
	"github.com/rony4d/go-aura-asset/inter/iauth"
)

// AuthorityRegistry resolves the authority snapshot effective at a chain
// position. It returns an error wrapping ErrNoSnapshotForPosition when the
// position cannot have a snapshot (before genesis, corrupted state); any
// other error is treated as transient.
type AuthorityRegistry interface {
	Snapshot(position idx.Block) (*iauth.Snapshot, error)
}

// Clock reads the local wall clock.
type Clock interface {
	Now() inter.Timestamp
}

// SignatureVerifier authenticates a block's author. The engine compares
// identities only; hosts run this before Evaluate.
type SignatureVerifier interface {
	Verify(author idx.ValidatorID, block hash.Hash, sig []byte) error
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() inter.Timestamp

func (f ClockFunc) Now() inter.Timestamp {
	return f()
}

// SystemClock reads time.Now.
type SystemClock struct{}

func (SystemClock) Now() inter.Timestamp {
	return inter.FromTime(time.Now())
}

// StaticRegistry serves one snapshot for every position from genesis on.
type StaticRegistry struct {
	snapshot *iauth.Snapshot
}

func NewStaticRegistry(snapshot *iauth.Snapshot) *StaticRegistry {
	return &StaticRegistry{snapshot: snapshot}
}

func (r *StaticRegistry) Snapshot(idx.Block) (*iauth.Snapshot, error) {
	if r.snapshot == nil {
		return nil, ErrNoSnapshotForPosition
	}
	return r.snapshot, nil
}
