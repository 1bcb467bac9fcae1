// Package iauth holds the authority snapshot: the ordered list of block
// producers that is valid for one epoch.
//
// A Snapshot never changes after construction. It is shared by pointer
// between concurrent evaluations without locking; constructors copy their
// input and accessors return copies.
package iauth

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/Fantom-foundation/lachesis-base/inter/pos"
	"github.com/ethereum/go-ethereum/rlp"
)

var (
	// ErrEmptyAuthoritySet is returned when a snapshot has no authorities.
	ErrEmptyAuthoritySet = errors.New("empty authority set")
	// ErrDuplicateAuthority is returned when the same id is listed twice.
	ErrDuplicateAuthority = errors.New("duplicate authority")
)

// Snapshot is the authority set of one epoch. The order of Authorities
// defines the round-robin rotation: slot s belongs to Authorities[s % Len()].
type Snapshot struct {
	epoch       idx.Epoch
	authorities []idx.ValidatorID
	validators  *pos.Validators
}

// NewSnapshot builds a snapshot with the given rotation order and equal
// weights. An empty list is allowed here; schedulers reject it with
// ErrEmptyAuthoritySet when a slot has to be assigned.
func NewSnapshot(epoch idx.Epoch, authorities []idx.ValidatorID) (*Snapshot, error) {
	seen := make(map[idx.ValidatorID]struct{}, len(authorities))
	for _, id := range authorities {
		if _, ok := seen[id]; ok {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateAuthority, id)
		}
		seen[id] = struct{}{}
	}
	return &Snapshot{
		epoch:       epoch,
		authorities: append([]idx.ValidatorID(nil), authorities...),
		validators:  pos.EqualWeightValidators(authorities, 1),
	}, nil
}

// FromValidators adopts a weighted validator set. The rotation order is the
// validators' canonical order (by weight, then by id).
func FromValidators(epoch idx.Epoch, validators *pos.Validators) *Snapshot {
	return &Snapshot{
		epoch:       epoch,
		authorities: append([]idx.ValidatorID(nil), validators.SortedIDs()...),
		validators:  validators.Copy(),
	}
}

// MustNewSnapshot is NewSnapshot for static test and genesis data.
func MustNewSnapshot(epoch idx.Epoch, authorities ...idx.ValidatorID) *Snapshot {
	s, err := NewSnapshot(epoch, authorities)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Snapshot) Epoch() idx.Epoch {
	return s.epoch
}

// Len is the number of authorities.
func (s *Snapshot) Len() int {
	return len(s.authorities)
}

// At returns the authority at rotation position i.
func (s *Snapshot) At(i int) idx.ValidatorID {
	return s.authorities[i]
}

// Authorities returns a copy of the rotation order.
func (s *Snapshot) Authorities() []idx.ValidatorID {
	return append([]idx.ValidatorID(nil), s.authorities...)
}

// Exists reports whether id is an authority of this epoch.
func (s *Snapshot) Exists(id idx.ValidatorID) bool {
	return s.validators.Exists(id)
}

// Position returns the rotation position of id, or -1.
func (s *Snapshot) Position(id idx.ValidatorID) int {
	if !s.Exists(id) {
		return -1
	}
	for i, a := range s.authorities {
		if a == id {
			return i
		}
	}
	return -1
}

// Weight of id; zero for non-authorities.
func (s *Snapshot) Weight(id idx.ValidatorID) pos.Weight {
	return s.validators.Get(id)
}

// Validators returns a copy of the weighted set.
func (s *Snapshot) Validators() *pos.Validators {
	return s.validators.Copy()
}

type snapshotRLP struct {
	Epoch       idx.Epoch
	Authorities []idx.ValidatorID
	Weights     []pos.Weight
}

// Hash fingerprints epoch, order and weights.
func (s *Snapshot) Hash() hash.Hash {
	weights := make([]pos.Weight, len(s.authorities))
	for i, id := range s.authorities {
		weights[i] = s.validators.Get(id)
	}
	hasher := sha256.New()
	err := rlp.Encode(hasher, &snapshotRLP{
		Epoch:       s.epoch,
		Authorities: s.authorities,
		Weights:     weights,
	})
	if err != nil {
		panic("can't hash: " + err.Error())
	}
	return hash.BytesToHash(hasher.Sum(nil))
}

func (s *Snapshot) String() string {
	return fmt.Sprintf("{epoch=%d authorities=%v}", s.epoch, s.authorities)
}
