// Package slashing grades reported equivocations. Severity within an epoch
// is the number of distinct authorities caught equivocating, so a lone
// misconfigured node weighs less than a coordinated attack. A new epoch
// resets the tally.
package slashing

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/Fantom-foundation/lachesis-base/inter/pos"

	"github.com/rony4d/go-aura-asset/inter"
	"github.com/rony4d/go-aura-asset/inter/iauth"
)

// ErrClosedEpoch is returned for evidence observed under an epoch older than
// the graded one. Such evidence is not counted.
var ErrClosedEpoch = errors.New("evidence from a closed slashing epoch")

// Grade is the outcome of Report.
type Grade struct {
	Epoch    idx.Epoch
	Severity uint32
	// Rotated is set when the report opened Epoch. Closed is the severity
	// the previous epoch reached.
	Rotated bool
	Closed  uint32
}

// Tracker is safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	snapshot *iauth.Snapshot
	culprits map[idx.ValidatorID]struct{}
}

// NewTracker starts grading for the epoch of snapshot.
func NewTracker(snapshot *iauth.Snapshot) *Tracker {
	return &Tracker{
		snapshot: snapshot,
		culprits: make(map[idx.ValidatorID]struct{}),
	}
}

// OnSlash registers evidence and returns the resulting severity. Evidence
// against non-authorities of the current epoch is ignored.
func (t *Tracker) OnSlash(rec inter.Equivocation) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.slashLocked(rec)
}

// Report grades evidence observed under snapshot. A snapshot of a later
// epoch first closes the graded epoch and opens its own. Evidence from an
// earlier epoch returns ErrClosedEpoch and leaves the tally unchanged.
func (t *Tracker) Report(snapshot *iauth.Snapshot, rec inter.Equivocation) (Grade, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var g Grade
	switch cur := t.snapshot.Epoch(); {
	case snapshot.Epoch() < cur:
		return Grade{Epoch: cur, Severity: uint32(len(t.culprits))},
			fmt.Errorf("%w: evidence epoch %d, graded epoch %d", ErrClosedEpoch, snapshot.Epoch(), cur)
	case snapshot.Epoch() > cur:
		g.Rotated = true
		g.Closed = t.signalLocked(snapshot)
	}
	g.Epoch = t.snapshot.Epoch()
	g.Severity = t.slashLocked(rec)
	return g, nil
}

func (t *Tracker) slashLocked(rec inter.Equivocation) uint32 {
	if t.snapshot.Exists(rec.Author) {
		t.culprits[rec.Author] = struct{}{}
	}
	return uint32(len(t.culprits))
}

// Epoch is the epoch currently graded.
func (t *Tracker) Epoch() idx.Epoch {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot.Epoch()
}

// Severity is the number of distinct culprits this epoch.
func (t *Tracker) Severity() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return uint32(len(t.culprits))
}

// Culprits returns the reported authorities in ascending id order.
func (t *Tracker) Culprits() []idx.ValidatorID {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]idx.ValidatorID, 0, len(t.culprits))
	for id := range t.culprits {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Penalty is the part of a culprit's weight to slash: weight scaled by the
// share of authorities caught, never more than the whole weight.
func (t *Tracker) Penalty(id idx.ValidatorID) pos.Weight {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.culprits[id]; !ok {
		return 0
	}
	n := uint64(t.snapshot.Len())
	w := uint64(t.snapshot.Weight(id))
	sev := uint64(len(t.culprits))
	if sev >= n {
		return pos.Weight(w)
	}
	return pos.Weight(w * sev / n)
}

// OnSignal switches to a new epoch and returns the severity reached in the
// previous one.
func (t *Tracker) OnSignal(snapshot *iauth.Snapshot) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.signalLocked(snapshot)
}

func (t *Tracker) signalLocked(snapshot *iauth.Snapshot) uint32 {
	prev := uint32(len(t.culprits))
	t.snapshot = snapshot
	t.culprits = make(map[idx.ValidatorID]struct{})
	return prev
}
