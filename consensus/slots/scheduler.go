package slots

import (
	"time"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"

	"github.com/rony4d/go-aura-asset/inter"
	"github.com/rony4d/go-aura-asset/inter/iauth"
)

// Scheduler binds the slot functions to one network's slot grid.
type Scheduler struct {
	SlotDuration time.Duration
	EpochZero    inter.Timestamp
}

// NewScheduler returns a Scheduler, or ErrInvalidTiming for a non-positive duration.
func NewScheduler(slotDuration time.Duration, epochZero inter.Timestamp) (Scheduler, error) {
	if _, err := SlotStart(0, slotDuration, epochZero); err != nil {
		return Scheduler{}, err
	}
	return Scheduler{SlotDuration: slotDuration, EpochZero: epochZero}, nil
}

func (s Scheduler) SlotAt(t inter.Timestamp) (inter.Slot, error) {
	return SlotAt(t, s.SlotDuration, s.EpochZero)
}

func (s Scheduler) SlotStart(slot inter.Slot) (inter.Timestamp, error) {
	return SlotStart(slot, s.SlotDuration, s.EpochZero)
}

func (s Scheduler) ExpectedAuthor(slot inter.Slot, snapshot *iauth.Snapshot) (idx.ValidatorID, error) {
	return ExpectedAuthor(slot, snapshot)
}

// NextOwnSlot returns the first slot at or after the one containing now that
// belongs to self, and when it starts. Before epoch zero the search starts at
// slot 0.
func (s Scheduler) NextOwnSlot(now inter.Timestamp, self idx.ValidatorID, snapshot *iauth.Snapshot) (inter.Slot, inter.Timestamp, error) {
	n := snapshot.Len()
	if n == 0 {
		return 0, 0, ErrEmptyAuthoritySet
	}
	pos := snapshot.Position(self)
	if pos < 0 {
		return 0, 0, ErrNotAnAuthority
	}

	var cur inter.Slot
	if now >= s.EpochZero {
		var err error
		cur, err = s.SlotAt(now)
		if err != nil {
			return 0, 0, err
		}
	}
	curIdx, _ := AuthorIndex(cur, n)
	slot := cur + inter.Slot((pos-curIdx+n)%n)
	start, err := s.SlotStart(slot)
	if err != nil {
		return 0, 0, err
	}
	return slot, start, nil
}
