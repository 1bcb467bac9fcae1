package inter

import (
	"fmt"

	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
)

// Slot is the index of a fixed-width time window counted from epoch zero.
type Slot uint64

func (s Slot) Bytes() []byte {
	return bigendian.Uint64ToBytes(uint64(s))
}

// SlotClaim is what a candidate block asserts about its own production:
// the slot it was built for, the timestamp inherent it carries, who built it
// and the timestamp of its parent.
type SlotClaim struct {
	Slot       Slot
	Time       Timestamp
	Author     idx.ValidatorID
	Block      hash.Hash
	ParentTime Timestamp
}

func (c SlotClaim) String() string {
	return fmt.Sprintf("{slot=%d time=%d author=%d block=%s parent_time=%d}",
		c.Slot, c.Time, c.Author, c.Block.String(), c.ParentTime)
}
