package inter

import (
	"fmt"

	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/Fantom-foundation/lachesis-base/inter/idx"

	"github.com/rony4d/go-aura-asset/utils/cser"
)

// Equivocation is the evidence that an authority produced more than one
// distinct block for the same slot. Blocks lists the distinct identities in
// the order they were first observed and always has at least two entries.
type Equivocation struct {
	Slot   Slot
	Author idx.ValidatorID
	Blocks []hash.Hash
}

// Copy returns a deep copy.
func (e Equivocation) Copy() Equivocation {
	cp := e
	cp.Blocks = append([]hash.Hash(nil), e.Blocks...)
	return cp
}

// Contains reports whether id is one of the conflicting blocks.
func (e Equivocation) Contains(id hash.Hash) bool {
	for _, b := range e.Blocks {
		if b == id {
			return true
		}
	}
	return false
}

// Hash identifies the record in its current state.
func (e Equivocation) Hash() hash.Hash {
	parts := make([][]byte, 0, 2+len(e.Blocks))
	parts = append(parts, e.Slot.Bytes(), bigendian.Uint32ToBytes(uint32(e.Author)))
	for _, b := range e.Blocks {
		parts = append(parts, b.Bytes())
	}
	return hash.Of(parts...)
}

func (e Equivocation) String() string {
	return fmt.Sprintf("{slot=%d author=%d blocks=%v}", e.Slot, e.Author, e.Blocks)
}

// MarshalCSER writes the record into w.
func (e *Equivocation) MarshalCSER(w *cser.Writer) error {
	w.U64(uint64(e.Slot))
	w.U32(uint32(e.Author))
	w.U56(uint64(len(e.Blocks)))
	for _, b := range e.Blocks {
		w.FixedBytes(b.Bytes())
	}
	return nil
}

// UnmarshalCSER reads the record from r.
func (e *Equivocation) UnmarshalCSER(r *cser.Reader) error {
	e.Slot = Slot(r.U64())
	e.Author = idx.ValidatorID(r.U32())
	n := r.U56()
	if n > cser.MaxAlloc {
		return cser.ErrTooLargeAlloc
	}
	if n < 2 {
		return ErrShortEvidence
	}
	e.Blocks = make([]hash.Hash, n)
	for i := range e.Blocks {
		r.FixedBytes(e.Blocks[i][:])
	}
	return nil
}

func (e *Equivocation) MarshalBinary() ([]byte, error) {
	return cser.MarshalBinaryAdapter(e.MarshalCSER)
}

func (e *Equivocation) UnmarshalBinary(raw []byte) error {
	return cser.UnmarshalBinaryAdapter(raw, e.UnmarshalCSER)
}
