package equivocation

import (
	"fmt"

	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/Fantom-foundation/lachesis-base/kvdb"

	"github.com/rony4d/go-aura-asset/inter"
)

// Journal keeps evidence records in a key-value store so they outlive the
// detector's retention window. Keys are slot (8 bytes) followed by author
// (4 bytes), both big-endian, so iteration runs in (slot, author) order.
type Journal struct {
	db kvdb.Store
}

func NewJournal(db kvdb.Store) *Journal {
	return &Journal{db: db}
}

func journalKey(slot inter.Slot, author idx.ValidatorID) []byte {
	return append(bigendian.Uint64ToBytes(uint64(slot)), bigendian.Uint32ToBytes(uint32(author))...)
}

// Put stores the record, replacing an older version of it.
func (j *Journal) Put(rec *inter.Equivocation) error {
	raw, err := rec.MarshalBinary()
	if err != nil {
		return err
	}
	return j.db.Put(journalKey(rec.Slot, rec.Author), raw)
}

// Get returns the record of a pair, or nil if there is none.
func (j *Journal) Get(slot inter.Slot, author idx.ValidatorID) (*inter.Equivocation, error) {
	raw, err := j.db.Get(journalKey(slot, author))
	if err != nil || raw == nil {
		return nil, err
	}
	rec := &inter.Equivocation{}
	if err := rec.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("slot %d author %d: %w", slot, author, err)
	}
	return rec, nil
}

// Records returns every record with slot >= from.
func (j *Journal) Records(from inter.Slot) ([]inter.Equivocation, error) {
	it := j.db.NewIterator(nil, from.Bytes())
	defer it.Release()

	var out []inter.Equivocation
	for it.Next() {
		var rec inter.Equivocation
		if err := rec.UnmarshalBinary(it.Value()); err != nil {
			return nil, fmt.Errorf("key %x: %w", it.Key(), err)
		}
		out = append(out, rec)
	}
	return out, it.Error()
}
