package inter

import (
	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// BlockHeader holds the header fields slot consensus looks at. Its hash is
// the block identity recorded by the equivocation detector.
type BlockHeader struct {
	Number     idx.Block
	ParentHash hash.Hash
	Slot       Slot
	Time       Timestamp
	ParentTime Timestamp
	Author     idx.ValidatorID
	// Extra is opaque producer data; two headers differing only here are
	// still different blocks.
	Extra []byte
}

// Hash is keccak256 of the RLP encoded header.
func (h *BlockHeader) Hash() hash.Hash {
	enc, err := rlp.EncodeToBytes(h)
	if err != nil {
		panic("can't encode: " + err.Error())
	}
	return hash.Hash(crypto.Keccak256Hash(enc))
}

// Claim extracts the slot claim checked on import.
func (h *BlockHeader) Claim() SlotClaim {
	return SlotClaim{
		Slot:       h.Slot,
		Time:       h.Time,
		Author:     h.Author,
		Block:      h.Hash(),
		ParentTime: h.ParentTime,
	}
}
