package validatorpk

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"sync"

	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrUnknownAuthority = errors.New("no public key for authority")
	ErrBadSignature     = errors.New("invalid block signature")
)

// Secp256k1Verifier checks 65-byte [R || S || V] signatures over block
// identities against a registered key per authority.
type Secp256k1Verifier struct {
	mu   sync.RWMutex
	keys map[idx.ValidatorID]PubKey
}

func NewSecp256k1Verifier() *Secp256k1Verifier {
	return &Secp256k1Verifier{
		keys: make(map[idx.ValidatorID]PubKey),
	}
}

// Register sets the key of an authority, replacing any previous one.
func (v *Secp256k1Verifier) Register(id idx.ValidatorID, pk PubKey) error {
	if _, err := pk.ECDSA(); err != nil {
		return fmt.Errorf("authority %d: %w", id, err)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.keys[id] = pk.Copy()
	return nil
}

// PubKey returns the registered key of an authority.
func (v *Secp256k1Verifier) PubKey(id idx.ValidatorID) (PubKey, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	pk, ok := v.keys[id]
	return pk.Copy(), ok
}

// Verify reports whether sig is author's signature over block.
func (v *Secp256k1Verifier) Verify(author idx.ValidatorID, block hash.Hash, sig []byte) error {
	pk, ok := v.PubKey(author)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownAuthority, author)
	}
	if len(sig) != crypto.SignatureLength {
		return ErrBadSignature
	}
	// VerifySignature takes [R || S] without the recovery id
	if !crypto.VerifySignature(pk.Raw, block.Bytes(), sig[:crypto.SignatureLength-1]) {
		return ErrBadSignature
	}
	return nil
}

// Sign produces the signature Verify accepts.
func Sign(key *ecdsa.PrivateKey, block hash.Hash) ([]byte, error) {
	return crypto.Sign(block.Bytes(), key)
}

// FakeKey derives a deterministic private key from n. Test networks only.
func FakeKey(n int) *ecdsa.PrivateKey {
	seed := crypto.Keccak256(bigendian.Uint64ToBytes(uint64(n)))
	for {
		key, err := crypto.ToECDSA(seed)
		if err == nil {
			return key
		}
		// seed fell outside the curve order
		seed = crypto.Keccak256(seed)
	}
}
