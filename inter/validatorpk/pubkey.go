// Package validatorpk holds authority public keys and the secp256k1
// signature check hosts can plug into the consensus core.
//
// A PubKey is serialized as [type byte][raw key]. Only secp256k1 keys are
// defined, in their uncompressed 65-byte form.
package validatorpk

import (
	"crypto/ecdsa"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrEmptyPubKey       = errors.New("empty pubkey")
	ErrUnsupportedPubKey = errors.New("unsupported pubkey type")
)

// PubKey is an authority's public key tagged with its scheme.
type PubKey struct {
	Type uint8
	Raw  []byte
}

// Types lists the supported schemes.
var Types = struct {
	Secp256k1 uint8
}{
	Secp256k1: 0xc0,
}

// FromECDSA wraps a secp256k1 public key.
func FromECDSA(pub *ecdsa.PublicKey) PubKey {
	return PubKey{
		Type: Types.Secp256k1,
		Raw:  crypto.FromECDSAPub(pub),
	}
}

func (pk PubKey) Empty() bool {
	return len(pk.Raw) == 0 && pk.Type == 0
}

func (pk PubKey) String() string {
	return hexutil.Encode(pk.Bytes())
}

func (pk PubKey) Bytes() []byte {
	return append([]byte{pk.Type}, pk.Raw...)
}

func (pk PubKey) Copy() PubKey {
	return PubKey{
		Type: pk.Type,
		Raw:  common.CopyBytes(pk.Raw),
	}
}

// ECDSA decodes a secp256k1 key.
func (pk PubKey) ECDSA() (*ecdsa.PublicKey, error) {
	if pk.Type != Types.Secp256k1 {
		return nil, ErrUnsupportedPubKey
	}
	return crypto.UnmarshalPubkey(pk.Raw)
}

// FromString parses hex, with or without the 0x prefix.
func FromString(str string) (PubKey, error) {
	if len(str) >= 2 && str[0] == '0' && (str[1] == 'x' || str[1] == 'X') {
		str = str[2:]
	}
	b, err := hexutil.Decode("0x" + str)
	if err != nil {
		return PubKey{}, err
	}
	return FromBytes(b)
}

func FromBytes(b []byte) (PubKey, error) {
	if len(b) == 0 {
		return PubKey{}, ErrEmptyPubKey
	}
	return PubKey{b[0], common.CopyBytes(b[1:])}, nil
}

// MarshalText implements encoding.TextMarshaler.
func (pk *PubKey) MarshalText() ([]byte, error) {
	return []byte(pk.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (pk *PubKey) UnmarshalText(input []byte) error {
	res, err := FromString(string(input))
	if err != nil {
		return err
	}
	*pk = res
	return nil
}
