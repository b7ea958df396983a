package types

import (
	"encoding/hex"
	"fmt"
	"math/big"
)

// Hash32 is a 32-byte digest: block hash, storage item hash or committee commitment.
//
// On circuit wires a Hash32 travels as two 128-bit big-endian halves (hi, lo), see Halves.
type Hash32 [32]byte

// Halves splits h into its high and low 128-bit big-endian halves.
func (h Hash32) Halves() (hi, lo *big.Int) {
	return new(big.Int).SetBytes(h[:16]), new(big.Int).SetBytes(h[16:])
}

// Hash32FromHalves is the inverse of Halves.
func Hash32FromHalves(hi, lo *big.Int) (Hash32, error) {
	var h Hash32
	for _, v := range []*big.Int{hi, lo} {
		if v == nil || v.Sign() < 0 || v.BitLen() > 128 {
			return h, fmt.Errorf("%w: hash half %v is not a 128-bit value", ErrLayout, v)
		}
	}
	hi.FillBytes(h[:16])
	lo.FillBytes(h[16:])
	return h, nil
}

func (h Hash32) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Hash32) MarshalJSON() ([]byte, error) {
	return HexBytes(h[:]).MarshalJSON()
}

func (h *Hash32) UnmarshalJSON(data []byte) error {
	var hb HexBytes
	if err := hb.UnmarshalJSON(data); err != nil {
		return err
	}
	if len(hb) != len(h) {
		return fmt.Errorf("%w: expected 32-byte hash, got %d bytes", ErrMalformedWitness, len(hb))
	}
	copy(h[:], hb)
	return nil
}

// ParseHash32 decodes a 0x-prefixed (or bare) hex string of exactly 32 bytes.
func ParseHash32(s string) (Hash32, error) {
	var h Hash32
	bz, err := HexToBytes(s)
	if err != nil {
		return h, err
	}
	if len(bz) != len(h) {
		return h, fmt.Errorf("%w: expected 32-byte hash, got %d bytes", ErrMalformedWitness, len(bz))
	}
	copy(h[:], bz)
	return h, nil
}
