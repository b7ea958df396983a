package circuit

import (
	"fmt"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/sha2"
	"github.com/consensys/gnark/std/math/uints"
)

// packBytes packs bits into bytes, most significant bit of each byte first.
// The bits must already be constrained boolean.
func packBytes(api frontend.API, bits []frontend.Variable) []uints.U8 {
	out := make([]uints.U8, len(bits)/8)
	for byteIdx := range out {
		var byteValue frontend.Variable = 0
		for bitIdx := 0; bitIdx < 8; bitIdx++ {
			power := 1 << (7 - bitIdx)
			byteValue = api.Add(byteValue, api.Mul(bits[byteIdx*8+bitIdx], power))
		}
		out[byteIdx] = uints.U8{Val: byteValue}
	}
	return out
}

// halfToBytes decomposes a 128-bit value into 16 big-endian bytes. The decomposition
// also bounds the value to 128 bits.
func halfToBytes(api frontend.API, half frontend.Variable) []uints.U8 {
	// little-endian bits
	bits := api.ToBinary(half, 128)
	bytes := make([]uints.U8, 16)
	for byteIdx := 0; byteIdx < 16; byteIdx++ {
		var byteValue frontend.Variable = 0
		for bitIdx := 0; bitIdx < 8; bitIdx++ {
			bit := bits[byteIdx*8+bitIdx]
			power := 1 << bitIdx
			byteValue = api.Add(byteValue, api.Mul(bit, power))
		}
		// Store in reverse order for big-endian
		bytes[15-byteIdx] = uints.U8{Val: byteValue}
	}
	return bytes
}

// bytesToHalf composes 16 big-endian bytes into one 128-bit value.
func bytesToHalf(api frontend.API, b []uints.U8) frontend.Variable {
	var acc frontend.Variable = 0
	for i := range b {
		acc = api.Add(api.Mul(acc, 256), b[i].Val)
	}
	return acc
}

func zeroChunk() [32]uints.U8 {
	var chunk [32]uints.U8
	for i := 0; i < 32; i++ {
		chunk[i] = uints.NewU8(0)
	}
	return chunk
}

// hashPair computes SHA256(left || right).
func hashPair(api frontend.API, left, right [32]uints.U8) ([32]uints.U8, error) {
	hasher, err := sha2.New(api)
	if err != nil {
		return [32]uints.U8{}, fmt.Errorf("sha2.New: %w", err)
	}
	hasher.Write(left[:])
	hasher.Write(right[:])
	return [32]uints.U8(hasher.Sum()), nil
}
