package types

import "fmt"

// BitsOf expands data into bits, most significant bit of each byte first.
func BitsOf(data []byte) []bool {
	bits := make([]bool, 0, len(data)*8)
	for _, b := range data {
		for i := 7; i >= 0; i-- {
			bits = append(bits, (b>>uint(i))&1 == 1)
		}
	}
	return bits
}

// BytesOf packs bits produced by BitsOf back into bytes.
func BytesOf(bits []bool) ([]byte, error) {
	if len(bits)%8 != 0 {
		return nil, fmt.Errorf("%w: %d bits do not form whole bytes", ErrLayout, len(bits))
	}
	out := make([]byte, len(bits)/8)
	for i, bit := range bits {
		if bit {
			out[i/8] |= 1 << uint(7-i%8)
		}
	}
	return out, nil
}
