package types

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

func HexToBytes(hexStr string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(hexStr, "0x"))
}

// HexBytes is a byte slice carried as a 0x-prefixed hex string in JSON.
// Base64 strings are accepted on input since some chain clients emit them.
type HexBytes []byte

func (hb HexBytes) String() string {
	return "0x" + hex.EncodeToString(hb)
}

func (hb HexBytes) MarshalJSON() ([]byte, error) {
	s := hb.String()
	jbz := make([]byte, len(s)+2)
	jbz[0] = '"'
	copy(jbz[1:], s)
	jbz[len(jbz)-1] = '"'
	return jbz, nil
}

func (hb *HexBytes) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*hb = nil
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid hex string: %s", data)
	}

	val := string(data[1 : len(data)-1])
	if strings.HasPrefix(val, "0x") || isHex(val) {
		bz, err := HexToBytes(val)
		if err != nil {
			return err
		}
		*hb = bz
		return nil
	}

	bz, err := base64.StdEncoding.DecodeString(val)
	if err != nil {
		return err
	}
	*hb = bz
	return nil
}

func isHex(s string) bool {
	if len(s)%2 != 0 {
		return false
	}
	for _, b := range []byte(s) {
		if !(b >= '0' && b <= '9' || b >= 'a' && b <= 'f' || b >= 'A' && b <= 'F') {
			return false
		}
	}
	return true
}
