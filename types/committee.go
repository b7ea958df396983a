package types

import (
	"fmt"

	"github.com/protolambda/ztyp/tree"
)

const (
	// MaxValidatorCount is the number of committee seats compiled into every circuit.
	MaxValidatorCount = 6
	ConsensusKeySize  = 32
)

// ConsensusKey is a validator's 32-byte ed25519 finality (grandpa) public key.
type ConsensusKey [ConsensusKeySize]byte

func (k ConsensusKey) String() string {
	return Hash32(k).String()
}

func (k ConsensusKey) MarshalJSON() ([]byte, error) {
	return Hash32(k).MarshalJSON()
}

func (k *ConsensusKey) UnmarshalJSON(data []byte) error {
	return (*Hash32)(k).UnmarshalJSON(data)
}

// Committee is an ordered list of consensus keys. Seat order is significant.
type Committee []ConsensusKey

// Padded returns the committee with unused seats filled with zero keys.
func (c Committee) Padded() ([MaxValidatorCount]ConsensusKey, error) {
	var keys [MaxValidatorCount]ConsensusKey
	if len(c) > MaxValidatorCount {
		return keys, fmt.Errorf("%w: committee has %d members, at most %d seats", ErrMalformedWitness, len(c), MaxValidatorCount)
	}
	copy(keys[:], c)
	return keys, nil
}

// Hash returns the commitment of the padded committee.
func (c Committee) Hash() (Hash32, error) {
	keys, err := c.Padded()
	if err != nil {
		return Hash32{}, err
	}
	return CommitteeHash(keys), nil
}

// Contains reports whether key occupies a seat of c.
func (c Committee) Contains(key ConsensusKey) bool {
	for _, k := range c {
		if k == key {
			return true
		}
	}
	return false
}

// CommitteeHash is the SSZ hash_tree_root of Vector[Bytes32, MaxValidatorCount] under SHA-256.
// CommitteeHashCircuit computes the same value over circuit wires.
func CommitteeHash(keys [MaxValidatorCount]ConsensusKey) Hash32 {
	root := tree.Merkleize(tree.GetHashFn(), MaxValidatorCount, MaxValidatorCount, func(i uint64) tree.Root {
		return tree.Root(keys[i])
	})
	return Hash32(root)
}
