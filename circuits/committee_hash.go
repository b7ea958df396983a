package circuit

import (
	"fmt"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/math/uints"

	"github.com/kysee/zk-bridge/types"
)

// committeeTreeWidth is MaxValidatorCount rounded up to a power of two.
const committeeTreeWidth = 8

// CommitteeHashCircuit proves that Hash is the SSZ hash_tree_root of the padded
// ValidatorSet, using SHA256 pair hashing over 32-byte chunks.
type CommitteeHashCircuit struct {
	Hash         Bytes32        `gnark:",public"`
	ValidatorSet CommitteeWires `gnark:",public"`
}

func (c *CommitteeHashCircuit) Define(api frontend.API) error {
	root, err := committeeRoot(api, c.ValidatorSet)
	if err != nil {
		return fmt.Errorf("committee root: %w", err)
	}
	c.Hash.AssertIsEqual(api, bytes32Of(api, root[:]))
	return nil
}

func committeeRoot(api frontend.API, keys CommitteeWires) ([32]uints.U8, error) {
	layer := make([][32]uints.U8, committeeTreeWidth)
	for i := range layer {
		if i < types.MaxValidatorCount {
			layer[i] = keys[i].Bytes(api)
		} else {
			layer[i] = zeroChunk()
		}
	}
	for len(layer) > 1 {
		next := make([][32]uints.U8, len(layer)/2)
		for i := range next {
			h, err := hashPair(api, layer[2*i], layer[2*i+1])
			if err != nil {
				return [32]uints.U8{}, err
			}
			next[i] = h
		}
		layer = next
	}
	return layer[0], nil
}
