package types

import (
	"encoding/binary"
	"fmt"
)

const (
	GrandpaMessageSize = 53
	SignatureSize      = 64
	// precommitMessageTag is the first byte of an encoded grandpa precommit.
	precommitMessageTag = 1
)

// GrandpaMessage is the encoded precommit each validator signs:
// tag | block hash | block number u32 LE | round u64 LE | set id u64 LE.
type GrandpaMessage struct {
	BlockHash      Hash32
	BlockNumber    uint32
	Round          uint64
	AuthoritySetID uint64
}

func (m GrandpaMessage) Encode() [GrandpaMessageSize]byte {
	var out [GrandpaMessageSize]byte
	out[0] = precommitMessageTag
	copy(out[1:33], m.BlockHash[:])
	binary.LittleEndian.PutUint32(out[33:37], m.BlockNumber)
	binary.LittleEndian.PutUint64(out[37:45], m.Round)
	binary.LittleEndian.PutUint64(out[45:53], m.AuthoritySetID)
	return out
}

func ParseGrandpaMessage(b []byte) (GrandpaMessage, error) {
	var m GrandpaMessage
	if len(b) != GrandpaMessageSize {
		return m, fmt.Errorf("%w: grandpa message is %d bytes, want %d", ErrMalformedWitness, len(b), GrandpaMessageSize)
	}
	if b[0] != precommitMessageTag {
		return m, fmt.Errorf("%w: grandpa message tag %d is not a precommit", ErrMalformedWitness, b[0])
	}
	copy(m.BlockHash[:], b[1:33])
	m.BlockNumber = binary.LittleEndian.Uint32(b[33:37])
	m.Round = binary.LittleEndian.Uint64(b[37:45])
	m.AuthoritySetID = binary.LittleEndian.Uint64(b[45:53])
	return m, nil
}

type PreCommit struct {
	PublicKey ConsensusKey
	Signature [SignatureSize]byte
}

// BlockFinality is the witness of a finality proof: the committee and its
// precommit signatures over Message.
type BlockFinality struct {
	ValidatorSet Committee
	PreCommits   []PreCommit
	Message      [GrandpaMessageSize]byte
}

// BranchNode is one interior trie node on the path to a stored item.
// TargetChild is the nibble the path descends through.
type BranchNode struct {
	Data        []byte
	TargetChild uint8
}

// StorageInclusion is the witness of an inclusion proof. BranchNodes are ordered
// leaf-to-root; the chain client returns them root-to-leaf.
type StorageInclusion struct {
	BlockHeader    []byte
	BranchNodes    []BranchNode
	LeafNodeData   []byte
	StorageAddress Nibbles
}

// Nibbles is a 32-byte storage address expanded into 64 nibbles.
type Nibbles [64]uint8

// MustNibbles parses a 32-byte hex address. It panics on bad input and is meant
// for package-level constants.
func MustNibbles(hexAddr string) Nibbles {
	h, err := ParseHash32(hexAddr)
	if err != nil {
		panic(err)
	}
	return NibblesOf(h)
}

func NibblesOf(key Hash32) Nibbles {
	var n Nibbles
	for i, b := range key {
		n[2*i] = b >> 4
		n[2*i+1] = b & 0x0f
	}
	return n
}

// Key packs the nibbles back into the 32-byte trie key.
func (n Nibbles) Key() []byte {
	key := make([]byte, len(n)/2)
	for i := range key {
		key[i] = n[2*i]<<4 | n[2*i+1]&0x0f
	}
	return key
}

func (n Nibbles) String() string {
	return HexBytes(n.Key()).String()
}

var (
	// NextSessionKeysAddress stores the committee record of the next session.
	NextSessionKeysAddress = MustNibbles("0xea31e171c2cd790a23350b5e593ed8827d9fe37370ac390779f35763d98106e8")
	// MessageAddress stores the bridge message sent in a block.
	MessageAddress = MustNibbles("0xea31e171c2cd790a23350b5e593ed882df509310bc655bbf75a5b563fc3c8eee")
)

// Chain client representations.

type RPCPreCommit struct {
	PublicKey HexBytes `json:"public_key"`
	Signature HexBytes `json:"signature"`
}

type RPCBlockFinalityProof struct {
	ValidatorSet []HexBytes    `json:"validator_set"`
	PreCommits   []RPCPreCommit `json:"pre_commits"`
	Message      HexBytes       `json:"message"`
}

type RPCBranchNode struct {
	Data        HexBytes `json:"data"`
	TargetChild uint8    `json:"target_child"`
}

type RPCStorageInclusionProof struct {
	BlockHeader     HexBytes        `json:"block_header"`
	BranchNodesData []RPCBranchNode `json:"branch_nodes_data"`
	LeafNodeData    HexBytes        `json:"leaf_node_data"`
	StoredData      HexBytes        `json:"stored_data"`
}

// ToBlockFinality checks the fixed field lengths and converts p. A field of the
// wrong length is rejected, never padded or truncated.
func (p *RPCBlockFinalityProof) ToBlockFinality() (*BlockFinality, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: missing finality proof", ErrMalformedWitness)
	}
	bf := &BlockFinality{
		ValidatorSet: make(Committee, len(p.ValidatorSet)),
		PreCommits:   make([]PreCommit, len(p.PreCommits)),
	}
	for i, k := range p.ValidatorSet {
		if err := copyExact(bf.ValidatorSet[i][:], k, "validator key"); err != nil {
			return nil, err
		}
	}
	for i, pc := range p.PreCommits {
		if err := copyExact(bf.PreCommits[i].PublicKey[:], pc.PublicKey, "precommit key"); err != nil {
			return nil, err
		}
		if err := copyExact(bf.PreCommits[i].Signature[:], pc.Signature, "precommit signature"); err != nil {
			return nil, err
		}
	}
	if err := copyExact(bf.Message[:], p.Message, "grandpa message"); err != nil {
		return nil, err
	}
	return bf, nil
}

// ToStorageInclusion converts p for the item at address, reversing the branch
// nodes into leaf-to-root order.
func (p *RPCStorageInclusionProof) ToStorageInclusion(address Nibbles) (*StorageInclusion, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: missing storage inclusion proof", ErrMalformedWitness)
	}
	si := &StorageInclusion{
		BlockHeader:    p.BlockHeader,
		BranchNodes:    make([]BranchNode, len(p.BranchNodesData)),
		LeafNodeData:   p.LeafNodeData,
		StorageAddress: address,
	}
	for i, n := range p.BranchNodesData {
		si.BranchNodes[len(si.BranchNodes)-1-i] = BranchNode{Data: n.Data, TargetChild: n.TargetChild}
	}
	return si, nil
}

func copyExact(dst, src []byte, what string) error {
	if len(src) != len(dst) {
		return fmt.Errorf("%w: %s is %d bytes, want %d", ErrMalformedWitness, what, len(src), len(dst))
	}
	copy(dst, src)
	return nil
}
