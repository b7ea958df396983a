// Package test provides a simulated source chain: validator committees signing
// grandpa precommits and blocks whose state trie carries the next session keys
// and the bridge message.
package test

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/triedb"
	"go.dedis.ch/kyber/v3/sign/eddsa"
	"go.dedis.ch/kyber/v3/util/random"

	cfgtypes "github.com/kysee/zk-bridge/provers/types"
	"github.com/kysee/zk-bridge/types"
)

// fillerItems deepens the state trie so inclusion paths cross branch and extension nodes.
const fillerItems = 32

type Validator struct {
	signer *eddsa.EdDSA
	Keys   types.SessionKeys
}

func NewValidator() (*Validator, error) {
	signer := eddsa.NewEdDSA(random.New())
	pub, err := signer.Public.MarshalBinary()
	if err != nil {
		return nil, err
	}
	v := &Validator{signer: signer}
	for i := range v.Keys {
		if i == types.GrandpaKeyIndex {
			copy(v.Keys[i][:], pub)
			continue
		}
		if _, err := rand.Read(v.Keys[i][:]); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func NewValidators(n int) ([]*Validator, error) {
	out := make([]*Validator, n)
	for i := range out {
		v, err := NewValidator()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (v *Validator) ConsensusKey() types.ConsensusKey {
	return v.Keys.Grandpa()
}

func (v *Validator) Sign(msg []byte) ([types.SignatureSize]byte, error) {
	var sig [types.SignatureSize]byte
	s, err := v.signer.Sign(msg)
	if err != nil {
		return sig, err
	}
	copy(sig[:], s)
	return sig, nil
}

func CommitteeOf(set []*Validator) types.Committee {
	c := make(types.Committee, len(set))
	for i, v := range set {
		c[i] = v.ConsensusKey()
	}
	return c
}

// Block is the finalized block of one epoch.
type Block struct {
	Hash   types.Hash32
	Epoch  uint64
	Header []byte

	finality    types.RPCBlockFinalityProof
	sessionKeys types.RPCStorageInclusionProof
	message     types.RPCStorageInclusionProof
}

// Chain is a simulated chain with one finalized block per epoch. The block of
// epoch i is finalized by sets[i] with authority set id i and stores the session
// keys of sets[i+1] (sets[i] for the last epoch).
type Chain struct {
	sets    [][]*Validator
	blocks  []*Block
	byHash  map[types.Hash32]*Block
	message []byte
}

func NewChain(sets [][]*Validator, message []byte) (*Chain, error) {
	if len(sets) == 0 {
		return nil, errors.New("no committees")
	}
	c := &Chain{sets: sets, byHash: make(map[types.Hash32]*Block), message: message}
	var parent common.Hash
	for epoch := range sets {
		next := sets[epoch]
		if epoch+1 < len(sets) {
			next = sets[epoch+1]
		}
		b, err := c.buildBlock(uint64(epoch), parent, next)
		if err != nil {
			return nil, fmt.Errorf("block of epoch %d: %w", epoch, err)
		}
		c.blocks = append(c.blocks, b)
		c.byHash[b.Hash] = b
		parent = common.Hash(b.Hash)
	}
	return c, nil
}

// Genesis returns the anchor trusting the committee of the first epoch.
func (c *Chain) Genesis() (types.GenesisConfig, error) {
	h, err := CommitteeOf(c.sets[0]).Hash()
	if err != nil {
		return types.GenesisConfig{}, err
	}
	return types.GenesisConfig{CommitteeHash: h}, nil
}

func (c *Chain) Committee(epoch uint64) types.Committee {
	return CommitteeOf(c.sets[epoch])
}

func (c *Chain) Block(epoch uint64) *Block {
	if epoch >= uint64(len(c.blocks)) {
		return nil
	}
	return c.blocks[epoch]
}

func (c *Chain) buildBlock(epoch uint64, parent common.Hash, next []*Validator) (*Block, error) {
	seats := make([]types.SessionKeys, len(next))
	for i, v := range next {
		seats[i] = v.Keys
	}
	record, err := types.CommitteeRecord{Seats: seats}.Encode()
	if err != nil {
		return nil, err
	}

	tr := trie.NewEmpty(triedb.NewDatabase(rawdb.NewMemoryDatabase(), nil))
	tr.MustUpdate(types.NextSessionKeysAddress.Key(), record)
	tr.MustUpdate(types.MessageAddress.Key(), c.message)
	for i := 0; i < fillerItems; i++ {
		tr.MustUpdate(crypto.Keccak256([]byte{byte(epoch), byte(i)}), crypto.Keccak256([]byte{byte(i)}))
	}

	header := &ethtypes.Header{
		ParentHash: parent,
		Root:       tr.Hash(),
		Number:     new(big.Int).SetUint64(epoch + 1),
		Difficulty: big.NewInt(0),
		GasLimit:   30_000_000,
		Time:       (epoch + 1) * 6,
		Extra:      []byte("zk-bridge"),
	}
	headerRLP, err := rlp.EncodeToBytes(header)
	if err != nil {
		return nil, err
	}
	b := &Block{Hash: types.Hash32(header.Hash()), Epoch: epoch, Header: headerRLP}

	if b.sessionKeys, err = inclusionProof(tr, headerRLP, types.NextSessionKeysAddress, record); err != nil {
		return nil, err
	}
	if b.message, err = inclusionProof(tr, headerRLP, types.MessageAddress, c.message); err != nil {
		return nil, err
	}

	msg := types.GrandpaMessage{
		BlockHash:      b.Hash,
		BlockNumber:    uint32(epoch + 1),
		Round:          1,
		AuthoritySetID: epoch,
	}.Encode()
	b.finality.Message = msg[:]
	for _, v := range c.sets[epoch] {
		key := v.ConsensusKey()
		sig, err := v.Sign(msg[:])
		if err != nil {
			return nil, err
		}
		b.finality.ValidatorSet = append(b.finality.ValidatorSet, key[:])
		b.finality.PreCommits = append(b.finality.PreCommits, types.RPCPreCommit{PublicKey: key[:], Signature: sig[:]})
	}
	return b, nil
}

// proofList collects trie proof nodes in the order they are written, root first.
type proofList [][]byte

func (l *proofList) Put(_ []byte, value []byte) error {
	*l = append(*l, common.CopyBytes(value))
	return nil
}

func (l *proofList) Delete([]byte) error {
	return errors.New("proof list is append only")
}

func inclusionProof(tr *trie.Trie, header []byte, address types.Nibbles, stored []byte) (types.RPCStorageInclusionProof, error) {
	var p types.RPCStorageInclusionProof
	var nodes proofList
	if err := tr.Prove(address.Key(), &nodes); err != nil {
		return p, err
	}
	if len(nodes) < 2 {
		return p, fmt.Errorf("inclusion path of %s has %d nodes", address, len(nodes))
	}

	pos := 0
	for _, node := range nodes[:len(nodes)-1] {
		child, consumed, err := descend(node, address, pos)
		if err != nil {
			return p, err
		}
		p.BranchNodesData = append(p.BranchNodesData, types.RPCBranchNode{Data: node, TargetChild: child})
		pos += consumed
	}
	p.BlockHeader = header
	p.LeafNodeData = nodes[len(nodes)-1]
	p.StoredData = common.CopyBytes(stored)
	return p, nil
}

// descend reports which child of node the path to address follows and how many
// key nibbles the node consumes.
func descend(node []byte, address types.Nibbles, pos int) (uint8, int, error) {
	content, _, err := rlp.SplitList(node)
	if err != nil {
		return 0, 0, err
	}
	n, err := rlp.CountValues(content)
	if err != nil {
		return 0, 0, err
	}
	switch n {
	case 17:
		return address[pos], 1, nil
	case 2:
		compact, _, err := rlp.SplitString(content)
		if err != nil {
			return 0, 0, err
		}
		if len(compact) == 0 {
			return 0, 0, errors.New("empty extension key")
		}
		consumed := 2 * (len(compact) - 1)
		if compact[0]&0x10 != 0 {
			consumed++
		}
		return 0, consumed, nil
	default:
		return 0, 0, fmt.Errorf("unexpected trie node with %d items", n)
	}
}

func (c *Chain) blockOf(block types.Hash32) (*Block, error) {
	b, ok := c.byHash[block]
	if !ok {
		return nil, fmt.Errorf("%w: unknown block %s", cfgtypes.ErrWitnessUnavailable, block)
	}
	return b, nil
}

func (c *Chain) FinalityProofForEpoch(_ context.Context, epoch uint64) (*cfgtypes.FinalityProofResponse, error) {
	b := c.Block(epoch)
	if b == nil {
		return nil, fmt.Errorf("%w: epoch %d not finalized", cfgtypes.ErrWitnessUnavailable, epoch)
	}
	return &cfgtypes.FinalityProofResponse{Block: b.Hash, Proof: cloneFinality(b.finality)}, nil
}

func (c *Chain) NextSessionKeysInclusionProof(_ context.Context, block types.Hash32) (*types.RPCStorageInclusionProof, error) {
	b, err := c.blockOf(block)
	if err != nil {
		return nil, err
	}
	p := cloneInclusion(b.sessionKeys)
	return &p, nil
}

func (c *Chain) SearchForEpochBlock(_ context.Context, epoch uint64) (types.Hash32, error) {
	b := c.Block(epoch)
	if b == nil {
		return types.Hash32{}, fmt.Errorf("%w: no block in epoch %d", cfgtypes.ErrWitnessUnavailable, epoch)
	}
	return b.Hash, nil
}

func (c *Chain) FinalityProof(_ context.Context, block types.Hash32) (*cfgtypes.FinalityProofResponse, error) {
	b, err := c.blockOf(block)
	if err != nil {
		return nil, err
	}
	return &cfgtypes.FinalityProofResponse{Block: b.Hash, Proof: cloneFinality(b.finality)}, nil
}

func (c *Chain) SentMessageInclusionProof(_ context.Context, block types.Hash32) (*types.RPCStorageInclusionProof, error) {
	b, err := c.blockOf(block)
	if err != nil {
		return nil, err
	}
	p := cloneInclusion(b.message)
	return &p, nil
}

// WriteReplay records every witness of the chain into dir, in the layout read by
// the file fetcher.
func (c *Chain) WriteReplay(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for _, b := range c.blocks {
		files := map[string]any{
			cfgtypes.EpochFinalityFile(b.Epoch): cfgtypes.FinalityProofResponse{Block: b.Hash, Proof: b.finality},
			cfgtypes.EpochBlockFile(b.Epoch):    b.Hash,
			cfgtypes.FinalityFile(b.Hash):       cfgtypes.FinalityProofResponse{Block: b.Hash, Proof: b.finality},
			cfgtypes.SessionKeysFile(b.Hash):    b.sessionKeys,
			cfgtypes.MessageFile(b.Hash):        b.message,
		}
		for name, v := range files {
			raw, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(filepath.Join(dir, name), raw, 0644); err != nil {
				return err
			}
		}
	}
	return nil
}

func cloneFinality(p types.RPCBlockFinalityProof) types.RPCBlockFinalityProof {
	out := types.RPCBlockFinalityProof{Message: common.CopyBytes(p.Message)}
	for _, k := range p.ValidatorSet {
		out.ValidatorSet = append(out.ValidatorSet, common.CopyBytes(k))
	}
	for _, pc := range p.PreCommits {
		out.PreCommits = append(out.PreCommits, types.RPCPreCommit{
			PublicKey: common.CopyBytes(pc.PublicKey),
			Signature: common.CopyBytes(pc.Signature),
		})
	}
	return out
}

func cloneInclusion(p types.RPCStorageInclusionProof) types.RPCStorageInclusionProof {
	out := types.RPCStorageInclusionProof{
		BlockHeader:  common.CopyBytes(p.BlockHeader),
		LeafNodeData: common.CopyBytes(p.LeafNodeData),
		StoredData:   common.CopyBytes(p.StoredData),
	}
	for _, n := range p.BranchNodesData {
		out.BranchNodesData = append(out.BranchNodesData, types.RPCBranchNode{Data: common.CopyBytes(n.Data), TargetChild: n.TargetChild})
	}
	return out
}
