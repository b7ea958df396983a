package proving

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
	"go.dedis.ch/kyber/v3/group/edwards25519"
	"go.dedis.ch/kyber/v3/sign/eddsa"

	"github.com/kysee/zk-bridge/types"
)

const FinalityCircuit = "block-finality"

// InclusionCircuit names the inclusion primitive of one storage address. Each
// address is a distinct circuit, so a proof of one slot never stands in for another.
func InclusionCircuit(address types.Nibbles) string {
	return "storage-inclusion-" + address.String()
}

// FinalityPrimitive proves that a block was finalized by a committee.
// The proof exposes a types.FinalityStatement.
type FinalityPrimitive interface {
	ProveFinality(ctx context.Context, w *types.BlockFinality) (*Proof, error)
}

// InclusionPrimitive proves that a storage item is part of a block's state.
// The proof exposes a types.InclusionStatement.
type InclusionPrimitive interface {
	ProveInclusion(ctx context.Context, w *types.StorageInclusion) (*Proof, error)
}

// NativeFinality verifies finality witnesses outside of any circuit and yields
// native statements. It requires strictly more than two thirds of the committee
// to have signed the precommit, each signer counted once.
type NativeFinality struct{}

func (NativeFinality) ProveFinality(ctx context.Context, w *types.BlockFinality) (*Proof, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stmt, err := VerifyFinality(w)
	if err != nil {
		return nil, err
	}
	return &Proof{Circuit: FinalityCircuit, PublicInputs: stmt.PublicInputs()}, nil
}

// VerifyFinality checks the precommit signatures of w and returns its statement.
func VerifyFinality(w *types.BlockFinality) (types.FinalityStatement, error) {
	var stmt types.FinalityStatement
	if w == nil || len(w.ValidatorSet) == 0 {
		return stmt, fmt.Errorf("%w: empty validator set", types.ErrMalformedWitness)
	}
	committeeHash, err := w.ValidatorSet.Hash()
	if err != nil {
		return stmt, err
	}
	msg, err := types.ParseGrandpaMessage(w.Message[:])
	if err != nil {
		return stmt, err
	}

	suite := edwards25519.NewBlakeSHA256Ed25519()
	signed := make(map[types.ConsensusKey]struct{}, len(w.PreCommits))
	for i, pc := range w.PreCommits {
		if !w.ValidatorSet.Contains(pc.PublicKey) {
			return stmt, fmt.Errorf("%w: precommit %d signed by %s, not a committee member", ErrProofGeneration, i, pc.PublicKey)
		}
		if _, dup := signed[pc.PublicKey]; dup {
			return stmt, fmt.Errorf("%w: duplicate precommit by %s", ErrProofGeneration, pc.PublicKey)
		}
		pub := suite.Point()
		if err := pub.UnmarshalBinary(pc.PublicKey[:]); err != nil {
			return stmt, fmt.Errorf("%w: precommit key %s: %v", types.ErrMalformedWitness, pc.PublicKey, err)
		}
		if err := eddsa.Verify(pub, w.Message[:], pc.Signature[:]); err != nil {
			return stmt, fmt.Errorf("%w: precommit %d signature: %v", ErrProofGeneration, i, err)
		}
		signed[pc.PublicKey] = struct{}{}
	}
	if 3*len(signed) <= 2*len(w.ValidatorSet) {
		return stmt, fmt.Errorf("%w: %d of %d validators signed, no supermajority", ErrProofGeneration, len(signed), len(w.ValidatorSet))
	}

	stmt.CommitteeHash = committeeHash
	stmt.BlockHash = msg.BlockHash
	stmt.AuthoritySetID = msg.AuthoritySetID
	return stmt, nil
}

// NativeInclusion verifies storage witnesses against the state root of the
// supplied block header and yields native statements.
type NativeInclusion struct{}

func (NativeInclusion) ProveInclusion(ctx context.Context, w *types.StorageInclusion) (*Proof, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stmt, _, err := VerifyInclusion(w)
	if err != nil {
		return nil, err
	}
	return &Proof{Circuit: InclusionCircuit(w.StorageAddress), PublicInputs: stmt.PublicInputs()}, nil
}

// VerifyInclusion checks the trie path of w and returns its statement and the stored value.
func VerifyInclusion(w *types.StorageInclusion) (types.InclusionStatement, []byte, error) {
	var stmt types.InclusionStatement
	if w == nil {
		return stmt, nil, fmt.Errorf("%w: missing storage witness", types.ErrMalformedWitness)
	}
	var header ethtypes.Header
	if err := rlp.DecodeBytes(w.BlockHeader, &header); err != nil {
		return stmt, nil, fmt.Errorf("%w: block header: %v", types.ErrMalformedWitness, err)
	}
	for i, n := range w.BranchNodes {
		if n.TargetChild > 0x0f {
			return stmt, nil, fmt.Errorf("%w: branch node %d targets child %d", types.ErrMalformedWitness, i, n.TargetChild)
		}
	}

	proofDb := memorydb.New()
	for _, node := range append(branchData(w.BranchNodes), w.LeafNodeData) {
		_ = proofDb.Put(crypto.Keccak256(node), node)
	}
	value, err := trie.VerifyProof(header.Root, w.StorageAddress.Key(), proofDb)
	if err != nil {
		return stmt, nil, fmt.Errorf("%w: storage proof at %s: %v", ErrProofGeneration, w.StorageAddress, err)
	}
	if value == nil {
		return stmt, nil, fmt.Errorf("%w: no item stored at %s", ErrProofGeneration, w.StorageAddress)
	}

	stmt.BlockHash = types.Hash32(crypto.Keccak256Hash(w.BlockHeader))
	stmt.StorageItemHash = types.Hash32(crypto.Keccak256Hash(value))
	return stmt, common.CopyBytes(value), nil
}

func branchData(nodes []types.BranchNode) [][]byte {
	out := make([][]byte, len(nodes))
	for i, n := range nodes {
		out[i] = n.Data
	}
	return out
}

// RecordedPrimitives serves primitive proofs produced out of process. Records are
// read from dir as finality-<block hash>.json and inclusion-<address>-<block hash>.json.
type RecordedPrimitives struct {
	dir     string
	restore func(*types.ProofRecord) (*Proof, error)
}

func NewRecordedPrimitives(dir string, restore func(*types.ProofRecord) (*Proof, error)) *RecordedPrimitives {
	return &RecordedPrimitives{dir: dir, restore: restore}
}

func (r *RecordedPrimitives) ProveFinality(ctx context.Context, w *types.BlockFinality) (*Proof, error) {
	if w == nil {
		return nil, fmt.Errorf("%w: missing finality witness", types.ErrMalformedWitness)
	}
	msg, err := types.ParseGrandpaMessage(w.Message[:])
	if err != nil {
		return nil, err
	}
	return r.load(ctx, fmt.Sprintf("finality-%s.json", msg.BlockHash), FinalityCircuit)
}

func (r *RecordedPrimitives) ProveInclusion(ctx context.Context, w *types.StorageInclusion) (*Proof, error) {
	if w == nil {
		return nil, fmt.Errorf("%w: missing storage witness", types.ErrMalformedWitness)
	}
	block := types.Hash32(crypto.Keccak256Hash(w.BlockHeader))
	return r.load(ctx, fmt.Sprintf("inclusion-%s-%s.json", w.StorageAddress, block), InclusionCircuit(w.StorageAddress))
}

func (r *RecordedPrimitives) load(ctx context.Context, name, circuit string) (*Proof, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(filepath.Join(r.dir, name))
	if err != nil {
		return nil, fmt.Errorf("%w: primitive proof %s: %v", ErrProofGeneration, name, err)
	}
	var rec types.ProofRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	if rec.Circuit != circuit {
		return nil, fmt.Errorf("%w: %s holds a %s proof, want %s", ErrProofGeneration, name, rec.Circuit, circuit)
	}
	return r.restore(&rec)
}
