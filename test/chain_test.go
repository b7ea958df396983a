package test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/stretchr/testify/require"

	cfgtypes "github.com/kysee/zk-bridge/provers/types"
	"github.com/kysee/zk-bridge/proving"
	"github.com/kysee/zk-bridge/types"
)

var testMessage = []byte("bridge message: transfer 1000 units to 0x5d9f6433771c734130fea4bc814f7be3")

func newTestChain(t *testing.T) *Chain {
	s0, err := NewValidators(3)
	require.NoError(t, err)
	s1, err := NewValidators(4)
	require.NoError(t, err)
	chain, err := NewChain([][]*Validator{s0, s1}, testMessage)
	require.NoError(t, err)
	return chain
}

func proofNodesToDatabase(proofNodes [][]byte) *memorydb.Database {
	proofDb := memorydb.New()
	for _, node := range proofNodes {
		_ = proofDb.Put(crypto.Keccak256(node), node)
	}
	return proofDb
}

func TestChain_SessionKeysInclusion(t *testing.T) {
	chain := newTestChain(t)
	ctx := context.Background()

	fin, err := chain.FinalityProofForEpoch(ctx, 0)
	require.NoError(t, err)
	rpcProof, err := chain.NextSessionKeysInclusionProof(ctx, fin.Block)
	require.NoError(t, err)

	var header ethtypes.Header
	require.NoError(t, rlp.DecodeBytes(rpcProof.BlockHeader, &header))
	require.Equal(t, common.Hash(fin.Block), header.Hash())

	nodes := [][]byte{rpcProof.LeafNodeData}
	for _, n := range rpcProof.BranchNodesData {
		nodes = append(nodes, n.Data)
	}
	value, err := trie.VerifyProof(header.Root, types.NextSessionKeysAddress.Key(), proofNodesToDatabase(nodes))
	require.NoError(t, err)
	require.Equal(t, []byte(rpcProof.StoredData), value)

	committee, err := types.ExtractCommittee(types.BitsOf(value))
	require.NoError(t, err)
	require.Equal(t, chain.Committee(1), committee)

	// the first branch node is the root, and the path follows the address nibbles
	require.Equal(t, header.Root, crypto.Keccak256Hash(rpcProof.BranchNodesData[0].Data))
	require.Equal(t, types.NextSessionKeysAddress[0], rpcProof.BranchNodesData[0].TargetChild)

	si, err := rpcProof.ToStorageInclusion(types.NextSessionKeysAddress)
	require.NoError(t, err)
	stmt, stored, err := proving.VerifyInclusion(si)
	require.NoError(t, err)
	require.Equal(t, fin.Block, stmt.BlockHash)
	require.Equal(t, value, stored)

	// the message lives in the same state, at its own address
	msgProof, err := chain.SentMessageInclusionProof(ctx, fin.Block)
	require.NoError(t, err)
	si, err = msgProof.ToStorageInclusion(types.MessageAddress)
	require.NoError(t, err)
	_, stored, err = proving.VerifyInclusion(si)
	require.NoError(t, err)
	require.Equal(t, []byte(msgProof.StoredData), stored)
}

func TestChain_Finality(t *testing.T) {
	chain := newTestChain(t)
	ctx := context.Background()

	for epoch := uint64(0); epoch < 2; epoch++ {
		fin, err := chain.FinalityProofForEpoch(ctx, epoch)
		require.NoError(t, err)
		bf, err := fin.Proof.ToBlockFinality()
		require.NoError(t, err)

		stmt, err := proving.VerifyFinality(bf)
		require.NoError(t, err)
		want, err := chain.Committee(epoch).Hash()
		require.NoError(t, err)
		require.Equal(t, want, stmt.CommitteeHash)
		require.Equal(t, fin.Block, stmt.BlockHash)
		require.Equal(t, epoch, stmt.AuthoritySetID)
	}

	_, err := chain.FinalityProofForEpoch(ctx, 2)
	require.ErrorIs(t, err, cfgtypes.ErrWitnessUnavailable)
}

func TestChain_FinalityQuorum(t *testing.T) {
	chain := newTestChain(t)
	fin, err := chain.FinalityProofForEpoch(context.Background(), 1)
	require.NoError(t, err)

	// 3 of 4 signers is a supermajority, 2 of 4 is not
	fin.Proof.PreCommits = fin.Proof.PreCommits[:3]
	bf, err := fin.Proof.ToBlockFinality()
	require.NoError(t, err)
	_, err = proving.VerifyFinality(bf)
	require.NoError(t, err)

	fin.Proof.PreCommits = fin.Proof.PreCommits[:2]
	bf, err = fin.Proof.ToBlockFinality()
	require.NoError(t, err)
	_, err = proving.VerifyFinality(bf)
	require.ErrorIs(t, err, proving.ErrProofGeneration)

	// a repeated signer counts once
	fin.Proof.PreCommits = append(fin.Proof.PreCommits, fin.Proof.PreCommits[0])
	bf, err = fin.Proof.ToBlockFinality()
	require.NoError(t, err)
	_, err = proving.VerifyFinality(bf)
	require.ErrorIs(t, err, proving.ErrProofGeneration)

	// a forged signature is rejected
	fin, err = chain.FinalityProofForEpoch(context.Background(), 1)
	require.NoError(t, err)
	fin.Proof.PreCommits[0].Signature[0] ^= 0x01
	bf, err = fin.Proof.ToBlockFinality()
	require.NoError(t, err)
	_, err = proving.VerifyFinality(bf)
	require.ErrorIs(t, err, proving.ErrProofGeneration)
}
