package relayer

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/kysee/zk-bridge/circuits"
	"github.com/kysee/zk-bridge/provers/db"
	cfgtypes "github.com/kysee/zk-bridge/provers/types"
	"github.com/kysee/zk-bridge/proving"
	"github.com/kysee/zk-bridge/test"
	"github.com/kysee/zk-bridge/types"
	"github.com/kysee/zk-bridge/verifiers/bridge"
)

var bridgeMessage = []byte("bridge message: transfer 1000 units to 0x5d9f6433771c734130fea4bc814f7be3")

type scenario struct {
	chain   *test.Chain
	genesis types.GenesisConfig
	// committees of epoch 0 and 2; epoch 1 repeats epoch 0
	s0, s2 []*test.Validator
}

// newScenario builds a chain where seat 1 of the genesis committee is replaced
// by a new validator from epoch 2 on.
func newScenario(t *testing.T) *scenario {
	s0, err := test.NewValidators(3)
	require.NoError(t, err)
	replacement, err := test.NewValidator()
	require.NoError(t, err)
	s2 := []*test.Validator{s0[0], replacement, s0[2]}

	chain, err := test.NewChain([][]*test.Validator{s0, s0, s2}, bridgeMessage)
	require.NoError(t, err)
	genesis, err := chain.Genesis()
	require.NoError(t, err)
	return &scenario{chain: chain, genesis: genesis, s0: s0, s2: s2}
}

func newNativeRelayer(s *scenario, genesis types.GenesisConfig, fetcher cfgtypes.Fetcher, opts ...Option) *Relayer[circuit.Statement] {
	log := zerolog.Nop()
	prover := proving.NewProver[circuit.Statement](proving.NewNativeBackend(log), proving.NativeFinality{}, proving.NativeInclusion{}, genesis, log)
	opts = append([]Option{WithPollInterval(time.Millisecond)}, opts...)
	return NewRelayer(genesis, fetcher, prover, bridge.PassthroughBackend{}, opts...)
}

func committeeHash(t *testing.T, set []*test.Validator) types.Hash32 {
	h, err := test.CommitteeOf(set).Hash()
	require.NoError(t, err)
	return h
}

func TestRelayer_GenesisStepFinalize(t *testing.T) {
	s := newScenario(t)
	r := newNativeRelayer(s, s.genesis, s.chain)
	ctx := context.Background()

	genesisProof, err := r.Genesis(ctx)
	require.NoError(t, err)
	g, err := genesisProof.Epoch()
	require.NoError(t, err)
	require.Equal(t, types.EpochProof{
		PriorCommitteeHash: s.genesis.CommitteeHash,
		NextCommitteeHash:  committeeHash(t, s.s0),
		EpochID:            0,
	}, g)

	stepProof, err := r.Step(ctx, genesisProof, 0)
	require.NoError(t, err)
	st, err := stepProof.Epoch()
	require.NoError(t, err)
	require.Equal(t, uint64(1), st.EpochID)
	require.Equal(t, g.NextCommitteeHash, st.PriorCommitteeHash)
	require.Equal(t, committeeHash(t, s.s2), st.NextCommitteeHash)
	require.Equal(t, proving.StepCircuit(1), stepProof.Circuit)

	out, err := r.Finalize(ctx, stepProof, 1)
	require.NoError(t, err)

	var rec types.ProofRecord
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	require.Equal(t, proving.MessageSentCircuit(2), rec.Circuit)
	restored, err := proving.NewNativeBackend(zerolog.Nop()).Restore(&rec)
	require.NoError(t, err)
	msg, err := types.ParseMessageSentStatement(restored.PublicInputs)
	require.NoError(t, err)
	require.Equal(t, s.chain.Block(2).Hash, msg.BlockHash)
	require.Equal(t, types.Hash32(crypto.Keccak256Hash(bridgeMessage)), msg.MessageHash)
	require.Equal(t, uint64(2), msg.AuthoritySetID)
}

func TestRelayer_GenesisRejectsUntrustedCommittee(t *testing.T) {
	s := newScenario(t)
	genesis := s.genesis
	genesis.CommitteeHash[0] ^= 0xff
	r := newNativeRelayer(s, genesis, s.chain)

	_, err := r.Genesis(context.Background())
	require.ErrorIs(t, err, proving.ErrProofGeneration)
}

func TestRelayer_StepRejectsSkippedEpoch(t *testing.T) {
	s := newScenario(t)
	r := newNativeRelayer(s, s.genesis, s.chain)
	ctx := context.Background()

	genesisProof, err := r.Genesis(ctx)
	require.NoError(t, err)
	// claims the genesis proof covers epoch 1, so the transition of epoch 2 is fetched
	_, err = r.Step(ctx, genesisProof, 1)
	require.ErrorIs(t, err, proving.ErrProofGeneration)
}

func TestRelayer_StepWitnessUnavailable(t *testing.T) {
	s := newScenario(t)
	r := newNativeRelayer(s, s.genesis, s.chain)
	ctx := context.Background()

	genesisProof, err := r.Genesis(ctx)
	require.NoError(t, err)
	_, err = r.Step(ctx, genesisProof, 2)
	require.ErrorIs(t, err, cfgtypes.ErrWitnessUnavailable)

	_, err = r.Finalize(ctx, genesisProof, 2)
	require.ErrorIs(t, err, cfgtypes.ErrWitnessUnavailable)
}

func TestRelayer_FinalizeRejectsStaleCommittee(t *testing.T) {
	s := newScenario(t)
	r := newNativeRelayer(s, s.genesis, s.chain)
	ctx := context.Background()

	genesisProof, err := r.Genesis(ctx)
	require.NoError(t, err)
	// the block of epoch 2 is finalized by the committee after the step, not the genesis one
	_, err = r.Finalize(ctx, genesisProof, 1)
	require.ErrorIs(t, err, proving.ErrProofGeneration)
}

// tamperFetcher alters the session keys witnesses served by the wrapped fetcher.
type tamperFetcher struct {
	cfgtypes.Fetcher
	fromBlock *types.Hash32
	mutate    func(*types.RPCStorageInclusionProof)
}

func (f *tamperFetcher) NextSessionKeysInclusionProof(ctx context.Context, block types.Hash32) (*types.RPCStorageInclusionProof, error) {
	if f.fromBlock != nil {
		block = *f.fromBlock
	}
	p, err := f.Fetcher.NextSessionKeysInclusionProof(ctx, block)
	if err == nil && f.mutate != nil {
		f.mutate(p)
	}
	return p, err
}

func TestRelayer_TamperedCommitteeRecord(t *testing.T) {
	s := newScenario(t)
	fetcher := &tamperFetcher{Fetcher: s.chain, mutate: func(p *types.RPCStorageInclusionProof) {
		p.StoredData[1+types.GrandpaKeyIndex*types.ConsensusKeySize] ^= 0x01
	}}
	r := newNativeRelayer(s, s.genesis, fetcher)

	_, err := r.Genesis(context.Background())
	require.ErrorIs(t, err, proving.ErrProofGeneration)
}

func TestRelayer_CrossBlockInclusion(t *testing.T) {
	s := newScenario(t)
	other := s.chain.Block(1).Hash
	fetcher := &tamperFetcher{Fetcher: s.chain, fromBlock: &other}
	r := newNativeRelayer(s, s.genesis, fetcher)

	_, err := r.Genesis(context.Background())
	require.ErrorIs(t, err, proving.ErrProofGeneration)
}

// countingFetcher counts finality requests per epoch.
type countingFetcher struct {
	cfgtypes.Fetcher
	mu    sync.Mutex
	calls map[uint64]int
}

func (f *countingFetcher) FinalityProofForEpoch(ctx context.Context, epoch uint64) (*cfgtypes.FinalityProofResponse, error) {
	f.mu.Lock()
	f.calls[epoch]++
	f.mu.Unlock()
	return f.Fetcher.FinalityProofForEpoch(ctx, epoch)
}

func TestRelayer_RunResumesFromStore(t *testing.T) {
	s := newScenario(t)
	ctx := context.Background()
	store, err := db.NewPebbleStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()

	reg := prometheus.NewRegistry()
	r := newNativeRelayer(s, s.genesis, s.chain, WithStore(store), WithMetrics(NewMetrics("test", reg)))
	first, err := r.Run(ctx, 1)
	require.NoError(t, err)

	epoch, rec, err := store.LatestEpochProof()
	require.NoError(t, err)
	require.Equal(t, uint64(1), epoch)
	require.Equal(t, proving.StepCircuit(1), rec.Circuit)

	counting := &countingFetcher{Fetcher: s.chain, calls: make(map[uint64]int)}
	r = newNativeRelayer(s, s.genesis, counting, WithStore(store))
	second, err := r.Run(ctx, 1)
	require.NoError(t, err)
	require.JSONEq(t, first, second)
	require.Zero(t, counting.calls[0])
	require.Zero(t, counting.calls[1])
}

func TestRelayer_RunFromReplay(t *testing.T) {
	s := newScenario(t)
	dir := t.TempDir()
	require.NoError(t, s.chain.WriteReplay(dir))

	ctx := context.Background()
	live, err := newNativeRelayer(s, s.genesis, s.chain).Run(ctx, 1)
	require.NoError(t, err)
	replayed, err := newNativeRelayer(s, s.genesis, NewFileFetcher(dir)).Run(ctx, 1)
	require.NoError(t, err)
	require.JSONEq(t, live, replayed)
}

func TestListener_StopsWithContext(t *testing.T) {
	s := newScenario(t)
	l := NewListener(s.chain, time.Millisecond, zerolog.Nop())

	require.NoError(t, l.WaitForEpochChange(context.Background(), 2))
	block, err := l.WaitForEpochBlock(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, s.chain.Block(2).Hash, block)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	// the simulated chain never reaches epoch 5
	require.ErrorIs(t, l.WaitForEpochChange(ctx, 5), context.DeadlineExceeded)
}
