package relayer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kysee/zk-bridge/circuits"
	"github.com/kysee/zk-bridge/provers/db"
	cfgtypes "github.com/kysee/zk-bridge/provers/types"
	"github.com/kysee/zk-bridge/proving"
	"github.com/kysee/zk-bridge/types"
	"github.com/kysee/zk-bridge/verifiers/bridge"
)

// ProofStore persists the proof chain so a restarted relayer resumes from the
// latest proven epoch.
type ProofStore interface {
	PutEpochProof(epoch uint64, rec *types.ProofRecord) error
	LatestEpochProof() (uint64, *types.ProofRecord, error)
}

type options struct {
	store        ProofStore
	metrics      *Metrics
	log          zerolog.Logger
	pollInterval time.Duration
}

type Option func(*options)

func WithStore(store ProofStore) Option {
	return func(o *options) { o.store = store }
}

func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.pollInterval = d }
}

// Relayer drives the proof chain: a genesis proof, one step per epoch and the
// terminal message proof handed to the export backend.
type Relayer[P circuit.Subproof] struct {
	genesis  types.GenesisConfig
	fetcher  cfgtypes.Fetcher
	listener *Listener
	prover   *proving.Prover[P]
	exporter bridge.Backend
	store    ProofStore
	metrics  *Metrics
	log      zerolog.Logger
}

func NewRelayer[P circuit.Subproof](
	genesis types.GenesisConfig,
	fetcher cfgtypes.Fetcher,
	prover *proving.Prover[P],
	exporter bridge.Backend,
	opts ...Option,
) *Relayer[P] {
	o := options{log: zerolog.Nop(), pollInterval: 6 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	return &Relayer[P]{
		genesis:  genesis,
		fetcher:  fetcher,
		listener: NewListener(fetcher, o.pollInterval, o.log),
		prover:   prover,
		exporter: exporter,
		store:    o.store,
		metrics:  o.metrics,
		log:      o.log,
	}
}

// Genesis proves the committee change of the configured starting epoch.
func (r *Relayer[P]) Genesis(ctx context.Context) (*proving.Proof, error) {
	epoch := r.genesis.StartingEpochID
	w, err := r.epochWitness(ctx, epoch)
	if err != nil {
		return nil, err
	}
	return r.timed("genesis", func() (*proving.Proof, error) {
		return r.prover.Genesis(ctx, w)
	})
}

// Step extends prev, the proof of epoch, with the committee change of epoch+1.
func (r *Relayer[P]) Step(ctx context.Context, prev *proving.Proof, epoch uint64) (*proving.Proof, error) {
	w, err := r.epochWitness(ctx, epoch+1)
	if err != nil {
		return nil, err
	}
	return r.timed("step", func() (*proving.Proof, error) {
		return r.prover.Step(ctx, prev, w)
	})
}

// Finalize proves the message sent in a block of epoch+1, on top of prev, the
// proof of epoch, and returns the export backend's result.
func (r *Relayer[P]) Finalize(ctx context.Context, prev *proving.Proof, epoch uint64) (string, error) {
	target := epoch + 1
	block, err := r.fetcher.SearchForEpochBlock(ctx, target)
	if err != nil {
		return "", unavailable(fmt.Sprintf("block of epoch %d", target), err)
	}
	fin, err := r.fetcher.FinalityProof(ctx, block)
	if err != nil {
		return "", unavailable(fmt.Sprintf("finality of block %s", block), err)
	}
	finality, err := fin.Proof.ToBlockFinality()
	if err != nil {
		return "", err
	}
	msg, err := r.fetcher.SentMessageInclusionProof(ctx, block)
	if err != nil {
		return "", unavailable(fmt.Sprintf("message of block %s", block), err)
	}
	inclusion, err := msg.ToStorageInclusion(types.MessageAddress)
	if err != nil {
		return "", err
	}

	proof, err := r.timed("message", func() (*proving.Proof, error) {
		return r.prover.MessageSent(ctx, prev, finality, inclusion)
	})
	if err != nil {
		return "", err
	}
	rec, err := proof.Record()
	if err != nil {
		return "", err
	}
	out, err := bridge.Export(r.exporter, rec)
	if err != nil {
		r.metrics.IncFailure("export")
		return "", err
	}
	r.log.Info().Str("circuit", rec.Circuit).Str("block", block.String()).Msg("message proof exported")
	return out, nil
}

// Run proves the chain up to epoch until, resuming from the store when possible,
// then finalizes the message sent in epoch until+1. Proofs are stored only once
// they succeed.
func (r *Relayer[P]) Run(ctx context.Context, until uint64) (string, error) {
	prev, epoch, err := r.resume()
	if err != nil {
		return "", err
	}
	if prev == nil {
		epoch = r.genesis.StartingEpochID
		r.log.Info().Uint64("epoch", epoch).Msg("proving genesis")
		if err := r.listener.WaitForEpochChange(ctx, epoch); err != nil {
			return "", err
		}
		if prev, err = r.Genesis(ctx); err != nil {
			return "", fmt.Errorf("genesis: %w", err)
		}
		if err := r.persist(epoch, prev); err != nil {
			return "", err
		}
	}

	for epoch < until {
		r.log.Info().Uint64("epoch", epoch+1).Msg("proving step")
		if err := r.listener.WaitForEpochChange(ctx, epoch+1); err != nil {
			return "", err
		}
		next, err := r.Step(ctx, prev, epoch)
		if err != nil {
			return "", fmt.Errorf("step to epoch %d: %w", epoch+1, err)
		}
		epoch++
		prev = next
		if err := r.persist(epoch, prev); err != nil {
			return "", err
		}
	}

	if _, err := r.listener.WaitForEpochBlock(ctx, epoch+1); err != nil {
		return "", err
	}
	return r.Finalize(ctx, prev, epoch)
}

func (r *Relayer[P]) resume() (*proving.Proof, uint64, error) {
	if r.store == nil {
		return nil, 0, nil
	}
	epoch, rec, err := r.store.LatestEpochProof()
	if errors.Is(err, db.ErrNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	proof, err := r.prover.Backend().Restore(rec)
	if err != nil {
		return nil, 0, fmt.Errorf("restoring proof of epoch %d: %w", epoch, err)
	}
	stmt, err := proof.Epoch()
	if err != nil {
		return nil, 0, err
	}
	if stmt.EpochID != epoch || epoch < r.genesis.StartingEpochID {
		return nil, 0, fmt.Errorf("stored proof of epoch %d states epoch %d", epoch, stmt.EpochID)
	}
	r.log.Info().Uint64("epoch", epoch).Str("circuit", rec.Circuit).Msg("resuming from stored proof")
	return proof, epoch, nil
}

func (r *Relayer[P]) persist(epoch uint64, proof *proving.Proof) error {
	r.metrics.SetProvenEpoch(epoch)
	if r.store == nil {
		return nil
	}
	rec, err := proof.Record()
	if err != nil {
		return err
	}
	return r.store.PutEpochProof(epoch, rec)
}

// epochWitness fetches the witnesses of the committee change of epoch.
func (r *Relayer[P]) epochWitness(ctx context.Context, epoch uint64) (*proving.EpochWitness, error) {
	fin, err := r.fetcher.FinalityProofForEpoch(ctx, epoch)
	if err != nil {
		return nil, unavailable(fmt.Sprintf("finality of epoch %d", epoch), err)
	}
	finality, err := fin.Proof.ToBlockFinality()
	if err != nil {
		return nil, err
	}
	keys, err := r.fetcher.NextSessionKeysInclusionProof(ctx, fin.Block)
	if err != nil {
		return nil, unavailable(fmt.Sprintf("session keys of block %s", fin.Block), err)
	}
	inclusion, err := keys.ToStorageInclusion(types.NextSessionKeysAddress)
	if err != nil {
		return nil, err
	}
	return &proving.EpochWitness{
		Finality:        finality,
		Inclusion:       inclusion,
		CommitteeRecord: keys.StoredData,
	}, nil
}

func (r *Relayer[P]) timed(stage string, prove func() (*proving.Proof, error)) (*proving.Proof, error) {
	start := time.Now()
	proof, err := prove()
	if err != nil {
		r.metrics.IncFailure(stage)
		return nil, err
	}
	r.metrics.ObserveProof(stage, time.Since(start))
	return proof, nil
}

func unavailable(what string, err error) error {
	if errors.Is(err, cfgtypes.ErrWitnessUnavailable) {
		return fmt.Errorf("%s: %w", what, err)
	}
	return fmt.Errorf("%w: %s: %w", cfgtypes.ErrWitnessUnavailable, what, err)
}
