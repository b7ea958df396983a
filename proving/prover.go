package proving

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kysee/zk-bridge/circuits"
	"github.com/kysee/zk-bridge/types"
)

const (
	CommitteeHashCircuit       = "committee-hash"
	CommitteeExtractionCircuit = "committee-extraction"
	EpochTransitionCircuit     = "epoch-transition"
	GenesisCircuit             = "genesis"
)

// StepCircuit names the step circuit producing the proof of epoch. Each step
// embeds the verifying key of the previous proof, so every epoch has its own circuit.
func StepCircuit(epoch uint64) string {
	return fmt.Sprintf("step-%d", epoch)
}

func MessageSentCircuit(epoch uint64) string {
	return fmt.Sprintf("message-sent-%d", epoch)
}

// EpochWitness is everything needed to prove one epoch transition.
type EpochWitness struct {
	Finality        *types.BlockFinality
	Inclusion       *types.StorageInclusion
	CommitteeRecord []byte
}

// Prover composes primitive proofs into epoch proofs and the terminal message proof.
type Prover[P circuit.Subproof] struct {
	backend   Backend[P]
	finality  FinalityPrimitive
	inclusion InclusionPrimitive
	genesis   types.GenesisConfig
	log       zerolog.Logger
}

func NewProver[P circuit.Subproof](
	backend Backend[P],
	finality FinalityPrimitive,
	inclusion InclusionPrimitive,
	genesis types.GenesisConfig,
	log zerolog.Logger,
) *Prover[P] {
	return &Prover[P]{
		backend:   backend,
		finality:  finality,
		inclusion: inclusion,
		genesis:   genesis,
		log:       log,
	}
}

func (p *Prover[P]) Backend() Backend[P] {
	return p.backend
}

// CommitteeHash proves the commitment of a padded committee.
func (p *Prover[P]) CommitteeHash(ctx context.Context, keys [types.MaxValidatorCount]types.ConsensusKey) (*Proof, error) {
	stmt := types.CommitteeHashStatement{Hash: types.CommitteeHash(keys), ValidatorSet: keys}
	assignment := &circuit.CommitteeHashCircuit{
		Hash:         circuit.ValueOfBytes32(stmt.Hash),
		ValidatorSet: circuit.ValueOfCommittee(keys),
	}
	return p.backend.Prove(ctx, CommitteeHashCircuit, &circuit.CommitteeHashCircuit{}, assignment)
}

// CommitteeExtraction proves that record, included in the block finalized by
// finality, publishes the next committee.
func (p *Prover[P]) CommitteeExtraction(ctx context.Context, finality, inclusion *Proof, record []byte) (*Proof, error) {
	if err := expectCircuit(finality, FinalityCircuit); err != nil {
		return nil, err
	}
	if err := expectCircuit(inclusion, InclusionCircuit(types.NextSessionKeysAddress)); err != nil {
		return nil, err
	}
	fin, err := types.ParseFinalityStatement(finality.PublicInputs)
	if err != nil {
		return nil, err
	}
	if _, err := types.ParseInclusionStatement(inclusion.PublicInputs); err != nil {
		return nil, err
	}
	keys, err := types.RecordConsensusKeys(record)
	if err != nil {
		return nil, err
	}
	bits, err := circuit.ValueOfCommitteeRecord(record)
	if err != nil {
		return nil, err
	}

	finPlaceholder, finAssignment, err := p.backend.Embed(finality)
	if err != nil {
		return nil, err
	}
	incPlaceholder, incAssignment, err := p.backend.Embed(inclusion)
	if err != nil {
		return nil, err
	}
	placeholder := &circuit.CommitteeExtractionCircuit[P]{Finality: finPlaceholder, Inclusion: incPlaceholder}
	assignment := &circuit.CommitteeExtractionCircuit[P]{
		Finality:           finAssignment,
		Inclusion:          incAssignment,
		CommitteeRecord:    bits,
		PriorCommitteeHash: circuit.ValueOfBytes32(fin.CommitteeHash),
		EpochID:            fin.AuthoritySetID,
		NextCommittee:      circuit.ValueOfCommittee(keys),
	}
	return p.backend.Prove(ctx, CommitteeExtractionCircuit, placeholder, assignment)
}

// EpochTransition proves the handover recorded in w. The primitive proofs, the
// committee commitment and the extraction are produced concurrently where possible.
func (p *Prover[P]) EpochTransition(ctx context.Context, w *EpochWitness) (*Proof, error) {
	if w == nil || w.Finality == nil || w.Inclusion == nil {
		return nil, fmt.Errorf("%w: incomplete epoch witness", types.ErrMalformedWitness)
	}
	if w.Inclusion.StorageAddress != types.NextSessionKeysAddress {
		return nil, fmt.Errorf("%w: committee record included at %s, want %s",
			types.ErrMalformedWitness, w.Inclusion.StorageAddress, types.NextSessionKeysAddress)
	}
	keys, err := types.RecordConsensusKeys(w.CommitteeRecord)
	if err != nil {
		return nil, err
	}

	var finality, inclusion, committeeHash, extraction *Proof
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		finality, err = p.finality.ProveFinality(gctx, w.Finality)
		return err
	})
	g.Go(func() (err error) {
		inclusion, err = p.inclusion.ProveInclusion(gctx, w.Inclusion)
		return err
	})
	g.Go(func() (err error) {
		committeeHash, err = p.CommitteeHash(gctx, keys)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if extraction, err = p.CommitteeExtraction(ctx, finality, inclusion, w.CommitteeRecord); err != nil {
		return nil, err
	}

	ext, err := types.ParseExtractionStatement(extraction.PublicInputs)
	if err != nil {
		return nil, err
	}
	out := types.EpochProof{
		PriorCommitteeHash: ext.PriorCommitteeHash,
		NextCommitteeHash:  types.CommitteeHash(keys),
		EpochID:            ext.EpochID,
	}

	hashPlaceholder, hashAssignment, err := p.backend.Embed(committeeHash)
	if err != nil {
		return nil, err
	}
	extPlaceholder, extAssignment, err := p.backend.Embed(extraction)
	if err != nil {
		return nil, err
	}
	placeholder := &circuit.EpochTransitionCircuit[P]{CommitteeHash: hashPlaceholder, Extraction: extPlaceholder}
	assignment := &circuit.EpochTransitionCircuit[P]{
		CommitteeHash: hashAssignment,
		Extraction:    extAssignment,
		Epoch:         circuit.ValueOfEpoch(out),
	}
	proof, err := p.backend.Prove(ctx, EpochTransitionCircuit, placeholder, assignment)
	if err != nil {
		return nil, err
	}
	p.log.Info().
		Uint64("epoch", out.EpochID).
		Str("prior", out.PriorCommitteeHash.String()).
		Str("next", out.NextCommitteeHash.String()).
		Msg("epoch transition proven")
	return proof, nil
}

// Genesis proves the first transition of the chain, anchored at the configured committee.
func (p *Prover[P]) Genesis(ctx context.Context, w *EpochWitness) (*Proof, error) {
	transition, err := p.EpochTransition(ctx, w)
	if err != nil {
		return nil, err
	}
	out, err := transition.Epoch()
	if err != nil {
		return nil, err
	}
	tPlaceholder, tAssignment, err := p.backend.Embed(transition)
	if err != nil {
		return nil, err
	}
	placeholder := &circuit.GenesisCircuit[P]{Transition: tPlaceholder, Genesis: p.genesis}
	assignment := &circuit.GenesisCircuit[P]{Transition: tAssignment, Genesis: p.genesis, Epoch: circuit.ValueOfEpoch(out)}
	return p.backend.Prove(ctx, GenesisCircuit, placeholder, assignment)
}

// Step extends prev, a genesis or step proof, by the transition recorded in w.
func (p *Prover[P]) Step(ctx context.Context, prev *Proof, w *EpochWitness) (*Proof, error) {
	if prev == nil {
		return nil, fmt.Errorf("%w: missing previous proof", types.ErrMalformedWitness)
	}
	if _, err := prev.Epoch(); err != nil {
		return nil, err
	}
	transition, err := p.EpochTransition(ctx, w)
	if err != nil {
		return nil, err
	}
	out, err := transition.Epoch()
	if err != nil {
		return nil, err
	}

	prevPlaceholder, prevAssignment, err := p.backend.Embed(prev)
	if err != nil {
		return nil, err
	}
	tPlaceholder, tAssignment, err := p.backend.Embed(transition)
	if err != nil {
		return nil, err
	}
	placeholder := &circuit.StepCircuit[P]{Previous: prevPlaceholder, Transition: tPlaceholder}
	assignment := &circuit.StepCircuit[P]{
		Previous:   prevAssignment,
		Transition: tAssignment,
		Epoch:      circuit.ValueOfEpoch(out),
	}
	return p.backend.Prove(ctx, StepCircuit(out.EpochID), placeholder, assignment)
}

// MessageSent proves that the message stored in the block finalized by finality
// was sent during the epoch following prev. The result targets the on-chain verifier.
func (p *Prover[P]) MessageSent(ctx context.Context, prev *Proof, finality *types.BlockFinality, inclusion *types.StorageInclusion) (*Proof, error) {
	if prev == nil || finality == nil || inclusion == nil {
		return nil, fmt.Errorf("%w: incomplete message witness", types.ErrMalformedWitness)
	}
	if inclusion.StorageAddress != types.MessageAddress {
		return nil, fmt.Errorf("%w: message included at %s, want %s",
			types.ErrMalformedWitness, inclusion.StorageAddress, types.MessageAddress)
	}
	prevEpoch, err := prev.Epoch()
	if err != nil {
		return nil, err
	}

	var finProof, incProof *Proof
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		finProof, err = p.finality.ProveFinality(gctx, finality)
		return err
	})
	g.Go(func() (err error) {
		incProof, err = p.inclusion.ProveInclusion(gctx, inclusion)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := expectCircuit(finProof, FinalityCircuit); err != nil {
		return nil, err
	}
	if err := expectCircuit(incProof, InclusionCircuit(types.MessageAddress)); err != nil {
		return nil, err
	}
	fin, err := types.ParseFinalityStatement(finProof.PublicInputs)
	if err != nil {
		return nil, err
	}
	inc, err := types.ParseInclusionStatement(incProof.PublicInputs)
	if err != nil {
		return nil, err
	}
	out := types.MessageSentStatement{
		BlockHash:      fin.BlockHash,
		MessageHash:    inc.StorageItemHash,
		AuthoritySetID: fin.AuthoritySetID,
	}

	embeds := make([][2]P, 0, 3)
	for _, inner := range []*Proof{prev, finProof, incProof} {
		placeholder, assignment, err := p.backend.Embed(inner)
		if err != nil {
			return nil, err
		}
		embeds = append(embeds, [2]P{placeholder, assignment})
	}
	placeholder := &circuit.MessageSentCircuit[P]{Previous: embeds[0][0], Finality: embeds[1][0], Inclusion: embeds[2][0]}
	assignment := &circuit.MessageSentCircuit[P]{
		Previous:  embeds[0][1],
		Finality:  embeds[1][1],
		Inclusion: embeds[2][1],
		Message:   circuit.ValueOfMessageSent(out),
	}
	return p.backend.Prove(ctx, MessageSentCircuit(prevEpoch.EpochID+1), placeholder, assignment, OnChain())
}

// expectCircuit checks that a primitive proof comes from the circuit the composer embeds.
func expectCircuit(proof *Proof, name string) error {
	if proof == nil {
		return fmt.Errorf("%w: missing %s proof", types.ErrMalformedWitness, name)
	}
	if proof.Circuit != name {
		return fmt.Errorf("%w: got a %s proof where %s is expected", ErrProofGeneration, proof.Circuit, name)
	}
	return nil
}
