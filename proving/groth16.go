package proving

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint/solver"
	"github.com/consensys/gnark/frontend"
	stdgroth16 "github.com/consensys/gnark/std/recursion/groth16"
	"github.com/rs/zerolog"

	"github.com/kysee/zk-bridge/circuits"
	"github.com/kysee/zk-bridge/types"
)

// Groth16Backend produces BN254 Groth16 proofs and embeds them through in-circuit
// recursive verification.
type Groth16Backend struct {
	keys *KeyStore
	log  zerolog.Logger
}

var _ Backend[circuit.RecursiveProof] = (*Groth16Backend)(nil)

func NewGroth16Backend(keys *KeyStore, log zerolog.Logger) *Groth16Backend {
	return &Groth16Backend{keys: keys, log: log.With().Str("backend", "groth16").Logger()}
}

func (b *Groth16Backend) Embed(inner *Proof) (circuit.RecursiveProof, circuit.RecursiveProof, error) {
	if inner == nil || !inner.Succinct() || inner.CCS == nil {
		return circuit.RecursiveProof{}, circuit.RecursiveProof{}, fmt.Errorf("cannot embed a proof without its circuit and groth16 proof")
	}
	placeholder, err := circuit.PlaceholderRecursiveProof(inner.CCS, inner.VerifyingKey)
	if err != nil {
		return circuit.RecursiveProof{}, circuit.RecursiveProof{}, fmt.Errorf("placeholder of %s: %w", inner.Circuit, err)
	}
	assignment, err := circuit.ValueOfRecursiveProof(inner.VerifyingKey, inner.Proof, inner.PublicWitness)
	if err != nil {
		return circuit.RecursiveProof{}, circuit.RecursiveProof{}, fmt.Errorf("assignment of %s: %w", inner.Circuit, err)
	}
	return placeholder, assignment, nil
}

func (b *Groth16Backend) Prove(ctx context.Context, name string, placeholder, assignment frontend.Circuit, opts ...ProveOption) (*Proof, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := newProveConfig(opts)

	keys, err := b.keys.Load(name, placeholder)
	if err != nil {
		return nil, err
	}
	full, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("witness of %s: %w", name, err)
	}
	public, err := full.Public()
	if err != nil {
		return nil, fmt.Errorf("public witness of %s: %w", name, err)
	}

	proverOpts := []backend.ProverOption{
		backend.WithSolverOptions(solver.WithLogger(b.log)),
	}
	var verifierOpts []backend.VerifierOption
	if cfg.onChain {
		proverOpts = append(proverOpts, backend.WithProverHashToFieldFunction(sha256.New()))
		verifierOpts = append(verifierOpts, backend.WithVerifierHashToFieldFunction(sha256.New()))
	} else {
		proverOpts = append(proverOpts, stdgroth16.GetNativeProverOptions(ecc.BN254.ScalarField(), ecc.BN254.ScalarField()))
		verifierOpts = append(verifierOpts, stdgroth16.GetNativeVerifierOptions(ecc.BN254.ScalarField(), ecc.BN254.ScalarField()))
	}

	start := time.Now()
	proof, err := groth16.Prove(keys.CCS, keys.PK, full, proverOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrProofGeneration, name, err)
	}
	if err := groth16.Verify(proof, keys.VK, public, verifierOpts...); err != nil {
		return nil, fmt.Errorf("%w: %s does not verify: %v", ErrProofGeneration, name, err)
	}
	b.log.Info().Str("circuit", name).Dur("took", time.Since(start)).Msg("proof generated")

	inputs, err := witnessValues(public)
	if err != nil {
		return nil, err
	}
	return &Proof{
		Circuit:       name,
		PublicInputs:  inputs,
		CCS:           keys.CCS,
		VerifyingKey:  keys.VK,
		Proof:         proof,
		PublicWitness: public,
	}, nil
}

// Restore rebuilds a proof from its record. The circuit must be known to the key
// store, either set up earlier or provided on disk by the producer of the record.
func (b *Groth16Backend) Restore(rec *types.ProofRecord) (*Proof, error) {
	inputs, err := parsePublicInputs(rec)
	if err != nil {
		return nil, err
	}
	proof, vk, pw, err := readSuccinct(rec)
	if err != nil {
		return nil, err
	}
	ccs, err := b.keys.ConstraintSystem(rec.Circuit)
	if err != nil {
		return nil, err
	}
	return &Proof{
		Circuit:       rec.Circuit,
		PublicInputs:  inputs,
		CCS:           ccs,
		VerifyingKey:  vk,
		Proof:         proof,
		PublicWitness: pw,
	}, nil
}
