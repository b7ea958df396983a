package proving

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"

	"github.com/kysee/zk-bridge/types"
)

// ErrProofGeneration is returned when a circuit's constraints are not satisfied by
// the supplied witness, or when the underlying prover fails.
var ErrProofGeneration = errors.New("proof generation failed")

// Proof is a produced proof together with what a parent circuit needs to embed it.
// CCS, VerifyingKey, Proof and PublicWitness are nil for native statements.
type Proof struct {
	Circuit      string
	PublicInputs []*big.Int

	CCS           constraint.ConstraintSystem
	VerifyingKey  groth16.VerifyingKey
	Proof         groth16.Proof
	PublicWitness witness.Witness
}

func (p *Proof) Succinct() bool {
	return p.Proof != nil && p.VerifyingKey != nil && p.PublicWitness != nil
}

// Epoch parses the public inputs as a transition, genesis or step statement.
func (p *Proof) Epoch() (types.EpochProof, error) {
	return types.ParseEpochProof(p.PublicInputs)
}

// Record serializes the proof for storage and export.
func (p *Proof) Record() (*types.ProofRecord, error) {
	rec := &types.ProofRecord{
		Circuit:      p.Circuit,
		PublicInputs: make([]string, len(p.PublicInputs)),
	}
	for i, v := range p.PublicInputs {
		rec.PublicInputs[i] = v.String()
	}
	if !p.Succinct() {
		return rec, nil
	}

	var buf bytes.Buffer
	if _, err := p.Proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write proof: %w", err)
	}
	rec.Proof = bytes.Clone(buf.Bytes())
	buf.Reset()
	if _, err := p.VerifyingKey.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write verifying key: %w", err)
	}
	rec.VerifyingKey = bytes.Clone(buf.Bytes())
	pw, err := p.PublicWitness.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("write public witness: %w", err)
	}
	rec.PublicWitness = pw
	return rec, nil
}

func parsePublicInputs(rec *types.ProofRecord) ([]*big.Int, error) {
	out := make([]*big.Int, len(rec.PublicInputs))
	for i, s := range rec.PublicInputs {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("%w: public input %d of %s is not a decimal integer", types.ErrLayout, i, rec.Circuit)
		}
		out[i] = v
	}
	return out, nil
}

// readSuccinct decodes the Groth16 parts of a record.
func readSuccinct(rec *types.ProofRecord) (groth16.Proof, groth16.VerifyingKey, witness.Witness, error) {
	if !rec.Succinct() {
		return nil, nil, nil, fmt.Errorf("record of %s carries no proof", rec.Circuit)
	}
	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(rec.Proof)); err != nil {
		return nil, nil, nil, fmt.Errorf("read proof: %w", err)
	}
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(bytes.NewReader(rec.VerifyingKey)); err != nil {
		return nil, nil, nil, fmt.Errorf("read verifying key: %w", err)
	}
	pw, err := witness.New(ecc.BN254.ScalarField())
	if err != nil {
		return nil, nil, nil, err
	}
	if err := pw.UnmarshalBinary(rec.PublicWitness); err != nil {
		return nil, nil, nil, fmt.Errorf("read public witness: %w", err)
	}
	return proof, vk, pw, nil
}

// publicInputsOf evaluates the public part of an assignment.
func publicInputsOf(assignment frontend.Circuit) ([]*big.Int, error) {
	pw, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return nil, fmt.Errorf("public witness: %w", err)
	}
	return witnessValues(pw)
}

func witnessValues(w witness.Witness) ([]*big.Int, error) {
	vec, ok := w.Vector().(fr.Vector)
	if !ok {
		return nil, fmt.Errorf("unexpected witness vector type %T", w.Vector())
	}
	out := make([]*big.Int, len(vec))
	for i := range vec {
		out[i] = vec[i].BigInt(new(big.Int))
	}
	return out, nil
}
