package circuit

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/algebra/emulated/sw_bn254"
	"github.com/consensys/gnark/std/math/emulated"
	stdgroth16 "github.com/consensys/gnark/std/recursion/groth16"
)

// Subproof is a proof embedded in a parent circuit. PublicInputs binds the embedded
// proof into the parent's constraints and returns its public inputs in declaration order.
type Subproof interface {
	PublicInputs(api frontend.API) ([]frontend.Variable, error)
}

type (
	FR = sw_bn254.ScalarField
	G1 = sw_bn254.G1Affine
	G2 = sw_bn254.G2Affine
	GT = sw_bn254.GTEl
)

// RecursiveProof is a BN254 Groth16 proof verified inside a BN254 circuit.
// The verifying key is a circuit constant, so a parent circuit accepts proofs
// of exactly one inner circuit.
type RecursiveProof struct {
	Proof        stdgroth16.Proof[G1, G2]
	VerifyingKey stdgroth16.VerifyingKey[G1, G2, GT] `gnark:"-"`
	Witness      stdgroth16.Witness[FR]
}

func (p RecursiveProof) PublicInputs(api frontend.API) ([]frontend.Variable, error) {
	verifier, err := stdgroth16.NewVerifier[FR, G1, G2, GT](api)
	if err != nil {
		return nil, fmt.Errorf("new verifier: %w", err)
	}
	if err := verifier.AssertProof(p.VerifyingKey, p.Proof, p.Witness); err != nil {
		return nil, fmt.Errorf("assert proof: %w", err)
	}

	// inner public inputs are emulated scalars of the same field; recompose them natively
	f, err := emulated.NewField[FR](api)
	if err != nil {
		return nil, fmt.Errorf("new field: %w", err)
	}
	out := make([]frontend.Variable, len(p.Witness.Public))
	for i := range p.Witness.Public {
		bits := f.ToBitsCanonical(&p.Witness.Public[i])
		out[i] = api.FromBinary(bits...)
	}
	return out, nil
}

// PlaceholderRecursiveProof returns the compile-time shape of a proof of the circuit ccs,
// bound to its verifying key.
func PlaceholderRecursiveProof(ccs constraint.ConstraintSystem, vk groth16.VerifyingKey) (RecursiveProof, error) {
	fixed, err := stdgroth16.ValueOfVerifyingKeyFixed[G1, G2, GT](vk)
	if err != nil {
		return RecursiveProof{}, fmt.Errorf("verifying key: %w", err)
	}
	return RecursiveProof{
		Proof:        stdgroth16.PlaceholderProof[G1, G2](ccs),
		VerifyingKey: fixed,
		Witness:      stdgroth16.PlaceholderWitness[FR](ccs),
	}, nil
}

// ValueOfRecursiveProof returns the assignment of an inner proof and its public witness.
func ValueOfRecursiveProof(vk groth16.VerifyingKey, proof groth16.Proof, public witness.Witness) (RecursiveProof, error) {
	fixed, err := stdgroth16.ValueOfVerifyingKeyFixed[G1, G2, GT](vk)
	if err != nil {
		return RecursiveProof{}, fmt.Errorf("verifying key: %w", err)
	}
	p, err := stdgroth16.ValueOfProof[G1, G2](proof)
	if err != nil {
		return RecursiveProof{}, fmt.Errorf("proof: %w", err)
	}
	w, err := stdgroth16.ValueOfWitness[FR](public)
	if err != nil {
		return RecursiveProof{}, fmt.Errorf("witness: %w", err)
	}
	return RecursiveProof{Proof: p, VerifyingKey: fixed, Witness: w}, nil
}

// Statement embeds a sub-statement without a proof: its public inputs are witnessed
// directly. Parent constraints are enforced, the sub-statement itself is trusted.
// It is the native proving mode used for development and tests.
type Statement struct {
	Inputs []frontend.Variable
}

func (s Statement) PublicInputs(frontend.API) ([]frontend.Variable, error) {
	return s.Inputs, nil
}

func PlaceholderStatement(n int) Statement {
	return Statement{Inputs: make([]frontend.Variable, n)}
}

func ValueOfStatement(inputs []*big.Int) Statement {
	s := Statement{Inputs: make([]frontend.Variable, len(inputs))}
	for i, v := range inputs {
		s.Inputs[i] = v
	}
	return s
}
