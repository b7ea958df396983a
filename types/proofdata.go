package types

import (
	"fmt"

	bn254_fr "github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// ProofRecord is the serialized form of a produced proof. It is what the proof
// store keeps and what is handed to the external proof backend.
// Proof, VerifyingKey and PublicWitness are empty for proofs produced in native mode.
type ProofRecord struct {
	Circuit       string   `json:"circuit"`
	PublicInputs  []string `json:"public_inputs"`
	Proof         HexBytes `json:"proof,omitempty"`
	VerifyingKey  HexBytes `json:"verifying_key,omitempty"`
	PublicWitness HexBytes `json:"public_witness,omitempty"`
}

// Succinct reports whether the record carries an actual proof.
func (r *ProofRecord) Succinct() bool {
	return len(r.Proof) > 0 && len(r.VerifyingKey) > 0
}

// ProofData is a Groth16 proof laid out for the on-chain verifier.
type ProofData struct {
	Proof         []HexBytes `json:"proof"`
	Commitments   []HexBytes `json:"commitments"`
	CommitmentPok []HexBytes `json:"commitmentPok"`
	PublicInputs  []string   `json:"publicInputs"`
}

// CreateProofData splits a proof in MarshalSolidity form into its elements.
func CreateProofData(proofSolidity []byte, publicInputs []string) (*ProofData, error) {
	// A, B, C, then a 4-byte commitment count, the commitment and its PoK
	const commitmentOffset = 8*bn254_fr.Bytes + 4
	if len(proofSolidity) < 8*bn254_fr.Bytes {
		return nil, fmt.Errorf("solidity proof is %d bytes, too short", len(proofSolidity))
	}

	proof := make([]HexBytes, 8)
	for i := 0; i < len(proof); i++ {
		proof[i] = proofSolidity[i*bn254_fr.Bytes : (i+1)*bn254_fr.Bytes]
	}

	pd := &ProofData{Proof: proof, PublicInputs: publicInputs}
	if len(proofSolidity) < commitmentOffset+4*bn254_fr.Bytes {
		return pd, nil
	}
	commitments := make([]HexBytes, 4)
	for i := 0; i < len(commitments); i++ {
		startIdx := commitmentOffset + (i * bn254_fr.Bytes)
		commitments[i] = proofSolidity[startIdx : startIdx+bn254_fr.Bytes]
	}
	pd.Commitments = commitments[0:2]
	pd.CommitmentPok = commitments[2:4]
	return pd, nil
}
