package bridge

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/solidity"
	"github.com/rs/zerolog"

	"github.com/kysee/zk-bridge/types"
)

// SolidityBackend verifies terminal Groth16 proofs with a generated Solidity
// verifier. Compile writes the contract, Prove lays the proof out as calldata.
type SolidityBackend struct {
	ContractPath string
	log          zerolog.Logger
}

func NewSolidityBackend(contractPath string, log zerolog.Logger) *SolidityBackend {
	return &SolidityBackend{ContractPath: contractPath, log: log}
}

func (b *SolidityBackend) Compile(payload []byte) error {
	rec, err := decodeSuccinct(payload)
	if err != nil {
		return err
	}
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(bytes.NewReader(rec.VerifyingKey)); err != nil {
		return fmt.Errorf("%w: verifying key: %v", ErrBackend, err)
	}

	var buf bytes.Buffer
	if err := vk.ExportSolidity(&buf, solidity.WithHashToFieldFunction(sha256.New())); err != nil {
		return fmt.Errorf("%w: export solidity: %v", ErrBackend, err)
	}
	if err := os.MkdirAll(filepath.Dir(b.ContractPath), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(b.ContractPath, buf.Bytes(), 0644); err != nil {
		return err
	}
	b.log.Info().Str("circuit", rec.Circuit).Str("path", b.ContractPath).Msg("solidity verifier generated")
	return nil
}

func (b *SolidityBackend) Prove(payload []byte) (string, error) {
	rec, err := decodeSuccinct(payload)
	if err != nil {
		return "", err
	}
	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(rec.Proof)); err != nil {
		return "", fmt.Errorf("%w: proof: %v", ErrBackend, err)
	}
	solProof, ok := proof.(interface{ MarshalSolidity() []byte })
	if !ok {
		return "", fmt.Errorf("%w: proof of type %T has no solidity encoding", ErrBackend, proof)
	}
	data, err := types.CreateProofData(solProof.MarshalSolidity(), rec.PublicInputs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackend, err)
	}
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func decodeSuccinct(payload []byte) (*types.ProofRecord, error) {
	var rec types.ProofRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrBackend, err)
	}
	if !rec.Succinct() {
		return nil, fmt.Errorf("%w: %s was produced without a proof", ErrBackend, rec.Circuit)
	}
	return &rec, nil
}
