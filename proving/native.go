package proving

import (
	"context"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/frontend"
	gnark_test "github.com/consensys/gnark/test"
	"github.com/rs/zerolog"

	"github.com/kysee/zk-bridge/circuits"
	"github.com/kysee/zk-bridge/types"
)

// NativeBackend checks circuit satisfiability without producing proofs. Embedded
// proofs are replaced by their public statements, so every composition constraint
// is enforced while the sub-statements themselves are trusted.
type NativeBackend struct {
	log zerolog.Logger
}

var _ Backend[circuit.Statement] = (*NativeBackend)(nil)

func NewNativeBackend(log zerolog.Logger) *NativeBackend {
	return &NativeBackend{log: log.With().Str("backend", "native").Logger()}
}

func (b *NativeBackend) Embed(inner *Proof) (circuit.Statement, circuit.Statement, error) {
	if inner == nil {
		return circuit.Statement{}, circuit.Statement{}, fmt.Errorf("nothing to embed")
	}
	return circuit.PlaceholderStatement(len(inner.PublicInputs)), circuit.ValueOfStatement(inner.PublicInputs), nil
}

func (b *NativeBackend) Prove(ctx context.Context, name string, placeholder, assignment frontend.Circuit, _ ...ProveOption) (*Proof, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := gnark_test.IsSolved(placeholder, assignment, ecc.BN254.ScalarField()); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrProofGeneration, name, err)
	}
	inputs, err := publicInputsOf(assignment)
	if err != nil {
		return nil, err
	}
	b.log.Debug().Str("circuit", name).Int("public_inputs", len(inputs)).Msg("statement satisfied")
	return &Proof{Circuit: name, PublicInputs: inputs}, nil
}

func (b *NativeBackend) Restore(rec *types.ProofRecord) (*Proof, error) {
	inputs, err := parsePublicInputs(rec)
	if err != nil {
		return nil, err
	}
	return &Proof{Circuit: rec.Circuit, PublicInputs: inputs}, nil
}
