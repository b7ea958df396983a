package proving

import (
	"context"

	"github.com/consensys/gnark/frontend"

	"github.com/kysee/zk-bridge/circuits"
	"github.com/kysee/zk-bridge/types"
)

// Backend proves circuits whose embedded proofs have type P.
type Backend[P circuit.Subproof] interface {
	// Embed returns the compile-time placeholder and the assignment that embed inner
	// into a parent circuit.
	Embed(inner *Proof) (placeholder P, assignment P, err error)
	// Prove proves assignment against the circuit registered as name. The placeholder
	// fixes the circuit shape and its constants.
	Prove(ctx context.Context, name string, placeholder, assignment frontend.Circuit, opts ...ProveOption) (*Proof, error)
	// Restore rebuilds a proof from its record.
	Restore(rec *types.ProofRecord) (*Proof, error)
}

type proveConfig struct {
	onChain bool
}

type ProveOption func(*proveConfig)

// OnChain marks the proof as verified by the on-chain verifier rather than by a
// parent circuit, which selects the hash-to-field function the verifier contract uses.
func OnChain() ProveOption {
	return func(c *proveConfig) {
		c.onChain = true
	}
}

func newProveConfig(opts []ProveOption) proveConfig {
	var c proveConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
