// Package bridge hands terminal proofs to the proof backend that produces the
// artifact verified on the destination chain.
package bridge

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kysee/zk-bridge/types"
)

// ErrBackend marks a failure reported by, or in the interface to, the proof backend.
var ErrBackend = errors.New("proof backend failure")

// Backend wraps exported proofs for on-chain verification. The payload is the
// JSON encoding of a types.ProofRecord.
type Backend interface {
	// Compile prepares the backend for proofs of the payload's circuit.
	Compile(payload []byte) error
	// Prove returns the final proof as text.
	Prove(payload []byte) (string, error)
}

// Export serializes rec and runs it through b.
func Export(b Backend, rec *types.ProofRecord) (string, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", rec.Circuit, err)
	}
	if err := b.Compile(payload); err != nil {
		return "", fmt.Errorf("compile %s: %w", rec.Circuit, err)
	}
	out, err := b.Prove(payload)
	if err != nil {
		return "", fmt.Errorf("prove %s: %w", rec.Circuit, err)
	}
	return out, nil
}

// PassthroughBackend returns the exported record itself. It serves native mode,
// where there is no proof to wrap.
type PassthroughBackend struct{}

func (PassthroughBackend) Compile(payload []byte) error {
	if !json.Valid(payload) {
		return fmt.Errorf("%w: payload is not valid JSON", ErrBackend)
	}
	return nil
}

func (PassthroughBackend) Prove(payload []byte) (string, error) {
	return string(payload), nil
}
