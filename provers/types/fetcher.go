package types

import (
	"context"
	"errors"
	"fmt"

	"github.com/kysee/zk-bridge/types"
)

// ErrWitnessUnavailable is returned when the chain client cannot supply a witness,
// e.g. the requested epoch has not been finalized yet.
var ErrWitnessUnavailable = errors.New("witness unavailable")

// FinalityProofResponse is a finality proof together with the block it finalizes.
type FinalityProofResponse struct {
	Block types.Hash32                `json:"block"`
	Proof types.RPCBlockFinalityProof `json:"proof"`
}

// Fetcher retrieves witnesses from the source chain.
type Fetcher interface {
	// FinalityProofForEpoch returns the finality proof of the block that enacts the
	// committee change of epoch.
	FinalityProofForEpoch(ctx context.Context, epoch uint64) (*FinalityProofResponse, error)
	NextSessionKeysInclusionProof(ctx context.Context, block types.Hash32) (*types.RPCStorageInclusionProof, error)
	// SearchForEpochBlock returns a finalized block produced during epoch.
	SearchForEpochBlock(ctx context.Context, epoch uint64) (types.Hash32, error)
	FinalityProof(ctx context.Context, block types.Hash32) (*FinalityProofResponse, error)
	SentMessageInclusionProof(ctx context.Context, block types.Hash32) (*types.RPCStorageInclusionProof, error)
}

// Replay file names, relative to a replay directory read by the file fetcher.

func EpochFinalityFile(epoch uint64) string {
	return fmt.Sprintf("epoch-%d-finality.json", epoch)
}

func EpochBlockFile(epoch uint64) string {
	return fmt.Sprintf("epoch-%d-block.json", epoch)
}

func FinalityFile(block types.Hash32) string {
	return fmt.Sprintf("finality-%s.json", block)
}

func SessionKeysFile(block types.Hash32) string {
	return fmt.Sprintf("session-keys-%s.json", block)
}

func MessageFile(block types.Hash32) string {
	return fmt.Sprintf("message-%s.json", block)
}
