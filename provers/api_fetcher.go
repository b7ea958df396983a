package relayer

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"

	cfgtypes "github.com/kysee/zk-bridge/provers/types"
	"github.com/kysee/zk-bridge/types"
)

// APIFetcher implements Fetcher over the source chain's JSON-RPC endpoint.
// A null result means the witness does not exist yet.
type APIFetcher struct {
	client *rpc.Client
}

var _ cfgtypes.Fetcher = (*APIFetcher)(nil)

func NewAPIFetcher(ctx context.Context, endpoint string) (*APIFetcher, error) {
	client, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	return &APIFetcher{client: client}, nil
}

func (a *APIFetcher) Close() {
	a.client.Close()
}

func (a *APIFetcher) FinalityProofForEpoch(ctx context.Context, epoch uint64) (*cfgtypes.FinalityProofResponse, error) {
	return call[cfgtypes.FinalityProofResponse](ctx, a.client, "bridge_finalityProofForEpoch", epoch)
}

func (a *APIFetcher) NextSessionKeysInclusionProof(ctx context.Context, block types.Hash32) (*types.RPCStorageInclusionProof, error) {
	return call[types.RPCStorageInclusionProof](ctx, a.client, "bridge_nextSessionKeysInclusionProof", block)
}

func (a *APIFetcher) SearchForEpochBlock(ctx context.Context, epoch uint64) (types.Hash32, error) {
	h, err := call[types.Hash32](ctx, a.client, "bridge_searchForEpochBlock", epoch)
	if err != nil {
		return types.Hash32{}, err
	}
	return *h, nil
}

func (a *APIFetcher) FinalityProof(ctx context.Context, block types.Hash32) (*cfgtypes.FinalityProofResponse, error) {
	return call[cfgtypes.FinalityProofResponse](ctx, a.client, "bridge_finalityProof", block)
}

func (a *APIFetcher) SentMessageInclusionProof(ctx context.Context, block types.Hash32) (*types.RPCStorageInclusionProof, error) {
	return call[types.RPCStorageInclusionProof](ctx, a.client, "bridge_sentMessageInclusionProof", block)
}

func call[T any](ctx context.Context, client *rpc.Client, method string, args ...any) (*T, error) {
	var res *T
	if err := client.CallContext(ctx, &res, method, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	if res == nil {
		return nil, fmt.Errorf("%w: %s returned no result", cfgtypes.ErrWitnessUnavailable, method)
	}
	return res, nil
}
