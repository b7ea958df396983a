package relayer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	cfgtypes "github.com/kysee/zk-bridge/provers/types"
	"github.com/kysee/zk-bridge/types"
)

// FileFetcher implements Fetcher by reading recorded witnesses from a directory.
type FileFetcher struct {
	Dir string
}

var _ cfgtypes.Fetcher = (*FileFetcher)(nil)

func NewFileFetcher(dir string) *FileFetcher {
	return &FileFetcher{Dir: dir}
}

func (f *FileFetcher) FinalityProofForEpoch(_ context.Context, epoch uint64) (*cfgtypes.FinalityProofResponse, error) {
	var res cfgtypes.FinalityProofResponse
	return &res, f.read(cfgtypes.EpochFinalityFile(epoch), &res)
}

func (f *FileFetcher) NextSessionKeysInclusionProof(_ context.Context, block types.Hash32) (*types.RPCStorageInclusionProof, error) {
	var res types.RPCStorageInclusionProof
	return &res, f.read(cfgtypes.SessionKeysFile(block), &res)
}

func (f *FileFetcher) SearchForEpochBlock(_ context.Context, epoch uint64) (types.Hash32, error) {
	var res types.Hash32
	return res, f.read(cfgtypes.EpochBlockFile(epoch), &res)
}

func (f *FileFetcher) FinalityProof(_ context.Context, block types.Hash32) (*cfgtypes.FinalityProofResponse, error) {
	var res cfgtypes.FinalityProofResponse
	return &res, f.read(cfgtypes.FinalityFile(block), &res)
}

func (f *FileFetcher) SentMessageInclusionProof(_ context.Context, block types.Hash32) (*types.RPCStorageInclusionProof, error) {
	var res types.RPCStorageInclusionProof
	return &res, f.read(cfgtypes.MessageFile(block), &res)
}

func (f *FileFetcher) read(name string, v any) error {
	path := filepath.Join(f.Dir, name)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s not recorded", cfgtypes.ErrWitnessUnavailable, name)
	}
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
