package relayer

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	cfgtypes "github.com/kysee/zk-bridge/provers/types"
	"github.com/kysee/zk-bridge/types"
)

// Listener waits for the source chain to reach the epochs the relayer needs.
type Listener struct {
	fetcher  cfgtypes.Fetcher
	interval time.Duration
	log      zerolog.Logger
}

func NewListener(fetcher cfgtypes.Fetcher, interval time.Duration, log zerolog.Logger) *Listener {
	return &Listener{fetcher: fetcher, interval: interval, log: log}
}

// WaitForEpochChange blocks until the committee change of epoch is finalized.
func (l *Listener) WaitForEpochChange(ctx context.Context, epoch uint64) error {
	_, err := poll(ctx, l, epoch, func() (*cfgtypes.FinalityProofResponse, error) {
		return l.fetcher.FinalityProofForEpoch(ctx, epoch)
	})
	return err
}

// WaitForEpochBlock blocks until a finalized block of epoch exists and returns it.
func (l *Listener) WaitForEpochBlock(ctx context.Context, epoch uint64) (types.Hash32, error) {
	return poll(ctx, l, epoch, func() (types.Hash32, error) {
		return l.fetcher.SearchForEpochBlock(ctx, epoch)
	})
}

// poll retries fetch while it reports an unavailable witness. Other errors end the wait.
func poll[T any](ctx context.Context, l *Listener, epoch uint64, fetch func() (T, error)) (T, error) {
	for {
		v, err := fetch()
		if err == nil || !errors.Is(err, cfgtypes.ErrWitnessUnavailable) {
			return v, err
		}
		l.log.Debug().Uint64("epoch", epoch).Err(err).Msg("waiting for source chain")
		select {
		case <-ctx.Done():
			return v, ctx.Err()
		case <-time.After(l.interval):
		}
	}
}
