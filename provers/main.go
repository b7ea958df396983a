package relayer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/kysee/zk-bridge/circuits"
	"github.com/kysee/zk-bridge/provers/db"
	cfgtypes "github.com/kysee/zk-bridge/provers/types"
	"github.com/kysee/zk-bridge/proving"
	"github.com/kysee/zk-bridge/types"
	"github.com/kysee/zk-bridge/verifiers/bridge"
)

// RelayerMain wires the relayer from config and runs it to the configured epoch.
// The exported terminal proof is written to the output directory.
func RelayerMain(ctx context.Context, config *cfgtypes.Config, reg prometheus.Registerer, log zerolog.Logger) error {
	genesis, err := config.GenesisConfig()
	if err != nil {
		return err
	}

	var fetcher cfgtypes.Fetcher
	if config.Chain.ReplayDir != "" {
		log.Info().Str("dir", config.Chain.ReplayDir).Msg("replaying recorded witnesses")
		fetcher = NewFileFetcher(config.Chain.ReplayDir)
	} else {
		api, err := NewAPIFetcher(ctx, config.Chain.RPCEndpoint)
		if err != nil {
			return err
		}
		defer api.Close()
		fetcher = api
	}

	exporter, err := newExporter(config, log)
	if err != nil {
		return err
	}

	store, err := db.NewPebbleStore(config.Prover.StoreDir, log)
	if err != nil {
		return fmt.Errorf("creating pebble store: %w", err)
	}
	defer store.Close()

	opts := []Option{
		WithStore(store),
		WithMetrics(NewMetrics(config.Metrics.Namespace, reg)),
		WithLogger(log),
	}

	var out string
	switch config.Prover.Backend {
	case cfgtypes.BackendGroth16:
		keys, err := proving.NewKeyStore(config.Prover.KeyDir, log)
		if err != nil {
			return err
		}
		backend := proving.NewGroth16Backend(keys, log)
		primitives := proving.NewRecordedPrimitives(config.Prover.PrimitiveDir, backend.Restore)
		out, err = run[circuit.RecursiveProof](ctx, config, genesis, fetcher, exporter, backend, primitives, primitives, log, opts)
		if err != nil {
			return err
		}
	default:
		backend := proving.NewNativeBackend(log)
		out, err = run[circuit.Statement](ctx, config, genesis, fetcher, exporter, backend, proving.NativeFinality{}, proving.NativeInclusion{}, log, opts)
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(config.Export.OutputDir, 0755); err != nil {
		return err
	}
	path := filepath.Join(config.Export.OutputDir, fmt.Sprintf("message-proof-epoch-%d.json", config.Prover.UntilEpoch+1))
	if err := os.WriteFile(path, []byte(out), 0644); err != nil {
		return fmt.Errorf("failed to write proof file: %w", err)
	}
	log.Info().Str("path", path).Msg("proof saved")
	return nil
}

func run[P circuit.Subproof](
	ctx context.Context,
	config *cfgtypes.Config,
	genesis types.GenesisConfig,
	fetcher cfgtypes.Fetcher,
	exporter bridge.Backend,
	backend proving.Backend[P],
	finality proving.FinalityPrimitive,
	inclusion proving.InclusionPrimitive,
	log zerolog.Logger,
	opts []Option,
) (string, error) {
	prover := proving.NewProver(backend, finality, inclusion, genesis, log)
	return NewRelayer(genesis, fetcher, prover, exporter, opts...).Run(ctx, config.Prover.UntilEpoch)
}

func newExporter(config *cfgtypes.Config, log zerolog.Logger) (bridge.Backend, error) {
	switch config.Export.Backend {
	case cfgtypes.ExportSolidity:
		return bridge.NewSolidityBackend(config.Export.ContractPath, log), nil
	case cfgtypes.ExportFFI:
		return bridge.NewFFIBackend()
	default:
		return bridge.PassthroughBackend{}, nil
	}
}
