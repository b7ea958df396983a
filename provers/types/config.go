package types

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/conf/v3"

	"github.com/kysee/zk-bridge/types"
)

const EnvPrefix = "ZK_BRIDGE"

const (
	BackendNative  = "native"
	BackendGroth16 = "groth16"

	ExportPassthrough = "passthrough"
	ExportSolidity    = "solidity"
	ExportFFI         = "ffi"
)

// Config holds the relayer configuration. Every field can be set by flag or by
// environment variable, e.g. ZK_BRIDGE_CHAIN_RPC_ENDPOINT.
type Config struct {
	Chain struct {
		RPCEndpoint string `conf:"default:ws://localhost:9944"`
		// ReplayDir switches to recorded witnesses instead of the RPC endpoint.
		ReplayDir string `conf:"optional"`
	}
	Genesis struct {
		CommitteeHash   string `conf:"required"`
		StartingEpochID uint64 `conf:"default:0"`
	}
	Prover struct {
		Backend      string `conf:"default:native"`
		KeyDir       string `conf:"default:.build"`
		PrimitiveDir string `conf:"default:primitives"`
		StoreDir     string `conf:"default:store"`
		UntilEpoch   uint64 `conf:"required"`
	}
	Export struct {
		Backend      string `conf:"default:passthrough"`
		ContractPath string `conf:"default:contracts/BridgeVerifier.sol"`
		OutputDir    string `conf:"default:output"`
	}
	Metrics struct {
		Port      int    `conf:"default:9999"`
		Namespace string `conf:"default:zk_bridge"`
	}
}

// LoadConfig parses flags and environment. When help is requested the usage
// text is returned together with conf.ErrHelpWanted.
func LoadConfig() (*Config, string, error) {
	var cfg Config
	help, err := conf.Parse(EnvPrefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			return nil, help, err
		}
		return nil, "", fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, "", err
	}
	return &cfg, "", nil
}

// GenesisConfig returns the trusted anchor of the proof chain.
func (c *Config) GenesisConfig() (types.GenesisConfig, error) {
	h, err := types.ParseHash32(c.Genesis.CommitteeHash)
	if err != nil {
		return types.GenesisConfig{}, fmt.Errorf("genesis committee hash: %w", err)
	}
	return types.GenesisConfig{CommitteeHash: h, StartingEpochID: c.Genesis.StartingEpochID}, nil
}

func (c *Config) String() string {
	out, err := conf.String(c)
	if err != nil {
		return err.Error()
	}
	return out
}

func (c *Config) validate() error {
	switch c.Prover.Backend {
	case BackendNative, BackendGroth16:
	default:
		return fmt.Errorf("unknown prover backend %q", c.Prover.Backend)
	}
	switch c.Export.Backend {
	case ExportPassthrough, ExportSolidity, ExportFFI:
	default:
		return fmt.Errorf("unknown export backend %q", c.Export.Backend)
	}
	if c.Prover.UntilEpoch < c.Genesis.StartingEpochID {
		return fmt.Errorf("until epoch %d precedes starting epoch %d", c.Prover.UntilEpoch, c.Genesis.StartingEpochID)
	}
	_, err := c.GenesisConfig()
	return err
}
