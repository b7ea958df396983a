package db

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/cockroachdb/pebble"
	"github.com/rs/zerolog"

	"github.com/kysee/zk-bridge/types"
)

var ErrNotFound = errors.New("store resource not found")

const (
	latestEpochKey   byte = 0x00
	epochProofPrefix byte = 0x01
)

// PebbleStore keeps the epoch proofs of the chain, keyed by epoch id, and the
// id of the latest one.
type PebbleStore struct {
	db  *pebble.DB
	log zerolog.Logger
}

func NewPebbleStore(storeDir string, log zerolog.Logger) (*PebbleStore, error) {
	db, err := pebble.Open(filepath.Join(storeDir, "zk-bridge"), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening pebble db: %w", err)
	}
	return &PebbleStore{db: db, log: log}, nil
}

func epochProofKey(epoch uint64) []byte {
	key := []byte{epochProofPrefix}
	return binary.BigEndian.AppendUint64(key, epoch)
}

// PutEpochProof stores rec as the proof of epoch and makes it the latest.
func (ps *PebbleStore) PutEpochProof(epoch uint64, rec *types.ProofRecord) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding proof of epoch %d: %w", epoch, err)
	}

	batch := ps.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(epochProofKey(epoch), value, nil); err != nil {
		return err
	}
	if err := batch.Set([]byte{latestEpochKey}, binary.BigEndian.AppendUint64(nil, epoch), nil); err != nil {
		return err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("storing proof of epoch %d: %w", epoch, err)
	}
	return nil
}

func (ps *PebbleStore) EpochProof(epoch uint64) (*types.ProofRecord, error) {
	value, err := ps.get(epochProofKey(epoch))
	if err != nil {
		return nil, fmt.Errorf("getting proof of epoch %d: %w", epoch, err)
	}
	var rec types.ProofRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		return nil, fmt.Errorf("decoding proof of epoch %d: %w", epoch, err)
	}
	return &rec, nil
}

// LatestEpochProof returns the most recently stored proof and its epoch.
func (ps *PebbleStore) LatestEpochProof() (uint64, *types.ProofRecord, error) {
	value, err := ps.get([]byte{latestEpochKey})
	if err != nil {
		return 0, nil, fmt.Errorf("getting latest epoch: %w", err)
	}
	if len(value) != 8 {
		return 0, nil, fmt.Errorf("latest epoch value is %d bytes", len(value))
	}
	epoch := binary.BigEndian.Uint64(value)
	rec, err := ps.EpochProof(epoch)
	if err != nil {
		return 0, nil, err
	}
	return epoch, rec, nil
}

// get returns a copy of the value stored under key.
func (ps *PebbleStore) get(key []byte) ([]byte, error) {
	value, closer, err := ps.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer func(closer io.Closer) {
		if err := closer.Close(); err != nil {
			ps.log.Error().Err(err).Msg("failed to close database get request")
		}
	}(closer)

	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (ps *PebbleStore) Close() error {
	return ps.db.Close()
}
