package types

// GenesisConfig anchors the proof chain to a trusted committee.
type GenesisConfig struct {
	CommitteeHash   Hash32 `json:"committee_hash"`
	StartingEpochID uint64 `json:"starting_epoch_id"`
}
