package circuit

import (
	"fmt"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/sha3"
	"github.com/consensys/gnark/std/math/uints"

	"github.com/kysee/zk-bridge/types"
)

// CommitteeExtractionCircuit extracts the next committee from a finalized block.
//
//  1. The finality and inclusion proofs refer to the same block.
//  2. CommitteeRecord hashes (Keccak-256) to the included storage item.
//  3. NextCommittee is the grandpa key of every seat in CommitteeRecord.
//  4. EpochID is the set id the block was finalized in, PriorCommitteeHash the
//     committee that finalized it.
type CommitteeExtractionCircuit[P Subproof] struct {
	Finality  P
	Inclusion P

	// CommitteeRecord is the stored next-session-keys blob, one bit per wire,
	// most significant bit of each byte first.
	CommitteeRecord [types.CommitteeRecordBits]frontend.Variable

	PriorCommitteeHash Bytes32           `gnark:",public"`
	EpochID            frontend.Variable `gnark:",public"`
	NextCommittee      CommitteeWires    `gnark:",public"`
}

func (c *CommitteeExtractionCircuit[P]) Define(api frontend.API) error {
	finalityInputs, err := c.Finality.PublicInputs(api)
	if err != nil {
		return fmt.Errorf("finality proof: %w", err)
	}
	finality, err := ParseFinalityWires(finalityInputs)
	if err != nil {
		return err
	}
	inclusionInputs, err := c.Inclusion.PublicInputs(api)
	if err != nil {
		return fmt.Errorf("inclusion proof: %w", err)
	}
	inclusion, err := ParseInclusionWires(inclusionInputs)
	if err != nil {
		return err
	}

	inclusion.BlockHash.AssertIsEqual(api, finality.BlockHash)
	c.PriorCommitteeHash.AssertIsEqual(api, finality.CommitteeHash)
	api.AssertIsEqual(c.EpochID, finality.SetID(api))

	for i := range c.CommitteeRecord {
		api.AssertIsBoolean(c.CommitteeRecord[i])
	}
	record := packBytes(api, c.CommitteeRecord[:])

	hasher, err := sha3.NewLegacyKeccak256(api)
	if err != nil {
		return fmt.Errorf("keccak256: %w", err)
	}
	hasher.Write(record)
	inclusion.StorageItemHash.AssertIsEqual(api, bytes32Of(api, hasher.Sum()))

	seats, err := parseCommitteeRecord(record)
	if err != nil {
		return err
	}
	for i := range seats {
		c.NextCommittee[i].AssertIsEqual(api, bytes32Of(api, seats[i].grandpa()))
	}
	return nil
}

// seatWires holds the session keys of one seat, SessionKeyCount chunks of 32 bytes.
type seatWires []uints.U8

func (s seatWires) grandpa() []uints.U8 {
	off := types.GrandpaKeyIndex * types.ConsensusKeySize
	return s[off : off+types.ConsensusKeySize]
}

// parseCommitteeRecord slices the seats out of a record. The length prefix is
// skipped and not interpreted; unused seats are zero.
func parseCommitteeRecord(record []uints.U8) ([types.MaxValidatorCount]seatWires, error) {
	var seats [types.MaxValidatorCount]seatWires
	if len(record) != types.CommitteeRecordSize {
		return seats, fmt.Errorf("%w: committee record is %d bytes, want %d", types.ErrLayout, len(record), types.CommitteeRecordSize)
	}
	for i := range seats {
		off := 1 + i*types.SeatRecordSize
		seats[i] = seatWires(record[off : off+types.SeatRecordSize])
	}
	return seats, nil
}

// ValueOfCommitteeRecord assigns a stored blob bit by bit.
func ValueOfCommitteeRecord(blob []byte) ([types.CommitteeRecordBits]frontend.Variable, error) {
	var bits [types.CommitteeRecordBits]frontend.Variable
	if len(blob) != types.CommitteeRecordSize {
		return bits, fmt.Errorf("%w: committee record is %d bytes, want %d", types.ErrLayout, len(blob), types.CommitteeRecordSize)
	}
	for i, b := range types.BitsOf(blob) {
		if b {
			bits[i] = 1
		} else {
			bits[i] = 0
		}
	}
	return bits, nil
}
