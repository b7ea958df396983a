package circuit

import (
	"fmt"

	"github.com/consensys/gnark/frontend"
)

// EpochTransitionCircuit joins a committee extraction with the commitment of the
// extracted committee: the committee finalizing epoch EpochID (PriorCommitteeHash)
// hands over to the committee committed by NextCommitteeHash.
type EpochTransitionCircuit[P Subproof] struct {
	CommitteeHash P
	Extraction    P

	Epoch EpochWires `gnark:",public"`
}

func (c *EpochTransitionCircuit[P]) Define(api frontend.API) error {
	hashInputs, err := c.CommitteeHash.PublicInputs(api)
	if err != nil {
		return fmt.Errorf("committee hash proof: %w", err)
	}
	committeeHash, err := ParseCommitteeHashWires(hashInputs)
	if err != nil {
		return err
	}
	extractionInputs, err := c.Extraction.PublicInputs(api)
	if err != nil {
		return fmt.Errorf("committee extraction proof: %w", err)
	}
	extraction, err := ParseExtractionWires(extractionInputs)
	if err != nil {
		return err
	}

	// seat by seat, order matters
	committeeHash.ValidatorSet.AssertIsEqual(api, extraction.NextCommittee)

	c.Epoch.AssertIsEqual(api, EpochWires{
		PriorCommitteeHash: extraction.PriorCommitteeHash,
		NextCommitteeHash:  committeeHash.Hash,
		EpochID:            extraction.EpochID,
	})
	return nil
}
