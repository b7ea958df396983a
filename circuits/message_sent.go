package circuit

import (
	"fmt"

	"github.com/consensys/gnark/frontend"
)

// MessageSentCircuit is the terminal proof: a message stored in a block that was
// finalized by the committee the chain proof ends with, in the following epoch.
type MessageSentCircuit[P Subproof] struct {
	Previous  P
	Finality  P
	Inclusion P

	Message MessageSentWires `gnark:",public"`
}

func (c *MessageSentCircuit[P]) Define(api frontend.API) error {
	prevInputs, err := c.Previous.PublicInputs(api)
	if err != nil {
		return fmt.Errorf("previous proof: %w", err)
	}
	previous, err := ParseEpochWires(prevInputs)
	if err != nil {
		return err
	}
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

	setID := finality.SetID(api)
	finality.CommitteeHash.AssertIsEqual(api, previous.NextCommitteeHash)
	api.AssertIsEqual(setID, api.Add(previous.EpochID, 1))
	inclusion.BlockHash.AssertIsEqual(api, finality.BlockHash)

	finality.BlockHash.AssertIsEqual(api, c.Message.BlockHash)
	inclusion.StorageItemHash.AssertIsEqual(api, c.Message.MessageHash)
	api.AssertIsEqual(c.Message.AuthoritySetID, setID)
	return nil
}
