package circuit

import (
	"fmt"

	"github.com/consensys/gnark/frontend"

	"github.com/kysee/zk-bridge/types"
)

// GenesisCircuit anchors the proof chain: the first transition must start at the
// trusted committee and epoch compiled into the circuit.
type GenesisCircuit[P Subproof] struct {
	Transition P
	Genesis    types.GenesisConfig `gnark:"-"`

	Epoch EpochWires `gnark:",public"`
}

func (c *GenesisCircuit[P]) Define(api frontend.API) error {
	inputs, err := c.Transition.PublicInputs(api)
	if err != nil {
		return fmt.Errorf("transition proof: %w", err)
	}
	transition, err := ParseEpochWires(inputs)
	if err != nil {
		return err
	}

	transition.PriorCommitteeHash.AssertIsEqual(api, ValueOfBytes32(c.Genesis.CommitteeHash))
	api.AssertIsEqual(transition.EpochID, c.Genesis.StartingEpochID)
	c.Epoch.AssertIsEqual(api, transition)
	return nil
}

// StepCircuit extends a chain proof by one transition: the new transition starts
// where the previous proof ended, one epoch later.
type StepCircuit[P Subproof] struct {
	Previous   P
	Transition P

	Epoch EpochWires `gnark:",public"`
}

func (c *StepCircuit[P]) Define(api frontend.API) error {
	prevInputs, err := c.Previous.PublicInputs(api)
	if err != nil {
		return fmt.Errorf("previous proof: %w", err)
	}
	previous, err := ParseEpochWires(prevInputs)
	if err != nil {
		return err
	}
	inputs, err := c.Transition.PublicInputs(api)
	if err != nil {
		return fmt.Errorf("transition proof: %w", err)
	}
	transition, err := ParseEpochWires(inputs)
	if err != nil {
		return err
	}

	transition.PriorCommitteeHash.AssertIsEqual(api, previous.NextCommitteeHash)
	api.AssertIsEqual(transition.EpochID, api.Add(previous.EpochID, 1))
	c.Epoch.AssertIsEqual(api, transition)
	return nil
}
