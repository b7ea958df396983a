package circuit

import (
	"os"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint/solver"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	stdgroth16 "github.com/consensys/gnark/std/recursion/groth16"
	gnark_test "github.com/consensys/gnark/test"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var gnarkLogger = zerolog.New(os.Stdout).Level(zerolog.InfoLevel).With().Timestamp().Logger()

// committeeHashEmbed re-exposes the commitment of a recursively verified committee hash proof.
type committeeHashEmbed struct {
	Inner RecursiveProof
	Hash  Bytes32 `gnark:",public"`
}

func (c *committeeHashEmbed) Define(api frontend.API) error {
	inputs, err := c.Inner.PublicInputs(api)
	if err != nil {
		return err
	}
	inner, err := ParseCommitteeHashWires(inputs)
	if err != nil {
		return err
	}
	c.Hash.AssertIsEqual(api, inner.Hash)
	return nil
}

func TestRecursiveProof_CommitteeHash(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping recursive groth16 proving in short mode")
	}

	_, committee := randomRecord(t, 2)
	keys, err := committee.Padded()
	require.NoError(t, err)
	hash, err := committee.Hash()
	require.NoError(t, err)

	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &CommitteeHashCircuit{})
	require.NoError(t, err)
	pk, vk, err := groth16.Setup(ccs)
	require.NoError(t, err)

	full, err := frontend.NewWitness(&CommitteeHashCircuit{
		Hash:         ValueOfBytes32(hash),
		ValidatorSet: ValueOfCommittee(keys),
	}, ecc.BN254.ScalarField())
	require.NoError(t, err)
	public, err := full.Public()
	require.NoError(t, err)

	proof, err := groth16.Prove(ccs, pk, full,
		stdgroth16.GetNativeProverOptions(ecc.BN254.ScalarField(), ecc.BN254.ScalarField()),
		backend.WithSolverOptions(solver.WithLogger(gnarkLogger)),
	)
	require.NoError(t, err)
	err = groth16.Verify(proof, vk, public, stdgroth16.GetNativeVerifierOptions(ecc.BN254.ScalarField(), ecc.BN254.ScalarField()))
	require.NoError(t, err)

	placeholder, err := PlaceholderRecursiveProof(ccs, vk)
	require.NoError(t, err)
	inner, err := ValueOfRecursiveProof(vk, proof, public)
	require.NoError(t, err)

	err = gnark_test.IsSolved(&committeeHashEmbed{Inner: placeholder}, &committeeHashEmbed{
		Inner: inner,
		Hash:  ValueOfBytes32(hash),
	}, ecc.BN254.ScalarField())
	require.NoError(t, err)

	other := hash
	other[31] ^= 0x01
	err = gnark_test.IsSolved(&committeeHashEmbed{Inner: placeholder}, &committeeHashEmbed{
		Inner: inner,
		Hash:  ValueOfBytes32(other),
	}, ecc.BN254.ScalarField())
	require.Error(t, err)
}
