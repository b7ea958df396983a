package proving_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/frontend"
	gnark_test "github.com/consensys/gnark/test"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/kysee/zk-bridge/circuits"
	"github.com/kysee/zk-bridge/proving"
	"github.com/kysee/zk-bridge/test"
	"github.com/kysee/zk-bridge/types"
)

// offsetCircuit carries a constant, like the genesis anchor of the chain circuits.
type offsetCircuit struct {
	Offset uint64 `gnark:"-"`

	X frontend.Variable
	Y frontend.Variable `gnark:",public"`
}

func (c *offsetCircuit) Define(api frontend.API) error {
	api.AssertIsEqual(api.Add(c.X, c.Offset), c.Y)
	return nil
}

// stubPrimitive exposes arbitrary public inputs, standing in for an external
// finality or inclusion circuit.
type stubPrimitive struct {
	Inputs []frontend.Variable `gnark:",public"`

	Root   frontend.Variable
	Square frontend.Variable
}

func (c *stubPrimitive) Define(api frontend.API) error {
	api.AssertIsEqual(api.Mul(c.Root, c.Root), c.Square)
	return nil
}

func proveStub(t *testing.T, backend *proving.Groth16Backend, name string, inputs []frontend.Variable) *proving.Proof {
	placeholder := &stubPrimitive{Inputs: make([]frontend.Variable, len(inputs))}
	assignment := &stubPrimitive{Inputs: inputs, Root: 3, Square: 9}
	proof, err := backend.Prove(context.Background(), name, placeholder, assignment)
	require.NoError(t, err)
	return proof
}

func TestKeyStore_SetupOnceAndReadFromDisk(t *testing.T) {
	dir := t.TempDir()
	log := zerolog.Nop()
	keys, err := proving.NewKeyStore(dir, log)
	require.NoError(t, err)

	k, err := keys.Load("offset", &offsetCircuit{Offset: 7})
	require.NoError(t, err)
	again, err := keys.Load("offset", &offsetCircuit{Offset: 7})
	require.NoError(t, err)
	require.Same(t, k, again)
	for _, ext := range []string{".ccs", ".pk", ".vk", ".constants"} {
		require.FileExists(t, filepath.Join(dir, "offset"+ext))
	}

	reopened, err := proving.NewKeyStore(dir, log)
	require.NoError(t, err)
	ccs, err := reopened.ConstraintSystem("offset")
	require.NoError(t, err)
	require.Equal(t, k.CCS.GetNbConstraints(), ccs.GetNbConstraints())
	fromDisk, err := reopened.Load("offset", &offsetCircuit{Offset: 7})
	require.NoError(t, err)
	require.Equal(t, k.Constants, fromDisk.Constants)

	_, err = reopened.ConstraintSystem("unknown")
	require.Error(t, err)
}

func TestKeyStore_RejectsChangedConstants(t *testing.T) {
	dir := t.TempDir()
	log := zerolog.Nop()
	keys, err := proving.NewKeyStore(dir, log)
	require.NoError(t, err)
	_, err = keys.Load("offset", &offsetCircuit{Offset: 7})
	require.NoError(t, err)

	_, err = keys.Load("offset", &offsetCircuit{Offset: 8})
	require.ErrorIs(t, err, proving.ErrStaleKeys)

	reopened, err := proving.NewKeyStore(dir, log)
	require.NoError(t, err)
	_, err = reopened.Load("offset", &offsetCircuit{Offset: 8})
	require.ErrorIs(t, err, proving.ErrStaleKeys)
}

func TestFingerprint_GenesisAnchor(t *testing.T) {
	anchor := types.GenesisConfig{StartingEpochID: 4}
	a, err := proving.Fingerprint(&circuit.GenesisCircuit[circuit.Statement]{Genesis: anchor})
	require.NoError(t, err)
	b, err := proving.Fingerprint(&circuit.GenesisCircuit[circuit.Statement]{Genesis: anchor})
	require.NoError(t, err)
	require.Equal(t, a, b)

	anchor.CommitteeHash[0] = 0x01
	c, err := proving.Fingerprint(&circuit.GenesisCircuit[circuit.Statement]{Genesis: anchor})
	require.NoError(t, err)
	require.NotEqual(t, a, c)
}

func TestRecordedPrimitives_Groth16(t *testing.T) {
	f := newFixture(t)
	log := zerolog.Nop()
	keys, err := proving.NewKeyStore(t.TempDir(), log)
	require.NoError(t, err)
	backend := proving.NewGroth16Backend(keys, log)

	_, msg := f.messageWitness(t, 2)
	stmt, _, err := proving.VerifyInclusion(msg)
	require.NoError(t, err)
	inputs := make([]frontend.Variable, 0, types.InclusionInputCount)
	for _, v := range stmt.PublicInputs() {
		inputs = append(inputs, v)
	}
	proof := proveStub(t, backend, proving.InclusionCircuit(types.MessageAddress), inputs)
	require.True(t, proof.Succinct())

	dir := t.TempDir()
	writeRecord := func(name string, p *proving.Proof) {
		rec, err := p.Record()
		require.NoError(t, err)
		raw, err := json.Marshal(rec)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), raw, 0644))
	}
	block := f.chain.Block(2).Hash
	writeRecord(fmt.Sprintf("inclusion-%s-%s.json", types.MessageAddress, block), proof)

	primitives := proving.NewRecordedPrimitives(dir, backend.Restore)
	restored, err := primitives.ProveInclusion(context.Background(), msg)
	require.NoError(t, err)
	require.True(t, restored.Succinct())
	got, err := types.ParseInclusionStatement(restored.PublicInputs)
	require.NoError(t, err)
	require.Equal(t, stmt, got)
	_, _, err = backend.Embed(restored)
	require.NoError(t, err)

	// a message slot record filed under the session keys slot is refused
	writeRecord(fmt.Sprintf("inclusion-%s-%s.json", types.NextSessionKeysAddress, block), proof)
	sessionKeys := *msg
	sessionKeys.StorageAddress = types.NextSessionKeysAddress
	_, err = primitives.ProveInclusion(context.Background(), &sessionKeys)
	require.ErrorIs(t, err, proving.ErrProofGeneration)
}

// hashEmbed verifies a committee hash proof and re-exposes its commitment.
type hashEmbed struct {
	Inner circuit.RecursiveProof
	Hash  circuit.Bytes32 `gnark:",public"`
}

func (c *hashEmbed) Define(api frontend.API) error {
	inputs, err := c.Inner.PublicInputs(api)
	if err != nil {
		return err
	}
	inner, err := circuit.ParseCommitteeHashWires(inputs)
	if err != nil {
		return err
	}
	c.Hash.AssertIsEqual(api, inner.Hash)
	return nil
}

func TestGroth16Backend_CommitteeHashRecursion(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping recursive groth16 proving in short mode")
	}
	f := newFixture(t)
	dir := t.TempDir()
	log := zerolog.Nop()
	keys, err := proving.NewKeyStore(dir, log)
	require.NoError(t, err)
	backend := proving.NewGroth16Backend(keys, log)
	genesis, err := f.chain.Genesis()
	require.NoError(t, err)
	primitives := proving.NewRecordedPrimitives(t.TempDir(), backend.Restore)
	prover := proving.NewProver[circuit.RecursiveProof](backend, primitives, primitives, genesis, log)

	committee, err := test.CommitteeOf(f.s0).Padded()
	require.NoError(t, err)
	proof, err := prover.CommitteeHash(context.Background(), committee)
	require.NoError(t, err)
	require.True(t, proof.Succinct())
	stmt, err := types.ParseCommitteeHashStatement(proof.PublicInputs)
	require.NoError(t, err)
	require.Equal(t, hashOf(t, f.s0), stmt.Hash)

	rec, err := proof.Record()
	require.NoError(t, err)
	// a fresh process reads the circuit from the key dir
	reopened, err := proving.NewKeyStore(dir, log)
	require.NoError(t, err)
	restored, err := proving.NewGroth16Backend(reopened, log).Restore(rec)
	require.NoError(t, err)
	require.Equal(t, proving.CommitteeHashCircuit, restored.Circuit)

	placeholder, assignment, err := backend.Embed(restored)
	require.NoError(t, err)
	err = gnark_test.IsSolved(&hashEmbed{Inner: placeholder}, &hashEmbed{
		Inner: assignment,
		Hash:  circuit.ValueOfBytes32(stmt.Hash),
	}, ecc.BN254.ScalarField())
	require.NoError(t, err)

	other := stmt.Hash
	other[0] ^= 0x01
	err = gnark_test.IsSolved(&hashEmbed{Inner: placeholder}, &hashEmbed{
		Inner: assignment,
		Hash:  circuit.ValueOfBytes32(other),
	}, ecc.BN254.ScalarField())
	require.Error(t, err)
}
