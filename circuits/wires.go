package circuit

import (
	"fmt"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/math/uints"

	"github.com/kysee/zk-bridge/types"
)

// Bytes32 carries a 32-byte value as its high and low 128-bit big-endian halves.
type Bytes32 struct {
	Hi frontend.Variable
	Lo frontend.Variable
}

func ValueOfBytes32(v [32]byte) Bytes32 {
	hi, lo := types.Hash32(v).Halves()
	return Bytes32{Hi: hi, Lo: lo}
}

// bytes32Of composes a 32-byte big-endian sequence, e.g. a hash digest.
func bytes32Of(api frontend.API, b []uints.U8) Bytes32 {
	return Bytes32{Hi: bytesToHalf(api, b[:16]), Lo: bytesToHalf(api, b[16:32])}
}

func (b Bytes32) Bytes(api frontend.API) [32]uints.U8 {
	var out [32]uints.U8
	copy(out[:16], halfToBytes(api, b.Hi))
	copy(out[16:], halfToBytes(api, b.Lo))
	return out
}

func (b Bytes32) AssertIsEqual(api frontend.API, other Bytes32) {
	api.AssertIsEqual(b.Hi, other.Hi)
	api.AssertIsEqual(b.Lo, other.Lo)
}

// CommitteeWires is a padded committee of consensus keys.
type CommitteeWires [types.MaxValidatorCount]Bytes32

func ValueOfCommittee(keys [types.MaxValidatorCount]types.ConsensusKey) CommitteeWires {
	var w CommitteeWires
	for i := range keys {
		w[i] = ValueOfBytes32(keys[i])
	}
	return w
}

func (c CommitteeWires) AssertIsEqual(api frontend.API, other CommitteeWires) {
	for i := range c {
		c[i].AssertIsEqual(api, other[i])
	}
}

// Public input layouts of embedded proofs. Each Parse function reads the inputs in the
// order the producing circuit declares its public fields.

type FinalityWires struct {
	CommitteeHash Bytes32
	BlockHash     Bytes32
	// AuthoritySetID holds the set id bits, least significant first.
	AuthoritySetID [types.AuthoritySetIDBits]frontend.Variable
}

// SetID constrains the set id bits to be boolean and composes them.
func (f FinalityWires) SetID(api frontend.API) frontend.Variable {
	for _, b := range f.AuthoritySetID {
		api.AssertIsBoolean(b)
	}
	return api.FromBinary(f.AuthoritySetID[:]...)
}

func ParseFinalityWires(in []frontend.Variable) (FinalityWires, error) {
	var w FinalityWires
	r, err := newWireReader("finality", in, types.FinalityInputCount)
	if err != nil {
		return w, err
	}
	w.CommitteeHash = r.bytes32()
	w.BlockHash = r.bytes32()
	for i := range w.AuthoritySetID {
		w.AuthoritySetID[i] = r.next()
	}
	return w, nil
}

type InclusionWires struct {
	BlockHash       Bytes32
	StorageItemHash Bytes32
}

func ParseInclusionWires(in []frontend.Variable) (InclusionWires, error) {
	var w InclusionWires
	r, err := newWireReader("inclusion", in, types.InclusionInputCount)
	if err != nil {
		return w, err
	}
	w.BlockHash = r.bytes32()
	w.StorageItemHash = r.bytes32()
	return w, nil
}

type CommitteeHashWires struct {
	Hash         Bytes32
	ValidatorSet CommitteeWires
}

func ParseCommitteeHashWires(in []frontend.Variable) (CommitteeHashWires, error) {
	var w CommitteeHashWires
	r, err := newWireReader("committee hash", in, types.CommitteeHashInputCount)
	if err != nil {
		return w, err
	}
	w.Hash = r.bytes32()
	w.ValidatorSet = r.committee()
	return w, nil
}

type ExtractionWires struct {
	PriorCommitteeHash Bytes32
	EpochID            frontend.Variable
	NextCommittee      CommitteeWires
}

func ParseExtractionWires(in []frontend.Variable) (ExtractionWires, error) {
	var w ExtractionWires
	r, err := newWireReader("committee extraction", in, types.ExtractionInputCount)
	if err != nil {
		return w, err
	}
	w.PriorCommitteeHash = r.bytes32()
	w.EpochID = r.next()
	w.NextCommittee = r.committee()
	return w, nil
}

// EpochWires is the public statement shared by transition, genesis and step circuits.
type EpochWires struct {
	PriorCommitteeHash Bytes32
	NextCommitteeHash  Bytes32
	EpochID            frontend.Variable
}

func ValueOfEpoch(e types.EpochProof) EpochWires {
	return EpochWires{
		PriorCommitteeHash: ValueOfBytes32(e.PriorCommitteeHash),
		NextCommitteeHash:  ValueOfBytes32(e.NextCommitteeHash),
		EpochID:            e.EpochID,
	}
}

func (e EpochWires) AssertIsEqual(api frontend.API, other EpochWires) {
	e.PriorCommitteeHash.AssertIsEqual(api, other.PriorCommitteeHash)
	e.NextCommitteeHash.AssertIsEqual(api, other.NextCommitteeHash)
	api.AssertIsEqual(e.EpochID, other.EpochID)
}

func ParseEpochWires(in []frontend.Variable) (EpochWires, error) {
	var w EpochWires
	r, err := newWireReader("epoch", in, types.EpochInputCount)
	if err != nil {
		return w, err
	}
	w.PriorCommitteeHash = r.bytes32()
	w.NextCommitteeHash = r.bytes32()
	w.EpochID = r.next()
	return w, nil
}

type MessageSentWires struct {
	BlockHash      Bytes32
	MessageHash    Bytes32
	AuthoritySetID frontend.Variable
}

func ValueOfMessageSent(s types.MessageSentStatement) MessageSentWires {
	return MessageSentWires{
		BlockHash:      ValueOfBytes32(s.BlockHash),
		MessageHash:    ValueOfBytes32(s.MessageHash),
		AuthoritySetID: s.AuthoritySetID,
	}
}

type wireReader struct {
	in  []frontend.Variable
	pos int
}

func newWireReader(name string, in []frontend.Variable, want int) (*wireReader, error) {
	if len(in) != want {
		return nil, fmt.Errorf("%w: %s proof exposes %d public inputs, want %d", types.ErrLayout, name, len(in), want)
	}
	return &wireReader{in: in}, nil
}

func (r *wireReader) next() frontend.Variable {
	v := r.in[r.pos]
	r.pos++
	return v
}

func (r *wireReader) bytes32() Bytes32 {
	return Bytes32{Hi: r.next(), Lo: r.next()}
}

func (r *wireReader) committee() CommitteeWires {
	var c CommitteeWires
	for i := range c {
		c[i] = r.bytes32()
	}
	return c
}
