package types

import (
	"fmt"
	"math/big"
)

// Public input counts of each proof kind. The order of inputs is fixed by the
// PublicInputs method of the matching statement and mirrored by the circuit wires.
const (
	AuthoritySetIDBits = 64

	FinalityInputCount      = 2 + 2 + AuthoritySetIDBits
	InclusionInputCount     = 2 + 2
	CommitteeHashInputCount = 2 + 2*MaxValidatorCount
	ExtractionInputCount    = 2 + 1 + 2*MaxValidatorCount
	EpochInputCount         = 2 + 2 + 1
	MessageSentInputCount   = 2 + 2 + 1
)

// FinalityStatement is what a block finality proof attests: the committee with
// commitment CommitteeHash finalized BlockHash during authority set AuthoritySetID.
// The set id travels as 64 little-endian bits.
type FinalityStatement struct {
	CommitteeHash  Hash32
	BlockHash      Hash32
	AuthoritySetID uint64
}

func (s FinalityStatement) PublicInputs() []*big.Int {
	var w inputWriter
	w.hash(s.CommitteeHash)
	w.hash(s.BlockHash)
	w.bitsLE(s.AuthoritySetID, AuthoritySetIDBits)
	return w
}

func ParseFinalityStatement(in []*big.Int) (FinalityStatement, error) {
	var s FinalityStatement
	r, err := newInputReader("finality", in, FinalityInputCount)
	if err != nil {
		return s, err
	}
	s.CommitteeHash = r.hash()
	s.BlockHash = r.hash()
	s.AuthoritySetID = r.bitsLE(AuthoritySetIDBits)
	return s, r.err
}

// InclusionStatement attests that the storage item hashing to StorageItemHash is
// present in the state of block BlockHash.
type InclusionStatement struct {
	BlockHash       Hash32
	StorageItemHash Hash32
}

func (s InclusionStatement) PublicInputs() []*big.Int {
	var w inputWriter
	w.hash(s.BlockHash)
	w.hash(s.StorageItemHash)
	return w
}

func ParseInclusionStatement(in []*big.Int) (InclusionStatement, error) {
	var s InclusionStatement
	r, err := newInputReader("inclusion", in, InclusionInputCount)
	if err != nil {
		return s, err
	}
	s.BlockHash = r.hash()
	s.StorageItemHash = r.hash()
	return s, r.err
}

// CommitteeHashStatement binds a padded committee to its commitment.
type CommitteeHashStatement struct {
	Hash         Hash32
	ValidatorSet [MaxValidatorCount]ConsensusKey
}

func (s CommitteeHashStatement) PublicInputs() []*big.Int {
	var w inputWriter
	w.hash(s.Hash)
	w.committee(s.ValidatorSet)
	return w
}

func ParseCommitteeHashStatement(in []*big.Int) (CommitteeHashStatement, error) {
	var s CommitteeHashStatement
	r, err := newInputReader("committee hash", in, CommitteeHashInputCount)
	if err != nil {
		return s, err
	}
	s.Hash = r.hash()
	s.ValidatorSet = r.committee()
	return s, r.err
}

// ExtractionStatement states that the committee finalizing epoch EpochID, committed
// by PriorCommitteeHash, published NextCommittee as its successor.
type ExtractionStatement struct {
	PriorCommitteeHash Hash32
	EpochID            uint64
	NextCommittee      [MaxValidatorCount]ConsensusKey
}

func (s ExtractionStatement) PublicInputs() []*big.Int {
	var w inputWriter
	w.hash(s.PriorCommitteeHash)
	w.uint(s.EpochID)
	w.committee(s.NextCommittee)
	return w
}

func ParseExtractionStatement(in []*big.Int) (ExtractionStatement, error) {
	var s ExtractionStatement
	r, err := newInputReader("committee extraction", in, ExtractionInputCount)
	if err != nil {
		return s, err
	}
	s.PriorCommitteeHash = r.hash()
	s.EpochID = r.uint64()
	s.NextCommittee = r.committee()
	return s, r.err
}

// EpochProof is the public statement of every transition, genesis and step proof.
type EpochProof struct {
	PriorCommitteeHash Hash32
	NextCommitteeHash  Hash32
	EpochID            uint64
}

func (s EpochProof) PublicInputs() []*big.Int {
	var w inputWriter
	w.hash(s.PriorCommitteeHash)
	w.hash(s.NextCommitteeHash)
	w.uint(s.EpochID)
	return w
}

func ParseEpochProof(in []*big.Int) (EpochProof, error) {
	var s EpochProof
	r, err := newInputReader("epoch", in, EpochInputCount)
	if err != nil {
		return s, err
	}
	s.PriorCommitteeHash = r.hash()
	s.NextCommitteeHash = r.hash()
	s.EpochID = r.uint64()
	return s, r.err
}

// MessageSentStatement is the terminal statement: the message hashing to MessageHash
// is stored in block BlockHash, finalized during authority set AuthoritySetID.
type MessageSentStatement struct {
	BlockHash      Hash32
	MessageHash    Hash32
	AuthoritySetID uint64
}

func (s MessageSentStatement) PublicInputs() []*big.Int {
	var w inputWriter
	w.hash(s.BlockHash)
	w.hash(s.MessageHash)
	w.uint(s.AuthoritySetID)
	return w
}

func ParseMessageSentStatement(in []*big.Int) (MessageSentStatement, error) {
	var s MessageSentStatement
	r, err := newInputReader("message sent", in, MessageSentInputCount)
	if err != nil {
		return s, err
	}
	s.BlockHash = r.hash()
	s.MessageHash = r.hash()
	s.AuthoritySetID = r.uint64()
	return s, r.err
}

type inputWriter []*big.Int

func (w *inputWriter) hash(h [32]byte) {
	hi, lo := Hash32(h).Halves()
	*w = append(*w, hi, lo)
}

func (w *inputWriter) uint(v uint64) {
	*w = append(*w, new(big.Int).SetUint64(v))
}

func (w *inputWriter) bitsLE(v uint64, n int) {
	for i := 0; i < n; i++ {
		w.uint((v >> uint(i)) & 1)
	}
}

func (w *inputWriter) committee(keys [MaxValidatorCount]ConsensusKey) {
	for _, k := range keys {
		w.hash(k)
	}
}

// inputReader consumes a public input vector. The first failure sticks in err.
type inputReader struct {
	name string
	in   []*big.Int
	pos  int
	err  error
}

func newInputReader(name string, in []*big.Int, want int) (*inputReader, error) {
	if len(in) != want {
		return nil, fmt.Errorf("%w: %s statement has %d public inputs, want %d", ErrLayout, name, len(in), want)
	}
	return &inputReader{name: name, in: in}, nil
}

func (r *inputReader) next() *big.Int {
	v := r.in[r.pos]
	r.pos++
	return v
}

func (r *inputReader) hash() Hash32 {
	h, err := Hash32FromHalves(r.next(), r.next())
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("%s input %d: %w", r.name, r.pos-2, err)
	}
	return h
}

func (r *inputReader) uint64() uint64 {
	v := r.next()
	if v == nil || v.Sign() < 0 || !v.IsUint64() {
		if r.err == nil {
			r.err = fmt.Errorf("%w: %s input %d is not a 64-bit value", ErrLayout, r.name, r.pos-1)
		}
		return 0
	}
	return v.Uint64()
}

func (r *inputReader) bitsLE(n int) uint64 {
	var out uint64
	for i := 0; i < n; i++ {
		b := r.next()
		if b == nil || (b.Sign() != 0 && b.Cmp(big.NewInt(1)) != 0) {
			if r.err == nil {
				r.err = fmt.Errorf("%w: %s input %d is not a bit", ErrLayout, r.name, r.pos-1)
			}
			continue
		}
		out |= b.Uint64() << uint(i)
	}
	return out
}

func (r *inputReader) committee() [MaxValidatorCount]ConsensusKey {
	var keys [MaxValidatorCount]ConsensusKey
	for i := range keys {
		keys[i] = ConsensusKey(r.hash())
	}
	return keys
}
