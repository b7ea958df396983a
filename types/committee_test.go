package types

import (
	"crypto/rand"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
)

func randomSeats(t *testing.T, n int) []SessionKeys {
	seats := make([]SessionKeys, n)
	for i := range seats {
		for j := range seats[i] {
			_, err := rand.Read(seats[i][j][:])
			require.NoError(t, err)
		}
	}
	return seats
}

func TestCommitteeRecord_RoundTrip(t *testing.T) {
	for n := 1; n <= MaxValidatorCount; n++ {
		seats := randomSeats(t, n)
		blob, err := CommitteeRecord{Seats: seats}.Encode()
		require.NoError(t, err)
		require.Len(t, blob, CommitteeRecordSize)
		require.Equal(t, byte(n<<2), blob[0])

		committee, err := ExtractCommittee(BitsOf(blob))
		require.NoError(t, err)
		require.Len(t, committee, n)
		for i := range seats {
			require.Equal(t, seats[i][GrandpaKeyIndex], committee[i])
		}

		keys, err := RecordConsensusKeys(blob)
		require.NoError(t, err)
		for i := 0; i < MaxValidatorCount; i++ {
			if i < n {
				require.Equal(t, committee[i], keys[i])
			} else {
				require.Equal(t, ConsensusKey{}, keys[i])
			}
		}
	}
}

func TestCommitteeRecord_Faults(t *testing.T) {
	_, err := CommitteeRecord{Seats: randomSeats(t, MaxValidatorCount+1)}.Encode()
	require.ErrorIs(t, err, ErrLayout)

	_, err = DecodeCommitteeRecord(make([]byte, CommitteeRecordSize-1))
	require.ErrorIs(t, err, ErrLayout)

	_, err = ExtractCommittee(make([]bool, CommitteeRecordBits-3))
	require.ErrorIs(t, err, ErrLayout)

	blob := make([]byte, CommitteeRecordSize)
	blob[0] = byte((MaxValidatorCount + 1) << 2)
	_, err = DecodeCommitteeRecord(blob)
	require.ErrorIs(t, err, ErrMalformedWitness)

	blob[0] = 0x01
	_, err = DecodeCommitteeRecord(blob)
	require.ErrorIs(t, err, ErrMalformedWitness)
}

func TestBits_MostSignificantFirst(t *testing.T) {
	bits := BitsOf([]byte{0x80, 0x01})
	require.True(t, bits[0])
	require.False(t, bits[7])
	require.True(t, bits[15])

	out, err := BytesOf(bits)
	require.NoError(t, err)
	require.Equal(t, []byte{0x80, 0x01}, out)
}

func sha(a, b []byte) []byte {
	h := sha256.New()
	h.Write(a)
	h.Write(b)
	return h.Sum(nil)
}

func TestCommitteeHash_MatchesMerkleRoot(t *testing.T) {
	seats := randomSeats(t, 3)
	committee := CommitteeRecord{Seats: seats}.Committee()
	got, err := committee.Hash()
	require.NoError(t, err)

	keys, err := committee.Padded()
	require.NoError(t, err)
	zero := make([]byte, 32)
	leaves := [][]byte{keys[0][:], keys[1][:], keys[2][:], keys[3][:], keys[4][:], keys[5][:], zero, zero}
	for len(leaves) > 1 {
		next := make([][]byte, 0, len(leaves)/2)
		for i := 0; i < len(leaves); i += 2 {
			next = append(next, sha(leaves[i], leaves[i+1]))
		}
		leaves = next
	}
	require.Equal(t, leaves[0], got[:])

	// seat order is significant
	swapped := Committee{committee[1], committee[0], committee[2]}
	other, err := swapped.Hash()
	require.NoError(t, err)
	require.NotEqual(t, got, other)

	_, err = make(Committee, MaxValidatorCount+1).Hash()
	require.ErrorIs(t, err, ErrMalformedWitness)
}
