package types

import "fmt"

const (
	SessionKeyCount = 5
	// GrandpaKeyIndex is the position of the finality key inside a seat's session keys.
	GrandpaKeyIndex = 2

	SeatRecordSize = SessionKeyCount * ConsensusKeySize
	// CommitteeRecordSize is the length of the stored next-session-keys blob: a one byte
	// compact length prefix followed by MaxValidatorCount seats.
	CommitteeRecordSize = 1 + MaxValidatorCount*SeatRecordSize
	CommitteeRecordBits = CommitteeRecordSize * 8
)

// SessionKeys are the five per-validator keys stored for the next session.
type SessionKeys [SessionKeyCount]ConsensusKey

func (s SessionKeys) Grandpa() ConsensusKey {
	return s[GrandpaKeyIndex]
}

// CommitteeRecord is the decoded next-session-keys storage value.
type CommitteeRecord struct {
	Seats []SessionKeys
}

// Encode produces the fixed-length stored blob. Unused seats are zero.
func (r CommitteeRecord) Encode() ([]byte, error) {
	if len(r.Seats) > MaxValidatorCount {
		return nil, fmt.Errorf("%w: %d seats, at most %d", ErrLayout, len(r.Seats), MaxValidatorCount)
	}
	blob := make([]byte, CommitteeRecordSize)
	blob[0] = byte(len(r.Seats) << 2)
	for i, seat := range r.Seats {
		off := 1 + i*SeatRecordSize
		for j, key := range seat {
			copy(blob[off+j*ConsensusKeySize:], key[:])
		}
	}
	return blob, nil
}

// Committee returns the grandpa keys of the record in seat order.
func (r CommitteeRecord) Committee() Committee {
	c := make(Committee, len(r.Seats))
	for i, seat := range r.Seats {
		c[i] = seat.Grandpa()
	}
	return c
}

// DecodeCommitteeRecord parses a stored blob. The length prefix must be a single-byte
// compact integer no larger than MaxValidatorCount.
func DecodeCommitteeRecord(blob []byte) (CommitteeRecord, error) {
	var r CommitteeRecord
	if len(blob) != CommitteeRecordSize {
		return r, fmt.Errorf("%w: committee record is %d bytes, want %d", ErrLayout, len(blob), CommitteeRecordSize)
	}
	if blob[0]&0b11 != 0 {
		return r, fmt.Errorf("%w: committee record length prefix %#x is not single-byte compact", ErrMalformedWitness, blob[0])
	}
	n := int(blob[0] >> 2)
	if n > MaxValidatorCount {
		return r, fmt.Errorf("%w: committee record declares %d seats, at most %d", ErrMalformedWitness, n, MaxValidatorCount)
	}
	r.Seats = make([]SessionKeys, n)
	for i := range r.Seats {
		r.Seats[i] = seatAt(blob, i)
	}
	return r, nil
}

// RecordConsensusKeys projects the grandpa key of every seat slot, used or not, exactly as
// the extraction circuit does. The length prefix is not interpreted.
func RecordConsensusKeys(blob []byte) ([MaxValidatorCount]ConsensusKey, error) {
	var keys [MaxValidatorCount]ConsensusKey
	if len(blob) != CommitteeRecordSize {
		return keys, fmt.Errorf("%w: committee record is %d bytes, want %d", ErrLayout, len(blob), CommitteeRecordSize)
	}
	for i := range keys {
		keys[i] = seatAt(blob, i).Grandpa()
	}
	return keys, nil
}

// ExtractCommittee decodes the committee from the bit form of a record.
func ExtractCommittee(bits []bool) (Committee, error) {
	blob, err := BytesOf(bits)
	if err != nil {
		return nil, err
	}
	r, err := DecodeCommitteeRecord(blob)
	if err != nil {
		return nil, err
	}
	return r.Committee(), nil
}

func seatAt(blob []byte, i int) SessionKeys {
	var s SessionKeys
	off := 1 + i*SeatRecordSize
	for j := range s {
		copy(s[j][:], blob[off+j*ConsensusKeySize:])
	}
	return s
}
