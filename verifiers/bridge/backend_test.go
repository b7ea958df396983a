package bridge

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/kysee/zk-bridge/types"
)

type recordingBackend struct {
	compiled []byte
	proveErr error
}

func (b *recordingBackend) Compile(payload []byte) error {
	b.compiled = payload
	return nil
}

func (b *recordingBackend) Prove(payload []byte) (string, error) {
	if b.proveErr != nil {
		return "", b.proveErr
	}
	return "proof:" + string(payload), nil
}

func TestExport(t *testing.T) {
	rec := &types.ProofRecord{Circuit: "message-sent-2", PublicInputs: []string{"1", "2"}}

	b := &recordingBackend{}
	out, err := Export(b, rec)
	require.NoError(t, err)

	var got types.ProofRecord
	require.NoError(t, json.Unmarshal(b.compiled, &got))
	require.Equal(t, *rec, got)
	require.Equal(t, "proof:"+string(b.compiled), out)

	b.proveErr = errors.New("boom")
	_, err = Export(b, rec)
	require.Error(t, err)

	out, err = Export(PassthroughBackend{}, rec)
	require.NoError(t, err)
	require.JSONEq(t, `{"circuit":"message-sent-2","public_inputs":["1","2"]}`, out)
}

func TestSolidityBackend_RejectsNativeRecords(t *testing.T) {
	b := NewSolidityBackend(t.TempDir()+"/Verifier.sol", zerolog.Nop())
	payload, err := json.Marshal(&types.ProofRecord{Circuit: "message-sent-1"})
	require.NoError(t, err)

	require.ErrorIs(t, b.Compile(payload), ErrBackend)
	_, err = b.Prove(payload)
	require.ErrorIs(t, err, ErrBackend)
}
