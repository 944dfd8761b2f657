package txgateway

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodePayloadWithDelimiters(t *testing.T) {
	requireT := require.New(t)

	payload := `{"a":{"b":"c:d"},"e":[1,2]}`
	record, err := Decode([]byte(payload + ":42"))
	requireT.NoError(err)
	requireT.Equal(payload, string(record.Payload))
	requireT.Equal("42", record.CorrelationToken)
}

func TestDecodeRecoversEncodedRecord(t *testing.T) {
	requireT := require.New(t)

	for _, payload := range []string{
		`{}`,
		`{"url":"http://host:8545"}`,
		`":::"`,
		swapTx("1000", "buy"),
	} {
		for _, token := range []string{"1", "abc", "18446744073709551615"} {
			record, err := Decode(Encode([]byte(payload), token))
			requireT.NoError(err)
			requireT.Equal(payload, string(record.Payload))
			requireT.Equal(token, record.CorrelationToken)
		}
	}
}

func TestDecodeMissingToken(t *testing.T) {
	_, err := Decode([]byte(`"payload"`))
	require.ErrorIs(t, err, ErrMalformedInput)
}

func TestDecodeEmptyToken(t *testing.T) {
	_, err := Decode([]byte(`{"a":1}:`))
	require.ErrorIs(t, err, ErrMalformedInput)
}

func TestDecodeMalformedPayload(t *testing.T) {
	_, err := Decode([]byte(`{"a":1:7`))
	require.ErrorIs(t, err, ErrMalformedInput)
}

func TestEncode(t *testing.T) {
	requireT := require.New(t)

	requireT.Equal("0x01:0x0:7", string(Encode([]byte("0x01:0x0"), "7")))
	requireT.Equal("0x01:0x0", string(Encode([]byte("0x01:0x0"), "")))
}
