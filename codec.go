package txgateway

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// Delimiter separates fields of the record.
const Delimiter = ':'

// Record is the decoded inbound record of the stream transport.
type Record struct {
	Payload          []byte
	CorrelationToken string
}

// Decode extracts JSON payload and correlation token from the record.
// Payload may contain the delimiter itself, only the rightmost field is the token.
func Decode(chunk []byte) (Record, error) {
	fields := bytes.Split(chunk, []byte{Delimiter})
	if len(fields) < 2 {
		return Record{}, errors.Wrap(ErrMalformedInput, "correlation token is missing")
	}

	token := fields[len(fields)-1]
	if len(token) == 0 {
		return Record{}, errors.Wrap(ErrMalformedInput, "correlation token is empty")
	}

	payload := bytes.Join(fields[:len(fields)-1], []byte{Delimiter})
	if !json.Valid(payload) {
		return Record{}, errors.Wrapf(ErrMalformedInput, "payload of record %q is not a JSON document", token)
	}

	return Record{
		Payload:          payload,
		CorrelationToken: string(token),
	}, nil
}

// Encode appends correlation token to the result.
func Encode(result []byte, correlationToken string) []byte {
	if correlationToken == "" {
		return result
	}

	out := make([]byte, 0, len(result)+1+len(correlationToken))
	out = append(out, result...)
	out = append(out, Delimiter)
	return append(out, correlationToken...)
}
