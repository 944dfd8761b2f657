package txgateway

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
)

// DefaultMaxRecordSize is the default limit of the inbound record size.
const DefaultMaxRecordSize = 64 * 1024

// ErrRecordTooLarge is returned when inbound record exceeds the allowed maximum.
var ErrRecordTooLarge = errors.Wrap(ErrMalformedInput, "record too large")

// NewConnection creates new connection exchanging newline-terminated records.
func NewConnection(in io.Reader, out io.Writer, maxRecordSize int) *Connection {
	if maxRecordSize <= 0 {
		maxRecordSize = DefaultMaxRecordSize
	}
	return &Connection{
		reader:        bufio.NewReaderSize(in, maxRecordSize),
		writer:        out,
		maxRecordSize: maxRecordSize,
	}
}

// Connection reads records from the input and writes records to the output.
// Receive and Send may be used concurrently with each other, but not with themselves.
type Connection struct {
	reader        *bufio.Reader
	writer        io.Writer
	maxRecordSize int
	sendBuf       []byte
}

// Receive returns next record. Blank lines are skipped. io.EOF is returned when input is exhausted.
// ErrRecordTooLarge is not fatal, the oversized record is skipped and next one may be received.
func (c *Connection) Receive() ([]byte, error) {
	for {
		line, err := c.reader.ReadSlice('\n')
		switch {
		case err == nil:
		case errors.Is(err, bufio.ErrBufferFull):
			for errors.Is(err, bufio.ErrBufferFull) {
				_, err = c.reader.ReadSlice('\n')
			}
			if err != nil && !errors.Is(err, io.EOF) {
				return nil, errors.WithStack(err)
			}
			return nil, errors.Wrapf(ErrRecordTooLarge, "allowed maximum is %d bytes", c.maxRecordSize)
		case errors.Is(err, io.EOF):
			if len(line) == 0 {
				return nil, io.EOF
			}
		default:
			return nil, errors.WithStack(err)
		}

		line = bytes.TrimRight(line, "\r\n")
		if len(bytes.TrimSpace(line)) == 0 {
			if err != nil {
				return nil, io.EOF
			}
			continue
		}

		// ReadSlice reuses its buffer.
		return bytes.Clone(line), nil
	}
}

// Send writes the record followed by newline in a single write.
func (c *Connection) Send(record []byte) error {
	c.sendBuf = append(append(c.sendBuf[:0], record...), '\n')
	if _, err := c.writer.Write(c.sendBuf); err != nil {
		return errors.WithStack(err)
	}
	return nil
}
