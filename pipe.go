package txgateway

import (
	"github.com/outofforest/spin"
)

// NewPipe returns in-memory duplex pipe for attaching a client to the stream adapter within the process.
func NewPipe() Pipe {
	return Pipe{
		records: spin.New(),
		results: spin.New(),
	}
}

// Pipe is the gateway end of the in-memory pipe. It reads records and writes results.
type Pipe struct {
	records *spin.Buffer
	results *spin.Buffer
}

// Read reads records sent by the client.
func (p Pipe) Read(buf []byte) (int, error) {
	return p.records.Read(buf)
}

// Write writes results for the client.
func (p Pipe) Write(buf []byte) (int, error) {
	return p.results.Write(buf)
}

// Client returns the client end of the pipe, which writes records and reads results.
func (p Pipe) Client() Pipe {
	return Pipe{
		records: p.results,
		results: p.records,
	}
}

// Close closes both directions.
func (p Pipe) Close() error {
	err1 := p.records.Close()
	err2 := p.results.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
