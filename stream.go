package txgateway

import (
	"context"
	"io"
	"os"
	"syscall"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// StreamConfig is the configuration of the stream adapter.
type StreamConfig struct {
	// Workers is the number of records resolved concurrently.
	// With single worker output order matches input order.
	Workers       int
	MaxRecordSize int
}

// NewStream creates stream adapter reading records from in and writing results to out.
func NewStream(g *Gateway, in io.Reader, out io.Writer, config StreamConfig) *Stream {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	return &Stream{
		gateway: g,
		in:      in,
		conn:    NewConnection(in, out, config.MaxRecordSize),
		config:  config,
	}
}

// Stream serves the gateway over continuous byte stream.
type Stream struct {
	gateway *Gateway
	in      io.Reader
	conn    *Connection
	config  StreamConfig
}

// Run processes records until input is exhausted, output is closed or ctx is canceled.
// Failed records produce no output.
func (s *Stream) Run(ctx context.Context) error {
	err := parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		recordCh := make(chan []byte, s.config.Workers)
		resultCh := make(chan []byte, s.config.Workers)

		spawn("receiver", parallel.Continue, func(ctx context.Context) error {
			defer close(recordCh)
			return s.receive(ctx, recordCh)
		})
		spawn("workers", parallel.Continue, func(ctx context.Context) error {
			defer close(resultCh)
			return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
				for i := range s.config.Workers {
					spawn("worker", parallel.Continue, func(ctx context.Context) error {
						return s.work(ctx, i, recordCh, resultCh)
					})
				}
				return nil
			})
		})
		spawn("sender", parallel.Exit, func(ctx context.Context) error {
			return s.send(ctx, resultCh)
		})
		spawn("watchdog", parallel.Continue, func(ctx context.Context) error {
			<-ctx.Done()
			if closer, ok := s.in.(io.Closer); ok {
				_ = closer.Close()
			}
			return nil
		})
		return nil
	})
	if err == nil && ctx.Err() != nil {
		return errors.WithStack(ctx.Err())
	}
	return err
}

func (s *Stream) receive(ctx context.Context, recordCh chan<- []byte) error {
	log := logger.Get(ctx)
	for {
		record, err := s.conn.Receive()
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return errors.WithStack(ctx.Err())
		case errors.Is(err, io.EOF):
			log.Debug("input exhausted")
			return nil
		case errors.Is(err, ErrRecordTooLarge):
			s.drop(ctx, err)
			continue
		default:
			return err
		}

		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case recordCh <- record:
		}
	}
}

func (s *Stream) work(ctx context.Context, id int, recordCh <-chan []byte, resultCh chan<- []byte) error {
	ctx = logger.WithLogger(ctx, logger.Get(ctx).With(zap.Int("worker", id)))
	for {
		var record []byte
		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case r, ok := <-recordCh:
			if !ok {
				return nil
			}
			record = r
		}

		variant, result, err := s.gateway.RouteRecord(ctx, record)
		s.gateway.metrics.observeRequest(TransportStream, variant, err)
		if err != nil {
			s.drop(ctx, err)
			continue
		}

		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case resultCh <- result:
		}
	}
}

func (s *Stream) send(ctx context.Context, resultCh <-chan []byte) error {
	log := logger.Get(ctx)
	for {
		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case result, ok := <-resultCh:
			if !ok {
				return nil
			}
			if err := s.conn.Send(result); err != nil {
				if isBrokenPipe(err) {
					log.Info("output closed, terminating")
				} else {
					log.Error("writing output failed, terminating", zap.Error(err))
				}
				return nil
			}
		}
	}
}

func (s *Stream) drop(ctx context.Context, err error) {
	s.gateway.metrics.observeDrop(err)
	logger.Get(ctx).Warn("record dropped", zap.String("reason", ErrorReason(err)), zap.Error(err))
}

func isBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrClosed)
}
