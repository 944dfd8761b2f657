package txgateway

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RequestIDHeader carries the id of the request.
const RequestIDHeader = "X-Request-Id"

// DefaultMaxBodySize is the default limit of the request body size.
const DefaultMaxBodySize = 64 * 1024

// HTTPConfig is the configuration of the HTTP adapter.
type HTTPConfig struct {
	MaxBodySize int64
}

// NewHTTPHandler returns the handler serving the gateway over HTTP.
// Loggers of the requests are derived from the logger stored in ctx.
func NewHTTPHandler(ctx context.Context, g *Gateway, config HTTPConfig, gatherer prometheus.Gatherer) http.Handler {
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger.Get(ctx)))

	engine.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	engine.POST("/route", routeHandler(g, config.MaxBodySize))
	if gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return engine
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(RequestIDHeader, reqID)

		start := time.Now()
		reqLog := log.With(zap.String("reqId", reqID))
		c.Request = c.Request.WithContext(logger.WithLogger(c.Request.Context(), reqLog))

		c.Next()

		reqLog.Debug("request served",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}

func routeHandler(g *Gateway, maxBodySize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		log := logger.Get(ctx)

		var body []byte
		if c.Request.Body != nil {
			var err error
			body, err = io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize))
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				err = errors.Wrapf(ErrMalformedInput, "body exceeds %d bytes", tooLarge.Limit)
				g.metrics.observeRequest(TransportHTTP, "", err)
				log.Error("error routing", zap.Error(err))
				c.String(http.StatusRequestEntityTooLarge, "Body Too Large")
				return
			}
			if err != nil {
				log.Error("reading body failed", zap.Error(err))
				c.String(http.StatusBadRequest, "No Body")
				return
			}
		}
		if len(bytes.TrimSpace(body)) == 0 {
			c.String(http.StatusBadRequest, "No Body")
			return
		}

		raw, err := ParseRawTransaction(body)
		var variant Variant
		var route []byte
		if err == nil {
			variant, _ = raw.ResolveVariant()
			log.Info("routing transaction", zap.Any("transaction", redact(raw)))
			route, err = g.Route(ctx, raw, "")
		}
		g.metrics.observeRequest(TransportHTTP, variant, err)

		if err != nil {
			log.Error("error routing", zap.Error(err))
			c.String(http.StatusInternalServerError, err.Error())
			return
		}

		log.Info("routed transaction", zap.ByteString("route", route))
		c.Data(http.StatusOK, "text/plain; charset=utf-8", route)
	}
}

// redact hides credentials before the transaction is logged.
func redact(raw RawTransaction) RawTransaction {
	if raw.Credentials != "" {
		raw.Credentials = "<redacted>"
	}
	return raw
}

// RunHTTPServer serves the handler on the listener until ctx is canceled.
func RunHTTPServer(ctx context.Context, ls net.Listener, handler http.Handler, readHeaderTimeout time.Duration) error {
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("server", parallel.Fail, func(ctx context.Context) error {
			logger.Get(ctx).Info("server listening", zap.Stringer("address", ls.Addr()))
			err := server.Serve(ls)
			if errors.Is(err, http.ErrServerClosed) {
				return errors.WithStack(ctx.Err())
			}
			return errors.WithStack(err)
		})
		spawn("watchdog", parallel.Fail, func(ctx context.Context) error {
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			_ = server.Shutdown(shutdownCtx)
			return errors.WithStack(ctx.Err())
		})
		return nil
	})
}
