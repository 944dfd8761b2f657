package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/outofforest/logger"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/outofforest/txgateway"
	"github.com/outofforest/txgateway/pkg/config"
	"github.com/outofforest/txgateway/pkg/onchain"
	"github.com/outofforest/txgateway/pkg/venue"
)

func main() {
	// Writes to closed stdout must fail with EPIPE instead of killing the process.
	signal.Ignore(syscall.SIGPIPE)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type app struct {
	configPath string
	config     config.Config
	closers    []func()
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "txgateway",
		Short:         "Routes trading intents to on-chain route optimizer and exchanges",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd); err != nil {
				// Logger is not available yet.
				cmd.PrintErrln("Error:", err)
				return err
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to the configuration file")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve [rpc-url] [chain-id]",
			Short: "Serves the gateway over HTTP",
			Args:  cobra.MaximumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				defer a.teardown()
				return a.runErr(cmd.Context(), a.serve(cmd.Context(), args))
			},
		},
		&cobra.Command{
			Use:   "pipe",
			Short: "Serves the gateway over stdin and stdout",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				defer a.teardown()
				return a.runErr(cmd.Context(), a.pipe(cmd.Context()))
			},
		},
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.config = cfg

	logConfig := logger.DefaultConfig
	logConfig.Verbose = cfg.Log.Verbose
	if cfg.Log.Format == "json" {
		logConfig.Format = logger.FormatJSON
	}
	log := logger.New(logConfig)

	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return errors.Wrapf(err, "opening log file %q failed", cfg.Log.File)
		}
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(f),
			zapcore.DebugLevel,
		)
		log = log.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, fileCore)
		}))
		a.closers = append(a.closers, func() { _ = f.Close() })
	}
	a.closers = append(a.closers, func() { _ = log.Sync() })

	cmd.SetContext(logger.WithLogger(cmd.Context(), log.Named("txgateway")))
	return nil
}

func (a *app) teardown() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) runErr(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	logger.Get(ctx).Error("gateway failed", zap.Error(err))
	return err
}

func (a *app) serve(ctx context.Context, args []string) error {
	if len(args) > 0 {
		a.config.Chain.RPCURL = args[0]
	}
	if len(args) > 1 {
		chainID, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid chain id %q", args[1])
		}
		a.config.Chain.ChainID = chainID
	}

	registry := prometheus.NewRegistry()
	g, err := a.gateway(ctx, registry)
	if err != nil {
		return err
	}

	ls, err := net.Listen("tcp", a.config.HTTP.Listen)
	if err != nil {
		return errors.WithStack(err)
	}

	return txgateway.RunHTTPServer(ctx, ls, txgateway.NewHTTPHandler(ctx, g, txgateway.HTTPConfig{
		MaxBodySize: a.config.HTTP.MaxBodySize,
	}, registry), a.config.HTTP.ReadHeaderTimeout)
}

func (a *app) pipe(ctx context.Context) error {
	g, err := a.gateway(ctx, prometheus.NewRegistry())
	if err != nil {
		return err
	}

	stdin, err := txgateway.PollableFile(os.Stdin)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() { _ = stdin.Close() })

	return txgateway.NewStream(g, stdin, os.Stdout, txgateway.StreamConfig{
		Workers:       a.config.Stream.Workers,
		MaxRecordSize: a.config.Stream.MaxRecordSize,
	}).Run(ctx)
}

func (a *app) gateway(ctx context.Context, registry *prometheus.Registry) (*txgateway.Gateway, error) {
	log := logger.Get(ctx)
	cfg := a.config

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := txgateway.NewMetrics(registry)
	if err != nil {
		return nil, err
	}

	var resolvers []txgateway.Resolver

	routerURL := cfg.Chain.RouterURL
	if routerURL == "" {
		routerURL = cfg.Chain.RPCURL
	}
	if routerURL != "" {
		if cfg.Chain.RPCURL != "" {
			if err := onchain.VerifyChainID(ctx, cfg.Chain.RPCURL, cfg.Chain.ChainID); err != nil {
				return nil, err
			}
		}
		router, err := onchain.Dial(ctx, routerURL, cfg.Chain.RouterMethod)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, router.Close)
		resolvers = append(resolvers, txgateway.NewSwapRouteResolver(router))
		log.Info("initialized router", zap.Uint64("chainId", cfg.Chain.ChainID), zap.String("providerUrl", routerURL))
	}

	allowed := make([]string, 0, len(cfg.Exchanges))
	if len(cfg.Exchanges) > 0 {
		venues := make([]txgateway.Venue, 0, len(cfg.Exchanges))
		client := &http.Client{}
		for _, e := range cfg.Exchanges {
			venues = append(venues, txgateway.Venue{
				Name:             e.Name,
				RequiresID:       e.RequiresUID,
				RequiresPassword: e.RequiresPassword,
				Placer:           venue.New(e.BaseURL, client),
			})
			allowed = append(allowed, e.Name)
		}
		exchanges, err := txgateway.NewExchangeOrderResolver(venues...)
		if err != nil {
			return nil, err
		}
		resolvers = append(resolvers, exchanges)
		log.Info("initialized exchanges", zap.Strings("exchanges", allowed))
	}

	if len(resolvers) == 0 {
		return nil, errors.New("neither route optimizer nor exchanges are configured")
	}
	resolverRegistry, err := txgateway.NewRegistry(resolvers...)
	if err != nil {
		return nil, err
	}

	normalizer := txgateway.NewNormalizer(txgateway.NormalizerConfig{
		ChainID:              cfg.Chain.ChainID,
		SlippageBps:          cfg.Gateway.SlippageBps,
		DeadlineWindow:       cfg.Gateway.DeadlineWindow,
		RejectUnknownActions: cfg.Gateway.RejectUnknownActions,
		AllowedProviders:     allowed,
	})

	return txgateway.New(txgateway.Config{
		ResolveTimeout: cfg.Gateway.ResolveTimeout,
	}, normalizer, resolverRegistry, metrics), nil
}
