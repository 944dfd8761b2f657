package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables overriding the configuration.
const EnvPrefix = "TXGATEWAY"

// Config is the configuration of the process.
type Config struct {
	Log       Log        `mapstructure:"log"`
	HTTP      HTTP       `mapstructure:"http"`
	Stream    Stream     `mapstructure:"stream"`
	Gateway   Gateway    `mapstructure:"gateway"`
	Chain     Chain      `mapstructure:"chain"`
	Exchanges []Exchange `mapstructure:"exchanges"`
}

// Log configures logging.
type Log struct {
	Format  string `mapstructure:"format"`
	Verbose bool   `mapstructure:"verbose"`
	File    string `mapstructure:"file"`
}

// HTTP configures the HTTP transport.
type HTTP struct {
	Listen            string        `mapstructure:"listen"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	MaxBodySize       int64         `mapstructure:"max_body_size"`
}

// Stream configures the stream transport.
type Stream struct {
	Workers       int `mapstructure:"workers"`
	MaxRecordSize int `mapstructure:"max_record_size"`
}

// Gateway configures normalization and resolution.
type Gateway struct {
	SlippageBps          uint64        `mapstructure:"slippage_bps"`
	DeadlineWindow       time.Duration `mapstructure:"deadline_window"`
	ResolveTimeout       time.Duration `mapstructure:"resolve_timeout"`
	RejectUnknownActions bool          `mapstructure:"reject_unknown_actions"`
}

// Chain configures the on-chain route optimizer.
type Chain struct {
	RPCURL       string `mapstructure:"rpc_url"`
	ChainID      uint64 `mapstructure:"chain_id"`
	RouterURL    string `mapstructure:"router_url"`
	RouterMethod string `mapstructure:"router_method"`
}

// Exchange registers trading venue.
type Exchange struct {
	Name             string `mapstructure:"name"`
	BaseURL          string `mapstructure:"base_url"`
	RequiresUID      bool   `mapstructure:"requires_uid"`
	RequiresPassword bool   `mapstructure:"requires_password"`
}

// Load reads configuration from the file, if path is not empty, and from environment.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "reading config file %q failed", path)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, errors.Wrap(err, "decoding config failed")
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Log.Format {
	case "console", "json":
	default:
		return errors.Errorf("unknown log format %q", c.Log.Format)
	}
	if c.HTTP.MaxBodySize < 1 {
		return errors.Errorf("maximum body size must be positive, got %d", c.HTTP.MaxBodySize)
	}
	if c.Stream.Workers < 1 {
		return errors.Errorf("number of stream workers must be positive, got %d", c.Stream.Workers)
	}
	if c.Gateway.SlippageBps == 0 || c.Gateway.SlippageBps >= 10000 {
		return errors.Errorf("slippage %d bps is out of range", c.Gateway.SlippageBps)
	}

	names := map[string]struct{}{}
	for _, e := range c.Exchanges {
		if e.Name == "" || e.BaseURL == "" {
			return errors.Errorf("exchange %q must have name and base url", e.Name)
		}
		if _, exists := names[e.Name]; exists {
			return errors.Errorf("exchange %q configured twice", e.Name)
		}
		names[e.Name] = struct{}{}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.format", "console")
	v.SetDefault("log.verbose", false)
	v.SetDefault("log.file", "")
	v.SetDefault("http.listen", ":6278")
	v.SetDefault("http.read_header_timeout", 10*time.Second)
	v.SetDefault("http.max_body_size", 64*1024)
	v.SetDefault("stream.workers", 1)
	v.SetDefault("stream.max_record_size", 64*1024)
	v.SetDefault("gateway.slippage_bps", 20)
	v.SetDefault("gateway.deadline_window", 10*time.Minute)
	v.SetDefault("gateway.resolve_timeout", 30*time.Second)
	v.SetDefault("gateway.reject_unknown_actions", false)
	v.SetDefault("chain.rpc_url", "")
	v.SetDefault("chain.chain_id", 1)
	v.SetDefault("chain.router_url", "")
	v.SetDefault("chain.router_method", "router_route")
}
