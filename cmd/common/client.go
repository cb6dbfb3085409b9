package common

import (
	"context"
	"fmt"
	"time"

	"github.com/raulk/clock"

	"github.com/msigvault/msig/cache/kvstore"
	"github.com/msigvault/msig/config"
	"github.com/msigvault/msig/directory"
	"github.com/msigvault/msig/gateway"
	"github.com/msigvault/msig/lifecycle"
	"github.com/msigvault/msig/metrics"
	"github.com/msigvault/msig/multisig"
	"github.com/msigvault/msig/reconciler"
	"github.com/msigvault/msig/signer"
)

const defaultDirectoryTimeout = 10 * time.Second

// Client bundles the components used by the multisig client commands.
type Client struct {
	Config     *config.ClientConfig
	Gateway    *gateway.Gateway
	Engine     *lifecycle.Engine
	Reconciler *reconciler.Reconciler

	close []func()
}

// GatewayConfig overlays the configured timeouts on the gateway defaults.
func GatewayConfig(cfg *config.ClientConfig) gateway.Config {
	gw := gateway.DefaultConfig()
	if cfg.CallTimeout != 0 {
		gw.CallTimeout = cfg.CallTimeout
	}
	if cfg.SignTimeout != 0 {
		gw.SignTimeout = cfg.SignTimeout
	}
	if cfg.SubmitTimeout != 0 {
		gw.SubmitTimeout = cfg.SubmitTimeout
	}
	if cfg.PollInitial != 0 {
		gw.PollInitial = cfg.PollInitial
	}
	if cfg.PollMax != 0 {
		gw.PollMax = cfg.PollMax
	}
	if cfg.ReadAttempts != 0 {
		gw.ReadAttempts = cfg.ReadAttempts
	}
	if cfg.ReadRetryDelay != 0 {
		gw.ReadRetryDelay = cfg.ReadRetryDelay
	}
	return gw
}

// NewMultisigClient connects to the contract host and, if configured, opens the
// proposal cache and the directory client.
func NewMultisigClient(ctx context.Context, cfg *config.ClientConfig) (*Client, error) {
	logger := RootLogger()
	c := &Client{Config: cfg}

	node, err := gateway.Dial(ctx, cfg.NodeURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.NodeURL, err)
	}
	c.close = append(c.close, node.Close)

	clk := clock.New()
	opts := []gateway.Option{gateway.WithClock(clk)}
	if cfg.CachePath != "" {
		cache, err := kvstore.OpenKVStore(logger, cfg.CachePath, metrics.NewDefaultCacheMetrics("proposals"))
		if err != nil {
			c.Close()
			return nil, err
		}
		c.close = append(c.close, func() {
			if err := cache.Close(); err != nil {
				logger.Warn("failed to close proposal cache", "err", err)
			}
		})
		opts = append(opts, gateway.WithCache(cache))
	}
	c.Gateway = gateway.New(node, GatewayConfig(cfg), logger, opts...)
	c.Engine = lifecycle.NewEngine(c.Gateway, clk, logger)

	if cfg.DirectoryURL != "" {
		gwCfg := GatewayConfig(cfg)
		timeout := defaultDirectoryTimeout
		if cfg.DirectoryTimeout != 0 {
			timeout = cfg.DirectoryTimeout
		}
		dir, err := directory.NewClient(cfg.DirectoryURL,
			directory.WithTimeout(timeout),
			directory.WithLookupRetries(gwCfg.ReadAttempts, gwCfg.ReadRetryDelay),
			directory.WithLogger(logger),
		)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Reconciler = reconciler.New(dir, c.Gateway, logger, cfg.Concurrency)
	}
	return c, nil
}

// Close releases the connections and the cache.
func (c *Client) Close() {
	for i := len(c.close) - 1; i >= 0; i-- {
		c.close[i]()
	}
}

// Session builds the wallet session from the signer configuration.
func (c *Client) Session() (*multisig.Session, error) {
	cfg := c.Config.Signer
	if cfg == nil {
		return nil, &multisig.ValidationError{Field: "session", Reason: "no signer configured (client.signer)"}
	}
	if cfg.WalletURL != "" {
		addr, err := multisig.ParseAddress(cfg.Address)
		if err != nil {
			return nil, err
		}
		return &multisig.Session{Address: addr, Signer: signer.NewHTTPSigner(cfg.WalletURL)}, nil
	}
	key, err := signer.NewKeySignerFromFile(cfg.KeyFile)
	if err != nil {
		return nil, err
	}
	return key.Session(), nil
}
