// Package directory is a client of the off-chain multisig directory. The
// directory only helps discovery; nothing it returns is trusted for
// authorization.
package directory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/msigvault/msig/httpmisc"
	"github.com/msigvault/msig/log"
	"github.com/msigvault/msig/multisig"
)

const (
	defaultLookupAttempts   = 3
	defaultLookupRetryDelay = 200 * time.Millisecond
)

type Client struct {
	baseURL    string
	client     *http.Client
	timeout    time.Duration
	attempts   uint
	retryDelay time.Duration
	logger     *log.Logger
}

type Option func(*Client)

// WithTimeout bounds every request. Zero leaves requests bounded only by the
// caller's context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLookupRetries sets how often a lookup is tried on transient failures.
func WithLookupRetries(attempts uint, delay time.Duration) Option {
	return func(c *Client) {
		if attempts == 0 {
			attempts = 1
		}
		c.attempts = attempts
		c.retryDelay = delay
	}
}

// WithLogger logs retried lookups to logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) { c.logger = logger.WithModule("directory") }
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid directory url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid directory url %q: unsupported scheme", baseURL)
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     &http.Client{},
		attempts:   defaultLookupAttempts,
		retryDelay: defaultLookupRetryDelay,
		logger:     log.NewDefaultLogger("directory"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout == 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// transient reports whether a failed request may succeed when repeated.
func transient(ctx context.Context) func(error) bool {
	return func(err error) bool {
		if ctx.Err() != nil {
			return false
		}
		var statusErr *httpmisc.StatusError
		if errors.As(err, &statusErr) {
			return statusErr.Transient()
		}
		return true
	}
}

// Lookup returns the multisigs wallet is registered as a member of. A wallet
// the directory does not know yields an empty list. Other failures are
// returned as multisig.DirectoryError.
func (c *Client) Lookup(ctx context.Context, wallet multisig.Address) ([]Record, error) {
	var records []Record
	err := retry.Do(
		func() error {
			reqCtx, cancel := c.requestContext(ctx)
			defer cancel()
			records = nil
			return httpmisc.GetJSON(reqCtx, c.client, c.baseURL+"/"+url.PathEscape(wallet.String()), &records)
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(transient(ctx)),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("retrying lookup", "wallet", wallet, "attempt", n+1, "err", err)
		}),
	)
	var statusErr *httpmisc.StatusError
	switch {
	case err == nil:
		return records, nil
	case errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound:
		return []Record{}, nil
	default:
		return nil, multisig.NewDirectoryError(fmt.Errorf("lookup %s: %w", wallet, err))
	}
}

// Register records multisig id with its members, replacing any previous record.
func (c *Client) Register(ctx context.Context, id multisig.Address, members []multisig.Address) error {
	req := RegisterRequest{MultisigID: id.String(), Members: make([]string, 0, len(members))}
	for _, m := range members {
		req.Members = append(req.Members, m.String())
	}
	reqCtx, cancel := c.requestContext(ctx)
	defer cancel()
	var resp MessageResponse
	if err := httpmisc.PostJSON(reqCtx, c.client, c.baseURL+"/multisig", req, &resp); err != nil {
		return multisig.NewDirectoryError(fmt.Errorf("register %s: %w", id, err))
	}
	return nil
}
