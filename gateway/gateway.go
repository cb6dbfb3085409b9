// Package gateway translates multisig operations into calls against a
// contract host speaking the contract JSON-RPC protocol.
//
// Reads are simulated and decoded. State-changing operations are simulated,
// signed exactly once by the session's wallet, submitted, and polled until the
// host reports a final status. A signed envelope is never resubmitted.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/raulk/clock"

	"github.com/msigvault/msig/cache/kvstore"
	"github.com/msigvault/msig/chain"
	"github.com/msigvault/msig/log"
	"github.com/msigvault/msig/metrics"
	"github.com/msigvault/msig/multisig"
)

const (
	methodSimulate       = chain.Namespace + "_simulate"
	methodSendTx         = chain.Namespace + "_sendTransaction"
	methodGetTransaction = chain.Namespace + "_getTransaction"
)

// Node is the JSON-RPC connection to a contract host. *rpc.Client implements it.
type Node interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

var _ Node = (*rpc.Client)(nil)

// Dial connects to a contract host over HTTP(S) or WebSocket.
func Dial(ctx context.Context, url string) (*rpc.Client, error) {
	return rpc.DialContext(ctx, url)
}

// Config bounds the gateway's remote calls.
type Config struct {
	// CallTimeout bounds every read and simulation.
	CallTimeout time.Duration
	// SignTimeout bounds the wallet's signing step.
	SignTimeout time.Duration
	// SubmitTimeout bounds submission and confirmation of a signed envelope.
	SubmitTimeout time.Duration
	// PollInitial and PollMax space out confirmation polls.
	PollInitial time.Duration
	PollMax     time.Duration
	// ReadAttempts is how often a read is tried on transport failures.
	ReadAttempts   uint
	ReadRetryDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		CallTimeout:    10 * time.Second,
		SignTimeout:    2 * time.Minute,
		SubmitTimeout:  30 * time.Second,
		PollInitial:    250 * time.Millisecond,
		PollMax:        2 * time.Second,
		ReadAttempts:   3,
		ReadRetryDelay: 200 * time.Millisecond,
	}
}

// Gateway is the typed client of multisig contracts. It is safe for concurrent use.
type Gateway struct {
	node    Node
	cfg     Config
	clock   clock.Clock
	cache   kvstore.KVStore
	metrics *metrics.GatewayMetrics
	logger  *log.Logger
}

type Option func(*Gateway)

// WithCache keeps closed proposals and their signatures in cache.
func WithCache(cache kvstore.KVStore) Option {
	return func(g *Gateway) { g.cache = cache }
}

// WithClock replaces the wall clock used to validate expirations.
func WithClock(clk clock.Clock) Option {
	return func(g *Gateway) { g.clock = clk }
}

func New(node Node, cfg Config, logger *log.Logger, opts ...Option) *Gateway {
	if cfg.ReadAttempts == 0 {
		cfg.ReadAttempts = 1
	}
	g := &Gateway{
		node:    node,
		cfg:     cfg,
		clock:   clock.New(),
		metrics: metrics.NewDefaultGatewayMetrics(),
		logger:  logger.WithModule("gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Now is the time expirations are validated against.
func (g *Gateway) Now() time.Time {
	return g.clock.Now()
}

// decodeError is a result the gateway could not interpret.
type decodeError struct {
	error
}

// transient reports whether a failed read may succeed when repeated.
func transient(err error) bool {
	if multisig.KindOf(err) != multisig.KindTransport || errors.Is(err, context.Canceled) {
		return false
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		// The host answered; it will answer the same again.
		return false
	}
	var decodeErr decodeError
	return !errors.As(err, &decodeErr)
}

func (g *Gateway) observe(fn string, timer *prometheus.Timer, err error) {
	timer.ObserveDuration()
	outcome := "ok"
	if err != nil {
		outcome = string(multisig.KindOf(err))
	}
	g.metrics.Call(fn, outcome).Inc()
}

func newRequest(id multisig.Address, fn string, args interface{}, source multisig.Address) (*chain.SimulateRequest, error) {
	req := &chain.SimulateRequest{ContractID: id, Function: fn, Source: source}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("%s: encoding arguments: %w", fn, err)
		}
		req.Args = raw
	}
	return req, nil
}

// read runs a read-only function and decodes its result into out. ref names
// the proposal the call is about, if any, for NotFound errors.
func (g *Gateway) read(ctx context.Context, id multisig.Address, fn string, args interface{}, ref string, out interface{}) (err error) {
	timer := g.metrics.Timer(fn)
	defer func() { g.observe(fn, timer, err) }()
	req, err := newRequest(id, fn, args, "")
	if err != nil {
		return err
	}
	return retry.Do(
		func() error {
			resp, err := g.simulate(ctx, req, ref)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return decodeError{fmt.Errorf("%s: decoding result: %w", fn, err)}
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(g.cfg.ReadAttempts),
		retry.Delay(g.cfg.ReadRetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(transient),
		retry.OnRetry(func(n uint, err error) {
			g.logger.Debug("retrying read", "function", fn, "contract", id, "attempt", n+1, "err", err)
		}),
	)
}

func (g *Gateway) simulate(ctx context.Context, req *chain.SimulateRequest, ref string) (*chain.SimulateResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()

	var resp chain.SimulateResponse
	if err := g.node.CallContext(ctx, &resp, methodSimulate, req); err != nil {
		return nil, callError(ctx, req.Function, err)
	}
	if resp.Fault != nil {
		return nil, faultError(req.Function, req.ContractID, ref, resp.Fault)
	}
	return &resp, nil
}

// invoke runs a state-changing function: simulate, sign once, submit, await.
func (g *Gateway) invoke(ctx context.Context, id multisig.Address, session *multisig.Session, fn string, args interface{}, ref string) (result json.RawMessage, err error) {
	timer := g.metrics.Timer(fn)
	defer func() { g.observe(fn, timer, err) }()
	req, err := newRequest(id, fn, args, session.Address)
	if err != nil {
		return nil, err
	}
	resp, err := g.simulate(ctx, req, ref)
	if err != nil {
		return nil, err
	}
	if resp.Transaction == "" {
		return nil, fmt.Errorf("%s: host returned no transaction to sign", fn)
	}

	signCtx, cancel := context.WithTimeout(ctx, g.cfg.SignTimeout)
	signed, err := session.Signer.Sign(signCtx, resp.Transaction)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &multisig.TimeoutError{Function: fn, Err: err}
		}
		return nil, fmt.Errorf("%s: signing: %w", fn, err)
	}
	if signed.SignerAddress != "" && signed.SignerAddress != session.Address {
		return nil, &multisig.ValidationError{
			Field:  "signer",
			Reason: fmt.Sprintf("wallet signed as %s but the session is %s", signed.SignerAddress, session.Address),
		}
	}

	// From here on the submission runs to completion regardless of the caller.
	submitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.cfg.SubmitTimeout)
	defer cancel()
	return g.submit(submitCtx, id, fn, ref, signed.Envelope)
}

func (g *Gateway) submit(ctx context.Context, id multisig.Address, fn string, ref string, signedEnvelope string) (json.RawMessage, error) {
	var sent chain.SendResponse
	if err := g.node.CallContext(ctx, &sent, methodSendTx, signedEnvelope); err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, &multisig.TimeoutError{Function: fn, Submitted: true, Err: err}
		}
		return nil, fmt.Errorf("%s: submission failed, outcome unknown: %w", fn, err)
	}
	g.logger.Debug("transaction submitted", "function", fn, "contract", id, "hash", sent.Hash, "status", sent.Status)

	switch sent.Status {
	case chain.SendPending, chain.SendDuplicate:
	case chain.SendError:
		if sent.Fault == nil {
			return nil, fmt.Errorf("%s: host refused the transaction", fn)
		}
		return nil, faultError(fn, id, ref, sent.Fault)
	default:
		return nil, fmt.Errorf("%s: unexpected submission status %q", fn, sent.Status)
	}
	return g.await(ctx, id, fn, ref, sent.Hash)
}

// await polls a submitted transaction until it is final or ctx expires.
func (g *Gateway) await(ctx context.Context, id multisig.Address, fn string, ref string, hash string) (json.RawMessage, error) {
	b, err := newBackoff(g.cfg.PollInitial, g.cfg.PollMax)
	if err != nil {
		return nil, err
	}
	for {
		g.metrics.Polls().Inc()
		var tx chain.TransactionResponse
		err := g.node.CallContext(ctx, &tx, methodGetTransaction, hash)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, &multisig.TimeoutError{Function: fn, Submitted: true, Err: err}
		case err != nil:
			g.logger.Warn("polling transaction failed", "function", fn, "hash", hash, "retry_in", b.Timeout(), "err", err)
		case tx.Status == chain.TxSuccess:
			g.logger.Info("transaction confirmed", "function", fn, "contract", id, "hash", hash)
			return tx.Result, nil
		case tx.Status == chain.TxFailed:
			if tx.Fault == nil {
				return nil, fmt.Errorf("%s: transaction %s failed", fn, hash)
			}
			return nil, faultError(fn, id, ref, tx.Fault)
		}
		if err := b.Wait(ctx); err != nil {
			return nil, &multisig.TimeoutError{Function: fn, Submitted: true, Err: err}
		}
	}
}

func callError(ctx context.Context, fn string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &multisig.TimeoutError{Function: fn, Err: err}
	}
	return fmt.Errorf("%s: %w", fn, err)
}

func faultError(fn string, contract multisig.Address, ref string, f *chain.Fault) error {
	switch f.Type {
	case chain.FaultMissing:
		return &multisig.NotFoundError{What: "contract", ID: contract.String()}
	case chain.FaultContract:
		code := multisig.ContractErrorCode(f.Code)
		if code == multisig.CodeProposalNotFound {
			return &multisig.NotFoundError{What: "proposal", ID: ref}
		}
		return &multisig.RejectedError{Function: fn, Code: code, Message: f.Message}
	case chain.FaultAuth:
		return &multisig.RejectedError{Function: fn, Code: multisig.CodeUnauthorized, Message: f.Message}
	default:
		return fmt.Errorf("%s: %w", fn, f)
	}
}

func proposalRef(id multisig.Address, pid uint64) string {
	return fmt.Sprintf("%d of %s", pid, id)
}
