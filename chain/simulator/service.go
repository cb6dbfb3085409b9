package simulator

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/msigvault/msig/chain"
)

// Service exposes a Simulator as the "contract" JSON-RPC namespace.
type Service struct {
	sim *Simulator
}

func (s *Service) Simulate(ctx context.Context, req chain.SimulateRequest) (*chain.SimulateResponse, error) {
	return s.sim.Simulate(req), nil
}

func (s *Service) SendTransaction(ctx context.Context, signedEnvelope string) (*chain.SendResponse, error) {
	return s.sim.Send(signedEnvelope), nil
}

func (s *Service) GetTransaction(ctx context.Context, hash string) (*chain.TransactionResponse, error) {
	return s.sim.Transaction(hash), nil
}

// NewServer returns an RPC server serving sim. The server is also an
// http.Handler for JSON-RPC over HTTP.
func NewServer(sim *Simulator) (*rpc.Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName(chain.Namespace, &Service{sim: sim}); err != nil {
		return nil, fmt.Errorf("registering contract service: %w", err)
	}
	return srv, nil
}

// DialInProc serves sim in-process and returns a client connected to it.
func DialInProc(sim *Simulator) (*rpc.Client, error) {
	srv, err := NewServer(sim)
	if err != nil {
		return nil, err
	}
	return rpc.DialInProc(srv), nil
}
