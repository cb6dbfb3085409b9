// Package client implements the multisig client sub-commands.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/msigvault/msig/cmd/common"
	"github.com/msigvault/msig/config"
	"github.com/msigvault/msig/lifecycle"
	"github.com/msigvault/msig/multisig"
)

// Path to the configuration file.
var configFile string

type runFunc func(ctx context.Context, cmd *cobra.Command, c *common.Client, args []string) error

// withClient loads the configuration, connects the client and runs fn.
func withClient(fn runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.InitConfig(configFile)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if err = common.Init(cfg); err != nil {
			return fmt.Errorf("init: %w", err)
		}
		if cfg.Client == nil {
			return fmt.Errorf("client config not provided")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		c, err := common.NewMultisigClient(ctx, cfg.Client)
		if err != nil {
			return err
		}
		defer c.Close()
		return fn(ctx, cmd, c, args)
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseContract(s string) (multisig.Address, error) {
	addr, err := multisig.ParseAddress(s)
	if err != nil {
		return "", &multisig.ValidationError{Field: "multisig", Reason: err.Error()}
	}
	if !addr.IsContract() {
		return "", multisig.Invalid("multisig", "%s is not a contract address", addr)
	}
	return addr, nil
}

func parseProposalID(s string) (uint64, error) {
	pid, err := strconv.ParseUint(s, 10, 64)
	if err != nil || pid == 0 {
		return 0, multisig.Invalid("proposal_id", "%q is not a proposal id", s)
	}
	return pid, nil
}

// viewerFlag resolves --viewer, falling back to the configured signer.
func viewerFlag(cmd *cobra.Command, c *common.Client) (multisig.Address, error) {
	if raw, _ := cmd.Flags().GetString("viewer"); raw != "" {
		addr, err := multisig.ParseAddress(raw)
		if err != nil {
			return "", &multisig.ValidationError{Field: "viewer", Reason: err.Error()}
		}
		return addr, nil
	}
	if c.Config.Signer == nil {
		return "", nil
	}
	session, err := c.Session()
	if err != nil {
		return "", err
	}
	return session.Address, nil
}

// proposalOutput is a proposal view as printed by the CLI.
type proposalOutput struct {
	*lifecycle.ProposalView
	Status lifecycle.Status `json:"effective_status"`
	Kind   string           `json:"kind_name"`
	Amount string           `json:"amount,omitempty"`
}

func newProposalOutput(v *lifecycle.ProposalView) proposalOutput {
	out := proposalOutput{ProposalView: v, Status: v.Status(), Kind: v.Proposal.Kind.Name()}
	if tx := v.Proposal.Kind.Transaction; tx != nil {
		out.Amount = multisig.FormatAmount(tx.Amount)
	}
	return out
}

// Register registers the client sub-commands.
func Register(parentCmd *cobra.Command) {
	for _, cmd := range []*cobra.Command{infoCmd, proposalsCmd, proposalCmd, deployCmd, dashboardCmd} {
		cmd.PersistentFlags().StringVar(&configFile, "config", "./config/client.yml", "path to the config.yml file")
		parentCmd.AddCommand(cmd)
	}
}
