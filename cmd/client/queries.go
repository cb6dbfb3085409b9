package client

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/msigvault/msig/cmd/common"
	"github.com/msigvault/msig/multisig"
)

var (
	infoCmd = &cobra.Command{
		Use:          "info <multisig>",
		Short:        "Show the configuration and members of a multisig",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         withClient(runInfo),
	}

	proposalsCmd = &cobra.Command{
		Use:          "proposals <multisig>",
		Short:        "List the proposals of a multisig",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         withClient(runProposals),
	}

	dashboardCmd = &cobra.Command{
		Use:          "dashboard <wallet>",
		Short:        "Show every multisig the wallet is registered with",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         withClient(runDashboard),
	}
)

type infoOutput struct {
	Address multisig.Address      `json:"address"`
	Info    *multisig.MultisigInfo `json:"info"`
	Members []multisig.Address    `json:"members"`
	LastID  uint64                `json:"last_proposal_id"`
}

func runInfo(ctx context.Context, cmd *cobra.Command, c *common.Client, args []string) error {
	id, err := parseContract(args[0])
	if err != nil {
		return err
	}
	out := infoOutput{Address: id}
	if out.Info, err = c.Gateway.QueryInfo(ctx, id); err != nil {
		return err
	}
	if out.Members, err = c.Gateway.QueryMembers(ctx, id); err != nil {
		return err
	}
	if out.LastID, err = c.Gateway.QueryLastProposalID(ctx, id); err != nil {
		return err
	}
	return printJSON(cmd, out)
}

func runProposals(ctx context.Context, cmd *cobra.Command, c *common.Client, args []string) error {
	id, err := parseContract(args[0])
	if err != nil {
		return err
	}
	viewer, err := viewerFlag(cmd, c)
	if err != nil {
		return err
	}
	views, err := c.Engine.ListProposals(ctx, id, viewer)
	if err != nil {
		return err
	}
	out := make([]proposalOutput, 0, len(views))
	for _, v := range views {
		out = append(out, newProposalOutput(v))
	}
	return printJSON(cmd, out)
}

func runDashboard(ctx context.Context, cmd *cobra.Command, c *common.Client, args []string) error {
	if c.Reconciler == nil {
		return multisig.Invalid("directory_url", "the dashboard needs client.directory_url")
	}
	dash, err := c.Reconciler.UserMultisigs(ctx, args[0])
	if err != nil {
		return err
	}
	if err := dash.Err(); err != nil {
		// Degraded results are still printed.
		common.RootLogger().Warn("dashboard is incomplete", "err", err)
	}
	showProposals, _ := cmd.Flags().GetBool("proposals")
	if showProposals {
		return printJSON(cmd, dash.Proposals())
	}
	return printJSON(cmd, dash)
}

func init() {
	proposalsCmd.Flags().String("viewer", "", "address to compute signing state for (default: configured signer)")
	dashboardCmd.Flags().Bool("proposals", false, "list every proposal across the multisigs, newest first")
}
