package client

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/msigvault/msig/cmd/common"
	"github.com/msigvault/msig/gateway"
	"github.com/msigvault/msig/multisig"
)

var (
	proposalCmd = &cobra.Command{
		Use:   "proposal",
		Short: "Inspect, create, sign and execute proposals",
	}

	proposalViewCmd = &cobra.Command{
		Use:          "view <multisig> <proposal-id>",
		Short:        "Show a proposal and its approval state",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE:         withClient(runProposalView),
	}

	createTxCmd = &cobra.Command{
		Use:          "create-tx <multisig>",
		Short:        "Propose a token transfer",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         withClient(runCreateTx),
	}

	createUpgradeCmd = &cobra.Command{
		Use:          "create-upgrade <multisig>",
		Short:        "Propose replacing the multisig's code",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         withClient(runCreateUpgrade),
	}

	signCmd = &cobra.Command{
		Use:          "sign <multisig> <proposal-id>",
		Short:        "Approve a proposal",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE:         withClient(runSign),
	}

	executeCmd = &cobra.Command{
		Use:          "execute <multisig> <proposal-id>",
		Short:        "Execute a proposal that reached quorum",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE:         withClient(runExecute),
	}
)

func runProposalView(ctx context.Context, cmd *cobra.Command, c *common.Client, args []string) error {
	id, err := parseContract(args[0])
	if err != nil {
		return err
	}
	pid, err := parseProposalID(args[1])
	if err != nil {
		return err
	}
	viewer, err := viewerFlag(cmd, c)
	if err != nil {
		return err
	}
	view, err := c.Engine.GetProposalView(ctx, id, pid, viewer)
	if err != nil {
		return err
	}
	return printJSON(cmd, newProposalOutput(view))
}

// expiration reads --expires-in relative to now. Zero means no expiration.
func expiration(cmd *cobra.Command, now time.Time) *time.Time {
	d, _ := cmd.Flags().GetDuration("expires-in")
	if d == 0 {
		return nil
	}
	exp := now.Add(d)
	return &exp
}

type createdOutput struct {
	Multisig   multisig.Address `json:"multisig"`
	ProposalID uint64           `json:"proposal_id"`
}

func runCreateTx(ctx context.Context, cmd *cobra.Command, c *common.Client, args []string) error {
	id, err := parseContract(args[0])
	if err != nil {
		return err
	}
	session, err := c.Session()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	title, _ := flags.GetString("title")
	description, _ := flags.GetString("description")
	rawRecipient, _ := flags.GetString("recipient")
	rawToken, _ := flags.GetString("token")
	rawAmount, _ := flags.GetString("amount")

	recipient, err := multisig.ParseAddress(rawRecipient)
	if err != nil {
		return &multisig.ValidationError{Field: "recipient", Reason: err.Error()}
	}
	token, err := multisig.ParseAddress(rawToken)
	if err != nil {
		return &multisig.ValidationError{Field: "token", Reason: err.Error()}
	}
	amount, err := multisig.ParseAmount(rawAmount)
	if err != nil {
		return err
	}

	pid, err := c.Gateway.CreateTransactionProposal(ctx, id, session, gateway.TransactionProposalRequest{
		Title:       title,
		Description: description,
		Recipient:   recipient,
		Amount:      amount,
		Token:       token,
		Expiration:  expiration(cmd, c.Gateway.Now()),
	})
	if err != nil {
		return err
	}
	return printJSON(cmd, createdOutput{Multisig: id, ProposalID: pid})
}

func runCreateUpgrade(ctx context.Context, cmd *cobra.Command, c *common.Client, args []string) error {
	id, err := parseContract(args[0])
	if err != nil {
		return err
	}
	session, err := c.Session()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	title, _ := flags.GetString("title")
	description, _ := flags.GetString("description")
	rawHash, _ := flags.GetString("wasm-hash")
	hash, err := multisig.ParseWasmHash(rawHash)
	if err != nil {
		return err
	}

	pid, err := c.Gateway.CreateUpdateProposal(ctx, id, session, gateway.UpdateProposalRequest{
		Title:       title,
		Description: description,
		NewWasmHash: hash.Bytes(),
		Expiration:  expiration(cmd, c.Gateway.Now()),
	})
	if err != nil {
		return err
	}
	return printJSON(cmd, createdOutput{Multisig: id, ProposalID: pid})
}

func runSign(ctx context.Context, cmd *cobra.Command, c *common.Client, args []string) error {
	return act(ctx, cmd, c, args, "signed", c.Engine.Sign)
}

func runExecute(ctx context.Context, cmd *cobra.Command, c *common.Client, args []string) error {
	return act(ctx, cmd, c, args, "executed", c.Engine.Execute)
}

func act(
	ctx context.Context,
	cmd *cobra.Command,
	c *common.Client,
	args []string,
	done string,
	fn func(context.Context, *multisig.Session, multisig.Address, uint64) error,
) error {
	id, err := parseContract(args[0])
	if err != nil {
		return err
	}
	pid, err := parseProposalID(args[1])
	if err != nil {
		return err
	}
	session, err := c.Session()
	if err != nil {
		return err
	}
	if err := fn(ctx, session, id, pid); err != nil {
		if multisig.KindOf(err) == multisig.KindTimeout {
			return fmt.Errorf("%w; run `proposal view %s %d` before retrying", err, id, pid)
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "proposal %d of %s %s\n", pid, id, done)
	return nil
}

func init() {
	proposalViewCmd.Flags().String("viewer", "", "address to compute signing state for (default: configured signer)")

	for _, cmd := range []*cobra.Command{createTxCmd, createUpgradeCmd} {
		cmd.Flags().String("title", "", "proposal title")
		cmd.Flags().String("description", "", "proposal description")
		cmd.Flags().Duration("expires-in", 0, "expire the proposal after this long (0: never)")
		_ = cmd.MarkFlagRequired("title")
	}
	createTxCmd.Flags().String("recipient", "", "address receiving the tokens")
	createTxCmd.Flags().String("token", "", "token contract address")
	createTxCmd.Flags().String("amount", "", "amount in whole tokens, up to 7 decimals")
	for _, name := range []string{"recipient", "token", "amount"} {
		_ = createTxCmd.MarkFlagRequired(name)
	}
	createUpgradeCmd.Flags().String("wasm-hash", "", "hex sha256 of the new contract code")
	_ = createUpgradeCmd.MarkFlagRequired("wasm-hash")

	proposalCmd.AddCommand(proposalViewCmd, createTxCmd, createUpgradeCmd, signCmd, executeCmd)
}
