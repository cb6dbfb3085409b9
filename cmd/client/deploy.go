package client

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/msigvault/msig/cmd/common"
	"github.com/msigvault/msig/gateway"
	"github.com/msigvault/msig/multisig"
)

var deployCmd = &cobra.Command{
	Use:          "deploy",
	Short:        "Deploy a new multisig and register it with the directory",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         withClient(runDeploy),
}

type deployOutput struct {
	Multisig   multisig.Address `json:"multisig"`
	Registered bool             `json:"registered"`
}

func runDeploy(ctx context.Context, cmd *cobra.Command, c *common.Client, args []string) error {
	if c.Config.Deployer == "" {
		return multisig.Invalid("deployer", "client.deployer is not configured")
	}
	deployer, err := multisig.ParseAddress(c.Config.Deployer)
	if err != nil {
		return err
	}
	session, err := c.Session()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	name, _ := flags.GetString("name")
	description, _ := flags.GetString("description")
	threshold, _ := flags.GetUint32("threshold")
	rawMembers, _ := flags.GetStringSlice("member")
	members := make([]multisig.Address, 0, len(rawMembers))
	for _, raw := range rawMembers {
		m, err := multisig.ParseAddress(raw)
		if err != nil {
			return &multisig.ValidationError{Field: "member", Reason: err.Error()}
		}
		members = append(members, m)
	}

	id, err := c.Gateway.DeployNewMultisig(ctx, deployer, session, gateway.DeployRequest{
		Name:             name,
		Description:      description,
		ThresholdPercent: threshold,
		Members:          members,
	})
	if err != nil {
		return err
	}

	out := deployOutput{Multisig: id}
	if c.Reconciler == nil {
		common.RootLogger().Warn("client.directory_url not set; multisig not registered", "multisig", id)
		return printJSON(cmd, out)
	}
	// The multisig exists on chain either way; a registration failure
	// only hides it from dashboards.
	if err := c.Reconciler.Register(ctx, id, members); err != nil {
		common.RootLogger().Warn("multisig deployed but not registered", "multisig", id, "err", err)
	} else {
		out.Registered = true
	}
	return printJSON(cmd, out)
}

func init() {
	deployCmd.Flags().String("name", "", "multisig name")
	deployCmd.Flags().String("description", "", "multisig description")
	deployCmd.Flags().Uint32("threshold", 0, "approval threshold in percent of members (1-100)")
	deployCmd.Flags().StringSlice("member", nil, "member address (repeatable)")
	for _, name := range []string{"name", "threshold", "member"} {
		_ = deployCmd.MarkFlagRequired(name)
	}
}
