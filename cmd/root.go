package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"tasnim.dev/vpcctl/internal/topology"
)

// NewRootCmd assembles the vpcctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &GlobalOptions{}
	root := &cobra.Command{
		Use:           "vpcctl",
		Short:         "Build VPC-style network topologies on a single Linux host",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	opts.Bind(root)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", topology.ErrInvalidInput, err)
	})

	root.AddCommand(NewCreateVPCCmd(opts))
	root.AddCommand(NewAddSubnetCmd(opts))
	root.AddCommand(NewDeleteSubnetCmd(opts))
	root.AddCommand(NewDeployAppCmd(opts))
	root.AddCommand(NewApplyFirewallCmd(opts))
	root.AddCommand(NewPeerVPCsCmd(opts))
	root.AddCommand(NewUnpeerVPCsCmd(opts))
	root.AddCommand(NewListCmd(opts))
	root.AddCommand(NewBrowseCmd(opts))
	root.AddCommand(NewDeleteVPCCmd(opts))
	root.AddCommand(NewCleanupCmd(opts))
	root.AddCommand(NewServeCmd())

	return root
}
