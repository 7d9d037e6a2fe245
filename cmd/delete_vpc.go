package cmd

import "github.com/spf13/cobra"

func NewDeleteVPCCmd(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-vpc <name>",
		Short: "Tear down a VPC with its subnets and peerings",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				warnings, err := a.svc.DeleteVPC(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				reportWarnings(cmd, warnings)
				success(cmd, "VPC %s deleted", args[0])
				dryRunNote(cmd, opts)
				return nil
			})
		},
	}
}
