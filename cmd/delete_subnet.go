package cmd

import "github.com/spf13/cobra"

func NewDeleteSubnetCmd(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-subnet <vpc> <name>",
		Short: "Tear down a subnet and remove it from its VPC",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				warnings, err := a.svc.DeleteSubnet(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				reportWarnings(cmd, warnings)
				success(cmd, "Subnet %s/%s deleted", args[0], args[1])
				dryRunNote(cmd, opts)
				return nil
			})
		},
	}
}
