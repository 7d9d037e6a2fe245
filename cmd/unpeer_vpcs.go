package cmd

import "github.com/spf13/cobra"

func NewUnpeerVPCsCmd(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unpeer-vpcs <vpc1> <vpc2>",
		Short: "Remove the peering between two VPCs",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				warnings, err := a.svc.UnpeerVPCs(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				reportWarnings(cmd, warnings)
				success(cmd, "Peering between %s and %s removed", args[0], args[1])
				dryRunNote(cmd, opts)
				return nil
			})
		},
	}
}
