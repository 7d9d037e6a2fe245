package cmd

import "github.com/spf13/cobra"

func NewCleanupCmd(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Tear down every VPC and reset the state",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				warnings, err := a.svc.Cleanup(cmd.Context())
				if err != nil {
					return err
				}
				reportWarnings(cmd, warnings)
				success(cmd, "All VPCs cleaned up")
				dryRunNote(cmd, opts)
				return nil
			})
		},
	}
}
