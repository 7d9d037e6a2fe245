package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"tasnim.dev/vpcctl/internal/vpc"
)

func NewDeployAppCmd(opts *GlobalOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "deploy-app <vpc> <subnet>",
		Short: "Start a demo web server inside a subnet",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				d, err := a.svc.DeployApp(cmd.Context(), args[0], args[1], port)
				if err != nil {
					return err
				}
				success(cmd, "App deployed in %s/%s on port %d (pid %d)", args[0], args[1], d.Port, d.PID)
				fmt.Fprintf(cmd.OutOrStdout(), "Serving %s, log %s\n", d.WebRoot, d.LogPath)
				dryRunNote(cmd, opts)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", vpc.DefaultAppPort, "port to listen on inside the subnet")

	return cmd
}
