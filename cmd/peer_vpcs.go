package cmd

import "github.com/spf13/cobra"

func NewPeerVPCsCmd(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "peer-vpcs <vpc1> <vpc2>",
		Short: "Connect two VPCs with a veth pair and routes",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				p, err := a.svc.PeerVPCs(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				success(cmd, "VPCs %s and %s peered (%s <-> %s)",
					p.First, p.Second, p.VethFirst, p.VethSecond)
				dryRunNote(cmd, opts)
				return nil
			})
		},
	}
}
