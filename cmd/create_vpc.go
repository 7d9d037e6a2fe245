package cmd

import "github.com/spf13/cobra"

func NewCreateVPCCmd(opts *GlobalOptions) *cobra.Command {
	var iface string

	cmd := &cobra.Command{
		Use:   "create-vpc <name> <cidr>",
		Short: "Create a VPC backed by a bridge",
		Example: "  vpcctl create-vpc shop 10.1.0.0/16\n" +
			"  vpcctl create-vpc shop 10.1.0.0/16 --interface enp0s3",
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				if iface == "" {
					iface = a.cfg.DefaultInterface
				}
				v, err := a.svc.CreateVPC(cmd.Context(), args[0], args[1], iface)
				if err != nil {
					return err
				}
				success(cmd, "VPC %s created: %s, bridge %s (%s), egress %s",
					v.Name, v.CIDR, v.Bridge, v.BridgeIP, v.Interface)
				dryRunNote(cmd, opts)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&iface, "interface", "i", "", "egress interface for public subnets (default from config)")

	return cmd
}
