package cmd

import (
	"github.com/spf13/cobra"

	"tasnim.dev/vpcctl/internal/topology"
)

func NewAddSubnetCmd(opts *GlobalOptions) *cobra.Command {
	var subnetType string

	cmd := &cobra.Command{
		Use:   "add-subnet <vpc> <name> <cidr>",
		Short: "Add a subnet namespace to a VPC",
		Example: "  vpcctl add-subnet shop web 10.1.1.0/24 --type public\n" +
			"  vpcctl add-subnet shop db 10.1.2.0/24",
		Args: exactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := topology.ParseSubnetType(subnetType)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(a *app) error {
				s, err := a.svc.AddSubnet(cmd.Context(), args[0], args[1], args[2], typ)
				if err != nil {
					return err
				}
				success(cmd, "Subnet %s/%s created: %s (%s), address %s, namespace %s",
					s.VPC, s.Name, s.CIDR, s.Type, s.IP, s.Namespace)
				dryRunNote(cmd, opts)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&subnetType, "type", "t", string(topology.SubnetPrivate), "subnet type: public or private")

	return cmd
}
