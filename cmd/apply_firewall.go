package cmd

import (
	"github.com/spf13/cobra"

	"tasnim.dev/vpcctl/internal/firewall"
)

func NewApplyFirewallCmd(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "apply-firewall <vpc> <subnet> <rules-file>",
		Short: "Replace a subnet's ingress rules",
		Long: "Replace a subnet's ingress rules with the rules in a JSON or YAML file:\n\n" +
			`  {"ingress": [{"port": 80, "protocol": "tcp", "action": "allow"}]}` + "\n\n" +
			"Rules are evaluated in file order. Any invalid rule rejects the whole file.",
		Args: exactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := firewall.Load(args[2])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(a *app) error {
				rs, err := a.svc.ApplyFirewall(cmd.Context(), args[0], args[1], rules)
				if err != nil {
					return err
				}
				success(cmd, "Firewall v%d applied to %s/%s: %d rules",
					rs.Version, args[0], args[1], len(rs.Ingress))
				dryRunNote(cmd, opts)
				return nil
			})
		},
	}
}
