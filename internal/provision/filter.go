package provision

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"tasnim.dev/vpcctl/internal/logging"
	"tasnim.dev/vpcctl/internal/topology"
)

// IngressChain holds a subnet's ingress rules inside its namespace. INPUT
// jumps to it, so re-applying a rule set only needs a flush and refill.
const IngressChain = "VPCCTL-INGRESS"

func filterSteps(v *topology.VPC, s *topology.Subnet, rules []topology.Rule) []step {
	bin := iptables(v.IPv6())
	in := func(c Command) Command { return nsCmd(s.Namespace, c) }

	steps := []step{
		{
			name:  "create ingress chain",
			probe: ptr(in(ProbeCmd(bin, "-n", "-L", IngressChain))),
			do:    in(Cmd(bin, "-N", IngressChain)),
		},
		{name: "flush ingress chain", do: in(Cmd(bin, "-F", IngressChain))},
		{
			name:  "hook ingress chain",
			probe: ptr(in(ProbeCmd(bin, "-C", "INPUT", "-j", IngressChain))),
			do:    in(Cmd(bin, "-I", "INPUT", "1", "-j", IngressChain)),
		},
	}
	for i, r := range rules {
		steps = append(steps, step{
			name: "ingress rule " + strconv.Itoa(i),
			do: in(Cmd(bin, "-A", IngressChain, "-p", r.Protocol,
				"--dport", strconv.Itoa(r.Port), "-j", r.Action.Target())),
		})
	}
	return steps
}

// ApplyFirewall replaces the ingress rules of a subnet. Rules are appended in
// order, so the first matching rule wins. If any rule fails to install, the
// previous rule set is restored on a best-effort basis and the failure is
// returned.
func (p *Provisioner) ApplyFirewall(ctx context.Context, v *topology.VPC, s *topology.Subnet, rules, previous []topology.Rule) error {
	resource := "firewall " + v.Name + "/" + s.Name
	err := p.apply(ctx, resource, filterSteps(v, s, rules))
	if err == nil {
		return nil
	}
	if rerr := p.apply(context.WithoutCancel(ctx), resource, filterSteps(v, s, previous)); rerr != nil {
		p.logger.Warn("restoring previous ingress rules failed",
			zap.String(logging.FieldSubnet, s.Name),
			zap.Error(rerr))
	}
	return err
}
