package provision

import (
	"context"
	"strings"

	"tasnim.dev/vpcctl/internal/topology"
)

// peerRouteMetric keeps peering routes apart from the kernel's connected
// routes for the same prefixes, which use metric 0.
const peerRouteMetric = "100"

func ipCmd(args ...string) Command {
	return Cmd("ip", args...)
}

// nsCmd runs a command inside a network namespace.
func nsCmd(ns string, c Command) Command {
	return Command{Name: "ip", Args: append([]string{"netns", "exec", ns, c.Name}, c.Args...), Probe: c.Probe}
}

func iptables(v6 bool) string {
	if v6 {
		return "ip6tables"
	}
	return "iptables"
}

func forwardingSysctl(v6 bool) Command {
	if v6 {
		return Cmd("sysctl", "-w", "net.ipv6.conf.all.forwarding=1")
	}
	return Cmd("sysctl", "-w", "net.ipv4.ip_forward=1")
}

// filterRule is one iptables rule addressed by table and chain.
type filterRule struct {
	name  string
	table string
	chain string
	match []string
}

func (r filterRule) command(bin, op string) Command {
	var args []string
	if r.table != "" {
		args = append(args, "-t", r.table)
	}
	args = append(args, op, r.chain)
	args = append(args, r.match...)
	if op == "-C" {
		return ProbeCmd(bin, args...)
	}
	return Cmd(bin, args...)
}

// publicRules are the NAT and forwarding rules of a public subnet. They are
// scoped to the subnet CIDR so removing one subnet leaves its siblings intact.
func publicRules(v *topology.VPC, s *topology.Subnet) []filterRule {
	return []filterRule{
		{
			name:  "masquerade",
			table: "nat",
			chain: "POSTROUTING",
			match: []string{"-s", s.CIDR, "-o", v.Interface, "-j", "MASQUERADE"},
		},
		{
			name:  "forward egress",
			chain: "FORWARD",
			match: []string{"-i", v.Bridge, "-o", v.Interface, "-s", s.CIDR, "-j", "ACCEPT"},
		},
		{
			name:  "forward established",
			chain: "FORWARD",
			match: []string{"-i", v.Interface, "-o", v.Bridge, "-d", s.CIDR,
				"-m", "conntrack", "--ctstate", "RELATED,ESTABLISHED", "-j", "ACCEPT"},
		},
	}
}

// ProvisionVPC creates the VPC bridge, assigns its address, brings it up and
// enables forwarding. A stale bridge of the same name is removed first.
func (p *Provisioner) ProvisionVPC(ctx context.Context, v *topology.VPC) error {
	p.bestEffort(ctx, ipCmd("link", "del", v.Bridge))

	steps := []step{
		{name: "create bridge", do: ipCmd("link", "add", v.Bridge, "type", "bridge"), undo: ptr(ipCmd("link", "del", v.Bridge))},
		{name: "assign bridge address", do: ipCmd("addr", "add", topology.HostCIDR(v.BridgeIP, v.Prefix()), "dev", v.Bridge)},
		{name: "bring bridge up", do: ipCmd("link", "set", v.Bridge, "up")},
		{name: "enable forwarding", do: forwardingSysctl(v.IPv6())},
	}
	return p.apply(ctx, "vpc "+v.Name, steps)
}

// ProvisionSubnet creates the subnet namespace and wires it to the VPC bridge.
// Public subnets also get masquerading and forwarding rules on the egress
// interface.
func (p *Provisioner) ProvisionSubnet(ctx context.Context, v *topology.VPC, s *topology.Subnet) error {
	p.bestEffort(ctx, ipCmd("netns", "del", s.Namespace))
	p.bestEffort(ctx, ipCmd("link", "del", s.VethHost))

	steps := []step{
		{name: "create namespace", do: ipCmd("netns", "add", s.Namespace), undo: ptr(ipCmd("netns", "del", s.Namespace))},
		{name: "create veth pair", do: ipCmd("link", "add", s.VethHost, "type", "veth", "peer", "name", s.VethNS), undo: ptr(ipCmd("link", "del", s.VethHost))},
		{name: "attach veth to bridge", do: ipCmd("link", "set", s.VethHost, "master", v.Bridge)},
		{name: "bring host veth up", do: ipCmd("link", "set", s.VethHost, "up")},
		{name: "move veth into namespace", do: ipCmd("link", "set", s.VethNS, "netns", s.Namespace)},
		{name: "assign subnet address", do: nsCmd(s.Namespace, ipCmd("addr", "add", topology.HostCIDR(s.IP, s.Prefix()), "dev", s.VethNS))},
		{name: "bring namespace veth up", do: nsCmd(s.Namespace, ipCmd("link", "set", s.VethNS, "up"))},
		{name: "bring loopback up", do: nsCmd(s.Namespace, ipCmd("link", "set", "lo", "up"))},
		{name: "add default route", do: nsCmd(s.Namespace, ipCmd("route", "add", "default", "via", v.BridgeIP))},
	}
	if s.Public() {
		bin := iptables(v.IPv6())
		for _, r := range publicRules(v, s) {
			steps = append(steps, step{
				name:  "install " + r.name + " rule",
				probe: ptr(r.command(bin, "-C")),
				do:    r.command(bin, "-A"),
				undo:  ptr(r.command(bin, "-D")),
			})
		}
	}
	return p.apply(ctx, "subnet "+v.Name+"/"+s.Name, steps)
}

// ProvisionPeering connects two VPC bridges with a veth pair and routes each
// VPC's block through the peer bridge. first must be the VPC named pr.First.
func (p *Provisioner) ProvisionPeering(ctx context.Context, first, second *topology.VPC, pr *topology.Peering) error {
	p.bestEffort(ctx, ipCmd("link", "del", pr.VethFirst))

	steps := []step{
		{name: "create peering veth pair", do: ipCmd("link", "add", pr.VethFirst, "type", "veth", "peer", "name", pr.VethSecond), undo: ptr(ipCmd("link", "del", pr.VethFirst))},
		{name: "attach " + first.Name + " end", do: ipCmd("link", "set", pr.VethFirst, "master", first.Bridge)},
		{name: "attach " + second.Name + " end", do: ipCmd("link", "set", pr.VethSecond, "master", second.Bridge)},
		{name: "bring " + first.Name + " end up", do: ipCmd("link", "set", pr.VethFirst, "up")},
		{name: "bring " + second.Name + " end up", do: ipCmd("link", "set", pr.VethSecond, "up")},
		peerRouteStep(first, second),
		peerRouteStep(second, first),
	}
	return p.apply(ctx, "peering "+pr.Key, steps)
}

func peerRouteStep(local, remote *topology.VPC) step {
	return step{
		name: "route " + remote.Name + " via " + local.Name,
		do: ipCmd("route", "replace", remote.CIDR, "via", remote.BridgeIP, "dev", local.Bridge,
			"onlink", "metric", peerRouteMetric),
		undo: ptr(peerRouteDelete(local, remote)),
	}
}

func peerRouteDelete(local, remote *topology.VPC) Command {
	return ipCmd("route", "del", remote.CIDR, "dev", local.Bridge, "metric", peerRouteMetric)
}

// TeardownSubnet removes a subnet's processes, namespace, veth pair and
// public rules. Every step is attempted; failures are returned as warnings.
func (p *Provisioner) TeardownSubnet(ctx context.Context, v *topology.VPC, s *topology.Subnet) []error {
	t := p.teardown("subnet " + v.Name + "/" + s.Name)
	p.stopNamespaceProcesses(ctx, t, s.Namespace)
	t.remove(ctx, "delete namespace", ipCmd("netns", "del", s.Namespace))
	t.remove(ctx, "delete veth pair", ipCmd("link", "del", s.VethHost))
	if s.Public() {
		bin := iptables(v.IPv6())
		for _, r := range publicRules(v, s) {
			t.removeIfPresent(ctx, "remove "+r.name+" rule", r.command(bin, "-C"), r.command(bin, "-D"))
		}
	}
	return t.warnings()
}

// TeardownPeering removes the peering veth pair and both routes. first must
// be the VPC named pr.First.
func (p *Provisioner) TeardownPeering(ctx context.Context, first, second *topology.VPC, pr *topology.Peering) []error {
	t := p.teardown("peering " + pr.Key)
	t.remove(ctx, "delete peering veth pair", ipCmd("link", "del", pr.VethFirst))
	t.remove(ctx, "remove route to "+second.Name, peerRouteDelete(first, second))
	t.remove(ctx, "remove route to "+first.Name, peerRouteDelete(second, first))
	return t.warnings()
}

// PeerLink is a peering together with both of its VPCs, First first.
type PeerLink struct {
	Peering *topology.Peering
	First   *topology.VPC
	Second  *topology.VPC
}

// TeardownVPC removes every subnet, then the given peerings, then the bridge.
func (p *Provisioner) TeardownVPC(ctx context.Context, v *topology.VPC, links []PeerLink) []error {
	t := p.teardown("vpc " + v.Name)
	for s := range v.ListSubnets() {
		t.merge(p.TeardownSubnet(ctx, v, s))
	}
	for _, l := range links {
		t.merge(p.TeardownPeering(ctx, l.First, l.Second, l.Peering))
	}
	t.remove(ctx, "bring bridge down", ipCmd("link", "set", v.Bridge, "down"))
	t.remove(ctx, "delete bridge", ipCmd("link", "del", v.Bridge))
	return t.warnings()
}

// stopNamespaceProcesses terminates everything running inside ns, which is
// the demo app when one was deployed.
func (p *Provisioner) stopNamespaceProcesses(ctx context.Context, t *teardown, ns string) {
	res, err := p.run(ctx, ProbeCmd("ip", "netns", "pids", ns))
	if err != nil || !res.OK() {
		return
	}
	for _, pid := range strings.Fields(res.Stdout) {
		t.remove(ctx, "stop process "+pid, Cmd("kill", "-TERM", pid))
	}
}
