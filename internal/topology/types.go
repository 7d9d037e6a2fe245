package topology

import (
	"net/netip"
	"strings"
	"time"
)

// SubnetType selects whether a subnet gets NAT to the egress interface.
type SubnetType string

const (
	SubnetPublic  SubnetType = "public"
	SubnetPrivate SubnetType = "private"
)

// ParseSubnetType validates a subnet type. An empty string means private.
func ParseSubnetType(s string) (SubnetType, error) {
	switch SubnetType(strings.ToLower(strings.TrimSpace(s))) {
	case "", SubnetPrivate:
		return SubnetPrivate, nil
	case SubnetPublic:
		return SubnetPublic, nil
	default:
		return "", invalidf("subnet type %q must be public or private", s)
	}
}

// VPC is an isolated logical network backed by one bridge.
type VPC struct {
	Name      string             `json:"name" yaml:"name"`
	CIDR      string             `json:"cidr" yaml:"cidr"`
	Bridge    string             `json:"bridge" yaml:"bridge"`
	BridgeIP  string             `json:"bridge_ip" yaml:"bridge_ip"`
	Interface string             `json:"internet_interface" yaml:"internet_interface"`
	Subnets   map[string]*Subnet `json:"subnets" yaml:"subnets"`
	CreatedAt time.Time          `json:"created_at" yaml:"created_at"`
}

// Prefix returns the parsed VPC CIDR. Stored records are validated on write,
// so a parse failure here means the state document was edited by hand.
func (v *VPC) Prefix() netip.Prefix {
	p, _ := netip.ParsePrefix(v.CIDR)
	return p
}

// IPv6 reports whether the VPC uses an IPv6 block.
func (v *VPC) IPv6() bool {
	return v.Prefix().Addr().Is6()
}

// Subnet is a CIDR-scoped sub-range of a VPC isolated in its own namespace.
type Subnet struct {
	Name      string           `json:"name" yaml:"name"`
	VPC       string           `json:"vpc" yaml:"vpc"`
	CIDR      string           `json:"cidr" yaml:"cidr"`
	Type      SubnetType       `json:"type" yaml:"type"`
	Namespace string           `json:"namespace" yaml:"namespace"`
	VethHost  string           `json:"veth_host" yaml:"veth_host"`
	VethNS    string           `json:"veth_ns" yaml:"veth_ns"`
	IP        string           `json:"ip" yaml:"ip"`
	Firewall  *FirewallRuleSet `json:"firewall,omitempty" yaml:"firewall,omitempty"`
	App       *Deployment      `json:"app,omitempty" yaml:"app,omitempty"`
	CreatedAt time.Time        `json:"created_at" yaml:"created_at"`
}

// Prefix returns the parsed subnet CIDR.
func (s *Subnet) Prefix() netip.Prefix {
	p, _ := netip.ParsePrefix(s.CIDR)
	return p
}

// Public reports whether the subnet is NATed to the VPC egress interface.
func (s *Subnet) Public() bool {
	return s.Type == SubnetPublic
}

// Peering connects the bridges of two VPCs with a dedicated veth pair.
// First sorts before Second.
type Peering struct {
	Key        string    `json:"key" yaml:"key"`
	First      string    `json:"first" yaml:"first"`
	Second     string    `json:"second" yaml:"second"`
	VethFirst  string    `json:"veth_first" yaml:"veth_first"`
	VethSecond string    `json:"veth_second" yaml:"veth_second"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
}

// Involves reports whether the peering references the named VPC.
func (p *Peering) Involves(vpc string) bool {
	return p.First == vpc || p.Second == vpc
}

// Other returns the peer of vpc in the pair.
func (p *Peering) Other(vpc string) string {
	if p.First == vpc {
		return p.Second
	}
	return p.First
}

// Action is the verdict of an ingress rule.
type Action string

const (
	ActionAllow Action = "allow"
	ActionDeny  Action = "deny"
)

// Target maps the action to its iptables jump target.
func (a Action) Target() string {
	if a == ActionAllow {
		return "ACCEPT"
	}
	return "DROP"
}

// Rule is one ingress filter entry applied inside a subnet namespace.
type Rule struct {
	Port     int    `json:"port" yaml:"port"`
	Protocol string `json:"protocol" yaml:"protocol"`
	Action   Action `json:"action" yaml:"action"`
}

// FirewallRuleSet is the persisted, versioned rule set of one subnet.
type FirewallRuleSet struct {
	Version   int       `json:"version" yaml:"version"`
	Ingress   []Rule    `json:"ingress" yaml:"ingress"`
	AppliedAt time.Time `json:"applied_at" yaml:"applied_at"`
}

// Deployment records the demo web server started inside a subnet.
type Deployment struct {
	Port      int       `json:"port" yaml:"port"`
	PID       int       `json:"pid" yaml:"pid"`
	WebRoot   string    `json:"web_root" yaml:"web_root"`
	LogPath   string    `json:"log_path" yaml:"log_path"`
	StartedAt time.Time `json:"started_at" yaml:"started_at"`
}
