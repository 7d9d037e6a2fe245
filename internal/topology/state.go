package topology

import (
	"fmt"
	"iter"
	"maps"
	"net/netip"
	"slices"
	"time"

	"tasnim.dev/vpcctl/internal/naming"
)

// State is the persisted topology document. Every method validates its
// inputs before mutating, so a failed call leaves the state untouched.
type State struct {
	VPCs     map[string]*VPC     `json:"vpcs" yaml:"vpcs"`
	Peerings map[string]*Peering `json:"peerings" yaml:"peerings"`
}

// NewState returns an empty document.
func NewState() *State {
	return &State{
		VPCs:     make(map[string]*VPC),
		Peerings: make(map[string]*Peering),
	}
}

// normalize fills nil maps left by documents written by older versions.
func (s *State) normalize() {
	if s.VPCs == nil {
		s.VPCs = make(map[string]*VPC)
	}
	if s.Peerings == nil {
		s.Peerings = make(map[string]*Peering)
	}
	for name, v := range s.VPCs {
		if v.Name == "" {
			v.Name = name
		}
		if v.Subnets == nil {
			v.Subnets = make(map[string]*Subnet)
		}
		for sn, sub := range v.Subnets {
			if sub.Name == "" {
				sub.Name = sn
			}
			if sub.VPC == "" {
				sub.VPC = name
			}
		}
	}
}

// Reset drops every record.
func (s *State) Reset() {
	s.VPCs = make(map[string]*VPC)
	s.Peerings = make(map[string]*Peering)
}

// VPC looks up a VPC by name.
func (s *State) VPC(name string) (*VPC, error) {
	v, ok := s.VPCs[name]
	if !ok {
		return nil, fmt.Errorf("%w: vpc %q", ErrNotFound, name)
	}
	return v, nil
}

// Subnet looks up a subnet and its parent VPC.
func (s *State) Subnet(vpcName, name string) (*VPC, *Subnet, error) {
	v, err := s.VPC(vpcName)
	if err != nil {
		return nil, nil, err
	}
	sub, ok := v.Subnets[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: subnet %q in vpc %q", ErrNotFound, name, vpcName)
	}
	return v, sub, nil
}

// CreateVPC validates and records a new VPC. The bridge name is derived from
// the VPC name and the bridge address is the first usable host of the block.
func (s *State) CreateVPC(name, cidr, egress string, now time.Time) (*VPC, error) {
	if err := ValidateName("vpc", name); err != nil {
		return nil, err
	}
	if _, ok := s.VPCs[name]; ok {
		return nil, fmt.Errorf("%w: vpc %q", ErrAlreadyExists, name)
	}
	prefix, err := ParseCIDR(cidr)
	if err != nil {
		return nil, err
	}
	if egress == "" {
		return nil, invalidf("egress interface is required")
	}
	bridgeIP, err := FirstUsable(prefix)
	if err != nil {
		return nil, err
	}

	v := &VPC{
		Name:      name,
		CIDR:      prefix.String(),
		Bridge:    naming.Bridge(name),
		BridgeIP:  bridgeIP.String(),
		Interface: egress,
		Subnets:   make(map[string]*Subnet),
		CreatedAt: now.UTC(),
	}
	s.VPCs[name] = v
	return v, nil
}

// AddSubnet validates and records a subnet. The CIDR must be a strict
// sub-range of the VPC block, must not hold the bridge address and must not
// intersect any sibling subnet.
func (s *State) AddSubnet(vpcName, name, cidr string, typ SubnetType, now time.Time) (*Subnet, error) {
	v, err := s.VPC(vpcName)
	if err != nil {
		return nil, err
	}
	if err := ValidateName("subnet", name); err != nil {
		return nil, err
	}
	if _, ok := v.Subnets[name]; ok {
		return nil, fmt.Errorf("%w: subnet %q in vpc %q", ErrAlreadyExists, name, vpcName)
	}
	if typ != SubnetPublic && typ != SubnetPrivate {
		return nil, invalidf("subnet type %q must be public or private", typ)
	}
	prefix, err := ParseCIDR(cidr)
	if err != nil {
		return nil, err
	}
	if !StrictlyContains(v.Prefix(), prefix) {
		return nil, fmt.Errorf("%w: subnet %s is not inside vpc %s", ErrOutOfRange, prefix, v.CIDR)
	}
	bridgeIP, err := netip.ParseAddr(v.BridgeIP)
	if err == nil && prefix.Contains(bridgeIP) {
		return nil, fmt.Errorf("%w: subnet %s contains bridge address %s", ErrOverlap, prefix, bridgeIP)
	}
	siblings := make(map[string]netip.Prefix, len(v.Subnets))
	for sn, sub := range v.Subnets {
		siblings[sn] = sub.Prefix()
	}
	if other, ok := overlapping(prefix, siblings); ok {
		return nil, fmt.Errorf("%w: subnet %s intersects subnet %q (%s)", ErrOverlap, prefix, other, v.Subnets[other].CIDR)
	}
	addr, err := FirstUsable(prefix)
	if err != nil {
		return nil, err
	}

	names := naming.Subnet(vpcName, name)
	sub := &Subnet{
		Name:      name,
		VPC:       vpcName,
		CIDR:      prefix.String(),
		Type:      typ,
		Namespace: names.Namespace,
		VethHost:  names.VethHost,
		VethNS:    names.VethNS,
		IP:        addr.String(),
		CreatedAt: now.UTC(),
	}
	v.Subnets[name] = sub
	return sub, nil
}

// RemoveSubnet deletes a subnet record and returns it.
func (s *State) RemoveSubnet(vpcName, name string) (*Subnet, error) {
	v, sub, err := s.Subnet(vpcName, name)
	if err != nil {
		return nil, err
	}
	delete(v.Subnets, name)
	return sub, nil
}

// RemoveVPC deletes a VPC, its subnets and every peering referencing it.
// The removed peerings are returned in key order.
func (s *State) RemoveVPC(name string) (*VPC, []*Peering, error) {
	v, err := s.VPC(name)
	if err != nil {
		return nil, nil, err
	}
	peerings := s.PeeringsOf(name)
	for _, p := range peerings {
		delete(s.Peerings, p.Key)
	}
	delete(s.VPCs, name)
	return v, peerings, nil
}

// AddPeering records a peering between two distinct VPCs with disjoint blocks.
// The pair is unordered: peering (a, b) after (b, a) is a duplicate.
func (s *State) AddPeering(a, b string, now time.Time) (*Peering, error) {
	if a == b {
		return nil, invalidf("cannot peer vpc %q with itself", a)
	}
	va, err := s.VPC(a)
	if err != nil {
		return nil, err
	}
	vb, err := s.VPC(b)
	if err != nil {
		return nil, err
	}
	names := naming.Peering(a, b)
	if _, ok := s.Peerings[names.Key]; ok {
		return nil, fmt.Errorf("%w: peering %s", ErrAlreadyExists, names.Key)
	}
	if Overlaps(va.Prefix(), vb.Prefix()) {
		return nil, fmt.Errorf("%w: vpc %s (%s) and vpc %s (%s)", ErrOverlap, a, va.CIDR, b, vb.CIDR)
	}

	p := &Peering{
		Key:        names.Key,
		First:      names.First,
		Second:     names.Second,
		VethFirst:  names.VethFirst,
		VethSecond: names.VethSecond,
		CreatedAt:  now.UTC(),
	}
	s.Peerings[p.Key] = p
	return p, nil
}

// Peering looks up the peering between two VPCs in either order.
func (s *State) Peering(a, b string) (*Peering, error) {
	key := naming.PeeringKey(a, b)
	p, ok := s.Peerings[key]
	if !ok {
		return nil, fmt.Errorf("%w: peering %s", ErrNotFound, key)
	}
	return p, nil
}

// RemovePeering deletes the peering between two VPCs.
func (s *State) RemovePeering(a, b string) (*Peering, error) {
	p, err := s.Peering(a, b)
	if err != nil {
		return nil, err
	}
	delete(s.Peerings, p.Key)
	return p, nil
}

// PeeringsOf returns the peerings referencing a VPC, in key order.
func (s *State) PeeringsOf(vpc string) []*Peering {
	var out []*Peering
	for p := range s.AllPeerings() {
		if p.Involves(vpc) {
			out = append(out, p)
		}
	}
	return out
}

// SetFirewall replaces a subnet's ingress rule set and bumps its version.
// Rules must already be validated.
func (s *State) SetFirewall(vpcName, subnetName string, rules []Rule, now time.Time) (*FirewallRuleSet, error) {
	_, sub, err := s.Subnet(vpcName, subnetName)
	if err != nil {
		return nil, err
	}
	version := 1
	if sub.Firewall != nil {
		version = sub.Firewall.Version + 1
	}
	sub.Firewall = &FirewallRuleSet{
		Version:   version,
		Ingress:   slices.Clone(rules),
		AppliedAt: now.UTC(),
	}
	return sub.Firewall, nil
}

// SetDeployment records the demo app running in a subnet.
func (s *State) SetDeployment(vpcName, subnetName string, d *Deployment) error {
	_, sub, err := s.Subnet(vpcName, subnetName)
	if err != nil {
		return err
	}
	sub.App = d
	return nil
}

// ListVPCs yields VPCs sorted by name.
func (s *State) ListVPCs() iter.Seq[*VPC] {
	return func(yield func(*VPC) bool) {
		for _, name := range slices.Sorted(maps.Keys(s.VPCs)) {
			if !yield(s.VPCs[name]) {
				return
			}
		}
	}
}

// AllPeerings yields peerings sorted by key.
func (s *State) AllPeerings() iter.Seq[*Peering] {
	return func(yield func(*Peering) bool) {
		for _, key := range slices.Sorted(maps.Keys(s.Peerings)) {
			if !yield(s.Peerings[key]) {
				return
			}
		}
	}
}

// ListSubnets yields the VPC's subnets sorted by name.
func (v *VPC) ListSubnets() iter.Seq[*Subnet] {
	return func(yield func(*Subnet) bool) {
		for _, name := range slices.Sorted(maps.Keys(v.Subnets)) {
			if !yield(v.Subnets[name]) {
				return
			}
		}
	}
}
