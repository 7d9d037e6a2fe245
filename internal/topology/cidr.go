package topology

import (
	"fmt"
	"maps"
	"net/netip"
	"regexp"
	"slices"
	"strings"

	"go4.org/netipx"
)

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]{0,31}$`)

// ValidateName checks a VPC or subnet name.
func ValidateName(kind, name string) error {
	if !namePattern.MatchString(name) {
		return invalidf("%s name %q must be 1-32 characters of letters, digits, '.', '_' or '-'", kind, name)
	}
	return nil
}

// ParseCIDR parses a network prefix. Host bits must be zero: "10.0.0.1/16"
// names an address, not a network.
func ParseCIDR(s string) (netip.Prefix, error) {
	p, err := netip.ParsePrefix(strings.TrimSpace(s))
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("%w: %q: %v", ErrInvalidCIDR, s, err)
	}
	if p != p.Masked() {
		return netip.Prefix{}, fmt.Errorf("%w: %q has host bits set (network is %s)", ErrInvalidCIDR, s, p.Masked())
	}
	return p, nil
}

// FirstUsable returns the first host address of a prefix. The network address
// is skipped except for /31, /32, /127 and /128 where every address is usable.
func FirstUsable(p netip.Prefix) (netip.Addr, error) {
	if !p.IsValid() {
		return netip.Addr{}, fmt.Errorf("%w: invalid prefix", ErrInvalidCIDR)
	}
	if p.Bits() >= p.Addr().BitLen()-1 {
		return p.Addr(), nil
	}
	return p.Addr().Next(), nil
}

// StrictlyContains reports whether inner is a proper sub-range of outer.
func StrictlyContains(outer, inner netip.Prefix) bool {
	if outer.Addr().BitLen() != inner.Addr().BitLen() || inner.Bits() <= outer.Bits() {
		return false
	}
	r := netipx.RangeOfPrefix(outer)
	in := netipx.RangeOfPrefix(inner)
	return r.Contains(in.From()) && r.Contains(in.To())
}

// Overlaps reports whether two prefixes share any address.
func Overlaps(a, b netip.Prefix) bool {
	return netipx.RangeOfPrefix(a).Overlaps(netipx.RangeOfPrefix(b))
}

// overlapping returns the first prefix in others that intersects p.
func overlapping(p netip.Prefix, others map[string]netip.Prefix) (string, bool) {
	var b netipx.IPSetBuilder
	for _, o := range others {
		b.AddPrefix(o)
	}
	set, err := b.IPSet()
	if err != nil || !set.OverlapsPrefix(p) {
		return "", false
	}
	for _, name := range slices.Sorted(maps.Keys(others)) {
		if Overlaps(p, others[name]) {
			return name, true
		}
	}
	return "", false
}

// HostCIDR formats an address with the prefix length of its network,
// the form `ip addr add` expects.
func HostCIDR(addr string, network netip.Prefix) string {
	return fmt.Sprintf("%s/%d", addr, network.Bits())
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
