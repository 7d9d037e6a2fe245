// Package naming derives the short OS-level identifiers (bridges, namespaces,
// veth endpoints) used for VPC resources.
//
// Linux caps interface names at 15 bytes, so user-chosen VPC and subnet names
// are never used verbatim. Each identifier is a role tag followed by the first
// HashWidth hex digits of an xxhash64 digest over the identifying names. With
// 40 bits of digest the chance of any collision among n identifiers of one role
// is roughly n²/2⁴¹, about one in two million for a thousand subnets.
package naming

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	// MaxInterfaceLen is the kernel limit for interface names (IFNAMSIZ - 1).
	MaxInterfaceLen = 15

	// HashWidth is the number of hex digits taken from the digest.
	HashWidth = 10
)

// Role tags. All tags are three bytes so every identifier is 13 bytes long.
const (
	TagBridge    = "br-"
	TagNamespace = "ns-"
	TagVethHost  = "vh-"
	TagVethNS    = "vn-"
	TagPeerA     = "pa-"
	TagPeerB     = "pb-"
)

// SubnetNames holds the identifiers derived for one subnet.
type SubnetNames struct {
	Namespace string
	VethHost  string
	VethNS    string
}

// PeeringNames holds the identifiers derived for one peering. First and
// Second are the VPC names in canonical order; VethFirst attaches to the
// bridge of First and VethSecond to the bridge of Second.
type PeeringNames struct {
	Key        string
	First      string
	Second     string
	VethFirst  string
	VethSecond string
}

// Bridge returns the bridge interface name for a VPC.
func Bridge(vpc string) string {
	return TagBridge + digest("bridge", vpc)
}

// Subnet returns the namespace and veth names for a subnet. The derivation
// is order sensitive: Subnet("a", "b") and Subnet("b", "a") differ.
func Subnet(vpc, subnet string) SubnetNames {
	h := digest("subnet", vpc, subnet)
	return SubnetNames{
		Namespace: TagNamespace + h,
		VethHost:  TagVethHost + h,
		VethNS:    TagVethNS + h,
	}
}

// Peering returns the names for the peering between two VPCs. The result is
// the same regardless of argument order.
func Peering(a, b string) PeeringNames {
	first, second := Canonical(a, b)
	h := digest("peering", first, second)
	return PeeringNames{
		Key:        PeeringKey(first, second),
		First:      first,
		Second:     second,
		VethFirst:  TagPeerA + h,
		VethSecond: TagPeerB + h,
	}
}

// Canonical orders a VPC name pair lexicographically.
func Canonical(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// PeeringKey is the unordered-pair key under which a peering is stored.
func PeeringKey(a, b string) string {
	first, second := Canonical(a, b)
	return first + ":" + second
}

// digest hashes the NUL-joined parts. VPC and subnet names cannot contain NUL,
// so distinct tuples never share an input.
func digest(parts ...string) string {
	sum := xxhash.Sum64String(strings.Join(parts, "\x00"))
	return fmt.Sprintf("%016x", sum)[:HashWidth]
}
