package topology

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCIDR(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"10.0.0.0/16", "10.0.0.0/16", false},
		{" 192.168.1.0/24 ", "192.168.1.0/24", false},
		{"fd00::/64", "fd00::/64", false},
		{"10.0.0.1/16", "", true},
		{"10.0.0.0", "", true},
		{"not-a-cidr", "", true},
		{"10.0.0.0/33", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := ParseCIDR(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidCIDR)
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.String())
		})
	}
}

func TestFirstUsable(t *testing.T) {
	tests := []struct {
		cidr string
		want string
	}{
		{"10.0.0.0/16", "10.0.0.1"},
		{"10.1.1.0/24", "10.1.1.1"},
		{"192.168.0.0/30", "192.168.0.1"},
		{"192.168.0.4/31", "192.168.0.4"},
		{"192.168.0.9/32", "192.168.0.9"},
		{"fd00::/64", "fd00::1"},
		{"fd00::/127", "fd00::"},
	}
	for _, tt := range tests {
		t.Run(tt.cidr, func(t *testing.T) {
			addr, err := FirstUsable(netip.MustParsePrefix(tt.cidr))
			require.NoError(t, err)
			assert.Equal(t, tt.want, addr.String())
		})
	}
}

func TestStrictlyContains(t *testing.T) {
	vpc := netip.MustParsePrefix("10.1.0.0/16")
	assert.True(t, StrictlyContains(vpc, netip.MustParsePrefix("10.1.1.0/24")))
	assert.True(t, StrictlyContains(vpc, netip.MustParsePrefix("10.1.255.0/24")))
	assert.False(t, StrictlyContains(vpc, vpc))
	assert.False(t, StrictlyContains(vpc, netip.MustParsePrefix("10.2.1.0/24")))
	assert.False(t, StrictlyContains(vpc, netip.MustParsePrefix("10.0.0.0/8")))
	assert.False(t, StrictlyContains(vpc, netip.MustParsePrefix("fd00::/64")))
}

func TestOverlaps(t *testing.T) {
	assert.True(t, Overlaps(netip.MustParsePrefix("10.1.0.0/23"), netip.MustParsePrefix("10.1.1.0/24")))
	assert.False(t, Overlaps(netip.MustParsePrefix("10.1.0.0/24"), netip.MustParsePrefix("10.1.1.0/24")))
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("vpc", "shop"))
	assert.NoError(t, ValidateName("vpc", "shop-prod_2.a"))
	assert.ErrorIs(t, ValidateName("vpc", ""), ErrInvalidInput)
	assert.ErrorIs(t, ValidateName("vpc", "-shop"), ErrInvalidInput)
	assert.ErrorIs(t, ValidateName("vpc", "shop web"), ErrInvalidInput)
	assert.ErrorIs(t, ValidateName("vpc", "shop;rm"), ErrInvalidInput)
}
