package firewall

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasnim.dev/vpcctl/internal/topology"
)

func TestParse_JSON(t *testing.T) {
	doc := `{"ingress": [
    {"port": 80, "protocol": "tcp", "action": "allow"},
    {"port": 53, "protocol": "UDP", "action": "DENY"}
  ]}`
	rules, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, topology.Rule{Port: 80, Protocol: "tcp", Action: topology.ActionAllow}, rules[0])
	assert.Equal(t, topology.Rule{Port: 53, Protocol: "udp", Action: topology.ActionDeny}, rules[1])
}

func TestParse_YAML(t *testing.T) {
	doc := "ingress:\n  - port: 22\n    protocol: tcp\n    action: deny\n"
	rules, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "DROP", rules[0].Action.Target())
}

func TestParse_EmptyIngress(t *testing.T) {
	rules, err := Parse([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestParse_Rejects(t *testing.T) {
	tests := map[string]string{
		"unknown action":   `{"ingress": [{"port": 80, "protocol": "tcp", "action": "reject"}]}`,
		"port zero":        `{"ingress": [{"port": 0, "protocol": "tcp", "action": "allow"}]}`,
		"port too large":   `{"ingress": [{"port": 70000, "protocol": "tcp", "action": "allow"}]}`,
		"icmp has no port": `{"ingress": [{"port": 1, "protocol": "icmp", "action": "allow"}]}`,
		"malformed":        `{"ingress": [`,
		"port as word":     `{"ingress": [{"port": "http", "protocol": "tcp", "action": "allow"}]}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.ErrorIs(t, err, topology.ErrInvalidInput)
		})
	}
}

func TestParse_OneBadRuleFailsAll(t *testing.T) {
	doc := `{"ingress": [
    {"port": 80, "protocol": "tcp", "action": "allow"},
    {"port": 81, "protocol": "tcp", "action": "maybe"}
  ]}`
	rules, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Nil(t, rules)
	assert.Contains(t, err.Error(), "ingress[1]")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ingress": [{"port": 443, "protocol": "tcp", "action": "allow"}]}`), 0o644))

	rules, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, rules, 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, topology.ErrInvalidInput)
	assert.ErrorContains(t, err, "reading rules file")
}
