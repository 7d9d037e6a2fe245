// Package firewall reads and validates ingress rule files.
//
// The file format is {"ingress": [{"port": 80, "protocol": "tcp", "action": "allow"}]}.
// It is decoded with a YAML parser, so the same document may also be written
// as YAML. A rule set is accepted or rejected as a whole: one bad rule fails
// the request before anything is applied.
package firewall

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"tasnim.dev/vpcctl/internal/topology"
)

// Protocols that accept a --dport match.
var protocols = map[string]bool{
	"tcp":     true,
	"udp":     true,
	"sctp":    true,
	"udplite": true,
}

type ruleFile struct {
	Ingress []topology.Rule `yaml:"ingress"`
}

// Load reads and validates a rules file.
func Load(path string) ([]topology.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading rules file: %v", topology.ErrInvalidInput, err)
	}
	rules, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

// Parse decodes a rules document and returns its normalized ingress rules.
func Parse(data []byte) ([]topology.Rule, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: malformed rules document: %v", topology.ErrInvalidInput, err)
	}
	rules := make([]topology.Rule, 0, len(f.Ingress))
	for i, r := range f.Ingress {
		n, err := Normalize(r)
		if err != nil {
			return nil, fmt.Errorf("ingress[%d]: %w", i, err)
		}
		rules = append(rules, n)
	}
	return rules, nil
}

// Normalize lowercases a rule and checks its port, protocol and action.
func Normalize(r topology.Rule) (topology.Rule, error) {
	r.Protocol = strings.ToLower(strings.TrimSpace(r.Protocol))
	r.Action = topology.Action(strings.ToLower(strings.TrimSpace(string(r.Action))))

	if !protocols[r.Protocol] {
		return r, fmt.Errorf("%w: unsupported protocol %q", topology.ErrInvalidInput, r.Protocol)
	}
	if r.Port < 1 || r.Port > 65535 {
		return r, fmt.Errorf("%w: port %d out of range 1-65535", topology.ErrInvalidInput, r.Port)
	}
	switch r.Action {
	case topology.ActionAllow, topology.ActionDeny:
	default:
		return r, fmt.Errorf("%w: unknown action %q", topology.ErrInvalidInput, r.Action)
	}
	return r, nil
}
