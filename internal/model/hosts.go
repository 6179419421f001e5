package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// HostMap maps a role group's host key to its host specification. Each value
// may be written as a comma-separated string or as a list of hostnames; a
// list is stored joined with commas.
type HostMap map[string]string

// UnmarshalJSON accepts string or array values.
func (m *HostMap) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*m = nil
		return nil
	}
	out := make(HostMap, len(raw))
	for key, value := range raw {
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			out[key] = s
			continue
		}
		var list []string
		if err := json.Unmarshal(value, &list); err != nil {
			return fmt.Errorf("hosts.%s: want a string or a list of strings", key)
		}
		out[key] = strings.Join(list, ",")
	}
	*m = out
	return nil
}

// UnmarshalYAML accepts scalar or sequence values.
func (m *HostMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: hosts must be a mapping", node.Line)
	}
	out := make(HostMap, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]
		key := keyNode.Value
		switch valueNode.Kind {
		case yaml.ScalarNode:
			out[key] = valueNode.Value
		case yaml.SequenceNode:
			var list []string
			if err := valueNode.Decode(&list); err != nil {
				return fmt.Errorf("line %d: hosts.%s: %w", valueNode.Line, key, err)
			}
			out[key] = strings.Join(list, ",")
		default:
			return fmt.Errorf("line %d: hosts.%s: want a string or a list of strings", valueNode.Line, key)
		}
	}
	*m = out
	return nil
}
