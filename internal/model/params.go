package model

import (
	"bytes"
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sourceplane/slurmster/internal/errors"
)

// Param is one resolved parameter of a run.
// Value is the scalar exactly as written in the experiment file ("0.10" stays "0.10").
type Param struct {
	Key   string
	Value string
}

// Params is an ordered parameter set. Order is the order of the grid keys
// (or of the mapping in an explicit experiment entry).
type Params []Param

// Get returns the value for key
func (p Params) Get(key string) (string, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Keys returns parameter names in order
func (p Params) Keys() []string {
	keys := make([]string, len(p))
	for i, kv := range p {
		keys[i] = kv.Key
	}
	return keys
}

// Map returns the parameters as a plain map
func (p Params) Map() map[string]string {
	m := make(map[string]string, len(p))
	for _, kv := range p {
		m[kv.Key] = kv.Value
	}
	return m
}

// String renders "k=v, k=v"
func (p Params) String() string {
	parts := make([]string, len(p))
	for i, kv := range p {
		parts[i] = kv.Key + "=" + kv.Value
	}
	return strings.Join(parts, ", ")
}

// UnmarshalYAML decodes a mapping of scalars keeping the document order
func (p *Params) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return errors.Configurationf("line %d: experiment entry must be a mapping of parameter names to values", node.Line)
	}

	params := make(Params, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			return errors.Configurationf("line %d: parameter %q must be a scalar value", value.Line, key.Value)
		}
		params = append(params, Param{Key: key.Value, Value: value.Value})
	}

	*p = params
	return nil
}

// MarshalYAML encodes the parameters as an ordered mapping
func (p Params) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, kv := range p {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: kv.Key},
			&yaml.Node{Kind: yaml.ScalarNode, Value: kv.Value},
		)
	}
	return node, nil
}

// MarshalJSON encodes the parameters as a JSON object with keys in order
func (p Params) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, kv := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping key order
func (p *Params) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return errors.Wrap(err, "failed to read params")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.Newf("params must be a JSON object, got %v", tok)
	}

	params := Params{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return errors.Wrap(err, "failed to read param name")
		}
		key, _ := keyTok.(string)

		var raw interface{}
		if err := dec.Decode(&raw); err != nil {
			return errors.Wrapf(err, "failed to read param %s", key)
		}
		params = append(params, Param{Key: key, Value: scalarString(raw)})
	}

	*p = params
	return nil
}

func scalarString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		data, _ := json.Marshal(t)
		return string(data)
	}
}

// GridAxis is one grid key with its candidate values
type GridAxis struct {
	Key    string
	Values []string
}

// Grid maps parameter names to candidate values, in file order
type Grid []GridAxis

// Size returns the number of parameter sets the grid expands to
func (g Grid) Size() int {
	if len(g) == 0 {
		return 0
	}
	n := 1
	for _, axis := range g {
		n *= len(axis.Values)
	}
	return n
}

// UnmarshalYAML decodes the grid mapping keeping the key order of the file.
// A scalar value is a single candidate.
func (g *Grid) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return errors.Configurationf("line %d: run.grid must be a mapping of parameter names to value lists", node.Line)
	}

	grid := make(Grid, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		axis := GridAxis{Key: key.Value}

		switch value.Kind {
		case yaml.ScalarNode:
			axis.Values = []string{value.Value}
		case yaml.SequenceNode:
			for _, item := range value.Content {
				if item.Kind != yaml.ScalarNode {
					return errors.Configurationf("line %d: grid values for %q must be scalars", item.Line, key.Value)
				}
				axis.Values = append(axis.Values, item.Value)
			}
		default:
			return errors.Configurationf("line %d: grid entry %q must be a list of values", value.Line, key.Value)
		}

		grid = append(grid, axis)
	}

	*g = grid
	return nil
}

// MarshalYAML encodes the grid as an ordered mapping of lists
func (g Grid) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, axis := range g {
		seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, v := range axis.Values {
			seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: v})
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: axis.Key}, seq)
	}
	return node, nil
}
