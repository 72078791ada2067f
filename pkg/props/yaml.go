package props

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// ParseYAML loads path as a YAML mapping and sets one string property per
// top-level key, preserving document order via yaml.MapSlice (§4.1
// "parse_yaml(path)").
func (b *Bag) ParseYAML(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("parse_yaml: %w", err)
	}
	var doc yaml.MapSlice
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse_yaml: %w", err)
	}
	for _, item := range doc {
		name := fmt.Sprintf("%v", item.Key)
		b.SetString(name, fmt.Sprintf("%v", item.Value))
	}
	return nil
}

// SerialiseYAML renders every property as a YAML mapping in insertion order,
// rebasing path-typed properties and omitting Binary/Bag kinds, which have
// no scalar YAML form (§4.1 "serialise_yaml()").
func (b *Bag) SerialiseYAML() (string, error) {
	b.mu.Lock()
	doc := make(yaml.MapSlice, 0, len(b.entries))
	for _, p := range b.entries {
		if p.Kind == KindBinary || p.Kind == KindBag {
			continue
		}
		v, _ := b.stringLocked(p)
		doc = append(doc, yaml.MapItem{Key: p.Name, Value: v})
	}
	b.mu.Unlock()

	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("serialise_yaml: %w", err)
	}
	return string(out), nil
}
