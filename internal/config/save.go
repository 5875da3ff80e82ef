package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/omniedit/internal/log"
	"github.com/zjrosen/omniedit/internal/syntax"
)

// SavePatterns replaces syntax.patterns in the config file with rules.
// Comments and formatting in other sections are preserved by editing the
// yaml.Node tree rather than re-marshaling the Config.
func SavePatterns(configPath string, rules []syntax.Rule) error {
	data, err := os.ReadFile(configPath) //nolint:gosec // G304: config path chosen by the user
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}

	var doc yaml.Node
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}
	if doc.Kind == 0 {
		doc = yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode}},
		}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return fmt.Errorf("parsing config: top level is not a mapping")
	}

	patterns, err := buildPatternsNode(rules)
	if err != nil {
		return fmt.Errorf("building patterns node: %w", err)
	}

	syntaxNode := mappingValue(doc.Content[0], "syntax")
	if syntaxNode.Kind != yaml.MappingNode {
		// "syntax:" with no value, or a scalar
		*syntaxNode = yaml.Node{Kind: yaml.MappingNode}
	}
	syntaxNode.Style &^= yaml.FlowStyle
	*mappingValue(syntaxNode, "patterns") = *patterns

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_ = encoder.Close()

	if err := writeAtomic(configPath, buf.Bytes()); err != nil {
		return err
	}
	log.Info(log.CatConfig, "Saved syntax patterns", "path", configPath, "count", len(rules))
	return nil
}

// mappingValue returns the value node for key in m, appending an empty one
// when the key is absent.
func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i < len(m.Content)-1; i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	value := &yaml.Node{Kind: yaml.MappingNode}
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, value)
	return value
}

// buildPatternsNode creates a yaml.Node representing the patterns array.
func buildPatternsNode(rules []syntax.Rule) (*yaml.Node, error) {
	node := &yaml.Node{
		Kind:    yaml.SequenceNode,
		Content: make([]*yaml.Node, 0, len(rules)),
	}
	if len(rules) == 0 {
		node.Style = yaml.FlowStyle
	}
	for _, rule := range rules {
		var ruleNode yaml.Node
		if err := ruleNode.Encode(rule); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &ruleNode)
	}
	return node, nil
}

// writeAtomic writes data to a temp file next to path and renames it over
// path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".config.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
