package syntax

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/omniedit/internal/log"
)

//go:embed definitions/*.yaml
var builtinFS embed.FS

// Rule is one entry of a syntax definition. Exactly one of Pattern or
// Tokens must be set.
type Rule struct {
	Label   string   `yaml:"label" mapstructure:"label"`
	Pattern string   `yaml:"pattern,omitempty" mapstructure:"pattern"`
	Tokens  []string `yaml:"tokens,omitempty" mapstructure:"tokens"`
}

// Definition is an ordered list of rules, typically loaded from YAML.
type Definition struct {
	Name  string `yaml:"name"`
	Rules []Rule `yaml:"rules"`
}

// ParseDefinition decodes a YAML syntax definition.
func ParseDefinition(data []byte) (Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Definition{}, fmt.Errorf("parsing syntax definition: %w", err)
	}
	for i, rule := range def.Rules {
		if err := rule.check(); err != nil {
			return Definition{}, fmt.Errorf("rule %d: %w", i, err)
		}
	}
	return def, nil
}

// LoadDefinitionFile reads and decodes a YAML syntax definition file.
func LoadDefinitionFile(filename string) (Definition, error) {
	data, err := os.ReadFile(filename) //nolint:gosec // G304: user-selected syntax file
	if err != nil {
		return Definition{}, fmt.Errorf("reading syntax definition: %w", err)
	}
	def, err := ParseDefinition(data)
	if err != nil {
		return Definition{}, fmt.Errorf("%s: %w", filename, err)
	}
	if def.Name == "" {
		def.Name = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}
	return def, nil
}

// Builtin returns the embedded definition with the given name.
func Builtin(name string) (Definition, error) {
	data, err := builtinFS.ReadFile("definitions/" + name + ".yaml")
	if err != nil {
		return Definition{}, fmt.Errorf("unknown builtin syntax %q (available: %s)", name, strings.Join(BuiltinNames(), ", "))
	}
	return ParseDefinition(data)
}

// BuiltinNames lists the embedded definitions.
func BuiltinNames() []string {
	entries, err := builtinFS.ReadDir("definitions")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// AddDefinition registers every rule of def in order. It stops at the first
// rejected rule; rules registered before it stay registered.
func (r *Registry) AddDefinition(def Definition) error {
	for i, rule := range def.Rules {
		if err := r.AddRule(rule); err != nil {
			return fmt.Errorf("syntax %q rule %d: %w", def.Name, i, err)
		}
	}
	log.Info(log.CatSyntax, "loaded syntax definition", "name", def.Name, "rules", len(def.Rules))
	return nil
}

// AddRule registers a single rule.
func (r *Registry) AddRule(rule Rule) error {
	if err := rule.check(); err != nil {
		return err
	}
	if len(rule.Tokens) > 0 {
		return r.AddTokens(rule.Label, rule.Tokens...)
	}
	return r.AddPattern(rule.Label, rule.Pattern)
}

func (rule Rule) check() error {
	switch {
	case rule.Label == "":
		return &PatternError{Pattern: rule.Pattern, Reason: "label is required"}
	case rule.Pattern != "" && len(rule.Tokens) > 0:
		return &PatternError{Label: rule.Label, Reason: "pattern and tokens are mutually exclusive"}
	case rule.Pattern == "" && len(rule.Tokens) == 0:
		return &PatternError{Label: rule.Label, Reason: "pattern or tokens is required"}
	}
	return nil
}
