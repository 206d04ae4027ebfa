package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/getmockd/intercept/pkg/stub"
	"gopkg.in/yaml.v3"
)

// Load reads rules from all given paths. Each path may be a literal file or
// a glob pattern; ** is supported for recursive directory matching. Matched
// files load in sorted order, and rules keep their file order.
func Load(paths ...string) ([]*stub.Rule, error) {
	var rules []*stub.Rule
	for _, path := range paths {
		files, err := expand(path)
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			loaded, err := LoadFile(file)
			if err != nil {
				return nil, err
			}
			rules = append(rules, loaded...)
		}
	}
	return rules, nil
}

// LoadFile reads one rule file. YAML and JSON both parse (JSON is a subset
// of YAML); the extension is not consulted.
func LoadFile(path string) ([]*stub.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes rule file content. The name is used in error messages only.
func Parse(data []byte, name string) ([]*stub.Rule, error) {
	var content FileContent
	if err := yaml.Unmarshal(data, &content); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	rules := make([]*stub.Rule, 0, len(content.Rules))
	for i, def := range content.Rules {
		rule, err := def.ToRule()
		if err != nil {
			return nil, fmt.Errorf("%s: rule %d: %w", name, i+1, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// expand resolves a path argument to concrete files. Non-glob paths pass
// through untouched so a missing file surfaces as a read error rather than
// silently matching nothing.
func expand(path string) ([]string, error) {
	if !strings.ContainsAny(path, "*?[{") {
		return []string{path}, nil
	}
	files, err := doublestar.FilepathGlob(path)
	if err != nil {
		return nil, fmt.Errorf("bad glob %q: %w", path, err)
	}
	sort.Strings(files)
	return files, nil
}
