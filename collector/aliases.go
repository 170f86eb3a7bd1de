package collector

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// UnknownAlias is used for hosts absent from the alias mapping.
const UnknownAlias = "unknown"

// Aliases maps hostnames to human-readable names for the result tables.
type Aliases map[string]string

// LoadAliases reads the optional YAML hostname -> alias mapping. An empty
// path yields an empty mapping.
func LoadAliases(path string) (Aliases, error) {
	if path == "" {
		return Aliases{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read alias file %s: %w", path, err)
	}

	var aliases Aliases
	if err := yaml.Unmarshal(data, &aliases); err != nil {
		return nil, fmt.Errorf("invalid alias file %s: %w", path, err)
	}
	if aliases == nil {
		aliases = Aliases{}
	}
	return aliases, nil
}

// Lookup returns the alias for host, or UnknownAlias when unmapped.
func (a Aliases) Lookup(host string) string {
	if alias, ok := a[host]; ok && alias != "" {
		return alias
	}
	return UnknownAlias
}
