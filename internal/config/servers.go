package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// ServerManifest is the YAML document listing servers started at boot.
type ServerManifest struct {
	Servers []ServerEntry `yaml:"servers"`
}

// ServerEntry declares one preconfigured MCP server.
type ServerEntry struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
}

// LoadServerManifest reads and parses the server manifest file.
func LoadServerManifest(path string) (*ServerManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read server manifest: %w", err)
	}

	var manifest ServerManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse server manifest: %w", err)
	}

	for i, entry := range manifest.Servers {
		if entry.Name == "" || entry.Command == "" {
			return nil, fmt.Errorf("server manifest entry %d: name and command are required", i)
		}
	}

	return &manifest, nil
}
