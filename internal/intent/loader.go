package intent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFromPath reads an intent file (YAML or JSON), parses it, and validates
// it. Format is detected by extension (.yaml/.yml/.json) or by content.
func LoadFromPath(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read intent: %w", err)
	}
	return Load(data, filepath.Ext(path))
}

// Load parses and validates an intent document from bytes. ext is the file
// extension for format hint; empty = detect from content.
func Load(data []byte, ext string) (*Spec, error) {
	spec, err := Parse(data, ext)
	if err != nil {
		return nil, err
	}
	if err := Validate(spec); err != nil {
		return nil, err
	}
	return spec, nil
}

// Parse decodes an intent document without validating it.
func Parse(data []byte, ext string) (*Spec, error) {
	ext = strings.ToLower(ext)
	if ext == ".yml" {
		ext = ".yaml"
	}
	switch ext {
	case ".yaml":
		return parseYAML(data)
	case ".json":
		return parseJSON(data)
	}
	// Detect: JSON documents start with '{', everything else is YAML.
	if strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		return parseJSON(data)
	}
	return parseYAML(data)
}

func parseYAML(data []byte) (*Spec, error) {
	var s Spec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse intent yaml: %w", err)
	}
	return &s, nil
}

func parseJSON(data []byte) (*Spec, error) {
	var s Spec
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse intent json: %w", err)
	}
	return &s, nil
}
