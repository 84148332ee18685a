package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
	FormatTOML  OutputFormat = "toml"
	FormatHuman OutputFormat = "human"
	FormatPlain OutputFormat = "plain"
)

// ParseFormat validates a --format value against the allowed set.
func ParseFormat(s string, allowed ...OutputFormat) (OutputFormat, error) {
	f := OutputFormat(strings.ToLower(strings.TrimSpace(s)))
	for _, a := range allowed {
		if f == a {
			return f, nil
		}
	}
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = string(a)
	}
	return "", fmt.Errorf("unsupported format %q (want one of %s)", s, strings.Join(names, ", "))
}

// encode renders v as JSON, YAML or TOML. YAML and TOML go through the JSON
// form so field names match the json tags.
func encode(v interface{}, format OutputFormat) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if format == FormatJSON {
		return string(data) + "\n", nil
	}

	var tree map[string]interface{}
	if err := json.Unmarshal(data, &tree); err != nil {
		return "", fmt.Errorf("%s output needs an object: %w", format, err)
	}

	var buf bytes.Buffer
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(tree); err != nil {
			return "", fmt.Errorf("failed to marshal YAML: %w", err)
		}
		_ = enc.Close()
	case FormatTOML:
		if err := toml.NewEncoder(&buf).Encode(tree); err != nil {
			return "", fmt.Errorf("failed to marshal TOML: %w", err)
		}
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
	return buf.String(), nil
}
