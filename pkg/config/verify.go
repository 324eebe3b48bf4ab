package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"
)

//go:embed schema.json
var embeddedSchema string

// VerifyAgainstEmbeddedSchema validates the config against the embedded JSON schema:
// every config key must be declared by the schema, and required fields must be set
func VerifyAgainstEmbeddedSchema(cfg *Config) error {
	// parse schema
	var schema map[string]any
	if err := json.Unmarshal([]byte(embeddedSchema), &schema); err != nil {
		return fmt.Errorf("parse embedded schema: %w", err)
	}

	// convert config to JSON for validation
	configData, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	var configMap map[string]any
	if err := json.Unmarshal(configData, &configMap); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	defs, _ := schema["$defs"].(map[string]any)
	if err := checkProperties(configMap, resolve(schema, defs), defs, ""); err != nil {
		return fmt.Errorf("schema mismatch: %w", err)
	}

	// basic validation - check required fields match
	if err := validateRequiredFields(cfg); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// resolve follows a local $ref to its definition
func resolve(node, defs map[string]any) map[string]any {
	ref, ok := node["$ref"].(string)
	if !ok {
		return node
	}
	def, ok := defs[ref[strings.LastIndex(ref, "/")+1:]].(map[string]any)
	if !ok {
		return node
	}
	return def
}

// checkProperties reports config keys the schema doesn't declare, descending into objects
func checkProperties(values, node, defs map[string]any, path string) error {
	props, ok := node["properties"].(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		prop, ok := props[k].(map[string]any)
		if !ok {
			return fmt.Errorf("unknown field %s%s", path, k)
		}
		if sub, ok := values[k].(map[string]any); ok {
			if err := checkProperties(sub, resolve(prop, defs), defs, path+k+"."); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateRequiredFields performs basic validation of required fields
func validateRequiredFields(cfg *Config) error {
	// check server config
	if cfg.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	if cfg.Server.Timeout == 0 {
		return fmt.Errorf("server.timeout is required")
	}

	// check wikipedia config
	if cfg.Wikipedia.APIURL == "" {
		return fmt.Errorf("wikipedia.api_url is required")
	}
	if cfg.Wikipedia.RESTURL == "" {
		return fmt.Errorf("wikipedia.rest_url is required")
	}

	// check preload config if enabled
	if cfg.Preload.Enabled && cfg.Preload.Interval == 0 {
		return fmt.Errorf("preload.interval is required when preload is enabled")
	}

	return nil
}

// GenerateSchema generates a JSON schema for the Config struct
func GenerateSchema() (*jsonschema.Schema, error) {
	return jsonschema.Reflect(&Config{}), nil
}
