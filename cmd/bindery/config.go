// Config and schema-file loading for the bindery CLI.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/bindery/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	// Config keys read from config.yaml.
	cfgKeyDataDir    = "data_dir"
	cfgKeySchemaFile = "schema_file"

	// File names inside the config directory.
	configYAMLName  = "config.yaml"
	schemaFileName  = "schema.json"
	databaseName    = "bindery.db"
)

// defaultConfigYAML is written to config.yaml on init.
const defaultConfigYAML = `# Bindery CLI configuration

# Data directory (optional; overridable by --data-dir flag)
# data_dir:

# Schema definition file (default: schema.json next to this file)
# schema_file:
`

// loadConfig reads config.yaml from the config directory using Viper.
// A missing config.yaml is not an error; defaults apply.
func loadConfig(configDir string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// schemaFile is the JSON shape of schema.json.
type schemaFile struct {
	Schemas []schemaDef `json:"schemas"`
}

type schemaDef struct {
	Name       string        `json:"name"`
	Properties []propertyDef `json:"properties"`
}

type propertyDef struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Optional   bool   `json:"optional,omitempty"`
	PrimaryKey bool   `json:"primaryKey,omitempty"`
	Target     string `json:"target,omitempty"`
	Origin     string `json:"origin,omitempty"`
}

// loadRegistry parses the schema file into a frozen registry.
func loadRegistry(path string) (*types.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}

	var file schemaFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(file.Schemas) == 0 {
		return nil, fmt.Errorf("%s defines no schemas", path)
	}

	reg := types.NewRegistry()
	for _, def := range file.Schemas {
		props := make([]types.Property, 0, len(def.Properties))
		for _, pd := range def.Properties {
			kind, ok := types.KindFromString(pd.Kind)
			if !ok {
				return nil, fmt.Errorf("schema %q: property %q: unknown kind %q", def.Name, pd.Name, pd.Kind)
			}
			props = append(props, types.Property{
				Name:           pd.Name,
				Kind:           kind,
				Optional:       pd.Optional,
				PrimaryKey:     pd.PrimaryKey,
				TargetSchema:   pd.Target,
				OriginProperty: pd.Origin,
			})
		}
		schema, err := types.NewSchema(def.Name, props...)
		if err != nil {
			return nil, fmt.Errorf("schema %q: %w", def.Name, err)
		}
		if err := reg.Add(schema); err != nil {
			return nil, err
		}
	}
	if err := reg.Freeze(); err != nil {
		return nil, err
	}
	return reg, nil
}

// resolveSchemaPath returns the schema file path: config.yaml value if
// set, otherwise schema.json in the config directory.
func resolveSchemaPath(configDir string, cfg *viper.Viper) string {
	if p := cfg.GetString(cfgKeySchemaFile); p != "" {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(configDir, p)
	}
	return filepath.Join(configDir, schemaFileName)
}
