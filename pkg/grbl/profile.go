// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 grblhost contributors

package grbl

import (
	"bytes"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// MachineProfile is a user-authored document describing one controller's
// connection parameters and streaming defaults, loaded from YAML and
// validated against profileSchema before use.
type MachineProfile struct {
	Name          string `yaml:"name"`
	Port          string `yaml:"port"`
	Baud          int    `yaml:"baud"`
	Capacity      int    `yaml:"capacity"`
	StreamingMode string `yaml:"streaming_mode"`
	PollInterval  string `yaml:"poll_interval"`
	AllowEEPROM   bool   `yaml:"allow_eeprom"`
}

// profileSchema is the JSON Schema a MachineProfile document must satisfy.
// It is expressed as JSON (not YAML) because jsonschema/v5 compiles JSON
// Schema documents; the profile document itself stays YAML for the
// embedder-facing file format.
const profileSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name", "port"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "port": {"type": "string", "minLength": 1},
    "baud": {"type": "integer", "minimum": 1200},
    "capacity": {"type": "integer", "minimum": 1},
    "streaming_mode": {"type": "string", "enum": ["incremental", "character_counting"]},
    "poll_interval": {"type": "string"},
    "allow_eeprom": {"type": "boolean"}
  },
  "additionalProperties": false
}`

// compiledProfileSchema lazily compiles profileSchema on first use.
var compiledProfileSchema *jsonschema.Schema

func loadProfileSchema() (*jsonschema.Schema, error) {
	if compiledProfileSchema != nil {
		return compiledProfileSchema, nil
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("profile.json", bytes.NewReader([]byte(profileSchema))); err != nil {
		return nil, fmt.Errorf("add profile schema resource: %w", err)
	}
	schema, err := compiler.Compile("profile.json")
	if err != nil {
		return nil, fmt.Errorf("compile profile schema: %w", err)
	}
	compiledProfileSchema = schema
	return schema, nil
}

// ParseMachineProfile unmarshals and validates a YAML MachineProfile
// document, applying grblhost's own defaults (capacity 128, streaming mode
// incremental) before schema validation so that a profile which omits
// those fields still validates.
func ParseMachineProfile(data []byte) (MachineProfile, error) {
	var profile MachineProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return MachineProfile{}, fmt.Errorf("parse machine profile: %w", err)
	}
	if profile.Capacity == 0 {
		profile.Capacity = DefaultCapacity
	}
	if profile.StreamingMode == "" {
		profile.StreamingMode = "incremental"
	}

	asMap := map[string]interface{}{
		"name":           profile.Name,
		"port":           profile.Port,
		"baud":           profile.Baud,
		"capacity":       profile.Capacity,
		"streaming_mode": profile.StreamingMode,
		"poll_interval":  profile.PollInterval,
		"allow_eeprom":   profile.AllowEEPROM,
	}
	if profile.PollInterval == "" {
		delete(asMap, "poll_interval")
	}
	if profile.Baud == 0 {
		delete(asMap, "baud")
	}

	schema, err := loadProfileSchema()
	if err != nil {
		return MachineProfile{}, err
	}
	if err := schema.Validate(asMap); err != nil {
		return MachineProfile{}, fmt.Errorf("validate machine profile: %w", err)
	}

	return profile, nil
}

// StreamingModeValue maps the profile's string field onto the StreamingMode
// enum, defaulting to incremental for an unrecognized value.
func (p MachineProfile) StreamingModeValue() StreamingMode {
	if p.StreamingMode == "character_counting" {
		return StreamingCharacterCounting
	}
	return StreamingIncremental
}
