// Package schemas embeds the JSON Schemas for cropwise's YAML files.
package schemas

import _ "embed"

// TargetsSchemaJSON describes a nutrient targets file (crop_targets.yaml).
//
//go:embed targets.schema.json
var TargetsSchemaJSON string
