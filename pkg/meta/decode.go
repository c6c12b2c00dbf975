package meta

import (
	"gopkg.in/yaml.v3"

	"github.com/loomworks/loom/pkg/fault"
)

// FromMap decodes a loosely-typed metadata mapping (as loaded from a
// pipeline YAML file) into a Meta, rejecting unknown keys with a
// fuzzy-matched suggestion and validating policy values.
func FromMap(raw map[string]any) (Meta, error) {
	known := append(CapabilityKeys(), PolicyKeys()...)
	knownSet := make(map[string]bool, len(known))
	for _, k := range known {
		knownSet[k] = true
	}
	for k := range raw {
		if !knownSet[k] {
			msg := "unknown metadata key " + quoted(k)
			if s := Suggest(k, known); s != "" {
				msg += " (did you mean " + quoted(s) + "?)"
			}
			return Meta{}, fault.Structural(msg, nil).WithCode(fault.CodeUnknownCap)
		}
	}

	// Round-trip through YAML so nested need/spec structs decode with
	// their canonical field names.
	buf, err := yaml.Marshal(raw)
	if err != nil {
		return Meta{}, fault.Structural("metadata is not encodable", err).WithCode(fault.CodeValidation)
	}
	var m Meta
	if err := yaml.Unmarshal(buf, &m); err != nil {
		return Meta{}, fault.Structural("metadata does not match any known shape", err).WithCode(fault.CodeValidation)
	}
	if err := Validate(m); err != nil {
		return Meta{}, err
	}
	return m, nil
}

func quoted(s string) string {
	return "\"" + s + "\""
}
