package chartbind

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ProfileFile is the top-level YAML document of extra profiles.
type ProfileFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// LoadProfiles reads a YAML profile file and merges it over the presets.
// A file profile with a preset's name replaces that preset.
func LoadProfiles(path string) (map[string]Profile, error) {
	out := Presets()
	if path == "" {
		return out, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("profile file: %w", err)
	}
	extra, err := ParseProfiles(data)
	if err != nil {
		return nil, fmt.Errorf("profile file %s: %w", path, err)
	}
	for _, p := range extra {
		out[p.Name] = p
	}
	return out, nil
}

// ParseProfiles decodes and validates a YAML profile document.
func ParseProfiles(data []byte) ([]Profile, error) {
	var doc ProfileFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, newError(CodeValidation, "invalid profile yaml", err)
	}
	seen := map[string]bool{}
	out := make([]Profile, 0, len(doc.Profiles))
	for i, p := range doc.Profiles {
		p = p.withDefaults()
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("profiles[%d]: %w", i, err)
		}
		if seen[p.Name] {
			return nil, newError(CodeValidation, fmt.Sprintf("profiles[%d]: duplicate name %q", i, p.Name), nil)
		}
		seen[p.Name] = true
		out = append(out, p)
	}
	return out, nil
}
