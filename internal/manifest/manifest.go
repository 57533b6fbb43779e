// Package manifest derives NPM package candidates from detected technology
// names and emits the package descriptor consumed by the audit step.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"

	consts "github.com/khanhnv2901/vulnpack-cli/internal/shared/constants"
)

// Manifest is the output package descriptor. Dependencies map validated
// package names to resolved versions; every name must have passed registry
// validation before it is added here.
type Manifest struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Dependencies map[string]string `json:"dependencies"`
}

// New builds a Manifest from the validated package set. An empty set still
// produces a manifest with an empty dependencies mapping.
func New(validated []Validated) Manifest {
	deps := make(map[string]string, len(validated))
	for _, v := range validated {
		deps[v.Name] = v.ResolvedVersion
	}
	return Manifest{
		Name:         consts.ManifestPackageName,
		Version:      consts.ManifestPackageVersion,
		Dependencies: deps,
	}
}

// Encode renders the manifest as indented JSON. Map keys marshal in sorted
// order, so encoding the same manifest twice yields byte-identical output.
func (m Manifest) Encode() ([]byte, error) {
	return json.MarshalIndent(m, "", "    ")
}

// WriteFile writes the encoded manifest to path, overwriting any existing file.
func (m Manifest) WriteFile(path string) error {
	data, err := m.Encode()
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, consts.DefaultFilePerm); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadFile loads a previously emitted manifest, used by the report command.
func ReadFile(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("read manifest: %w", err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parse manifest: %w", err)
	}
	return m, nil
}
