package codegen

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/dagbridge/internal/ir"
)

// DataModelLoader resolves a data model descriptor by name.
type DataModelLoader interface {
	Load(name string) (ir.DataModel, error)
}

// ModelIndex is a DataModelLoader over a fixed set of models.
type ModelIndex map[string]ir.DataModel

// NewModelIndex indexes models by name. Later duplicates win.
func NewModelIndex(models []ir.DataModel) ModelIndex {
	idx := make(ModelIndex, len(models))
	for _, m := range models {
		idx[m.Name] = m
	}
	return idx
}

// Load implements DataModelLoader.
func (idx ModelIndex) Load(name string) (ir.DataModel, error) {
	m, ok := idx[name]
	if !ok {
		return ir.DataModel{}, fmt.Errorf("unknown data model %q", name)
	}
	return m, nil
}

// Artifact is one finished generated unit.
type Artifact struct {
	Name        UnitName       `json:"name"`
	Category    string         `json:"category"`
	Fingerprint ir.Fingerprint `json:"fingerprint"`
	Body        []byte         `json:"-"`
}

// Session is the enclosing compilation session: it supplies shared read-only
// inputs and collects generated artifacts for packaging.
type Session interface {
	DataModels() DataModelLoader
	AddArtifact(a Artifact) (UnitRef, error)
}

// MemorySession keeps artifacts in registration order.
type MemorySession struct {
	models    DataModelLoader
	artifacts []Artifact
	names     map[UnitName]struct{}
}

// NewMemorySession creates a session backed by the given model loader.
func NewMemorySession(models DataModelLoader) *MemorySession {
	return &MemorySession{
		models: models,
		names:  make(map[UnitName]struct{}),
	}
}

// DataModels implements Session.
func (s *MemorySession) DataModels() DataModelLoader {
	return s.models
}

// AddArtifact implements Session. Two artifacts may not share a name.
func (s *MemorySession) AddArtifact(a Artifact) (UnitRef, error) {
	if a.Name == "" {
		return UnitRef{}, fmt.Errorf("%w: artifact has no name", ErrInvalidArgument)
	}
	if _, dup := s.names[a.Name]; dup {
		return UnitRef{}, fmt.Errorf("artifact %s already registered", a.Name)
	}
	s.names[a.Name] = struct{}{}
	s.artifacts = append(s.artifacts, a)
	return UnitRef{Name: a.Name, Category: a.Category}, nil
}

// Artifacts returns the registered artifacts in registration order.
func (s *MemorySession) Artifacts() []Artifact {
	out := make([]Artifact, len(s.artifacts))
	copy(out, s.artifacts)
	return out
}

// manifestEntry is one line of manifest.json.
type manifestEntry struct {
	Artifact
	File string `json:"file"`
}

// Export writes each artifact body to <dir>/<name>.json and an index of all
// artifacts to <dir>/manifest.json.
func (s *MemorySession) Export(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating unit directory: %w", err)
	}

	manifest := make([]manifestEntry, 0, len(s.artifacts))
	for _, a := range s.artifacts {
		file := string(a.Name) + ".json"
		if err := os.WriteFile(filepath.Join(dir, file), a.Body, 0o644); err != nil {
			return fmt.Errorf("writing unit %s: %w", a.Name, err)
		}
		manifest = append(manifest, manifestEntry{Artifact: a, File: file})
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}
