package story

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// SchemaVersion is the bundle schema version this runtime accepts.
// Older bundles must be migrated externally before loading.
const SchemaVersion = "fable/v1"

// Bundle is the versioned, schema-tagged document containing all
// structural collections of one story, keyed by id. It is the boundary
// artifact produced by authoring tools; the runtime loads it once per
// session and treats it as immutable.
type Bundle struct {
	APIVersion string      `json:"apiVersion" jsonschema:"required,enum=fable/v1"`
	Story      Metadata    `json:"story"      jsonschema:"required"`
	Scenes     []Scene     `json:"scenes,omitempty"`
	Passages   []Passage   `json:"passages,omitempty"`
	Choices    []Choice    `json:"choices,omitempty"`
	Inputs     []Input     `json:"inputs,omitempty"`
	Routes     []Route     `json:"routes,omitempty"`
	Conditions []Condition `json:"conditions,omitempty"`
	Effects    []Effect    `json:"effects,omitempty"`
	Variables  []Variable  `json:"variables,omitempty"`
	Jumps      []Jump      `json:"jumps,omitempty"`
}

// LoadFile reads and parses a story bundle JSON file with strict
// unknown-field rejection. Returns the parsed Bundle or an error.
func LoadFile(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a story bundle from an io.Reader with strict unknown-field
// rejection.
func Load(r io.Reader) (*Bundle, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var b Bundle
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	if b.APIVersion != SchemaVersion {
		return nil, fmt.Errorf("unsupported bundle version %q (want %q)", b.APIVersion, SchemaVersion)
	}
	return &b, nil
}
