// Package manifest loads chain declarations from YAML and turns them into
// chains over a small set of built-in units.
package manifest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/risetechapps/jobchain/cron"
)

//go:embed schema.json
var schemaSource string

var schema = jsonschema.MustCompileString("jobchain-manifest.schema.json", schemaSource)

// Manifest is a set of chain declarations.
type Manifest struct {
	Chains []ChainDef `yaml:"chains"`
}

// ChainDef declares one chain and the event that triggers it.
type ChainDef struct {
	Name     string   `yaml:"name"`
	On       string   `yaml:"on"`
	Queue    string   `yaml:"queue"`
	Enqueue  *bool    `yaml:"enqueue"`
	Timeout  string   `yaml:"timeout"`
	Retries  int      `yaml:"retries"`
	// Schedule optionally publishes On on a cron schedule.
	Schedule string   `yaml:"schedule"`
	Jobs     []JobDef `yaml:"jobs"`
}

// JobDef is one step of a chain.
type JobDef struct {
	Unit string         `yaml:"unit"`
	With map[string]any `yaml:"with"`
}

// TimeoutDuration parses Timeout. An empty timeout is zero.
func (c ChainDef) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Timeout)
}

// LoadFile reads and validates the manifest at path.
func LoadFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads a manifest, validates it against the schema and checks that
// chain names are unique.
func Load(r io.Reader) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("manifest: read: %w", err)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("manifest: parse: %w", err)
	}
	if err := validate(doc); err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: decode: %w", err)
	}

	seen := make(map[string]bool, len(m.Chains))
	for _, c := range m.Chains {
		if seen[c.Name] {
			return nil, fmt.Errorf("manifest: duplicate chain %q", c.Name)
		}
		seen[c.Name] = true
		if _, err := c.TimeoutDuration(); err != nil {
			return nil, fmt.Errorf("manifest: chain %q: timeout: %w", c.Name, err)
		}
		if c.Schedule != "" {
			if _, err := cron.ParseSchedule(c.Schedule); err != nil {
				return nil, fmt.Errorf("manifest: chain %q: schedule: %w", c.Name, err)
			}
		}
	}
	return &m, nil
}

// validate round-trips doc through JSON so the validator sees JSON types.
func validate(doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("manifest: invalid: %w", err)
	}
	return nil
}
