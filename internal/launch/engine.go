package launch

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// EngineConfig describes how to invoke the native engine.
//
//	command: ["m3bp-exec", "--threads", "8"]
//	env:
//	  M3BP_LOG: info
//	workdir: /var/lib/engine
//	mock: false
//
// With mock set, rounds report success without starting a process.
type EngineConfig struct {
	Command []string          `yaml:"command"`
	Env     map[string]string `yaml:"env"`
	WorkDir string            `yaml:"workdir"`
	Mock    bool              `yaml:"mock"`
}

// Validate checks that a non-mock config names a command.
func (c *EngineConfig) Validate() error {
	if !c.Mock && len(c.Command) == 0 {
		return errors.New("command is required unless mock is set")
	}
	for i, arg := range c.Command {
		if arg == "" {
			return fmt.Errorf("command[%d] is empty", i)
		}
	}
	return nil
}

// LoadEngineConfig reads and validates an engine configuration file.
func LoadEngineConfig(path string) (*EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading engine config: %w", err)
	}
	cfg, err := DecodeEngineConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// DecodeEngineConfig decodes YAML. Unknown fields are rejected.
func DecodeEngineConfig(r io.Reader) (*EngineConfig, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cfg EngineConfig
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("engine config is empty")
		}
		return nil, fmt.Errorf("parsing engine config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	return &cfg, nil
}
