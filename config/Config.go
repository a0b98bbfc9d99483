// Package config loads node configuration from a YAML file: a
// package-level struct with `yaml:"…"` tags, an embedded default
// document used when the configured file is missing or empty, and a
// matching writer.
package config

import (
	_ "embed" // required for embedding the default config document
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed "Default.yaml"
var defaultConfig []byte

// Config is the on-disk node configuration. The shared secret itself is
// never stored here directly — SecretFile points at a separate file so
// the secret does not end up in a committed YAML document.
type Config struct {
	Community  string `yaml:"Community"`
	SecretFile string `yaml:"SecretFile"`

	// NodeID is the canonical text form; empty leaves the identity
	// unset. This package does not generate an identity or write one
	// back.
	NodeID string `yaml:"NodeID"`

	ListenHost string `yaml:"ListenHost"`
	ListenPort uint16 `yaml:"ListenPort"`

	StaticPeers []string `yaml:"StaticPeers"`

	// DiscoveryEnabled is a *bool so that "unset" (discovery enabled
	// exactly when the static peer list is empty) survives a YAML round
	// trip: omitted or `null` decodes to a nil pointer, distinct from an
	// explicit `false`.
	DiscoveryEnabled *bool  `yaml:"DiscoveryEnabled"`
	DiscoveryPort    uint16 `yaml:"DiscoveryPort"`

	MaxInFlightSends int `yaml:"MaxInFlightSends"`
	ChunkSize        int `yaml:"ChunkSize"`
}

// Load reads filename as YAML. If the file does not exist or is empty,
// the embedded default document is parsed instead.
func Load(filename string) (*Config, error) {
	data, err := readOrDefault(filename)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readOrDefault(filename string) ([]byte, error) {
	stat, err := os.Stat(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig, nil
		}
		return nil, err
	}
	if stat.Size() == 0 {
		return defaultConfig, nil
	}
	return os.ReadFile(filename)
}

// Save writes cfg back to filename as YAML.
func Save(filename string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

// Secret reads the raw secret bytes from cfg.SecretFile.
func (c *Config) Secret() ([]byte, error) {
	return os.ReadFile(c.SecretFile)
}
