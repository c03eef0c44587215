package predictcli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Config represents the CLI configuration file.
type Config struct {
	CurrentContext string             `yaml:"currentContext" json:"currentContext"`
	Contexts       map[string]Context `yaml:"contexts" json:"contexts"`
}

// Context holds connection settings for one deployment of the service.
type Context struct {
	Name   string `yaml:"name" json:"name"`
	Server string `yaml:"server" json:"server"`
}

// LoadConfig reads path. A missing file yields an empty configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Contexts: map[string]Context{},
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = map[string]Context{}
	}
	return cfg, nil
}

// SaveConfig writes cfg to path, creating parent directories.
func SaveConfig(cfg *Config, path string) error {
	if cfg.Contexts == nil {
		cfg.Contexts = map[string]Context{}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "./predictctl.yaml"
	}
	return filepath.Join(dir, "predictctl", "config.yaml")
}

func (c *Config) setContext(ctx Context, makeCurrent bool) {
	if c.Contexts == nil {
		c.Contexts = map[string]Context{}
	}
	c.Contexts[ctx.Name] = ctx
	if c.CurrentContext == "" || makeCurrent {
		c.CurrentContext = ctx.Name
	}
}

func (c *Config) contextNames() []string {
	names := make([]string, 0, len(c.Contexts))
	for name := range c.Contexts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
