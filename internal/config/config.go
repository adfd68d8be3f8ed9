// Package config loads YAML-driven configuration for a driver process:
// which adapter to launch, its environment overrides, working directory,
// and the session options enumerated for a tool session controller.
package config

import (
	"crypto/md5"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AdapterConfig selects and configures the child-process adapter.
type AdapterConfig struct {
	Kind string   `yaml:"kind"` // "tclsh", "vivado", "yosys", or "custom"
	Path string   `yaml:"path"`
	Argv []string `yaml:"argv"` // only used when Kind == "custom"
}

// SessionConfig mirrors the session options enumerated for a tool session
// controller: cwd, interact, logging flags, debug flags, error handling,
// and the called_object_pos policy.
type SessionConfig struct {
	Cwd             string            `yaml:"cwd"`
	Interact        bool              `yaml:"interact"`
	PTY             bool              `yaml:"pty"`
	LogCommands     bool              `yaml:"log_commands"`
	LogRetvals      bool              `yaml:"log_retvals"`
	LogFancy        bool              `yaml:"log_fancy"`
	DebugTcl        bool              `yaml:"debug_tcl"`
	DebugPy         bool              `yaml:"debug_py"`
	AbortOnError    bool              `yaml:"abort_on_error"`
	CalledObjectPos string            `yaml:"called_object_pos"`
	Env             map[string]string `yaml:"env"`
	AddPath         []string          `yaml:"add_path"`
	EvalHistorySize int               `yaml:"eval_history_size"`
}

// Config is the top-level driver configuration document.
type Config struct {
	Adapter AdapterConfig `yaml:"adapter"`
	Session SessionConfig `yaml:"session"`
}

// Load reads and parses a YAML config file at path, applying defaults to
// adapter.kind ("tclsh"), session.called_object_pos ("second") and
// session.eval_history_size (256) when the file leaves them zero-valued.
// Other fields keep whatever the file sets, or their zero value.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Adapter.Kind == "" {
		cfg.Adapter.Kind = "tclsh"
	}
	if cfg.Session.CalledObjectPos == "" {
		cfg.Session.CalledObjectPos = "second"
	}
	if cfg.Session.EvalHistorySize == 0 {
		cfg.Session.EvalHistorySize = 256
	}
}

// ToHash generates an MD5 hash of the configuration, useful for detecting
// whether a running session's configuration has drifted from disk.
func (cfg *Config) ToHash() (string, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("config: marshal: %w", err)
	}
	sum := md5.Sum(data)
	return fmt.Sprintf("%x", sum), nil
}
