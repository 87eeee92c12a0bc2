package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the config file expected at the root of the backup repo.
const FileName = "backup-config.yaml"

// matches $(VAR_NAME)
var envPattern = regexp.MustCompile(`\$\(([A-Za-z0-9_]+)\)`)

// replaces $(VAR) with os.Getenv(VAR)
func expandEnvVars(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(m string) string {
		key := mapEnvKey(envPattern.FindStringSubmatch(m)[1])
		return os.Getenv(key)
	})
}

// ExpandUser replaces a leading ~ or ~/ with the current user's home
// directory. Paths without a tilde pass through unchanged.
func ExpandUser(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}
	return path
}

// Load reads and validates the config file from the backup repo root.
// Entries without a path are dropped with a warning collected in the
// returned slice; the caller decides how to report them.
func Load(repoRoot string) (*Config, []string, error) {
	path := filepath.Join(repoRoot, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading config file: %w", err)
	}

	// expand $(ENV_VAR) placeholders before parsing
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, nil, fmt.Errorf("unmarshalling yaml: %w", err)
	}

	var warnings []string
	valid := cfg.Entries[:0]
	for i, entry := range cfg.Entries {
		if entry.Path == "" {
			warnings = append(warnings, fmt.Sprintf("entry %d missing 'path', skipping", i))
			continue
		}
		entry.Path = ExpandUser(entry.Path)
		valid = append(valid, entry)
	}
	cfg.Entries = valid

	if cfg.BundleDir != "" {
		abs, err := filepath.Abs(ExpandUser(cfg.BundleDir))
		if err != nil {
			return nil, nil, fmt.Errorf("resolving bundle dir: %w", err)
		}
		cfg.BundleDir = abs
	}

	return &cfg, warnings, nil
}
