package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads, interpolates, integrity-checks and validates a config file.
// A directory argument is resolved to <dir>/config.yaml.
func Load(configPath string) (*Config, error) {
	absPath, err := resolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}

	if err := verifyConfigHashes(absPath); err != nil {
		return nil, err
	}

	cfg, err := loadConfigFile(absPath)
	if err != nil {
		return nil, err
	}
	cfg.SourcePath = absPath

	cfg = applyConfigDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DiscoverConfigPath finds the config file by checking standard locations.
// Priority order: $HUBGATE_CONFIG, ~/.config/hubgate/config.yaml,
// /etc/hubgate/config.yaml, ./config.yaml.
func DiscoverConfigPath() (string, error) {
	candidates := make([]string, 0, 4)
	if p := os.Getenv("HUBGATE_CONFIG"); p != "" {
		candidates = append(candidates, p)
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(homeDir, ".config", "hubgate", "config.yaml"))
	}
	candidates = append(candidates, "/etc/hubgate/config.yaml", "./config.yaml")

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("no config found (checked: $HUBGATE_CONFIG, ~/.config/hubgate, /etc/hubgate, ./config.yaml)")
}

// ScopeFiles lists the files covered by the integrity manifest for a config:
// the config file itself and a sibling .env when present.
func ScopeFiles(configPath string) ([]string, error) {
	absPath, err := resolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}
	files := []string{filepath.Base(absPath)}
	if _, err := os.Stat(filepath.Join(filepath.Dir(absPath), ".env")); err == nil {
		files = append(files, ".env")
	}
	return files, nil
}

func resolveConfigPath(configPath string) (string, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return "", fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}
	return absPath, nil
}

// loadConfigFile parses a single config file. Unknown keys are rejected.
func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	interpolated := interpolateEnv(string(data))

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader([]byte(interpolated)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &cfg, nil
}

func verifyConfigHashes(absPath string) error {
	dir := filepath.Dir(absPath)
	checksums, err := LoadChecksums(dir)
	if err != nil {
		if errors.Is(err, errNoChecksums) {
			return nil
		}
		return err
	}

	files, err := ScopeFiles(absPath)
	if err != nil {
		return err
	}
	for _, name := range files {
		expectedHash, ok := checksums.Hashes[name]
		if !ok {
			return fmt.Errorf("config file %s has no hash in checksums at %s\n"+
				"Run: hubgate config lock --config %s", name, dir, absPath)
		}
		if err := VerifyFileHash(filepath.Join(dir, name), expectedHash); err != nil {
			return fmt.Errorf("config verification failed: %w\n"+
				"If you edited this file intentionally, run: hubgate config lock --config %s", err, absPath)
		}
	}
	return nil
}

// applyConfigDefaults merges default values into config where not explicitly set.
func applyConfigDefaults(cfg *Config) *Config {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	cfg.Service.LogLevel = strings.ToLower(cfg.Service.LogLevel)
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = defaults.Service.LogFormat
	}
	if cfg.Service.DedupeTTL == 0 {
		cfg.Service.DedupeTTL = defaults.Service.DedupeTTL
	}
	if cfg.State.Path == "" {
		cfg.State.Path = defaults.State.Path
	}
	if cfg.Secrets == nil {
		cfg.Secrets = defaults.Secrets
	}
	return cfg
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// yamlTagName reports a struct field by its yaml key in validation errors.
func yamlTagName(fld reflect.StructField) string {
	tag := fld.Tag.Get("yaml")
	if tag == "-" || tag == "" {
		return fld.Name
	}
	if idx := strings.Index(tag, ","); idx >= 0 {
		tag = tag[:idx]
	}
	return tag
}
