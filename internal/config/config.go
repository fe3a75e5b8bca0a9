// Package config handles configuration loading from CLI flags, environment
// variables, and TOML files.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config holds all configuration settings for the engine.
type Config struct {
	Storage StorageConfig `toml:"storage"`
	Engine  EngineConfig  `toml:"engine"`
	Logging LoggingConfig `toml:"logging"`
	Scope   string        `toml:"-"` // Target scope (CLI only, not in config file)
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	Type string `toml:"type"` // "memory", "sqlite", "postgres", "bolt"
	Path string `toml:"path"` // SQLite/Bolt file path
	URL  string `toml:"url"`  // PostgreSQL connection URL
}

// EngineConfig holds interpreter settings.
type EngineConfig struct {
	ScriptID  string            `toml:"script_id"`  // default id for global-scope dynamic macros
	MaxPasses int               `toml:"max_passes"` // macro pass limit override (0 = engine default)
	Tags      map[string]string `toml:"tags"`       // directive tag remapping, e.g. setVar = "sv"
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Verbosity int `toml:"verbosity"` // 0=none, 1=scopes, 2=hydration, 3=directives, 4=payloads
}

// verbosityCounter implements flag.Value for counting -v flags.
type verbosityCounter int

func (v *verbosityCounter) String() string {
	return fmt.Sprintf("%d", *v)
}

func (v *verbosityCounter) Set(string) error {
	*v++
	return nil
}

func (v *verbosityCounter) IsBoolFlag() bool {
	return true
}

// expandVerbosityFlags preprocesses args to expand -vvv into -v -v -v.
// This allows both "-v -v -v" and "-vvv" styles to work.
func expandVerbosityFlags(args []string) []string {
	result := make([]string, 0, len(args))
	for _, arg := range args {
		if len(arg) > 2 && arg[0] == '-' && arg[1] != '-' && arg[1] == 'v' {
			allV := true
			for _, c := range arg[1:] {
				if c != 'v' {
					allV = false
					break
				}
			}
			if allV {
				for range arg[1:] {
					result = append(result, "-v")
				}
				continue
			}
		}
		result = append(result, arg)
	}
	return result
}

// DefaultConfig returns a Config with all default values.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Type: "memory",
			Path: "storyvars.db",
		},
		Engine: EngineConfig{
			Tags: map[string]string{},
		},
		Logging: LoggingConfig{
			Verbosity: 0,
		},
	}
}

// Load loads configuration from CLI flags, environment variables, and TOML file.
// Priority: CLI flags > env vars > TOML file > defaults
func Load(args []string) (*Config, *flag.FlagSet, error) {
	cfg := DefaultConfig()

	args = expandVerbosityFlags(args)

	fs := flag.NewFlagSet("storyvars", flag.ContinueOnError)
	configPath := fs.String("config", "", "TOML config file path")

	storage := fs.String("storage", "", "Storage type: memory, sqlite, postgres, bolt")
	storagePath := fs.String("storage-path", "", "SQLite/Bolt database path")
	storageURL := fs.String("storage-url", "", "PostgreSQL connection URL")

	scriptID := fs.String("script-id", "", "Script id for global-scope dynamic macros")
	scope := fs.String("scope", "global", "Target scope: \"global\" or a character id")

	var verbosity verbosityCounter
	fs.Var(&verbosity, "v", "Verbosity level (use -v, -vv, or -vvv)")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	if *configPath != "" {
		if err := cfg.loadTOML(*configPath); err != nil {
			return nil, nil, err
		}
	} else if err := cfg.loadTOML("storyvars.toml"); err != nil && !os.IsNotExist(err) {
		return nil, nil, err
	}

	cfg.applyEnv()

	// Apply CLI flags (highest priority)
	if *storage != "" {
		cfg.Storage.Type = *storage
	}
	if *storagePath != "" {
		cfg.Storage.Path = *storagePath
	}
	if *storageURL != "" {
		cfg.Storage.URL = *storageURL
	}
	if *scriptID != "" {
		cfg.Engine.ScriptID = *scriptID
	}
	if verbosity > 0 {
		cfg.Logging.Verbosity = int(verbosity)
	}

	// Store scope in config (not from TOML, only CLI)
	cfg.Scope = *scope

	return cfg, fs, nil
}

// loadTOML loads configuration from a TOML file.
func (c *Config) loadTOML(path string) error {
	_, err := toml.DecodeFile(path, c)
	return err
}

// applyEnv applies environment variable overrides.
func (c *Config) applyEnv() {
	if v := os.Getenv("STORYVARS_STORAGE"); v != "" {
		c.Storage.Type = v
	}
	if v := os.Getenv("STORYVARS_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("STORYVARS_STORAGE_URL"); v != "" {
		c.Storage.URL = v
	}
	if v := os.Getenv("STORYVARS_SCRIPT_ID"); v != "" {
		c.Engine.ScriptID = v
	}
	if v := os.Getenv("STORYVARS_VERBOSITY"); v != "" {
		if verbosity, err := strconv.Atoi(v); err == nil {
			c.Logging.Verbosity = verbosity
		}
	}
}

// Verbosity returns the configured verbosity level (0-4).
func (c *Config) Verbosity() int {
	return c.Logging.Verbosity
}
