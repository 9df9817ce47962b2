package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/leapstack-labs/pbipgen/internal/dataset"
	"github.com/leapstack-labs/pbipgen/internal/project"
)

// EnvPrefix is the prefix of configuration environment variables.
// PBIPGEN_OUTPUT__DIRECTORY sets output.directory.
const EnvPrefix = "PBIPGEN_"

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

var configFileNames = []string{"pbipgen.yaml", "pbipgen.yml"}

// flagKeys maps command-line flags to config keys. Flags not listed here
// are command options and never reach the config.
var flagKeys = map[string]string{
	"template":   "template",
	"data":       "data",
	"output-dir": "output.directory",
	"overwrite":  "output.overwrite",
	"workers":    "workers",
	"state":      "state_path",
	"no-history": "history",
	"format":     "format",
	"verbose":    "verbose",
	"log-level":  "logging.level",
	"log-format": "logging.format",
	"log-file":   "logging.file",
}

// pathFlags are flags whose values are paths relative to the working directory.
var pathFlags = map[string]bool{
	"template":   true,
	"data":       true,
	"output-dir": true,
	"state":      true,
	"log-file":   true,
}

var configFileUsed string

// configExistsIn returns the config file in dir, if any.
func configExistsIn(dir string) string {
	for _, name := range configFileNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findConfigUpward searches upward from startDir for a config file.
func findConfigUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if found := configExistsIn(dir); found != "" {
			return found
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// Defaults returns the built-in configuration values.
func Defaults() map[string]any {
	return map[string]any{
		"output.directory":       DefaultOutputDir,
		"output.overwrite":       false,
		"naming.column":          dataset.DefaultNameColumn,
		"naming.expression":      dataset.DefaultNameExpression,
		"rename.text_extensions": project.DefaultTextExtensions,
		"cache.patterns":         project.DefaultCachePatterns,
		"workers":                0,
		"state_path":             DefaultStateFile,
		"history":                true,
		"format":                 DefaultFormat,
		"verbose":                false,
		"logging.level":          DefaultLogLevel,
		"logging.format":         DefaultLogFormat,
	}
}

// Load loads configuration from defaults, the config file, environment
// variables, and flags. Precedence (highest to lowest): flags > env vars >
// config file > defaults.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	configFileUsed = ""

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	// 1. Defaults
	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file: explicit path, else searched upward from CWD
	projectRoot := cwd
	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			return nil, fmt.Errorf("config file %s not found\nHint: Run 'pbipgen init' to create one", cfgFile)
		}
		configFileUsed = cfgFile
	} else {
		configFileUsed = findConfigUpward(cwd)
	}
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
		if abs, err := filepath.Abs(configFileUsed); err == nil {
			projectRoot = filepath.Dir(abs)
		}
	}

	// 3. Environment (PBIPGEN_ prefix, __ for nesting)
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (only those explicitly set)
	flagPaths := make(map[string]string)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			val := posflag.FlagVal(flags, f)
			if f.Name == "no-history" {
				if b, ok := val.(bool); ok {
					val = !b
				}
			}
			if pathFlags[f.Name] {
				if s, ok := val.(string); ok && s != "" {
					abs, err := filepath.Abs(s)
					if err == nil {
						flagPaths[key] = abs
					}
				}
			}
			return key, val
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Decode
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.TextUnmarshallerHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			Result:           &cfg,
			TagName:          "koanf",
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// 6. Resolve paths: flags against CWD, everything else against the project root
	cfg.ProjectRoot = projectRoot
	resolve := func(key string, field *string) {
		if abs, ok := flagPaths[key]; ok {
			*field = abs
			return
		}
		*field = resolvePathRelativeTo(*field, projectRoot)
	}
	resolve("template", &cfg.Template)
	resolve("data", &cfg.Data)
	resolve("output.directory", &cfg.Output.Directory)
	resolve("state_path", &cfg.StatePath)
	resolve("logging.file", &cfg.Logging.File)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey turns PBIPGEN_OUTPUT__DIRECTORY into output.directory.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}
