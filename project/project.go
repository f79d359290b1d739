package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the optional per-project configuration file.
	ConfigFileName = "envmap.yaml"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "BLENDER_ENVMAP"
)

// Config represents the settings read from envmap.yaml, the environment
// and command line flags.
type Config struct {
	BlendFile        string  `yaml:"blend_file" mapstructure:"blend_file"`
	Script           string  `yaml:"script" mapstructure:"script"`
	Output           string  `yaml:"output" mapstructure:"output"`
	Name             string  `yaml:"name" mapstructure:"name"`
	Clamp            float64 `yaml:"clamp" mapstructure:"clamp"`
	KeepIntermediate bool    `yaml:"keep_intermediate" mapstructure:"keep_intermediate"`
	Tools            Tools   `yaml:"tools" mapstructure:"tools"`
}

// Tools overrides the executables used for each pipeline step. A bare name
// is searched on PATH.
type Tools struct {
	Blender  string `yaml:"blender" mapstructure:"blender"`
	OIIOTool string `yaml:"oiiotool" mapstructure:"oiiotool"`
	KTX      string `yaml:"ktx" mapstructure:"ktx"`
}

// DefaultConfig returns the settings used when nothing else is configured.
func DefaultConfig() *Config {
	return &Config{
		Output: "assets",
		Name:   "cubemap",
		Clamp:  1.0,
		Tools: Tools{
			Blender:  "blender",
			OIIOTool: "oiiotool",
			KTX:      "ktx",
		},
	}
}

// flagKeys maps command line flags to config keys.
var flagKeys = map[string]string{
	"blend-file":        "blend_file",
	"script":            "script",
	"output":            "output",
	"name":              "name",
	"clamp":             "clamp",
	"keep-intermediate": "keep_intermediate",
}

// pathKeys hold paths that are resolved against the directory of the config
// file they were read from.
var pathKeys = []string{"blend_file", "script", "output"}

// FindConfig walks up from dir looking for envmap.yaml. It returns an empty
// string when no config file exists.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", dir, err)
	}

	for {
		configPath := filepath.Join(dir, ConfigFileName)
		if info, err := os.Stat(configPath); err == nil && !info.IsDir() {
			return configPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// Loader layers defaults, envmap.yaml, the environment and flags.
type Loader struct {
	viper      *viper.Viper
	configPath string
	flags      *pflag.FlagSet
}

// NewLoader searches for envmap.yaml starting at workDir.
func NewLoader(workDir string) (*Loader, error) {
	configPath, err := FindConfig(workDir)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultConfig()
	v.SetDefault("blend_file", defaults.BlendFile)
	v.SetDefault("script", defaults.Script)
	v.SetDefault("output", defaults.Output)
	v.SetDefault("name", defaults.Name)
	v.SetDefault("clamp", defaults.Clamp)
	v.SetDefault("keep_intermediate", defaults.KeepIntermediate)
	v.SetDefault("tools.blender", defaults.Tools.Blender)
	v.SetDefault("tools.oiiotool", defaults.Tools.OIIOTool)
	v.SetDefault("tools.ktx", defaults.Tools.KTX)

	return &Loader{viper: v, configPath: configPath}, nil
}

// ConfigPath returns the config file in use, or an empty string.
func (l *Loader) ConfigPath() string {
	return l.configPath
}

// BindFlags lets explicitly set flags take precedence over every other
// source.
func (l *Loader) BindFlags(fs *pflag.FlagSet) error {
	for flag, key := range flagKeys {
		f := fs.Lookup(flag)
		if f == nil {
			continue
		}
		if err := l.viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag --%s: %w", flag, err)
		}
	}
	l.flags = fs
	return nil
}

// Load reads envmap.yaml (when present) and returns the merged settings.
func (l *Loader) Load() (*Config, error) {
	if l.configPath != "" {
		l.viper.SetConfigFile(l.configPath)
		if err := l.viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", l.configPath, err)
		}
	}

	var cfg Config
	if err := l.viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ConfigFileName, err)
	}

	l.resolvePaths(&cfg)
	return &cfg, nil
}

// resolvePaths makes relative paths taken from the config file relative to
// the directory containing it.
func (l *Loader) resolvePaths(cfg *Config) {
	if l.configPath == "" {
		return
	}
	base := filepath.Dir(l.configPath)

	fields := map[string]*string{
		"blend_file": &cfg.BlendFile,
		"script":     &cfg.Script,
		"output":     &cfg.Output,
	}
	for _, key := range pathKeys {
		p := fields[key]
		if *p == "" || filepath.IsAbs(*p) || !l.fromFile(key) {
			continue
		}
		*p = filepath.Join(base, *p)
	}
}

// fromFile reports whether the value of key came from the config file.
func (l *Loader) fromFile(key string) bool {
	if !l.viper.InConfig(key) {
		return false
	}
	if _, ok := os.LookupEnv(envName(key)); ok {
		return false
	}
	if l.flags != nil {
		for flag, k := range flagKeys {
			if k == key && l.flags.Changed(flag) {
				return false
			}
		}
	}
	return true
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// ErrConfigExists is returned by WriteDefault when envmap.yaml exists.
var ErrConfigExists = errors.New(ConfigFileName + " already exists")

// WriteDefault writes a default envmap.yaml into dir.
func WriteDefault(dir string, force bool) (string, error) {
	configPath := filepath.Join(dir, ConfigFileName)

	if !force {
		if _, err := os.Stat(configPath); err == nil {
			return "", fmt.Errorf("%w: %s (use --force to overwrite)", ErrConfigExists, configPath)
		}
	}

	cfg := DefaultConfig()
	cfg.BlendFile = "eq2cube.blend"

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshaling %s: %w", ConfigFileName, err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", configPath, err)
	}
	return configPath, nil
}
