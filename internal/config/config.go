// Package config resolves the workspace, platform and report settings used by
// the validator.
//
// Precedence, lowest first: built-in defaults, an optional config file (any
// format viper reads, e.g. TOML or YAML), environment variables, then command
// line flags that were explicitly set.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Keys understood in config files and bound to the environment.
const (
	KeyWorkspace       = "workspace"
	KeyPackagesPath    = "packages_path"
	KeyActivePlatform  = "active_platform"
	KeyFlashDefinition = "flash_definition"
	KeyBuildOutputBase = "build_output_base"
	KeyTarget          = "target"
	KeyProductName     = "product_name"
	KeyBuildID         = "build_id"
	KeyBuildSHA        = "build_sha"
	KeyDefines         = "defines"
)

var envBindings = map[string]string{
	KeyWorkspace:       "WORKSPACE",
	KeyPackagesPath:    "PACKAGES_PATH",
	KeyActivePlatform:  "ACTIVE_PLATFORM",
	KeyFlashDefinition: "FLASH_DEFINITION",
	KeyBuildOutputBase: "BUILD_OUTPUT_BASE",
	KeyTarget:          "TARGET",
	KeyProductName:     "PRODUCT_NAME",
	KeyBuildID:         "BLD_*_BUILDID_STRING",
	KeyBuildSHA:        "BLD_*_BUILDSHA",
}

// flagBindings maps keys to the command line flags that override them.
var flagBindings = map[string]string{
	KeyWorkspace:       "workspace",
	KeyPackagesPath:    "package-path",
	KeyActivePlatform:  "platform",
	KeyFlashDefinition: "fdf",
	KeyBuildOutputBase: "output",
	KeyTarget:          "build-target",
	KeyProductName:     "product-name",
}

// ErrInvalidDefine marks a -D argument that is not KEY=VALUE.
var ErrInvalidDefine = errors.New("invalid define")

// Config is the resolved configuration.
type Config struct {
	Workspace       string
	PackagesPath    []string
	ActivePlatform  string
	FlashDefinition string
	BuildOutputBase string
	Target          string
	ProductName     string
	BuildID         string
	BuildSHA        string
	// Defines are the input variables for descriptor parsing.
	Defines map[string]string
	// File is the config file that was read, if any.
	File string
}

// LoadOptions selects the sources merged by Load.
type LoadOptions struct {
	ConfigFile string
	Flags      *pflag.FlagSet
	Defines    []string // KEY=VALUE, applied over the file's defines
}

// Load merges every configuration source.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	v.SetDefault(KeyTarget, "DEBUG")

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}
	if opts.Flags != nil {
		for key, name := range flagBindings {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind --%s: %w", name, err)
				}
			}
		}
	}
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", opts.ConfigFile, err)
		}
	}

	cfg := &Config{
		Workspace:       v.GetString(KeyWorkspace),
		PackagesPath:    pathList(v.Get(KeyPackagesPath)),
		ActivePlatform:  v.GetString(KeyActivePlatform),
		FlashDefinition: v.GetString(KeyFlashDefinition),
		BuildOutputBase: v.GetString(KeyBuildOutputBase),
		Target:          v.GetString(KeyTarget),
		ProductName:     v.GetString(KeyProductName),
		BuildID:         v.GetString(KeyBuildID),
		BuildSHA:        v.GetString(KeyBuildSHA),
		Defines:         make(map[string]string),
		File:            v.ConfigFileUsed(),
	}
	// viper lower-cases map keys; descriptor variables are upper case by
	// convention.
	for k, val := range v.GetStringMapString(KeyDefines) {
		cfg.Defines[strings.ToUpper(k)] = val
	}
	for _, d := range opts.Defines {
		k, val, err := ParseDefine(d)
		if err != nil {
			return nil, err
		}
		cfg.Defines[k] = val
	}
	return cfg, nil
}

// InputVars returns the variables handed to the descriptor parser: the
// defines plus TARGET.
func (c *Config) InputVars() map[string]string {
	out := make(map[string]string, len(c.Defines)+1)
	for k, v := range c.Defines {
		out[k] = v
	}
	if c.Target != "" {
		out["TARGET"] = c.Target
	}
	return out
}

// ParseDefine splits a KEY=VALUE argument. The value may be empty; the key
// may not.
func ParseDefine(s string) (key, value string, err error) {
	key, value, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("%w %q: want KEY=VALUE", ErrInvalidDefine, s)
	}
	return key, strings.TrimSpace(value), nil
}

// pathList accepts a list from a config file or flag, or an
// os.PathListSeparator-separated string from the environment.
func pathList(v any) []string {
	var raw []string
	switch t := v.(type) {
	case string:
		raw = filepath.SplitList(t)
	case []string:
		for _, s := range t {
			raw = append(raw, filepath.SplitList(s)...)
		}
	case []any:
		for _, s := range t {
			raw = append(raw, fmt.Sprint(s))
		}
	}
	var out []string
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
