// Package config loads the run configuration: embedded defaults, an optional
// TOML or YAML file, then JDESUGAR_ environment variables.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	gotoml "github.com/pelletier/go-toml/v2"

	"github.com/daimatz/jdesugar/pkg/corelib"
)

//go:embed embedded/defaults.toml
var defaultConfig []byte

// EnvPrefix marks environment variables read into the configuration. Nested
// keys are separated by a double underscore, e.g.
// JDESUGAR_CORE_LIBRARY__RENAMED_PREFIXES.
const EnvPrefix = "JDESUGAR_"

// ErrConfigValidation wraps every validation failure so callers can tell
// them apart from I/O and parse errors.
var ErrConfigValidation = errors.New("config validation failed")

// Config is the effective run configuration.
type Config struct {
	Classpath   []string    `koanf:"classpath" toml:"classpath"`
	Output      string      `koanf:"output" toml:"output"`
	Workers     int         `koanf:"workers" toml:"workers"`
	CoreLibrary CoreLibrary `koanf:"core_library" toml:"core_library"`
}

// CoreLibrary configures the desugaring decisions.
type CoreLibrary struct {
	Prefix               string   `koanf:"prefix" toml:"prefix"`
	RenamedPrefixes      []string `koanf:"renamed_prefixes" toml:"renamed_prefixes"`
	EmulatedInterfaces   []string `koanf:"emulated_interfaces" toml:"emulated_interfaces"`
	MemberMoves          []string `koanf:"member_moves" toml:"member_moves"`
	ExcludeFromEmulation []string `koanf:"exclude_from_emulation" toml:"exclude_from_emulation"`
}

// rawBytesProvider implements koanf provider for raw bytes
type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("not implemented")
}

// Load builds the configuration. path may be empty, in which case only the
// defaults and the environment apply. The result is validated.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// 1. Embedded defaults
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. User file
	if path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	// 3. Environment
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	cfg, err := unmarshal(k)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromMap builds a validated configuration from defaults overlaid with
// values, keyed by dotted paths such as "core_library.prefix".
func FromMap(values map[string]interface{}) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if err := k.Load(confmap.Provider(values, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load values: %w", err)
	}
	cfg, err := unmarshal(k)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Parser(), nil
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config format: %s", path)
	}
}

// envKey maps JDESUGAR_CORE_LIBRARY__PREFIX to core_library.prefix.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

func unmarshal(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToSliceHookFunc(","),
				trimSliceHookFunc(),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return &cfg, nil
}

// trimSliceHookFunc trims the elements of string lists, so comma-separated
// environment values may contain spaces.
func trimSliceHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if t != reflect.TypeOf([]string{}) {
			return data, nil
		}
		items, ok := data.([]string)
		if !ok {
			return data, nil
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		return out, nil
	}
}

// Validate checks the shape of every field. Semantic checks that need the
// target runtime happen when the core library support is built.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrConfigValidation, c.Workers)
	}
	if c.Output == "" {
		return fmt.Errorf("%w: output is required", ErrConfigValidation)
	}
	cl := c.CoreLibrary
	if cl.Prefix != "" && !strings.HasSuffix(cl.Prefix, "/") {
		return fmt.Errorf("%w: core_library.prefix %q must end with /", ErrConfigValidation, cl.Prefix)
	}
	for _, p := range cl.RenamedPrefixes {
		if !strings.HasPrefix(p, corelib.LibraryRoot) {
			return fmt.Errorf("%w: core_library.renamed_prefixes entry %q is not under %s", ErrConfigValidation, p, corelib.LibraryRoot)
		}
	}
	for _, itf := range cl.EmulatedInterfaces {
		if !strings.HasPrefix(itf, corelib.UtilityRoot) {
			return fmt.Errorf("%w: core_library.emulated_interfaces entry %q is not under %s", ErrConfigValidation, itf, corelib.UtilityRoot)
		}
	}
	for _, move := range cl.MemberMoves {
		if !strings.Contains(move, "->") || !strings.Contains(move, "#") {
			return fmt.Errorf("%w: core_library.member_moves entry %q must look like owner#name->target", ErrConfigValidation, move)
		}
	}
	for _, member := range cl.ExcludeFromEmulation {
		if strings.Count(member, "#") != 1 || strings.HasPrefix(member, "#") {
			return fmt.Errorf("%w: core_library.exclude_from_emulation entry %q must look like owner#name", ErrConfigValidation, member)
		}
	}
	return nil
}

// Options converts the core library section for corelib.New.
func (c *Config) Options() corelib.Options {
	return corelib.Options{
		RenamedPrefixes:      c.CoreLibrary.RenamedPrefixes,
		EmulatedInterfaces:   c.CoreLibrary.EmulatedInterfaces,
		MemberMoves:          c.CoreLibrary.MemberMoves,
		ExcludeFromEmulation: c.CoreLibrary.ExcludeFromEmulation,
	}
}

// Encode renders c as TOML.
func Encode(c *Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := gotoml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("failed to encode configuration: %w", err)
	}
	return buf.Bytes(), nil
}
