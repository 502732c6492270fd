package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	gotoml "github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "dispatch.jar", cfg.Output)
	assert.Empty(t, cfg.Classpath)
	assert.Empty(t, cfg.CoreLibrary.Prefix)
	assert.Empty(t, cfg.CoreLibrary.EmulatedInterfaces)
}

func TestLoadTOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jdesugar.toml")
	content := `
classpath = ["/opt/jdk/jmods/java.base.jmod"]
workers = 2

[core_library]
prefix = "__desugar__/"
renamed_prefixes = ["java/time/", "java/util/stream/"]
emulated_interfaces = ["java/util/Collection", "java/util/Map"]
member_moves = ["java/util/Objects#requireNonNullElse -> java/util/DesugarObjects"]
exclude_from_emulation = ["java/util/Collection#removeIf"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"/opt/jdk/jmods/java.base.jmod"}, cfg.Classpath)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, "dispatch.jar", cfg.Output, "default kept")
	assert.Equal(t, "__desugar__/", cfg.CoreLibrary.Prefix)

	opts := cfg.Options()
	assert.Equal(t, []string{"java/time/", "java/util/stream/"}, opts.RenamedPrefixes)
	assert.Equal(t, []string{"java/util/Collection", "java/util/Map"}, opts.EmulatedInterfaces)
	assert.Equal(t, []string{"java/util/Objects#requireNonNullElse -> java/util/DesugarObjects"}, opts.MemberMoves)
	assert.Equal(t, []string{"java/util/Collection#removeIf"}, opts.ExcludeFromEmulation)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jdesugar.yaml")
	content := `
output: out/
core_library:
  emulated_interfaces:
    - java/util/Collection
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "out/", cfg.Output)
	assert.Equal(t, []string{"java/util/Collection"}, cfg.CoreLibrary.EmulatedInterfaces)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("JDESUGAR_WORKERS", "9")
	t.Setenv("JDESUGAR_CORE_LIBRARY__RENAMED_PREFIXES", "java/time/, java/util/function/")
	t.Setenv("JDESUGAR_CLASSPATH", "a.jar,b.jar")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Workers)
	assert.Equal(t, []string{"java/time/", "java/util/function/"}, cfg.CoreLibrary.RenamedPrefixes)
	assert.Equal(t, []string{"a.jar", "b.jar"}, cfg.Classpath)
}

func TestLoadUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jdesugar.ini")
	require.NoError(t, os.WriteFile(path, []byte("x=1"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrConfigValidation))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]interface{}
	}{
		{"zero workers", map[string]interface{}{"workers": 0}},
		{"no output", map[string]interface{}{"output": ""}},
		{"prefix without slash", map[string]interface{}{"core_library.prefix": "__desugar__"}},
		{"renamed outside java", map[string]interface{}{"core_library.renamed_prefixes": []string{"javax/"}}},
		{"emulated outside util", map[string]interface{}{"core_library.emulated_interfaces": []string{"java/lang/Iterable"}}},
		{"move without arrow", map[string]interface{}{"core_library.member_moves": []string{"java/util/Objects#a"}}},
		{"exclusion without member", map[string]interface{}{"core_library.exclude_from_emulation": []string{"java/util/Map"}}},
		{"exclusion with two members", map[string]interface{}{"core_library.exclude_from_emulation": []string{"java/util/Map#a#b"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromMap(tt.values)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfigValidation), err.Error())
		})
	}

	cfg, err := FromMap(map[string]interface{}{"workers": 1, "output": "out"})
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Workers)
}

func TestEncode(t *testing.T) {
	cfg, err := FromMap(map[string]interface{}{
		"core_library.prefix":              "__desugar__/",
		"core_library.emulated_interfaces": []string{"java/util/Map"},
	})
	require.NoError(t, err)

	data, err := Encode(cfg)
	require.NoError(t, err)

	var decoded Config
	require.NoError(t, gotoml.Unmarshal(data, &decoded))
	assert.Equal(t, "__desugar__/", decoded.CoreLibrary.Prefix)
	assert.Equal(t, []string{"java/util/Map"}, decoded.CoreLibrary.EmulatedInterfaces)
	assert.Equal(t, 4, decoded.Workers)
	assert.Contains(t, string(data), "[core_library]")
}
