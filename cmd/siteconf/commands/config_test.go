package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/thoreinstein/siteconf/internal/config"
	"github.com/thoreinstein/siteconf/internal/errors"
)

func TestConfigShow_Formats(t *testing.T) {
	useTestConfig(t, withSecret)

	decoders := map[string]func([]byte, any) error{
		formatYAML: yaml.Unmarshal,
		formatTOML: toml.Unmarshal,
		formatJSON: json.Unmarshal,
	}

	for format, decode := range decoders {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, runConfigShowWithWriter(&buf, format, false))

			var got map[string]any
			require.NoError(t, decode(buf.Bytes(), &got))

			st, ok := got["store"].(map[string]any)
			require.True(t, ok, "store section missing in %s output", format)
			assert.Equal(t, "file", st["driver"])

			security, ok := got["security"].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, "****cdef", security["secret"])
			assert.NotContains(t, buf.String(), testSecret)
		})
	}
}

func TestConfigShow_ShowSecrets(t *testing.T) {
	useTestConfig(t, withSecret)

	var buf bytes.Buffer
	require.NoError(t, runConfigShowWithWriter(&buf, formatYAML, true))
	assert.Contains(t, buf.String(), testSecret)
}

func TestConfigShow_UnknownFormat(t *testing.T) {
	useTestConfig(t)

	err := runConfigShowWithWriter(&bytes.Buffer{}, "ini", false)
	requireExitCode(t, err, errors.ExitUser)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	var buf bytes.Buffer
	require.NoError(t, runConfigInitWithWriter(&buf, path, false))
	assert.Contains(t, buf.String(), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var written map[string]any
	require.NoError(t, yaml.Unmarshal(data, &written))

	security := written["security"].(map[string]any)
	secret, _ := security["secret"].(string)
	assert.Len(t, secret, 64)
	assert.Equal(t, config.DefaultTokenTTL.String(), security["token_ttl"])
	assert.Equal(t, config.DefaultDriver, written["store"].(map[string]any)["driver"])

	cfg := config.Default()
	cfg.Security.Secret = secret
	assert.Empty(t, config.Validate(cfg))
}

func TestConfigInit_ExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o600))

	err := runConfigInitWithWriter(&bytes.Buffer{}, path, false)
	requireExitCode(t, err, errors.ExitUser)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data))

	require.NoError(t, runConfigInitWithWriter(&bytes.Buffer{}, path, true))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "secret:"))
}
