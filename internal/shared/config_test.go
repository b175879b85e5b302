package shared

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	c, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), c)
}

func TestLoadConfig_ExplicitMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile(DefaultConfigFile, []byte(`
rules:
  packs: [team.yaml]
  severity_threshold: warning
  disabled: [no-var]
check:
  workers: 3
  file_timeout: 2s
  exclude: ["vendor/**"]
reporting:
  format: json
`), 0o644))

	c, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, []string{"team.yaml"}, c.Rules.Packs)
	assert.Equal(t, "warning", c.Rules.SeverityThreshold)
	assert.Equal(t, 3, c.Check.Workers)
	assert.Equal(t, 2*time.Second, c.Check.FileTimeout)
	assert.Equal(t, "json", c.Reporting.Format)
	assert.Equal(t, int64(4<<20), c.Check.MaxFileBytes, "unset keys keep defaults")

	t.Setenv("CONFCHECK_SEVERITY_THRESHOLD", "error")
	t.Setenv("CONFCHECK_DISABLED_RULES", "a, b,,c")
	t.Setenv("CONFCHECK_WORKERS", "not-a-number")
	t.Setenv("CONFCHECK_FILE_TIMEOUT", "150ms")
	t.Setenv("CONFCHECK_DB_DSN", "runs.db")
	c, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "error", c.Rules.SeverityThreshold)
	assert.Equal(t, []string{"a", "b", "c"}, c.Rules.Disabled)
	assert.Equal(t, 3, c.Check.Workers)
	assert.Equal(t, 150*time.Millisecond, c.Check.FileTimeout)
	assert.Equal(t, "runs.db", c.Database.DSN)
}

func TestLoadConfig_Server(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile(DefaultConfigFile, []byte(`
server:
  addr: ":9000"
  session_ttl: 30m
`), 0o644))

	c, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":9000", c.Server.Addr)
	assert.Equal(t, 30*time.Minute, c.Server.SessionTTL)
	assert.Empty(t, c.Server.AllowedOrigins)

	t.Setenv("CONFCHECK_SERVER_ADDR", "0.0.0.0:8443")
	t.Setenv("CONFCHECK_ALLOWED_ORIGINS", "https://ci.example, *")
	c, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8443", c.Server.Addr)
	assert.Equal(t, []string{"https://ci.example", "*"}, c.Server.AllowedOrigins)
}

func TestLoadConfig_BadYAML(t *testing.T) {
	p := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(p, []byte("check: [oops"), 0o644))
	_, err := LoadConfig(p)
	assert.ErrorContains(t, err, "parse config")
}

func TestInitLogger(t *testing.T) {
	var buf bytes.Buffer
	log := InitLogger(&buf, "json", "warn")
	log.Info("hidden")
	log.Warn("shown", "path", "a.js")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"path":"a.js"`)

	buf.Reset()
	log = InitLogger(&buf, "text", "debug")
	log.Debug("visible")
	assert.Contains(t, buf.String(), "msg=visible")
}
