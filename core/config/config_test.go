package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadFromEnvironment(t *testing.T) {
	chdirTemp(t)
	t.Setenv("PL_DATA_KEY", testKey)
	t.Setenv("PL_JWT_SECRET", "s3cret")
	t.Setenv("PL_LEDGER", "memory")
	t.Setenv("PL_LEDGER_TIMEOUT", "750ms")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, LedgerMemory, cfg.Ledger)
	assert.Equal(t, 750*time.Millisecond, cfg.LedgerTimeout)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "patientledger", cfg.JWTIssuer)

	key, err := cfg.MasterKey()
	require.NoError(t, err)
	assert.Len(t, key, 32)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "patientledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listenAddr: ":9090"
ledger: grpc
ledgerAddr: "ledger:7051"
dataKey: "`+testKey+`"
jwtSecret: from-file
`), 0o600))
	t.Setenv("PL_CONFIG_FILE", path)
	t.Setenv("PL_JWT_SECRET", "from-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, LedgerGRPC, cfg.Ledger)
	assert.Equal(t, "ledger:7051", cfg.LedgerAddr)
	assert.Equal(t, "from-env", cfg.JWTSecret)
}

func TestDotEnvIsLoaded(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("PL_DATA_KEY="+testKey+"\nPL_JWT_SECRET=dotenv\nPL_LEDGER=memory\n"), 0o600))
	// godotenv never overrides variables that are already set.
	for _, k := range []string{"PL_DATA_KEY", "PL_JWT_SECRET", "PL_LEDGER"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dotenv", cfg.JWTSecret)
}

func TestUnknownFileFieldRejected(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":1\"\n"), 0o600))
	t.Setenv("PL_CONFIG_FILE", path)

	_, err := Load()
	assert.ErrorContains(t, err, "parse config file")
}

func TestValidate(t *testing.T) {
	good := Default()
	good.DataKey = testKey
	good.JWTSecret = "x"
	require.NoError(t, good.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing key", func(c *Config) { c.DataKey = "" }, "PL_DATA_KEY is required"},
		{"bad base64", func(c *Config) { c.DataKey = "!!" }, "not valid base64"},
		{"short key", func(c *Config) { c.DataKey = base64.StdEncoding.EncodeToString([]byte("short")) }, "32 bytes"},
		{"missing secret", func(c *Config) { c.JWTSecret = "" }, "PL_JWT_SECRET"},
		{"unknown ledger", func(c *Config) { c.Ledger = "fabric" }, "unknown ledger"},
		{"grpc without addr", func(c *Config) { c.Ledger = LedgerGRPC; c.LedgerAddr = "" }, "PL_LEDGER_ADDR"},
		{"negative timeout", func(c *Config) { c.LedgerTimeout = -time.Second }, "PL_LEDGER_TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := good
			tt.mutate(&c)
			assert.ErrorContains(t, c.Validate(), tt.want)
		})
	}
}
