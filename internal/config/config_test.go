package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/shelf/pkg/models"
)

func newCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	RegisterFlags(cmd)
	cmd.Flags().Int("concurrency", DefaultConcurrency, "")
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
	assert.Equal(t, DefaultFetchTimeout, cfg.FetchTimeout)
	assert.Equal(t, models.DefaultMarker, cfg.Marker)
	assert.Equal(t, models.ModeSPA, cfg.Mode)
	assert.True(t, cfg.BrowserHeadless)
}

func TestLoad_Flags(t *testing.T) {
	cmd := newCmd(t,
		"--timeout=3s",
		"--mode=static",
		"--concurrency=4",
		"--proxy=http://p1:8080", "--proxy=http://p2:8080",
		"--headful",
		"-v",
	)

	cfg, err := Load(cmd)
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.FetchTimeout)
	assert.Equal(t, models.ModeStatic, cfg.Mode)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, []string{"http://p1:8080", "http://p2:8080"}, cfg.Proxies)
	assert.False(t, cfg.BrowserHeadless)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_Headers(t *testing.T) {
	cmd := newCmd(t,
		"-H", "Referer: https://www.naiin.com",
		"--header=Accept-Language: th",
		"--pg-dsn=postgres://localhost/shelf",
	)

	cfg, err := Load(cmd)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"Referer":         "https://www.naiin.com",
		"Accept-Language": "th",
	}, cfg.Headers)
	assert.Equal(t, "postgres://localhost/shelf", cfg.PostgresDSN)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shelf.yaml")
	content := `
concurrency: 7
fetch_timeout: 20s
marker: "meta[name='isbn']"
headers:
  Accept-Language: th-TH
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cmd := newCmd(t, "--config="+path)
	cfg, err := Load(cmd)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Concurrency)
	assert.Equal(t, 20*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "meta[name='isbn']", cfg.Marker)
	assert.Equal(t, "th-TH", cfg.Headers["Accept-Language"])
}

func TestLoad_Invalid(t *testing.T) {
	cmd := newCmd(t, "--concurrency=0")
	_, err := Load(cmd)
	assert.Error(t, err)

	cmd = newCmd(t, "--mode=turbo")
	_, err = Load(cmd)
	assert.Error(t, err)

	_, err = Load(newCmd(t, "--timeout=5"))
	assert.ErrorContains(t, err, "--timeout")

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("concurrency: [oops"), 0o644))
	_, err = Load(newCmd(t, "--config="+path))
	assert.Error(t, err)
}
