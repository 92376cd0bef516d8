package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New(), "", "")
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.Monitor.Capacity)
	assert.Equal(t, "./safe/tmp/reports/json", cfg.Report.Dir)
	assert.Equal(t, "cleanup_actions", cfg.Report.Prefix)
	assert.Equal(t, 30*time.Second, cfg.Exec.Timeout)
	assert.True(t, cfg.Tasks.History)
	assert.False(t, cfg.Tasks.Network)
	assert.Equal(t, []string{"suspicious_activity"}, cfg.Tasks.LogMarkers)
	assert.False(t, cfg.Mail.Enabled)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "opsclean.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
debug: true
monitor:
  capacity: 8
tasks:
  erase: [/tmp/one, /tmp/two]
  sweep_dirs: [/tmp/drop]
  sweep_window: 90s
mail:
  enabled: true
  addr: smtp.example.net:587
  from: ops@example.net
  to: [lead@example.net]
`), 0o644))

	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("OPSCLEAN_MAIL_PASSWORD=s3cret\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("OPSCLEAN_MAIL_PASSWORD") })
	t.Setenv("OPSCLEAN_REPORT_PREFIX", "op42")

	cfg, err := Load(viper.New(), path, envFile)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Monitor.Capacity)
	assert.Equal(t, "debug", cfg.Log.Level, "debug implies debug logging")
	assert.True(t, cfg.Monitor.Verbose)
	assert.Equal(t, []string{"/tmp/one", "/tmp/two"}, cfg.Tasks.Erase)
	assert.Equal(t, 90*time.Second, cfg.Tasks.SweepWindow)
	assert.Equal(t, "s3cret", cfg.Mail.Password)
	assert.Equal(t, "op42", cfg.Report.Prefix)
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"), "")
	assert.Error(t, err)
}

func TestLoadMissingEnvFileIsFine(t *testing.T) {
	_, err := Load(viper.New(), "", filepath.Join(t.TempDir(), ".env"))
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"capacity", func(c *Config) { c.Monitor.Capacity = 0 }, "monitor.capacity"},
		{"report dir", func(c *Config) { c.Report.Dir = "" }, "report.dir"},
		{"sweep without dirs", func(c *Config) { c.Tasks.SweepWindow = time.Second }, "tasks.sweep_dirs"},
		{"mail without addr", func(c *Config) {
			c.Mail.Enabled = true
			c.Mail.From = "a@b"
			c.Mail.To = []string{"c@d"}
		}, "mail.addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(viper.New(), "", "")
			require.NoError(t, err)
			tt.mutate(&cfg)

			err = cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
