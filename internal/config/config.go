// Package config builds the single Config value a session runs with. It is
// constructed once by the CLI and handed to each component; nothing here is
// global.
package config

import (
	"os"
	"strings"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. OPSCLEAN_MAIL_PASSWORD.
const EnvPrefix = "OPSCLEAN"

type Config struct {
	Debug     bool            `mapstructure:"debug"`
	Log       LogConfig       `mapstructure:"log"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Report    ReportConfig    `mapstructure:"report"`
	Exec      ExecConfig      `mapstructure:"exec"`
	Tasks     TasksConfig     `mapstructure:"tasks"`
	Mail      MailConfig      `mapstructure:"mail"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type LogConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type MonitorConfig struct {
	Capacity int  `mapstructure:"capacity"`
	Verbose  bool `mapstructure:"verbose"`
}

type ReportConfig struct {
	Dir      string `mapstructure:"dir"`
	Prefix   string `mapstructure:"prefix"`
	Markdown bool   `mapstructure:"markdown"`
}

type ExecConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	DryRun  bool          `mapstructure:"dry_run"`
}

type TasksConfig struct {
	TempDirs     []string      `mapstructure:"temp_dirs"`
	SecureTemp   bool          `mapstructure:"secure_temp"`
	History      bool          `mapstructure:"history"`
	HistoryShell string        `mapstructure:"history_shell"`
	HistoryFiles []string      `mapstructure:"history_files"`
	Timestamps   []string      `mapstructure:"timestamps"`
	Logs         []string      `mapstructure:"logs"`
	LogMarkers   []string      `mapstructure:"log_markers"`
	LogKeepMTime bool          `mapstructure:"log_keep_mtime"`
	Network      bool          `mapstructure:"network"`
	Erase        []string      `mapstructure:"erase"`
	SweepDirs    []string      `mapstructure:"sweep_dirs"`
	SweepWindow  time.Duration `mapstructure:"sweep_window"`
}

type MailConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Addr     string   `mapstructure:"addr"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
}

type TelemetryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// SetDefaults registers every key so environment overrides apply to all of them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("log.mode", "development")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "./safe/tmp/cleanup.log")

	v.SetDefault("monitor.capacity", 100)
	v.SetDefault("monitor.verbose", false)

	v.SetDefault("report.dir", "./safe/tmp/reports/json")
	v.SetDefault("report.prefix", "cleanup_actions")
	v.SetDefault("report.markdown", true)

	v.SetDefault("exec.timeout", 30*time.Second)
	v.SetDefault("exec.dry_run", false)

	v.SetDefault("tasks.temp_dirs", []string{"./safe/tmp/cleancleanclean"})
	v.SetDefault("tasks.secure_temp", false)
	v.SetDefault("tasks.history", true)
	v.SetDefault("tasks.history_shell", "bash")
	v.SetDefault("tasks.history_files", []string{})
	v.SetDefault("tasks.timestamps", []string{"./safe/tmp/example1.txt", "./safe/tmp/example2.txt"})
	v.SetDefault("tasks.logs", []string{"./safe/var/log/system.log"})
	v.SetDefault("tasks.log_markers", []string{"suspicious_activity"})
	v.SetDefault("tasks.log_keep_mtime", false)
	v.SetDefault("tasks.network", false)
	v.SetDefault("tasks.erase", []string{"./safe/tmp/sensitive_data.txt"})
	v.SetDefault("tasks.sweep_dirs", []string{})
	v.SetDefault("tasks.sweep_window", time.Duration(0))

	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.addr", "")
	v.SetDefault("mail.from", "")
	v.SetDefault("mail.to", []string{})
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.path", "./safe/tmp/telemetry.jsonl")
}

// Load reads defaults, an optional .env file, OPSCLEAN_* environment
// variables and, when configFile is set, a YAML/TOML/JSON config file.
// Flags must already be bound to v.
func Load(v *viper.Viper, configFile, envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return Config{}, cerr.Wrapf(err, "load env file %s", envFile)
		}
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, cerr.WithHint(cerr.Wrapf(err, "read config %s", configFile),
				"pass --config with a readable YAML file or omit it to use defaults")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, cerr.Wrap(err, "decode config")
	}
	if cfg.Debug {
		cfg.Log.Level = "debug"
		cfg.Monitor.Verbose = true
	}
	return cfg, cfg.Validate()
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var result error
	if c.Monitor.Capacity <= 0 {
		result = multierror.Append(result, cerr.Newf("monitor.capacity must be positive, got %d", c.Monitor.Capacity))
	}
	if c.Report.Dir == "" {
		result = multierror.Append(result, cerr.New("report.dir is required"))
	}
	if c.Report.Prefix == "" {
		result = multierror.Append(result, cerr.New("report.prefix is required"))
	}
	if c.Tasks.SweepWindow < 0 {
		result = multierror.Append(result, cerr.New("tasks.sweep_window must not be negative"))
	}
	if c.Tasks.SweepWindow > 0 && len(c.Tasks.SweepDirs) == 0 {
		result = multierror.Append(result, cerr.New("tasks.sweep_dirs is required when tasks.sweep_window is set"))
	}
	if c.Mail.Enabled {
		if c.Mail.Addr == "" {
			result = multierror.Append(result, cerr.New("mail.addr is required when mail is enabled"))
		}
		if c.Mail.From == "" || len(c.Mail.To) == 0 {
			result = multierror.Append(result, cerr.New("mail.from and mail.to are required when mail is enabled"))
		}
	}
	return result
}
