package config

import (
	"path"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	EnvPrefix         = "compose_manager"
	DefaultConfigFile = "compose-manager"
)

var defaultConfigPaths = []string{
	".",
	"./config",
	path.Join("/etc", "compose-manager"),
}

// Host is a remote machine carrying docker-compose workloads. Hosts are
// static: they come from the config file and are never mutated at runtime.
type Host struct {
	Name         string `mapstructure:"-"`
	Address      string `mapstructure:"address"`
	WorkloadRoot string `mapstructure:"workload_root"`

	// Optional per-host SSH overrides; empty values fall back to global.ssh.
	User    string `mapstructure:"user"`
	KeyFile string `mapstructure:"key_file"`
}

// SSHConfig holds fleet-wide SSH defaults.
type SSHConfig struct {
	User           string        `mapstructure:"user"`
	KeyFile        string        `mapstructure:"key_file"`
	Password       string        `mapstructure:"password"`
	KnownHosts     string        `mapstructure:"known_hosts"`
	StrictHostKey  bool          `mapstructure:"strict_host_key"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// BackupConfig is the global backup section.
type BackupConfig struct {
	Root                   string   `mapstructure:"root"`
	Compression            string   `mapstructure:"compression"`
	CompressionLevel       int      `mapstructure:"compression_level"`
	DefaultRetention       int      `mapstructure:"default_retention"`
	DefaultSchedule        string   `mapstructure:"default_schedule"`
	DefaultExcludePatterns []string `mapstructure:"default_exclude_patterns"`
}

// UpdateConfig is the global update section.
type UpdateConfig struct {
	DefaultBehavior string `mapstructure:"default_behavior"`
}

// NtfyConfig points at an ntfy server/topic with basic credentials.
type NtfyConfig struct {
	Server   string `mapstructure:"server"`
	Topic    string `mapstructure:"topic"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// NotificationsConfig is the global notifications section.
type NotificationsConfig struct {
	Enabled  bool       `mapstructure:"enabled"`
	Provider string     `mapstructure:"provider"`
	Ntfy     NtfyConfig `mapstructure:"ntfy"`
}

// GlobalConfig is everything under the "global" key.
type GlobalConfig struct {
	LogDir        string              `mapstructure:"log_dir"`
	Hosts         map[string]Host     `mapstructure:"hosts"`
	SSH           SSHConfig           `mapstructure:"ssh"`
	Backup        BackupConfig        `mapstructure:"backup"`
	Update        UpdateConfig        `mapstructure:"update"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
}

// WorkloadOverride is a partial policy for one workload. Pointer fields
// distinguish "not set" from explicit zero values so the resolver can merge
// field-wise.
type WorkloadOverride struct {
	Retention       *int     `mapstructure:"retention"`
	Schedule        *string  `mapstructure:"schedule"`
	Behavior        *string  `mapstructure:"behavior"`
	BackupCompose   *bool    `mapstructure:"backup_compose"`
	ExcludeVolumes  []string `mapstructure:"exclude_volumes"`
	ExcludePatterns []string `mapstructure:"exclude_patterns"`
}

// Config is the fully parsed configuration file.
type Config struct {
	Global    GlobalConfig                `mapstructure:"global"`
	Workloads map[string]WorkloadOverride `mapstructure:"workloads"`
}

// Load reads the configuration file. When configFile is set it must exist and
// parse; otherwise the default locations are searched and a missing file is
// fatal too, since the tool cannot do anything without hosts.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.AutomaticEnv()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(DefaultConfigFile)
		for _, dir := range defaultConfigPaths {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "read config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	for name, h := range c.Global.Hosts {
		h.Name = name
		c.Global.Hosts[name] = h
	}

	if c.Global.SSH.User == "" {
		c.Global.SSH.User = "root"
	}
	if c.Global.SSH.ConnectTimeout == 0 {
		c.Global.SSH.ConnectTimeout = 10 * time.Second
	}

	if c.Global.Backup.Compression == "" {
		c.Global.Backup.Compression = "pigz"
	}
	if c.Global.Backup.CompressionLevel == 0 {
		c.Global.Backup.CompressionLevel = 6
	}
	if c.Global.Backup.DefaultRetention == 0 {
		c.Global.Backup.DefaultRetention = 4
	}
	if c.Global.Backup.DefaultSchedule == "" {
		c.Global.Backup.DefaultSchedule = ScheduleDaily
	}
	if c.Global.Update.DefaultBehavior == "" {
		c.Global.Update.DefaultBehavior = BehaviorBackupThenUpdate
	}
}

func (c *Config) validate() error {
	if len(c.Global.Hosts) == 0 {
		return errors.New("config: no hosts defined under global.hosts")
	}
	for name, h := range c.Global.Hosts {
		if h.Address == "" {
			return errors.Errorf("config: host %q has no address", name)
		}
		if h.WorkloadRoot == "" {
			return errors.Errorf("config: host %q has no workload_root", name)
		}
	}
	if c.Global.Backup.Root == "" {
		return errors.New("config: global.backup.root is required")
	}
	switch c.Global.Backup.Compression {
	case "pigz", "gzip":
	default:
		return errors.Errorf("config: unsupported compression %q (want pigz or gzip)", c.Global.Backup.Compression)
	}
	return nil
}

// SortedHostNames returns host names in a stable iteration order.
func (c *Config) SortedHostNames() []string {
	names := make([]string, 0, len(c.Global.Hosts))
	for name := range c.Global.Hosts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
