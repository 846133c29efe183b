package config

import (
	"fmt"
	"net/netip"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/andys/netcollector/db"
)

// Config holds the collector configuration
type Config struct {
	ConfigFile string `yaml:"-"`
	Debug      bool   `yaml:"-"`
	Verbose    bool   `yaml:"-"` // log every SQL statement

	Log        LogConfig        `yaml:"log"`
	Store      StoreConfig      `yaml:"store"`
	Router     RouterConfig     `yaml:"router"`
	UPS        UPSConfig        `yaml:"ups"`
	Queue      QueueConfig      `yaml:"queue"`
	Worker     WorkerConfig     `yaml:"worker"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Simulate   bool             `yaml:"simulate"`

	// Flows are decoded one by one by the flow registry so that a bad entry
	// only loses that flow.
	Flows []yaml.Node `yaml:"flows"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type StoreConfig struct {
	URL string `yaml:"url"`
}

// RouterConfig is the MikroTik RouterOS API endpoint
type RouterConfig struct {
	Enabled     *bool         `yaml:"enabled"`
	Address     string        `yaml:"address"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	LANPrefix   string        `yaml:"lan_prefix"`
	Interfaces  []string      `yaml:"interfaces"`
}

// UPSConfig is the APC management card telnet endpoint
type UPSConfig struct {
	Enabled     *bool         `yaml:"enabled"`
	Address     string        `yaml:"address"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

type QueueConfig struct {
	Size int `yaml:"size"`
}

type WorkerConfig struct {
	ErrorCeiling int           `yaml:"error_ceiling"`
	Cooldown     time.Duration `yaml:"cooldown"`
	PollTick     time.Duration `yaml:"poll_tick"`
	IdleSleep    time.Duration `yaml:"idle_sleep"`
}

type SupervisorConfig struct {
	CheckInterval time.Duration `yaml:"check_interval"`
	JoinTimeout   time.Duration `yaml:"join_timeout"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// IsEnabled reports whether the router poller should run. It defaults to true.
func (r RouterConfig) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// LAN returns the configured LAN range
func (r RouterConfig) LAN() (netip.Prefix, error) {
	p, err := netip.ParsePrefix(r.LANPrefix)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid router lan_prefix: %w", err)
	}
	return p.Masked(), nil
}

// IsEnabled reports whether the UPS poller should run. It defaults to true.
func (u UPSConfig) IsEnabled() bool {
	return u.Enabled == nil || *u.Enabled
}

// LoadConfig reads and parses the configuration file, then fills in defaults
func LoadConfig(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.ConfigFile = filename
	cfg.ApplyDefaults()
	return nil
}

// ApplyDefaults sets every unset value to its default
func (cfg *Config) ApplyDefaults() {
	setString(&cfg.Log.Level, "INFO")
	setString(&cfg.Log.Format, "CONSOLE")

	setString(&cfg.Router.LANPrefix, "192.168.0.0/16")
	if len(cfg.Router.Interfaces) == 0 {
		cfg.Router.Interfaces = []string{"ether1-gateway", "ether2-master-local"}
	}
	setDuration(&cfg.Router.DialTimeout, 5*time.Second)
	setDuration(&cfg.UPS.DialTimeout, 5*time.Second)

	if cfg.Queue.Size <= 0 {
		cfg.Queue.Size = 100
	}
	if cfg.Worker.ErrorCeiling <= 0 {
		cfg.Worker.ErrorCeiling = 5
	}
	setDuration(&cfg.Worker.Cooldown, 5*time.Second)
	setDuration(&cfg.Worker.PollTick, 200*time.Millisecond)
	setDuration(&cfg.Worker.IdleSleep, 500*time.Millisecond)
	setDuration(&cfg.Supervisor.CheckInterval, 5*time.Second)
	setDuration(&cfg.Supervisor.JoinTimeout, 10*time.Second)
	setString(&cfg.Metrics.Addr, ":2112")
}

func setString(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

func setDuration(v *time.Duration, def time.Duration) {
	if *v <= 0 {
		*v = def
	}
}

// Validate checks the settings that cannot be defaulted
func (cfg *Config) Validate() error {
	if cfg.Store.URL == "" {
		return fmt.Errorf("store url is required")
	}
	if _, err := db.TypeFromURL(cfg.Store.URL); err != nil {
		return fmt.Errorf("invalid store url: %w", err)
	}

	if !cfg.Router.IsEnabled() && !cfg.UPS.IsEnabled() {
		return fmt.Errorf("no device is enabled")
	}
	if cfg.Router.IsEnabled() {
		if _, err := cfg.Router.LAN(); err != nil {
			return err
		}
		if !cfg.Simulate && cfg.Router.Address == "" {
			return fmt.Errorf("router address is required")
		}
	}
	if cfg.UPS.IsEnabled() && !cfg.Simulate && cfg.UPS.Address == "" {
		return fmt.Errorf("ups address is required")
	}
	if len(cfg.Flows) == 0 {
		return fmt.Errorf("no flows configured")
	}
	return nil
}
