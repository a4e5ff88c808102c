// Package config loads daemon configuration from a YAML file and the
// environment. Environment variables use the GV_ prefix with underscores,
// e.g. GV_MASTER_HOST overrides master.host.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/gamevault/gamevault/internal/broker"
	"github.com/gamevault/gamevault/internal/types"
)

// Config is the full daemon configuration.
type Config struct {
	Master broker.NodeConfig `mapstructure:"master"`
	SlaveA broker.NodeConfig `mapstructure:"slave_a"`
	SlaveB broker.NodeConfig `mapstructure:"slave_b"`

	HTTPAddr string `mapstructure:"http_addr"`

	SyncInterval   time.Duration `mapstructure:"sync_interval"`
	HealthInterval time.Duration `mapstructure:"health_interval"`
	RetryInterval  time.Duration `mapstructure:"retry_interval"`

	IsolationLevel string `mapstructure:"isolation_level"`
}

// Default returns the development defaults: three local MySQL servers on
// consecutive ports.
func Default() *Config {
	return &Config{
		Master: broker.NodeConfig{Host: "127.0.0.1", Port: 3306, User: "root", Database: "gamevault"},
		SlaveA: broker.NodeConfig{Host: "127.0.0.1", Port: 3307, User: "root", Database: "gamevault"},
		SlaveB: broker.NodeConfig{Host: "127.0.0.1", Port: 3308, User: "root", Database: "gamevault"},

		HTTPAddr: ":5000",

		SyncInterval:   10 * time.Second,
		HealthInterval: 5 * time.Second,
		RetryInterval:  10 * time.Second,

		IsolationLevel: string(types.RepeatableRead),
	}
}

// Load reads configuration, layering defaults, an optional YAML file and
// GV_-prefixed environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	def := Default()
	// Every NodeConfig key must be registered here, password included:
	// AutomaticEnv only feeds Unmarshal for keys viper already knows about.
	v.SetDefault("master", map[string]any{"host": def.Master.Host, "port": def.Master.Port, "user": def.Master.User, "password": def.Master.Password, "database": def.Master.Database})
	v.SetDefault("slave_a", map[string]any{"host": def.SlaveA.Host, "port": def.SlaveA.Port, "user": def.SlaveA.User, "password": def.SlaveA.Password, "database": def.SlaveA.Database})
	v.SetDefault("slave_b", map[string]any{"host": def.SlaveB.Host, "port": def.SlaveB.Port, "user": def.SlaveB.User, "password": def.SlaveB.Password, "database": def.SlaveB.Database})
	v.SetDefault("http_addr", def.HTTPAddr)
	v.SetDefault("sync_interval", def.SyncInterval)
	v.SetDefault("health_interval", def.HealthInterval)
	v.SetDefault("retry_interval", def.RetryInterval)
	v.SetDefault("isolation_level", def.IsolationLevel)

	v.SetEnvPrefix("GV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	if !types.ValidIsolationLevel(types.IsolationLevel(c.IsolationLevel)) {
		return fmt.Errorf("invalid isolation_level %q", c.IsolationLevel)
	}
	for _, iv := range []struct {
		name string
		d    time.Duration
	}{
		{"sync_interval", c.SyncInterval},
		{"health_interval", c.HealthInterval},
		{"retry_interval", c.RetryInterval},
	} {
		if iv.d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", iv.name, iv.d)
		}
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("http_addr must be set")
	}
	return nil
}

// Node returns the connection settings for a node name.
func (c *Config) Node(name string) (broker.NodeConfig, error) {
	switch name {
	case types.NodeMaster:
		return c.Master, nil
	case types.NodeSlaveA:
		return c.SlaveA, nil
	case types.NodeSlaveB:
		return c.SlaveB, nil
	}
	return broker.NodeConfig{}, fmt.Errorf("unknown node %q", name)
}

// Nodes returns the per-node settings keyed by node name.
func (c *Config) Nodes() map[string]broker.NodeConfig {
	return map[string]broker.NodeConfig{
		types.NodeMaster: c.Master,
		types.NodeSlaveA: c.SlaveA,
		types.NodeSlaveB: c.SlaveB,
	}
}
