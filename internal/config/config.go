package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config of the fat16 command. Values from the environment override the
// config file.
type Config struct {
	// Image is the path of the image file or block device.
	Image string `yaml:"image" env:"FAT16_IMAGE"`
	// Partition selects a primary MBR partition, 1 to 4. 0 uses the whole
	// device as filesystem.
	Partition int    `yaml:"partition" env:"FAT16_PARTITION"`
	LogLevel  string `yaml:"log_level" env:"FAT16_LOG_LEVEL" env-default:"info"`
	// MaxNodes limits the live nodes of the mount, 0 means unlimited.
	MaxNodes int64         `yaml:"max_nodes" env:"FAT16_MAX_NODES"`
	Timeout  time.Duration `yaml:"timeout" env:"FAT16_TIMEOUT" env-default:"30s"`
}

// Load reads the config file at path, if path is not empty, and the
// environment.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("cannot read config %q: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("cannot read config from environment: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Partition < 0 || c.Partition > 4 {
		return fmt.Errorf("partition %d out of range 0-4", c.Partition)
	}
	if c.MaxNodes < 0 {
		return fmt.Errorf("max nodes must not be negative, got %d", c.MaxNodes)
	}
	return nil
}

// Usage describes the environment variables.
func Usage() string {
	var cfg Config
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return text
}
