// Package config loads server settings from codeserver.yaml, a .env file
// and CODESERVER_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/caffeineduck/codeserver/executor"
	"github.com/caffeineduck/codeserver/language/python"
)

// EnvPrefix prefixes every environment override, e.g. CODESERVER_SERVER_PORT.
const EnvPrefix = "CODESERVER"

type ServerConfig struct {
	Port        int           `mapstructure:"port"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

type ExecutionConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	MemoryLimit string        `mapstructure:"memory_limit"`
}

type PythonConfig struct {
	Module string `mapstructure:"module"`
	URL    string `mapstructure:"url"`
}

type RuntimesConfig struct {
	DiskCache bool         `mapstructure:"disk_cache"`
	CacheDir  string       `mapstructure:"cache_dir"`
	Python    PythonConfig `mapstructure:"python"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Runtimes  RuntimesConfig  `mapstructure:"runtimes"`
	Log       LogConfig       `mapstructure:"log"`
}

// Load reads configuration. With an empty path it looks for codeserver.yaml
// in the working directory and $HOME/.codeserver, and a missing file is not
// an error. An explicit path must exist.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("codeserver")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.codeserver")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("execution.timeout", 30*time.Second)
	v.SetDefault("execution.memory_limit", "256mb")
	v.SetDefault("runtimes.disk_cache", true)
	v.SetDefault("runtimes.cache_dir", executor.DefaultCacheDir())
	v.SetDefault("runtimes.python.module", "")
	v.SetDefault("runtimes.python.url", python.DefaultURL)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Runtimes.Python.Module == "" {
		cfg.Runtimes.Python.Module = filepath.Join(cfg.Runtimes.CacheDir, "python.wasm")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout must not be negative"))
	}
	if c.Execution.Timeout < 0 {
		errs = append(errs, fmt.Errorf("execution.timeout must not be negative"))
	}
	if c.Execution.MemoryLimit != "" && executor.ParseMemoryLimit(c.Execution.MemoryLimit) == 0 {
		errs = append(errs, fmt.Errorf("execution.memory_limit %q not recognized", c.Execution.MemoryLimit))
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be console or json", c.Log.Format))
	}
	return errors.Join(errs...)
}

// MemoryLimitPages converts Execution.MemoryLimit to wasm pages, 0 meaning
// the runtime default.
func (c *Config) MemoryLimitPages() uint32 {
	return executor.ParseMemoryLimit(c.Execution.MemoryLimit)
}
