package appconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pkt.systems/replink/schema"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("device.port", cfg.Device.Port)
	v.SetDefault("device.baud", cfg.Device.Baud)
	v.SetDefault("device.tcp_addr", cfg.Device.TCPAddr)
	v.SetDefault("driver.line_ending", cfg.Driver.LineEnding)
	v.SetDefault("driver.run_timeout_ms", cfg.Driver.RunTimeoutMS)
	v.SetDefault("driver.prompt_timeout_ms", cfg.Driver.PromptTimeoutMS)
	v.SetDefault("driver.handshake_timeout_ms", cfg.Driver.HandshakeTimeoutMS)
	v.SetDefault("driver.restart_timeout_ms", cfg.Driver.RestartTimeoutMS)
	v.SetDefault("driver.poll_interval_ms", cfg.Driver.PollIntervalMS)
	v.SetDefault("driver.interrupt_attempts", cfg.Driver.InterruptAttempts)
	v.SetDefault("driver.compact_threshold_kib", cfg.Driver.CompactThresholdKiB)
	v.SetDefault("ssh.addr", cfg.SSH.Addr)
	v.SetDefault("ssh.host_key_path", cfg.SSH.HostKeyPath)
	v.SetDefault("ssh.authorized_keys_path", cfg.SSH.AuthorizedKeysPath)
	v.SetDefault("logging.trace_wire", cfg.Logging.TraceWire)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		// A missing config file means defaults. Viper reports it as a
		// path error when the file is set explicitly.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if _, err := schema.NormalizeLineEnding(cfg.Driver.LineEnding); err != nil {
		return fmt.Errorf("driver.line_ending must be \"lf\" or \"crlf\", got %q", cfg.Driver.LineEnding)
	}
	if cfg.Device.Baud <= 0 {
		return fmt.Errorf("device.baud must be positive")
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.Device.Port = expandEnv(cfg.Device.Port)
	cfg.Device.TCPAddr = expandEnv(cfg.Device.TCPAddr)
	cfg.SSH.HostKeyPath = expandEnv(cfg.SSH.HostKeyPath)
	cfg.SSH.AuthorizedKeysPath = expandEnv(cfg.SSH.AuthorizedKeysPath)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
