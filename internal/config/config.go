// Package config loads application configuration from file and
// environment. Configuration is returned to the caller, never held in
// package state.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	RendezvousAddr string   `mapstructure:"rendezvous_addr"`
	STUNServers    []string `mapstructure:"stun_servers"`
	DownloadDir    string   `mapstructure:"download_dir"`
	RelayBaseURL   string   `mapstructure:"relay_base_url"`
	Debug          bool     `mapstructure:"debug"`
}

// Load reads beamlink.yaml from path (or the working directory and
// ~/.config/beamlink), with BEAMLINK_* environment overrides. A missing
// file is fine; defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("beamlink")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/beamlink")

	v.SetEnvPrefix("BEAMLINK")
	v.AutomaticEnv()

	v.SetDefault("rendezvous_addr", "127.0.0.1:7400")
	v.SetDefault("download_dir", "./downloads")
	v.SetDefault("relay_base_url", "")
	v.SetDefault("debug", false)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &cfg, nil
}
