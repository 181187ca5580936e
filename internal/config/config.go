package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// KeyDownloadFolder is the settings key external callers use to retarget the
// destination directory at runtime.
const KeyDownloadFolder = "downloads.folder"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Downloads DownloadsConfig `koanf:"downloads"`
	Spotdl    SpotdlConfig    `koanf:"spotdl"`
	Logging   LoggingConfig   `koanf:"logging"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

type DownloadsConfig struct {
	Folder string `koanf:"folder"`
	Format string `koanf:"format"`
}

type SpotdlConfig struct {
	Binary string `koanf:"binary"`
}

type LoggingConfig struct {
	Level string `koanf:"level"`
}

// Load reads config from defaults, then a TOML file (if it exists), then env
// vars: SPICEDL_SERVER_PORT -> server.port. It also returns the runtime Store
// backed by the same tree, which persists to configPath on every Set.
func Load(configPath string) (*Config, *Store, error) {
	k := koanf.New(".")

	loadDefaults(k)

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
				return nil, nil, err
			}
		}
	}

	// Only set env vars with non-empty values to avoid overriding the file.
	if err := k.Load(env.ProviderWithValue("SPICEDL_", ".", func(key, value string) (string, interface{}) {
		if value == "" {
			return "", nil
		}
		mapped := strings.Replace(
			strings.ToLower(strings.TrimPrefix(key, "SPICEDL_")),
			"_", ".", -1,
		)
		return mapped, value
	}), nil); err != nil {
		return nil, nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, nil, err
	}

	return &cfg, NewStore(k, configPath), nil
}
