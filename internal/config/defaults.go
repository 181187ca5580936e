package config

import (
	"os"
	"path/filepath"

	"github.com/knadh/koanf/v2"
)

func loadDefaults(k *koanf.Koanf) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	defaults := map[string]any{
		"server.host": "127.0.0.1",
		"server.port": 5985,

		"downloads.folder": filepath.Join(home, "Music", "SpiceDL"),
		"downloads.format": "mp3",

		"spotdl.binary": "spotdl",

		"logging.level": "info",
	}

	for key, val := range defaults {
		k.Set(key, val)
	}
}
