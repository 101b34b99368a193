package configs

import (
	"flag"
	"io"
	"os"

	"github.com/namimod25/toko-online/internal/infrastructure/env"
)

var candidatePaths = []string{
	"./config.yaml",
	"./config.yml",
	"../../config.yaml", // keep for local dev
	"/etc/toko-online/config.yaml",
	"/app/config.yaml", // common in Docker
}

// DetermineConfigPath resolves the config file from --config, TOKO_CONFIG, or the
// first candidate path that exists. An empty result means defaults only.
func DetermineConfigPath(args []string) string {
	var configPath string

	fs := flag.NewFlagSet("toko-online", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&configPath, "config", "", "path to config file")
	_ = fs.Parse(args)

	if configPath == "" {
		configPath = env.GetString("TOKO_CONFIG", "")
	}

	if configPath == "" {
		for _, p := range candidatePaths {
			if _, err := os.Stat(p); err == nil {
				configPath = p
				break
			}
		}
	}

	return configPath
}
