package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Paths stores resolved runtime file locations. Everything lives next to the config file.
type Paths struct {
	RootDir    string
	ConfigFile string
	EnvFile    string
	DBFile     string
	LogFile    string
}

// ResolvePaths uses configFile when given, otherwise config.json in the user config dir.
func ResolvePaths(configFile string) (Paths, error) {
	configFile = strings.TrimSpace(configFile)
	if configFile == "" {
		cfgRoot, err := os.UserConfigDir()
		if err != nil {
			return Paths{}, fmt.Errorf("resolve config dir: %w", err)
		}
		configFile = filepath.Join(cfgRoot, Name, ConfigFilename)
	}

	abs, err := filepath.Abs(configFile)
	if err != nil {
		return Paths{}, fmt.Errorf("resolve config path: %w", err)
	}
	root := filepath.Dir(abs)
	if err := os.MkdirAll(root, 0o750); err != nil {
		return Paths{}, fmt.Errorf("create app config dir: %w", err)
	}

	return Paths{
		RootDir:    root,
		ConfigFile: abs,
		EnvFile:    filepath.Join(root, EnvFilename),
		DBFile:     filepath.Join(root, DBFilename),
		LogFile:    filepath.Join(root, LogFilename),
	}, nil
}
