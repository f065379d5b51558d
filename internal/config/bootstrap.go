package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// UserConfigFile is the name of the editable config inside the data dir.
const UserConfigFile = "config.yml"

// EnsureUserConfig installs the bundled default config into the data dir
// on first run. The default is loaded and normalized before install, so
// a broken bundle fails at startup instead of seeding a file the engine
// cannot load later, and the installed copy carries explicit values for
// every defaulted field.
func EnsureUserConfig(dataDir, defaultPath string) (string, error) {
	userPath := filepath.Join(dataDir, UserConfigFile)

	if _, err := os.Stat(userPath); err == nil {
		return userPath, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	cfg, err := Load(defaultPath)
	if err != nil {
		return "", fmt.Errorf("load default config: %w", err)
	}
	norm, v := NormalizeAndValidate(cfg)
	if !v.OK() {
		return "", fmt.Errorf("default config invalid:\n- %s", joinLines(v.Errors))
	}
	if err := SaveAtomic(userPath, norm); err != nil {
		return "", fmt.Errorf("install default config: %w", err)
	}
	return userPath, nil
}
