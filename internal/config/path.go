package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// EnvConfigPath names a config file when --config is absent.
const EnvConfigPath = "PARLEY_CONFIG"

const configFile = "config.jsonc"

// resolvePath picks the config file: --config, $PARLEY_CONFIG,
// $XDG_CONFIG_HOME/parley, then ~/.config/parley.
func resolvePath(explicit string, getenv func(string) string, home func() (string, error)) (string, error) {
	for _, candidate := range []string{explicit, getenv(EnvConfigPath)} {
		if p := strings.TrimSpace(candidate); p != "" {
			return p, nil
		}
	}
	if xdg := strings.TrimSpace(getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "parley", configFile), nil
	}

	dir, err := home()
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return filepath.Join(dir, ".config", "parley", configFile), nil
}
