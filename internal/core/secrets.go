package core

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// LoadSecretsEnv reads $XDG_CONFIG_HOME/channel-janitor/secrets.env (or
// ~/.config/channel-janitor/secrets.env) and returns key/value pairs. Lines
// starting with # are ignored. Format: KEY=VALUE, optionally quoted.
func LoadSecretsEnv(path string) (map[string]string, error) {
	if path == "" {
		path = filepath.Join(configDir(), "secrets.env")
	}
	f, err := os.Open(path)
	if err != nil {
		return map[string]string{}, nil // not fatal if missing
	}
	defer f.Close()
	out := map[string]string{}
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		if i := strings.IndexByte(line, '='); i >= 0 {
			k := strings.TrimSpace(line[:i])
			v := strings.Trim(strings.TrimSpace(line[i+1:]), `"'`)
			out[k] = v
		}
	}
	return out, s.Err()
}
