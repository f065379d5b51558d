package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

func SaveAtomic(path string, cfg Config) error {
	if _, v := NormalizeAndValidate(cfg); !v.OK() {
		return errors.New("config validation failed:\n- " + joinLines(v.Errors))
	}

	b, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	bak := path + ".bak"

	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}

	_ = os.Remove(bak)
	_ = os.Rename(path, bak)

	return os.Rename(tmp, path)
}

func joinLines(lines []string) string {
	out := ""
	for i, s := range lines {
		if i > 0 {
			out += "\n- "
		}
		out += s
	}
	return out
}
