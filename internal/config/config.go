package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type ProxyEntry struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	// Password may be left empty; the engine then looks it up in the
	// OS keychain under scrapdeouf:proxy:<user>@<host>:<port>.
	Password string `yaml:"password"`
}

type Config struct {
	App struct {
		Port    int    `yaml:"port"`
		DataDir string `yaml:"data_dir"`
	} `yaml:"app"`

	Worker struct {
		PoolSize          int `yaml:"pool_size"`
		BatchSize         int `yaml:"batch_size"`
		BatchPauseMS      int `yaml:"batch_pause_ms"`
		NavTimeoutSeconds int `yaml:"nav_timeout_seconds"`
	} `yaml:"worker"`

	Browser struct {
		Headless   bool   `yaml:"headless"`
		UserAgent  string `yaml:"user_agent"`
		DelayMinMS int    `yaml:"delay_min_ms"`
		DelayMaxMS int    `yaml:"delay_max_ms"`
	} `yaml:"browser"`

	Enrich struct {
		HostReqPerSec float64 `yaml:"host_req_per_sec"`
		HostBurst     int     `yaml:"host_burst"`
	} `yaml:"enrich"`

	Proxies []ProxyEntry `yaml:"proxies"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}
