package proxy

import (
	"fmt"
	"math/rand"
	"net/url"
	"sync"
)

// Config is one proxy endpoint from the pool. Instances are shared
// read-only between jobs and never mutated after construction.
type Config struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// URL renders the proxy as an http URL with embedded credentials,
// suitable for http.Transport's Proxy field.
func (c *Config) URL() *url.URL {
	u := &url.URL{Scheme: "http", Host: c.Addr()}
	if c.Username != "" {
		u.User = url.UserPassword(c.Username, c.Password)
	}
	return u
}

// Provider hands out one proxy per job. Implementations are stateless
// with respect to callers: there is no session affinity across jobs.
type Provider interface {
	Next() *Config
}

// StaticPool picks uniformly at random from a fixed list.
type StaticPool struct {
	mu      sync.Mutex
	configs []Config
	rnd     *rand.Rand
}

func NewStaticPool(configs []Config, seed int64) *StaticPool {
	return &StaticPool{
		configs: configs,
		rnd:     rand.New(rand.NewSource(seed)),
	}
}

// Next returns a random pool entry, or nil when the pool is empty
// (jobs then run without a proxy).
func (p *StaticPool) Next() *Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.configs) == 0 {
		return nil
	}
	return &p.configs[p.rnd.Intn(len(p.configs))]
}
