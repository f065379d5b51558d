package config

import (
	"fmt"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate fills defaults for zero values and reports
// anything that would make the engine misbehave at runtime.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	if out.Worker.PoolSize == 0 {
		out.Worker.PoolSize = 5
	}
	if out.Worker.BatchSize == 0 {
		out.Worker.BatchSize = 5
	}
	if out.Worker.BatchPauseMS == 0 {
		out.Worker.BatchPauseMS = 1500
	}
	if out.Worker.NavTimeoutSeconds == 0 {
		out.Worker.NavTimeoutSeconds = 30
	}
	if out.Enrich.HostReqPerSec == 0 {
		out.Enrich.HostReqPerSec = 1
	}
	if out.Enrich.HostBurst == 0 {
		out.Enrich.HostBurst = 2
	}

	// ---- Validation rules ----

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}

	if out.Worker.PoolSize < 0 {
		res.addErr("worker.pool_size must be > 0")
	} else if out.Worker.PoolSize > 20 {
		res.addWarn("worker.pool_size is very high (%d); each slot owns a full browser process.", out.Worker.PoolSize)
	}
	if out.Worker.BatchSize < 0 {
		res.addErr("worker.batch_size must be > 0")
	}
	if out.Worker.NavTimeoutSeconds < 5 {
		res.addWarn("worker.nav_timeout_seconds below 5s will misclassify slow pages as failures.")
	}

	if out.Browser.DelayMaxMS < out.Browser.DelayMinMS {
		out.Browser.DelayMinMS, out.Browser.DelayMaxMS = out.Browser.DelayMaxMS, out.Browser.DelayMinMS
	}
	if out.Browser.DelayMinMS == 0 && out.Browser.DelayMaxMS == 0 {
		res.addWarn("browser delays are zero; scraping without pacing raises detection risk.")
	}

	for i, p := range out.Proxies {
		if strings.TrimSpace(p.Host) == "" {
			res.addErr("proxies[%d].host is required", i)
		}
		if p.Port <= 0 || p.Port > 65535 {
			res.addErr("proxies[%d].port must be 1..65535", i)
		}
	}

	return out, res
}
