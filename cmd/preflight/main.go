// cmd/preflight/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/joho/godotenv"

	"github.com/hamed0406/alertack/internal/config"
	apimw "github.com/hamed0406/alertack/internal/httpapi/middleware"
	"github.com/hamed0406/alertack/internal/probe"
	"github.com/hamed0406/alertack/internal/repo/backend"
)

type report struct {
	failed bool
}

func (r *report) fail(msg string) {
	r.failed = true
	fmt.Fprintln(os.Stderr, "✖", msg)
}

func (r *report) warn(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
func (r *report) ok(msg string)   { fmt.Println("✔", msg) }

func main() {
	offline := flag.Bool("offline", false, "skip the connectivity probe of CENTREON_API_URL")
	flag.Parse()

	if err := godotenv.Load(); err == nil {
		fmt.Println("✔ loaded .env")
	}
	r := &report{}
	cfg := check(r)
	if !*offline && cfg.Centreon.BaseURL != "" {
		probeAPI(r, cfg)
	}
	if r.failed {
		os.Exit(1)
	}
	r.ok("preflight passed")
}

func check(r *report) config.Config {
	cfg, err := config.FromEnv()
	var ve *config.ValidationError
	switch {
	case errors.As(err, &ve):
		for _, m := range ve.Missing {
			r.fail(m + " is empty.")
		}
		for _, m := range ve.Invalid {
			r.fail(m + " is invalid.")
		}
	case err != nil:
		r.fail(err.Error())
	default:
		r.ok("CENTREON_API_URL=" + cfg.Centreon.BaseURL)
	}
	if cfg.Centreon.InsecureTLS {
		r.warn("CENTREON_INSECURE_TLS is on; certificates are not verified.")
	}

	if kind, _, err := backend.Parse(cfg.DatabaseURL); err != nil {
		r.fail(err.Error())
	} else {
		r.ok("DATABASE_URL backend=" + string(kind))
		if kind == backend.KindMemory {
			r.warn("memory store: outcomes are lost on restart.")
		}
	}

	if err := cfg.Email.Validate(); err != nil {
		if cfg.Scheduler.NotifyAfterRun {
			r.fail(err.Error())
		} else {
			r.warn(err.Error() + " (only needed for notifications)")
		}
	} else {
		r.ok(fmt.Sprintf("SMTP %s:%d, %d recipient(s)", cfg.Email.Host, cfg.Email.Port, len(cfg.Email.Envelope())))
	}

	if _, err := exec.LookPath(cfg.Hostgroup.CLIPath); err != nil {
		r.warn(fmt.Sprintf("CENTREON_CLI %q not found; hostgroup lookups will treat every host as a non-member.", cfg.Hostgroup.CLIPath))
	} else {
		r.ok("CENTREON_CLI=" + cfg.Hostgroup.CLIPath)
	}

	if len(cfg.API.PublicAPIKeys) == 0 && len(cfg.API.AdminAPIKeys) == 0 {
		r.warn("no PUBLIC_API_KEYS or ADMIN_API_KEYS; the read API is open.")
	}
	if len(cfg.API.AllowedOrigins) == 0 {
		r.warn("ALLOWED_ORIGINS empty; any origin may call the read API.")
	} else {
		r.ok(fmt.Sprintf("ALLOWED_ORIGINS=%v", cfg.API.AllowedOrigins))
	}
	if _, err := apimw.ParseProxies(cfg.API.TrustedProxies); err != nil {
		r.fail("TRUSTED_PROXIES: " + err.Error())
	} else if len(cfg.API.TrustedProxies) > 0 {
		r.ok(fmt.Sprintf("TRUSTED_PROXIES=%v", cfg.API.TrustedProxies))
	}

	if cfg.Scheduler.Interval == 0 {
		r.warn("MONITORING_INTERVAL=0; the api server will not run reconciliations.")
	} else {
		r.ok("MONITORING_INTERVAL=" + cfg.Scheduler.Interval.String())
	}
	return cfg
}

func probeAPI(r *report, cfg config.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	rep := probe.NewDiagnoser(10*time.Second, cfg.Centreon.InsecureTLS).Diagnose(ctx, cfg.Centreon.BaseURL)
	if rep.Reachable() {
		r.ok(fmt.Sprintf("API reachable (%s, %.0f ms)", rep.HTTP.Message, rep.HTTP.LatencyMS))
		return
	}
	msg := "API unreachable: " + rep.HTTP.Message
	if rep.DNS != nil {
		msg += fmt.Sprintf(" dns=%s", rep.DNS.Class)
		if rep.DNS.ResolverError != "" {
			msg += " (" + rep.DNS.ResolverError + ")"
		}
	}
	r.fail(msg)
}
