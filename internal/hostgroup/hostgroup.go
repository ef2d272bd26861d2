// Package hostgroup answers "does this host belong to the target group?"
// by asking the monitoring backend's command-line tool.
package hostgroup

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Group is one host group as printed by the CLI.
type Group struct {
	ID   string
	Name string
}

// Resolver lists the host groups a host belongs to.
type Resolver interface {
	HostGroups(ctx context.Context, host string) ([]Group, error)
}

// ResolutionError means membership could not be determined.
type ResolutionError struct {
	Host   string
	Stderr string
	Err    error
}

func (e *ResolutionError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("hostgroup lookup for %s: %v: %s", e.Host, e.Err, e.Stderr)
	}
	return fmt.Sprintf("hostgroup lookup for %s: %v", e.Host, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// CLIResolver shells out to `centreon -u L -p P -o HOST -a gethostgroup -v host`.
type CLIResolver struct {
	Binary   string
	Login    string
	Password string
	Timeout  time.Duration
}

func (r CLIResolver) HostGroups(ctx context.Context, host string) ([]Group, error) {
	bin := r.Binary
	if bin == "" {
		bin = "centreon"
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin,
		"-u", r.Login,
		"-p", r.Password,
		"-o", "HOST",
		"-a", "gethostgroup",
		"-v", host,
	)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", r.Timeout, ctx.Err())
		}
		return nil, &ResolutionError{Host: host, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return ParseGroups(stdout.String()), nil
}

// ParseGroups reads "id;name" lines. The first line is a header and is
// skipped; lines without ';' are ignored. Only the first ';' splits, so
// names may themselves contain ';'.
func ParseGroups(out string) []Group {
	var groups []Group
	sc := bufio.NewScanner(strings.NewReader(out))
	first := true
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if first {
			first = false
			continue
		}
		id, name, ok := strings.Cut(line, ";")
		if !ok {
			continue
		}
		groups = append(groups, Group{ID: strings.TrimSpace(id), Name: strings.TrimSpace(name)})
	}
	return groups
}

// Matches reports whether any group name contains target, ignoring case.
func Matches(groups []Group, target string) bool {
	t := strings.ToUpper(target)
	for _, g := range groups {
		if strings.Contains(strings.ToUpper(g.Name), t) {
			return true
		}
	}
	return false
}
