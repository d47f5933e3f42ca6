package ssh

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/openfroyo/acceptance/pkg/config"
	"github.com/openfroyo/acceptance/pkg/remote"
)

// manifestMode is the permission of files shipped with WriteFile.
const manifestMode = 0644

// Runner implements remote.Runner over SSH. It keeps one lazily opened
// connection per host for the lifetime of the run.
type Runner struct {
	settings config.SSHSettings
	env      config.LookupFunc

	mu      sync.Mutex
	clients map[string]*Client
}

// NewRunner creates a runner using settings for every host.
func NewRunner(settings config.SSHSettings, env config.LookupFunc) *Runner {
	return &Runner{
		settings: settings,
		env:      env,
		clients:  make(map[string]*Client),
	}
}

// Run implements remote.Runner.
func (r *Runner) Run(ctx context.Context, host remote.Host, cmd string, accept remote.ExitCodes) (remote.Result, error) {
	client, err := r.client(ctx, host)
	if err != nil {
		return remote.Result{Host: host.Name, Command: cmd}, err
	}

	exec, err := client.Execute(ctx, cmd)
	res := remote.Result{
		Host:     host.Name,
		Command:  cmd,
		ExitCode: exec.ExitCode,
		Stdout:   exec.Stdout,
		Stderr:   exec.Stderr,
		Duration: exec.Duration,
	}
	if err != nil {
		return res, fmt.Errorf("failed to run %q on %s: %w", cmd, host, err)
	}
	return res, remote.Check(res, accept)
}

// WriteFile implements remote.Runner.
func (r *Runner) WriteFile(ctx context.Context, host remote.Host, path string, content []byte) error {
	client, err := r.client(ctx, host)
	if err != nil {
		return err
	}
	return client.WriteFile(ctx, path, content, manifestMode)
}

// Close closes every open connection.
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, c := range r.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		delete(r.clients, name)
	}
	return errors.Join(errs...)
}

func (r *Runner) client(ctx context.Context, host remote.Host) (*Client, error) {
	r.mu.Lock()
	c, ok := r.clients[host.Name]
	if !ok {
		cfg, err := ConfigFor(r.settings, host, r.env)
		if err != nil {
			r.mu.Unlock()
			return nil, fmt.Errorf("ssh config for %s: %w", host, err)
		}
		c, err = NewClient(cfg)
		if err != nil {
			r.mu.Unlock()
			return nil, fmt.Errorf("ssh client for %s: %w", host, err)
		}
		r.clients[host.Name] = c
	}
	r.mu.Unlock()

	if err := c.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", host, err)
	}
	return c, nil
}
