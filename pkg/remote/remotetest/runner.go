// Package remotetest provides a scripted remote.Runner for tests.
package remotetest

import (
	"context"
	"strings"
	"sync"

	"github.com/openfroyo/acceptance/pkg/remote"
)

// Response is one scripted command outcome.
type Response struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

// Call records a command the runner received.
type Call struct {
	Host    string
	Command string
}

type rule struct {
	pattern   string
	responses []Response
	served    int
}

// Runner answers commands from scripted rules. A rule matches when its
// pattern is contained in the command; the first matching rule wins. Each
// rule serves its responses in order and keeps repeating the last one.
// Commands matching no rule succeed with empty output.
type Runner struct {
	mu    sync.Mutex
	rules []*rule
	calls []Call
	files map[string]string
}

// NewRunner creates an empty scripted runner.
func NewRunner() *Runner {
	return &Runner{files: make(map[string]string)}
}

// On registers responses for commands containing pattern.
func (r *Runner) On(pattern string, responses ...Response) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, &rule{pattern: pattern, responses: responses})
	return r
}

// Exit is shorthand for a response with only an exit code.
func Exit(code int) Response {
	return Response{ExitCode: code}
}

// Stdout is shorthand for a successful response printing out.
func Stdout(out string) Response {
	return Response{Stdout: out}
}

// Run implements remote.Runner.
func (r *Runner) Run(ctx context.Context, host remote.Host, cmd string, accept remote.ExitCodes) (remote.Result, error) {
	if err := ctx.Err(); err != nil {
		return remote.Result{}, err
	}

	r.mu.Lock()
	r.calls = append(r.calls, Call{Host: host.Name, Command: cmd})
	resp := r.next(cmd)
	r.mu.Unlock()

	res := remote.Result{
		Host:     host.Name,
		Command:  cmd,
		ExitCode: resp.ExitCode,
		Stdout:   resp.Stdout,
		Stderr:   resp.Stderr,
	}
	if resp.Err != nil {
		return res, resp.Err
	}
	return res, remote.Check(res, accept)
}

// WriteFile implements remote.Runner.
func (r *Runner) WriteFile(ctx context.Context, host remote.Host, path string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[host.Name+":"+path] = string(content)
	return nil
}

func (r *Runner) next(cmd string) Response {
	for _, rl := range r.rules {
		if !strings.Contains(cmd, rl.pattern) || len(rl.responses) == 0 {
			continue
		}
		idx := rl.served
		if idx >= len(rl.responses) {
			idx = len(rl.responses) - 1
		}
		rl.served++
		return rl.responses[idx]
	}
	return Response{}
}

// Calls returns every command received so far.
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Commands returns the commands received for host.
func (r *Runner) Commands(host string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, c := range r.calls {
		if c.Host == host {
			out = append(out, c.Command)
		}
	}
	return out
}

// Count returns how many received commands contained pattern.
func (r *Runner) Count(pattern string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if strings.Contains(c.Command, pattern) {
			n++
		}
	}
	return n
}

// File returns the content written to path on host.
func (r *Runner) File(host, path string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	content, ok := r.files[host+":"+path]
	return content, ok
}

// Files returns the paths written on host.
func (r *Runner) Files(host string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	prefix := host + ":"
	for k := range r.files {
		if strings.HasPrefix(k, prefix) {
			out = append(out, strings.TrimPrefix(k, prefix))
		}
	}
	return out
}
