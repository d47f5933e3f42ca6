package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
)

// ExecResult represents the result of a command execution.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Execute runs cmd and reports its exit code. A non-zero exit is a result,
// not an error; errors mean the command could not be run or its status was
// lost.
func (c *Client) Execute(ctx context.Context, cmd string) (ExecResult, error) {
	startTime := time.Now()

	finalCmd := cmd
	if c.config.Sudo {
		finalCmd = sudo(cmd)
	}

	log.Debug().
		Str("host", c.config.Host).
		Str("command", cmd).
		Bool("sudo", c.config.Sudo).
		Msg("executing command")

	sshClient, err := c.getClient()
	if err != nil {
		return ExecResult{}, err
	}

	session, err := sshClient.NewSession()
	if err != nil {
		return ExecResult{}, &TransportError{
			Op:          "execute",
			Err:         fmt.Errorf("failed to create session: %w", err),
			IsTemporary: true,
		}
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	doneChan := make(chan error, 1)
	go func() {
		doneChan <- session.Run(finalCmd)
	}()

	var execErr error
	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGTERM)
		time.Sleep(100 * time.Millisecond)
		_ = session.Signal(ssh.SIGKILL)
		execErr = ctx.Err()
	case execErr = <-doneChan:
	}

	result := ExecResult{
		Stdout:   strings.TrimSpace(stdoutBuf.String()),
		Stderr:   strings.TrimSpace(stderrBuf.String()),
		Duration: time.Since(startTime),
	}

	var exitErr *ssh.ExitError
	switch {
	case execErr == nil:
	case errors.As(execErr, &exitErr):
		result.ExitCode = exitErr.ExitStatus()
		execErr = nil
	case errors.Is(execErr, context.Canceled), errors.Is(execErr, context.DeadlineExceeded):
		return result, execErr
	default:
		return result, &TransportError{Op: "execute", Err: execErr, IsTemporary: true}
	}

	log.Debug().
		Str("host", c.config.Host).
		Str("command", cmd).
		Int("exit_code", result.ExitCode).
		Int("stdout_len", len(result.Stdout)).
		Int("stderr_len", len(result.Stderr)).
		Dur("duration", result.Duration).
		Msg("command completed")

	return result, nil
}

// sudo wraps cmd so that the whole shell line, pipes and redirections
// included, runs as root without prompting.
func sudo(cmd string) string {
	return "sudo -n sh -c " + shellQuote(cmd)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
