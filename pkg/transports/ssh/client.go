// Package ssh runs acceptance commands on target hosts over SSH and ships
// files to them over SFTP.
package ssh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
)

// Client is one SSH connection to one host.
type Client struct {
	config *Config

	mu          sync.RWMutex
	client      *ssh.Client
	proxy       *ssh.Client
	connectedAt time.Time
}

// NewClient creates a client for config. It does not connect.
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Client{config: config}, nil
}

// Connect establishes the SSH connection, directly or through the jump host.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	clientConfig, err := c.config.BuildSSHClientConfig()
	if err != nil {
		return &TransportError{Op: "connect", Err: err, IsAuthError: true}
	}

	if c.config.IsProxyEnabled() {
		return c.connectViaProxy(ctx, clientConfig)
	}
	return c.connectDirect(ctx, clientConfig)
}

func (c *Client) connectDirect(ctx context.Context, clientConfig *ssh.ClientConfig) error {
	address := c.config.Address()
	log.Debug().Str("address", address).Msg("establishing SSH connection")

	client, err := dialContext(ctx, address, clientConfig)
	if err != nil {
		return &TransportError{Op: "connect", Err: err, IsTemporary: true}
	}

	c.client = client
	c.connectedAt = time.Now()
	log.Info().Str("address", address).Msg("SSH connection established")
	return nil
}

func (c *Client) connectViaProxy(ctx context.Context, targetConfig *ssh.ClientConfig) error {
	proxyConfig := *c.config
	proxyConfig.Host = c.config.ProxyHost
	proxyConfig.Port = c.config.ProxyPort
	proxyConfig.User = c.config.ProxyUser

	proxyClientConfig, err := proxyConfig.BuildSSHClientConfig()
	if err != nil {
		return &TransportError{Op: "connect-proxy", Err: err, IsAuthError: true}
	}

	log.Debug().Str("proxy", proxyConfig.Address()).Msg("connecting to jump host")
	proxyClient, err := dialContext(ctx, proxyConfig.Address(), proxyClientConfig)
	if err != nil {
		return &TransportError{Op: "connect-proxy", Err: err, IsTemporary: true}
	}

	targetAddress := c.config.Address()
	proxyConn, err := proxyClient.Dial("tcp", targetAddress)
	if err != nil {
		_ = proxyClient.Close()
		return &TransportError{Op: "connect-via-proxy", Err: err, IsTemporary: true}
	}

	ncc, chans, reqs, err := ssh.NewClientConn(proxyConn, targetAddress, targetConfig)
	if err != nil {
		_ = proxyConn.Close()
		_ = proxyClient.Close()
		return &TransportError{Op: "connect-via-proxy", Err: err, IsTemporary: true, IsAuthError: true}
	}

	c.client = ssh.NewClient(ncc, chans, reqs)
	c.proxy = proxyClient
	c.connectedAt = time.Now()
	log.Info().Str("target", targetAddress).Str("proxy", proxyConfig.Address()).Msg("SSH connection established via jump host")
	return nil
}

// dialContext dials address, giving up when ctx is done.
func dialContext(ctx context.Context, address string, clientConfig *ssh.ClientConfig) (*ssh.Client, error) {
	type dialResult struct {
		client *ssh.Client
		err    error
	}
	done := make(chan dialResult, 1)

	go func() {
		client, err := ssh.Dial("tcp", address, clientConfig)
		done <- dialResult{client: client, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-done; r.client != nil {
				_ = r.client.Close()
			}
		}()
		return nil, ctx.Err()
	case r := <-done:
		return r.client, r.err
	}
}

// Close closes the connection and the jump host connection, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return nil
	}

	log.Debug().Str("host", c.config.Host).Msg("closing SSH connection")
	err := c.client.Close()
	c.client = nil
	if c.proxy != nil {
		_ = c.proxy.Close()
		c.proxy = nil
	}

	if err != nil {
		return &TransportError{Op: "disconnect", Err: err}
	}
	return nil
}

// IsConnected returns true if the client has an open connection.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client != nil
}

// getClient returns the underlying SSH client.
func (c *Client) getClient() (*ssh.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.client == nil {
		return nil, &TransportError{Op: "get-client", Err: fmt.Errorf("not connected")}
	}
	return c.client, nil
}

// TransportError represents an error from the transport layer.
type TransportError struct {
	// Op is the operation that failed (e.g., "connect", "execute", "write")
	Op string

	// Err is the underlying error
	Err error

	// IsTemporary indicates if the error is temporary and can be retried
	IsTemporary bool

	// IsAuthError indicates if the error is related to authentication
	IsAuthError bool
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Temporary() bool {
	return e.IsTemporary
}
