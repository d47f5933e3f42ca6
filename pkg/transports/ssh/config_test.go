package ssh

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/openfroyo/acceptance/pkg/config"
	"github.com/openfroyo/acceptance/pkg/remote"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig("example.com", "testuser")

	assert.Equal(t, "example.com", c.Host)
	assert.Equal(t, "testuser", c.User)
	assert.Equal(t, 22, c.Port)
	assert.Equal(t, AuthMethodKey, c.AuthMethod)
	assert.Equal(t, 30*time.Second, c.ConnectionTimeout)
	assert.True(t, c.StrictHostKeyChecking)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name       string
		modifyFunc func(*Config)
		errorMsg   string
	}{
		{
			name: "valid config",
			modifyFunc: func(c *Config) {
				c.AuthMethod = AuthMethodPassword
				c.Password = "secret"
			},
		},
		{
			name:       "missing host",
			modifyFunc: func(c *Config) { c.Host = "" },
			errorMsg:   "host is required",
		},
		{
			name:       "invalid port",
			modifyFunc: func(c *Config) { c.Port = 0 },
			errorMsg:   "invalid port",
		},
		{
			name:       "missing user",
			modifyFunc: func(c *Config) { c.User = "" },
			errorMsg:   "user is required",
		},
		{
			name: "password auth without password",
			modifyFunc: func(c *Config) {
				c.AuthMethod = AuthMethodPassword
				c.Password = ""
			},
			errorMsg: "password is required",
		},
		{
			name: "key auth with missing key file",
			modifyFunc: func(c *Config) {
				c.AuthMethod = AuthMethodKey
				c.PrivateKeyPath = "/nonexistent/key"
			},
			errorMsg: "private key file not found",
		},
		{
			name: "invalid connection timeout",
			modifyFunc: func(c *Config) {
				c.AuthMethod = AuthMethodPassword
				c.Password = "secret"
				c.ConnectionTimeout = 0
			},
			errorMsg: "connection timeout must be positive",
		},
		{
			name: "proxy with missing user",
			modifyFunc: func(c *Config) {
				c.AuthMethod = AuthMethodPassword
				c.Password = "secret"
				c.ProxyHost = "proxy.example.com"
				c.ProxyUser = ""
			},
			errorMsg: "proxy user is required",
		},
		{
			name:       "unsupported auth method",
			modifyFunc: func(c *Config) { c.AuthMethod = "agent" },
			errorMsg:   "unsupported auth method",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig("example.com", "testuser")
			tt.modifyFunc(c)

			err := c.Validate()
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestConfigAddresses(t *testing.T) {
	c := DefaultConfig("example.com", "testuser")
	c.Port = 2222
	assert.Equal(t, "example.com:2222", c.Address())

	assert.False(t, c.IsProxyEnabled())
	assert.Equal(t, "", c.ProxyAddress())

	c.ProxyHost = "proxy.example.com"
	c.ProxyPort = 2200
	assert.True(t, c.IsProxyEnabled())
	assert.Equal(t, "proxy.example.com:2200", c.ProxyAddress())

	c = DefaultConfig("::1", "u")
	assert.Equal(t, "[::1]:22", c.Address())
}

func TestConfigFor(t *testing.T) {
	strict := false
	settings := config.SSHSettings{
		User:                  "deploy",
		Port:                  2022,
		PasswordEnv:           "ACCEPT_SSH_PASSWORD",
		StrictHostKeyChecking: &strict,
		Sudo:                  true,
		ConnectionTimeout:     10 * time.Second,
		JumpHost:              "jump@bastion.example.com:2200",
	}
	env := func(key string) (string, bool) {
		if key == "ACCEPT_SSH_PASSWORD" {
			return "hunter2", true
		}
		return "", false
	}

	c, err := ConfigFor(settings, remote.Host{Name: "db1", Address: "10.0.0.5"}, env)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5", c.Host)
	assert.Equal(t, 2022, c.Port)
	assert.Equal(t, "deploy", c.User)
	assert.Equal(t, AuthMethodPassword, c.AuthMethod)
	assert.Equal(t, "hunter2", c.Password)
	assert.False(t, c.StrictHostKeyChecking)
	assert.True(t, c.Sudo)
	assert.Equal(t, 10*time.Second, c.ConnectionTimeout)
	assert.Equal(t, "bastion.example.com", c.ProxyHost)
	assert.Equal(t, 2200, c.ProxyPort)
	assert.Equal(t, "jump", c.ProxyUser)

	c, err = ConfigFor(settings, remote.Host{Name: "db2", User: "admin", Port: 22}, env)
	require.NoError(t, err)
	assert.Equal(t, "db2", c.Host)
	assert.Equal(t, 22, c.Port)
	assert.Equal(t, "admin", c.User)
}

func TestConfigForMissingPassword(t *testing.T) {
	settings := config.SSHSettings{PasswordEnv: "UNSET_PASSWORD"}
	_, err := ConfigFor(settings, remote.Host{Name: "db1"}, func(string) (string, bool) { return "", false })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNSET_PASSWORD")
}

func TestConfigForJumpHostDefaults(t *testing.T) {
	c, err := ConfigFor(config.SSHSettings{User: "ops", JumpHost: "bastion"}, remote.Host{Name: "db1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "bastion", c.ProxyHost)
	assert.Equal(t, 22, c.ProxyPort)
	assert.Equal(t, "ops", c.ProxyUser)
}

func TestBuildSSHClientConfig(t *testing.T) {
	t.Run("password authentication", func(t *testing.T) {
		c := DefaultConfig("example.com", "testuser")
		c.AuthMethod = AuthMethodPassword
		c.Password = "secret"
		c.StrictHostKeyChecking = false

		clientConfig, err := c.BuildSSHClientConfig()
		require.NoError(t, err)
		assert.Equal(t, "testuser", clientConfig.User)
		assert.Len(t, clientConfig.Auth, 2, "password and keyboard-interactive")
		assert.Equal(t, 30*time.Second, clientConfig.Timeout)
	})

	t.Run("key authentication with valid key", func(t *testing.T) {
		keyPath := writeTestKey(t)

		c := DefaultConfig("example.com", "testuser")
		c.PrivateKeyPath = keyPath
		c.StrictHostKeyChecking = false

		clientConfig, err := c.BuildSSHClientConfig()
		require.NoError(t, err)
		assert.Len(t, clientConfig.Auth, 1)
	})

	t.Run("missing known_hosts with strict checking", func(t *testing.T) {
		c := DefaultConfig("example.com", "testuser")
		c.AuthMethod = AuthMethodPassword
		c.Password = "secret"
		c.KnownHostsPath = filepath.Join(t.TempDir(), "known_hosts")

		_, err := c.BuildSSHClientConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "known_hosts")
	})
}

// writeTestKey writes a fresh ED25519 private key and returns its path.
func writeTestKey(t *testing.T) string {
	t.Helper()

	_, privKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	pemBlock, err := ssh.MarshalPrivateKey(privKey, "")
	require.NoError(t, err)

	keyPath := filepath.Join(t.TempDir(), "test_key")
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(pemBlock), 0600))
	return keyPath
}
