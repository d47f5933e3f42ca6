package ssh

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/openfroyo/acceptance/pkg/config"
	"github.com/openfroyo/acceptance/pkg/remote"
)

// AuthMethod represents the type of SSH authentication.
type AuthMethod string

const (
	// AuthMethodPassword uses password authentication
	AuthMethodPassword AuthMethod = "password"

	// AuthMethodKey uses private key authentication
	AuthMethodKey AuthMethod = "key"
)

// Config holds SSH connection configuration for one host.
type Config struct {
	// Host is the remote hostname or IP address
	Host string

	// Port is the SSH port (default: 22)
	Port int

	// User is the SSH username
	User string

	// AuthMethod specifies which authentication method to use
	AuthMethod AuthMethod

	// Password for password-based authentication
	Password string

	// PrivateKeyPath is the path to the private key file
	PrivateKeyPath string

	// PrivateKeyPassphrase is the passphrase for encrypted private keys
	PrivateKeyPassphrase string

	// KnownHostsPath is the path to the known_hosts file
	KnownHostsPath string

	// StrictHostKeyChecking rejects hosts missing from known_hosts
	StrictHostKeyChecking bool

	// ConnectionTimeout is the timeout for establishing a connection
	ConnectionTimeout time.Duration

	// Sudo runs every command through non-interactive sudo
	Sudo bool

	// ProxyHost is the hostname of a jump host (optional)
	ProxyHost string

	// ProxyPort is the port of the jump host
	ProxyPort int

	// ProxyUser is the username on the jump host
	ProxyUser string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(host string, user string) *Config {
	return &Config{
		Host:                  host,
		Port:                  22,
		User:                  user,
		AuthMethod:            AuthMethodKey,
		KnownHostsPath:        filepath.Join(os.Getenv("HOME"), ".ssh", "known_hosts"),
		StrictHostKeyChecking: true,
		ConnectionTimeout:     30 * time.Second,
		ProxyPort:             22,
	}
}

// ConfigFor builds the connection config of host from the options file SSH
// settings. Host fields override the shared settings. Passwords are read
// from the environment variable named by the settings, never from the file.
func ConfigFor(settings config.SSHSettings, host remote.Host, env config.LookupFunc) (*Config, error) {
	user := firstNonEmpty(host.User, settings.User, "root")
	c := DefaultConfig(host.Addr(), user)

	switch {
	case host.Port != 0:
		c.Port = host.Port
	case settings.Port != 0:
		c.Port = settings.Port
	}

	if settings.PasswordEnv != "" {
		password, ok := env(settings.PasswordEnv)
		if !ok || password == "" {
			return nil, fmt.Errorf("password environment variable %s is not set", settings.PasswordEnv)
		}
		c.AuthMethod = AuthMethodPassword
		c.Password = password
	}
	if settings.PrivateKey != "" {
		c.PrivateKeyPath = expandHome(settings.PrivateKey)
	}
	if settings.KnownHosts != "" {
		c.KnownHostsPath = expandHome(settings.KnownHosts)
	}
	if settings.StrictHostKeyChecking != nil {
		c.StrictHostKeyChecking = *settings.StrictHostKeyChecking
	}
	if settings.ConnectionTimeout > 0 {
		c.ConnectionTimeout = settings.ConnectionTimeout
	}
	c.Sudo = settings.Sudo

	if settings.JumpHost != "" {
		if err := c.setJumpHost(settings.JumpHost); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// setJumpHost parses [user@]host[:port].
func (c *Config) setJumpHost(target string) error {
	c.ProxyUser = c.User
	if at := strings.LastIndex(target, "@"); at >= 0 {
		c.ProxyUser = target[:at]
		target = target[at+1:]
	}

	c.ProxyHost = target
	if h, p, err := net.SplitHostPort(target); err == nil {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid jump host port %q", p)
		}
		c.ProxyHost = h
		c.ProxyPort = port
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.User == "" {
		return fmt.Errorf("user is required")
	}

	switch c.AuthMethod {
	case AuthMethodPassword:
		if c.Password == "" {
			return fmt.Errorf("password is required for password authentication")
		}
	case AuthMethodKey:
		if c.PrivateKeyPath == "" {
			homeDir := os.Getenv("HOME")
			defaultKeys := []string{
				filepath.Join(homeDir, ".ssh", "id_ed25519"),
				filepath.Join(homeDir, ".ssh", "id_rsa"),
				filepath.Join(homeDir, ".ssh", "id_ecdsa"),
			}
			for _, keyPath := range defaultKeys {
				if _, err := os.Stat(keyPath); err == nil {
					c.PrivateKeyPath = keyPath
					break
				}
			}
			if c.PrivateKeyPath == "" {
				return fmt.Errorf("private key path is required for key authentication and no default key found")
			}
		}
		if _, err := os.Stat(c.PrivateKeyPath); os.IsNotExist(err) {
			return fmt.Errorf("private key file not found: %s", c.PrivateKeyPath)
		}
	default:
		return fmt.Errorf("unsupported auth method: %s", c.AuthMethod)
	}

	if c.ConnectionTimeout <= 0 {
		return fmt.Errorf("connection timeout must be positive")
	}

	if c.ProxyHost != "" {
		if c.ProxyPort <= 0 || c.ProxyPort > 65535 {
			return fmt.Errorf("invalid proxy port: %d", c.ProxyPort)
		}
		if c.ProxyUser == "" {
			return fmt.Errorf("proxy user is required when proxy host is specified")
		}
	}

	return nil
}

// BuildSSHClientConfig creates an ssh.ClientConfig from the Config.
func (c *Config) BuildSSHClientConfig() (*ssh.ClientConfig, error) {
	var authMethods []ssh.AuthMethod

	switch c.AuthMethod {
	case AuthMethodPassword:
		authMethods = append(authMethods, ssh.Password(c.Password))

		// Many servers only offer the keyboard-interactive "Password:" prompt
		authMethods = append(authMethods, ssh.KeyboardInteractive(
			func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = c.Password
				}
				return answers, nil
			},
		))

	case AuthMethodKey:
		keyBytes, err := os.ReadFile(c.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}

		var signer ssh.Signer
		if c.PrivateKeyPassphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(keyBytes, []byte(c.PrivateKeyPassphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(keyBytes)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}

		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}

	var hostKeyCallback ssh.HostKeyCallback
	if c.KnownHostsPath != "" && c.StrictHostKeyChecking {
		var err error
		hostKeyCallback, err = knownhosts.New(c.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts: %w", err)
		}
	} else {
		// Acceptance hosts are usually freshly provisioned VMs
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	}

	return &ssh.ClientConfig{
		User:            c.User,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         c.ConnectionTimeout,
	}, nil
}

// Address returns the formatted SSH address (host:port).
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ProxyAddress returns the formatted jump host address (host:port).
func (c *Config) ProxyAddress() string {
	if c.ProxyHost == "" {
		return ""
	}
	return net.JoinHostPort(c.ProxyHost, strconv.Itoa(c.ProxyPort))
}

// IsProxyEnabled returns true if a jump host is configured.
func (c *Config) IsProxyEnabled() bool {
	return c.ProxyHost != ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(os.Getenv("HOME"), path[2:])
	}
	return path
}
