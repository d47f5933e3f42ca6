package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openfroyo/acceptance/pkg/remote"
)

// SSHSettings holds the transport settings of an options file.
type SSHSettings struct {
	User                  string        `yaml:"user,omitempty"`
	Port                  int           `yaml:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	PrivateKey            string        `yaml:"private_key,omitempty"`
	PasswordEnv           string        `yaml:"password_env,omitempty"`
	KnownHosts            string        `yaml:"known_hosts,omitempty"`
	StrictHostKeyChecking *bool         `yaml:"strict_host_key_checking,omitempty"`
	Sudo                  bool          `yaml:"sudo,omitempty"`
	ConnectionTimeout     time.Duration `yaml:"connection_timeout,omitempty"`
	JumpHost              string        `yaml:"jump_host,omitempty"`
}

// File is the on-disk options file.
type File struct {
	// Options are explicit option values keyed by option name
	Options map[string]interface{} `yaml:"options,omitempty"`

	// SSH configures the transport
	SSH SSHSettings `yaml:"ssh,omitempty"`

	// Hosts is the inventory of target hosts
	Hosts []remote.Host `yaml:"hosts,omitempty" validate:"dive"`
}

// LoadFile reads and validates an options file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read options file: %w", err)
	}
	return ParseFile(data)
}

// ParseFile decodes options file content.
func ParseFile(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse options file: %w", err)
	}

	for name := range f.Options {
		if _, ok := Lookup(name); !ok {
			return nil, fmt.Errorf("unknown option %q in options file", name)
		}
	}

	if err := validate.Struct(&f); err != nil {
		return nil, fmt.Errorf("options file failed validation: %w", err)
	}

	return &f, nil
}

// Explicit returns the file's options as explicit values for Load.
func (f *File) Explicit() map[string]string {
	out := make(map[string]string, len(f.Options))
	for k, v := range f.Options {
		if v == nil {
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}
