// Package config loads the machine inventory used by minerctl.
//
// A config file is YAML:
//
//	timeout: 10s
//	poll_interval: 5s
//	machines:
//	  - name: rack1
//	    host: 10.0.0.10
//	    port: 4028
//	    password: admin
//
// Durations take Go duration strings or a plain number of seconds. An
// empty password is filled from the WHATSMINER_PASSWORD environment
// variable.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/whatsminer-go/whatsminer/pkg/client"
)

// PasswordEnv names the environment variable holding the default password.
const PasswordEnv = "WHATSMINER_PASSWORD"

// Defaults.
const (
	DefaultTimeout      = 10 * time.Second
	DefaultPollInterval = 5 * time.Second
)

// Validation errors.
var (
	ErrNoMachines     = errors.New("no machines configured")
	ErrMissingHost    = errors.New("machine host is required")
	ErrDuplicateName  = errors.New("duplicate machine name")
	ErrInvalidPort    = errors.New("machine port out of range")
	ErrNegativeTiming = errors.New("duration must not be negative")
)

// Duration is a time.Duration that unmarshals from "10s" or from a number
// of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	if secs, err := strconv.ParseFloat(node.Value, 64); err == nil {
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	v, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Machine is one configured device.
type Machine struct {
	Name     string `yaml:"name"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// Address returns host:port.
func (m Machine) Address() string {
	return net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
}

// Client returns the client.Machine for m.
func (m Machine) Client() client.Machine {
	return client.Machine{Host: m.Host, Port: m.Port, Password: m.Password}
}

// Config is the file content.
type Config struct {
	Timeout      Duration  `yaml:"timeout,omitempty"`
	PollInterval Duration  `yaml:"poll_interval,omitempty"`
	Machines     []Machine `yaml:"machines"`
}

// LoadError reports a config file that could not be loaded.
type LoadError struct {
	File    string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.File != "" {
		msg = e.File + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Parse decodes data, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
	}
	cfg.ApplyDefaults(os.Getenv(PasswordEnv))
	if err := cfg.Validate(); err != nil {
		return nil, &LoadError{Message: "invalid config", Cause: err}
	}
	return &cfg, nil
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}
	cfg, err := Parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
		}
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset timings, ports, names and passwords.
func (c *Config) ApplyDefaults(password string) {
	if c.Timeout == 0 {
		c.Timeout = Duration(DefaultTimeout)
	}
	if c.PollInterval == 0 {
		c.PollInterval = Duration(DefaultPollInterval)
	}
	for i := range c.Machines {
		m := &c.Machines[i]
		if m.Port == 0 {
			m.Port = client.DefaultPort
		}
		if m.Password == "" {
			m.Password = password
		}
		if m.Name == "" {
			m.Name = m.Host
		}
	}
}

// Validate checks the config for errors.
func (c *Config) Validate() error {
	if c.Timeout < 0 || c.PollInterval < 0 {
		return ErrNegativeTiming
	}
	if len(c.Machines) == 0 {
		return ErrNoMachines
	}
	seen := make(map[string]bool, len(c.Machines))
	for i, m := range c.Machines {
		if m.Host == "" {
			return fmt.Errorf("machine %d: %w", i, ErrMissingHost)
		}
		if m.Port < 1 || m.Port > 65535 {
			return fmt.Errorf("machine %q: %w: %d", m.Name, ErrInvalidPort, m.Port)
		}
		if seen[m.Name] {
			return fmt.Errorf("%w: %q", ErrDuplicateName, m.Name)
		}
		seen[m.Name] = true
	}
	return nil
}

// Machine returns the machine named name.
func (c *Config) Machine(name string) (Machine, bool) {
	for _, m := range c.Machines {
		if m.Name == name {
			return m, true
		}
	}
	return Machine{}, false
}
