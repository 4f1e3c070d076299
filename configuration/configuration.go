// Package configuration loads the cluster's address book and per-
// instance configuration from YAML, and resolves inbound sender
// addresses back to role names.
package configuration

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	quorum "github.com/quorumlog/quorumd"
)

// AddressBook maps a role name ("president"/"master", "senator"/
// "worker", "proposer", "secretary") to its ordered set of endpoints.
type AddressBook map[string][]string

// Resolve returns the role name that addr is registered under, or
// "error" if addr is not discoverable in the book.
func (b AddressBook) Resolve(addr string) string {
	for role, addrs := range b {
		for _, a := range addrs {
			if a == addr {
				return role
			}
		}
	}
	return "error"
}

// Workers returns the configured worker endpoints, trying the "worker"
// key and falling back to the legacy "senator" key.
func (b AddressBook) Workers() []string {
	if w, ok := b["worker"]; ok {
		return w
	}
	return b["senator"]
}

// Masters returns the configured master endpoints, trying "master" and
// falling back to the legacy "president" key.
func (b AddressBook) Masters() []string {
	if m, ok := b["master"]; ok {
		return m
	}
	return b["president"]
}

// BackendKind distinguishes the two LogBackend implementations a config
// file can select: `log_backend: Heap | { File: "<path>" }`.
type BackendKind int

const (
	// Heap selects logbackend.HeapBackend.
	Heap BackendKind = iota
	// File selects logbackend.FileBackend, with Path set.
	File
)

// LogBackendSpec is the resolved (kind, path) pair decoded from the
// config file's log_backend field.
type LogBackendSpec struct {
	Kind BackendKind
	Path string
}

// UnmarshalYAML accepts either the bare scalar "Heap" or a one-key
// mapping {File: "<path>"}.
func (s *LogBackendSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		if value.Value != "Heap" {
			return fmt.Errorf("configuration: unknown log_backend scalar %q", value.Value)
		}
		*s = LogBackendSpec{Kind: Heap}
		return nil
	}
	if value.Kind == yaml.MappingNode {
		var m map[string]string
		if err := value.Decode(&m); err != nil {
			return fmt.Errorf("configuration: decode log_backend mapping: %w", err)
		}
		path, ok := m["File"]
		if !ok {
			return fmt.Errorf("configuration: log_backend mapping must have a File key")
		}
		*s = LogBackendSpec{Kind: File, Path: path}
		return nil
	}
	return fmt.Errorf("configuration: log_backend must be a scalar or a mapping")
}

// Config is one instance's resolved configuration.
type Config struct {
	API         string         `yaml:"api"`
	Address     string         `yaml:"address"`
	AddressBook AddressBook    `yaml:"address_book"`
	LogBackend  LogBackendSpec `yaml:"log_backend"`
}

// Default returns the configuration used when no --config flag is
// given: admin HTTP on 127.0.0.1:8000, UDP on 127.0.0.1:18000, empty
// address book, Heap log backend.
func Default() Config {
	return Config{
		API:         quorum.DefaultAdminAddr,
		Address:     quorum.DefaultNodeAddr,
		AddressBook: AddressBook{},
		LogBackend:  LogBackendSpec{Kind: Heap},
	}
}

// file is the top-level YAML document: a mapping from instance name to
// Config.
type file map[string]rawConfig

// rawConfig mirrors Config but lets us apply defaults after decode,
// since a partially-specified YAML entry should still get
// DefaultAdminAddr for an omitted `api`.
type rawConfig struct {
	API         *string         `yaml:"api"`
	Address     string          `yaml:"address"`
	AddressBook AddressBook     `yaml:"address_book"`
	LogBackend  *LogBackendSpec `yaml:"log_backend"`
}

func (r rawConfig) resolve() Config {
	c := Config{
		Address:     r.Address,
		AddressBook: r.AddressBook,
		LogBackend:  LogBackendSpec{Kind: Heap},
	}
	if r.API != nil {
		c.API = *r.API
	} else {
		c.API = quorum.DefaultAdminAddr
	}
	if r.LogBackend != nil {
		c.LogBackend = *r.LogBackend
	}
	if c.AddressBook == nil {
		c.AddressBook = AddressBook{}
	}
	return c
}

// Load reads path and returns the Config registered under name. The
// quorumd CLI passes the NAME argument as name, or "master" for a
// `master` role started without one.
func Load(path, name string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("configuration: read %q: %w", path, err)
	}
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Config{}, fmt.Errorf("configuration: parse %q: %w", path, err)
	}
	rc, ok := f[name]
	if !ok {
		return Config{}, fmt.Errorf("configuration: instance %q not found in %q", name, path)
	}
	return rc.resolve(), nil
}
