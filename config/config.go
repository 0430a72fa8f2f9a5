// Copyright (c) 2024 Elisamuel Resto Donate <sam@samresto.dev>
// SPDX-License-Identifier: MIT

// Package config handles YAML configuration file parsing and validation
// for the resolver daemon: listener bind address, root hints, transport
// defaults, client-source ACL, and metrics/logging options.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Resolver ResolverConfig `yaml:"resolver"`
	ACLRule  ACLRuleSet     `yaml:"acl_rules"` // Inline ACL rules
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Bind           string `yaml:"bind"`
	Timeout        int    `yaml:"timeout"`
	AutoReload     bool   `yaml:"auto_reload"`     // Enable automatic root-hints/ACL file monitoring
	ReloadDebounce int    `yaml:"reload_debounce"` // Debounce time in seconds (default: 2)
}

// ResolverConfig points the resolver at its root and upstream transport
// defaults.
type ResolverConfig struct {
	RootHintsFile string `yaml:"root_hints_file"` // Path to the root-hints file
	ACLFile       string `yaml:"acl_file"`        // Path to an ACL file (alternative to ACLRule)
	Transport     string `yaml:"transport"`       // udp|tcp|tls|doh|unspecified|unspecified-encrypted|try-encrypted
}

// ACLRuleSet defines inline allow/deny rules for who may query this
// resolver.
type ACLRuleSet struct {
	Allow []string `yaml:"allow"`
	Deny  []string `yaml:"deny"`
}

type MetricsConfig struct {
	PrometheusEndpoint string `yaml:"prometheus_endpoint"`
	OTELEndpoint       string `yaml:"otel_endpoint"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// LoadConfig loads and parses a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Bind:           "0.0.0.0:53",
			Timeout:        5,
			AutoReload:     true,
			ReloadDebounce: 2,
		},
		Resolver: ResolverConfig{
			Transport: "tcp",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// Example returns a YAML example config.
func Example() string {
	return `# dnstk resolver daemon configuration

server:
  bind: "0.0.0.0:53"
  timeout: 5
  auto_reload: true        # Automatically reload root hints/ACL when files change
  reload_debounce: 2       # Wait 2 seconds before reloading (prevents rapid reloads)

resolver:
  root_hints_file: /etc/dnstk/root-hints.txt
  acl_file: /etc/dnstk/acl.txt
  transport: tcp           # transport used to query authorities during iterative resolution

# Alternative to resolver.acl_file: inline allow/deny rules
acl_rules:
  allow:
    - 192.168.0.0/16
    - 10.0.0.0/8
    - 127.0.0.1
  deny:
    - 203.0.113.0/24

metrics:
  prometheus_endpoint: "localhost:9090"
  otel_endpoint: "localhost:4318"

logging:
  level: "info"
`
}
