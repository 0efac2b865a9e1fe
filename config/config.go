// Package config builds discovery plans from a YAML plan file, environment
// variables and command-line flags.
//
// # Configuration Sources
//
// In order of precedence:
// 1. Command-line flags
// 2. Environment variables (PRINTER_*)
// 3. Plan file (YAML)
// 4. Defaults
//
// When the plan file has no plan entries (or there is no file), a plan is
// built from PRINTER_IP, PRINTER_HOSTNAME, PRINTER_MAC and PRINTER_SUBNET, tried
// in that order.
//
// # Example Plan File
//
//	port: 9100
//	timeout: 1s
//	workers: 32
//	nameserver: 192.168.1.1
//
//	plan:
//	  - label: configured-ip
//	    address: 192.168.1.50
//	  - label: dns
//	    hostname: receipt-printer.lan
//	  - label: arp
//	    mac: 00:11:62:aa:bb:cc
//	  - label: spares
//	    hosts: [192.168.1.60, 192.168.1.61]
//	    timeout: 300ms
//	  - label: sweep
//	    sweep:
//	      subnet: 192.168.1
//	      start: 1
//	      end: 254
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/liamg/printfind/fallback"
	"github.com/liamg/printfind/resolve"
	"github.com/liamg/printfind/scan"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "PRINTER"

// Viper keys. Environment variables are EnvPrefix + "_" + upper-cased key.
const (
	KeyConfig     = "config"
	KeyIP         = "ip"
	KeyHostname   = "hostname"
	KeyMAC        = "mac"
	KeySubnet     = "subnet"
	KeySweepStart = "sweep_start"
	KeySweepEnd   = "sweep_end"
	KeyPort       = "port"
	KeyTimeoutMS  = "timeout_ms"
	KeyWorkers    = "workers"
	KeyNameserver = "nameserver"
	KeyRateLimit  = "rate_limit"
)

// Config is the complete discovery configuration.
type Config struct {
	Port       int           `yaml:"port"`
	Timeout    time.Duration `yaml:"timeout"`
	Workers    int           `yaml:"workers"`
	Nameserver string        `yaml:"nameserver,omitempty"`
	RateLimit  float64       `yaml:"rate_limit,omitempty"` // probes per second, 0 for unlimited
	Plan       []EntryConfig `yaml:"plan"`
}

// EntryConfig is one plan entry. Exactly one of Address, Hostname, MAC, Hosts
// or Sweep must be set.
type EntryConfig struct {
	Label    string        `yaml:"label"`
	Address  string        `yaml:"address,omitempty"`
	Hostname string        `yaml:"hostname,omitempty"`
	MAC      string        `yaml:"mac,omitempty"`
	Hosts    []string      `yaml:"hosts,omitempty"`
	Sweep    *SweepConfig  `yaml:"sweep,omitempty"`
	Port     int           `yaml:"port,omitempty"`    // defaults to Config.Port
	Timeout  time.Duration `yaml:"timeout,omitempty"` // defaults to Config.Timeout
}

type SweepConfig struct {
	Subnet string `yaml:"subnet"`
	Start  int    `yaml:"start"`
	End    int    `yaml:"end"`
}

// DefaultConfig returns a config with sensible defaults and an empty plan.
func DefaultConfig() *Config {
	return &Config{
		Port:    scan.DefaultPort,
		Timeout: time.Second,
		Workers: 32,
	}
}

// NewViper returns a viper instance reading PRINTER_* environment variables.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// LoadSettings reads the plan file named by the "config" key, if any, and
// applies environment and flag overrides. The plan is not built or checked.
func LoadSettings(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if path := v.GetString(KeyConfig); path != "" {
		loaded, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	cfg.ApplyOverrides(v)
	return cfg, nil
}

// Load is LoadSettings followed by falling back to an environment plan and
// validating the result.
func Load(v *viper.Viper) (*Config, error) {
	cfg, err := LoadSettings(v)
	if err != nil {
		return nil, err
	}

	if len(cfg.Plan) == 0 {
		cfg.Plan = EnvironmentPlan(v)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyOverrides copies explicitly set environment variables and flags over
// the loaded values.
func (c *Config) ApplyOverrides(v *viper.Viper) {
	if v.IsSet(KeyPort) {
		c.Port = v.GetInt(KeyPort)
	}
	if v.IsSet(KeyTimeoutMS) {
		c.Timeout = time.Duration(v.GetInt(KeyTimeoutMS)) * time.Millisecond
	}
	if v.IsSet(KeyWorkers) {
		c.Workers = v.GetInt(KeyWorkers)
	}
	if v.IsSet(KeyNameserver) {
		c.Nameserver = v.GetString(KeyNameserver)
	}
	if v.IsSet(KeyRateLimit) {
		c.RateLimit = v.GetFloat64(KeyRateLimit)
	}
}

// EnvironmentPlan builds the default strategy order from individual settings:
// explicit IP, hostname, hardware address, then a subnet sweep.
func EnvironmentPlan(v *viper.Viper) []EntryConfig {
	plan := []EntryConfig{}

	if ip := v.GetString(KeyIP); ip != "" {
		plan = append(plan, EntryConfig{Label: "ip", Address: ip})
	}
	if hostname := v.GetString(KeyHostname); hostname != "" {
		plan = append(plan, EntryConfig{Label: "hostname", Hostname: hostname})
	}
	if mac := v.GetString(KeyMAC); mac != "" {
		plan = append(plan, EntryConfig{Label: "mac", MAC: mac})
	}
	if subnet := v.GetString(KeySubnet); subnet != "" {
		sweep := &SweepConfig{Subnet: subnet, Start: 1, End: 254}
		if v.IsSet(KeySweepStart) {
			sweep.Start = v.GetInt(KeySweepStart)
		}
		if v.IsSet(KeySweepEnd) {
			sweep.End = v.GetInt(KeySweepEnd)
		}
		plan = append(plan, EntryConfig{Label: "sweep", Sweep: sweep})
	}

	return plan
}

// Validate checks the settings and that every entry converts to a plan entry.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if len(c.Plan) == 0 {
		return fmt.Errorf("no discovery methods configured: set a plan file or %s_IP, %s_HOSTNAME, %s_MAC or %s_SUBNET", EnvPrefix, EnvPrefix, EnvPrefix, EnvPrefix)
	}
	_, err := c.FallbackPlan()
	return err
}

// FallbackPlan converts the configured entries into a fallback.Plan.
func (c *Config) FallbackPlan() (fallback.Plan, error) {
	plan := make(fallback.Plan, 0, len(c.Plan))
	for i, entry := range c.Plan {
		converted, err := c.convert(entry)
		if err != nil {
			return nil, fmt.Errorf("plan entry %d: %w", i+1, err)
		}
		plan = append(plan, converted)
	}
	return plan, plan.Validate()
}

// Resolver builds a resolver honouring the configured nameserver.
func (c *Config) Resolver() *resolve.Resolver {
	r := resolve.NewResolver()
	if c.Nameserver != "" {
		r.Hosts = resolve.NewNameserverLookup(c.Nameserver)
	}
	return r
}

// ScanOptions returns the scanner options implied by the config.
func (c *Config) ScanOptions() []scan.Option {
	return []scan.Option{
		scan.WithRateLimit(c.RateLimit),
	}
}

func (c *Config) convert(entry EntryConfig) (fallback.Entry, error) {

	port := entry.Port
	if port == 0 {
		port = c.Port
	}

	timeout := entry.Timeout
	if timeout == 0 {
		timeout = c.Timeout
	}

	converted := fallback.Entry{
		Label:   entry.Label,
		Port:    port,
		Timeout: timeout,
	}

	set := 0
	for _, isSet := range []bool{entry.Address != "", entry.Hostname != "", entry.MAC != "", len(entry.Hosts) > 0, entry.Sweep != nil} {
		if isSet {
			set++
		}
	}
	if set != 1 {
		return converted, fmt.Errorf("entry '%s' must set exactly one of address, hostname, mac, hosts or sweep", entry.Label)
	}

	switch {
	case entry.Address != "":
		if !resolve.IsIPv4Literal(entry.Address) {
			return converted, fmt.Errorf("entry '%s': %w: '%s'", entry.Label, resolve.ErrInvalidAddress, entry.Address)
		}
		ep, err := scan.NewEndpoint(entry.Address, port)
		if err != nil {
			return converted, fmt.Errorf("entry '%s': %w", entry.Label, err)
		}
		converted.Spec = scan.Single(ep)
		if converted.Label == "" {
			converted.Label = "ip"
		}
	case entry.Hostname != "":
		lookup := resolve.Hostname(entry.Hostname)
		converted.Lookup = &lookup
		if converted.Label == "" {
			converted.Label = "hostname"
		}
	case entry.MAC != "":
		lookup := resolve.HardwareAddress(entry.MAC)
		converted.Lookup = &lookup
		if converted.Label == "" {
			converted.Label = "mac"
		}
	case len(entry.Hosts) > 0:
		candidates := make([]scan.Endpoint, 0, len(entry.Hosts))
		for _, host := range entry.Hosts {
			ep, err := scan.NewEndpoint(strings.TrimSpace(host), port)
			if err != nil {
				return converted, fmt.Errorf("entry '%s': %w", entry.Label, err)
			}
			candidates = append(candidates, ep)
		}
		converted.Spec = scan.ExplicitList(candidates...)
		if converted.Label == "" {
			converted.Label = "hosts"
		}
	case entry.Sweep != nil:
		spec, err := scan.Sweep(entry.Sweep.Subnet, entry.Sweep.Start, entry.Sweep.End, port)
		if err != nil {
			return converted, fmt.Errorf("entry '%s': %w", entry.Label, err)
		}
		converted.Spec = spec
		if converted.Label == "" {
			converted.Label = "sweep"
		}
	}

	return converted, nil
}
