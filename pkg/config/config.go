package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPollInterval is how often cmd/genpd-agent re-evaluates devices
// when the config file does not set pollInterval.
const DefaultPollInterval = 10 * time.Second

// DeviceConfig describes one device bound to a domain: its identity, the
// domain it attaches to, and the knobs that drive its ops-table wiring.
type DeviceConfig struct {
	Name        string `yaml:"name"`
	Domain      string `yaml:"domain"`
	WOLMacAddr  string `yaml:"wolMacAddr,omitempty"`
	NodeName    string `yaml:"nodeName,omitempty"`
	IRQSafe     bool   `yaml:"irqSafe,omitempty"`
	CanWakeup   bool   `yaml:"canWakeup,omitempty"`
	LoadAgentIP string `yaml:"loadAgentIP,omitempty"`
}

// DomainConfig describes one power domain and, optionally, its master (the
// domain that must stay powered for this one to be usable).
type DomainConfig struct {
	Name         string `yaml:"name"`
	Master       string `yaml:"master,omitempty"`
	InitiallyOff bool   `yaml:"initiallyOff,omitempty"`
	PowerOnMode  string `yaml:"powerOnMode"`  // "disabled", "wol"
	PowerOffMode string `yaml:"powerOffMode"` // "disabled", "http"
}

// WolAgentConfig configures the Wake-on-LAN companion process's discovery.
type WolAgentConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	Namespace string `yaml:"namespace"`
	PodLabel  string `yaml:"podLabel"`
}

// ShutdownManagerConfig configures the HTTP shutdown companion process's
// discovery.
type ShutdownManagerConfig struct {
	Port      int    `yaml:"port"`
	Namespace string `yaml:"namespace"`
	PodLabel  string `yaml:"podLabel"`
}

// LoadAverageGovernorConfig configures the threshold-based Governor backed
// by per-device load-average sampling.
type LoadAverageGovernorConfig struct {
	Enabled        bool    `yaml:"enabled"`
	SuspendBelow   float64 `yaml:"suspendBelow"`
	ResumeAbove    float64 `yaml:"resumeAbove"`
	PodLabel       string  `yaml:"podLabel"`
	Namespace      string  `yaml:"namespace"`
	Port           int     `yaml:"port"`
	TimeoutSeconds int     `yaml:"timeoutSeconds"`
	ClusterEval    string  `yaml:"clusterEval,omitempty"` // "average", "median", "p90", "p75"
}

// MinActiveGovernorConfig configures the governor that refuses to power a
// domain down below a floor of simultaneously active devices.
type MinActiveGovernorConfig struct {
	MinActive int `yaml:"minActive"`
}

// Config is the genpd-agent topology and policy file.
type Config struct {
	LogLevel string `yaml:"logLevel"`

	PollInterval time.Duration `yaml:"pollInterval"`
	Cooldown     time.Duration `yaml:"cooldown"`
	BootCooldown time.Duration `yaml:"bootCooldown"`

	DryRun bool `yaml:"dryRun"`

	Domains []DomainConfig `yaml:"domains"`
	Devices []DeviceConfig `yaml:"devices"`

	WolAgent        WolAgentConfig            `yaml:"wolAgent"`
	ShutdownManager ShutdownManagerConfig     `yaml:"shutdownManager"`
	LoadAverage     LoadAverageGovernorConfig `yaml:"loadAverageGovernor"`
	MinActive       MinActiveGovernorConfig   `yaml:"minActiveGovernor"`

	WOLBroadcastAddr  string `yaml:"wolBroadcastAddr"`
	WOLBootTimeoutSec int    `yaml:"wolBootTimeoutSeconds"`

	DeferredWorkers int `yaml:"deferredWorkers"`

	MACDiscoveryInterval time.Duration `yaml:"macDiscoveryIntervalMin"`
}

// Load reads and validates a Config from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}

	if err := cfg.ApplyDefaultsAndValidate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// ApplyDefaultsAndValidate fills in zero-valued fields with defaults and
// rejects configs that cannot be made sense of.
func (cfg *Config) ApplyDefaultsAndValidate() error {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MACDiscoveryInterval == 0 {
		cfg.MACDiscoveryInterval = 30 * time.Minute
	}
	if cfg.MACDiscoveryInterval < 10*time.Second {
		return fmt.Errorf("macDiscoveryIntervalMin too short: %s", cfg.MACDiscoveryInterval)
	}
	if cfg.DeferredWorkers <= 0 {
		cfg.DeferredWorkers = 2
	}

	seen := make(map[string]bool, len(cfg.Domains))
	for _, d := range cfg.Domains {
		if d.Name == "" {
			return fmt.Errorf("domain entry missing name")
		}
		if seen[d.Name] {
			return fmt.Errorf("duplicate domain name %q", d.Name)
		}
		seen[d.Name] = true
	}
	for _, dev := range cfg.Devices {
		if dev.Name == "" {
			return fmt.Errorf("device entry missing name")
		}
		if dev.Domain == "" {
			return fmt.Errorf("device %q missing domain", dev.Name)
		}
		if !seen[dev.Domain] {
			return fmt.Errorf("device %q references unknown domain %q", dev.Name, dev.Domain)
		}
	}

	return nil
}
