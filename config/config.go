package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"allpairs/logging"
	"allpairs/workload"

	"gopkg.in/yaml.v3"
)

// ConfigurationError reports a fatal problem with the run configuration.
// Configuration errors abort the run before any round starts.
type ConfigurationError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("configuration error (%s): %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// LaunchMode selects how per-pair workload processes are started.
type LaunchMode string

const (
	// LaunchLocal starts the workload on this machine via os/exec.
	LaunchLocal LaunchMode = "local"
	// LaunchSSH starts the workload on the pair's first host over SSH.
	LaunchSSH LaunchMode = "ssh"
)

// SSHConfig holds the SSH settings shared by all nodes of a run.
type SSHConfig struct {
	Port           int      `yaml:"port"`
	User           string   `yaml:"user"`
	KeyPath        string   `yaml:"key_path"`
	Password       string   `yaml:"password,omitempty"`
	ConnectTimeout Duration `yaml:"connect_timeout"`
}

// LaunchConfig holds the process launch settings.
type LaunchConfig struct {
	Mode LaunchMode `yaml:"mode"`
	SSH  *SSHConfig `yaml:"ssh,omitempty"`
}

// Config is the immutable run configuration. It is constructed once (file
// plus flag overrides) and passed into the controller; nothing mutates it
// afterwards.
type Config struct {
	Name string `yaml:"name"`

	// Node source: line-oriented host list, first token per non-blank line.
	NodeFile string `yaml:"node_file"`

	// Processes per node contributed to each job's world size.
	RanksPerNode int `yaml:"ranks_per_node"`

	LogRoot    string `yaml:"log_root"`
	ResultsDir string `yaml:"results_dir"`

	// Job j of a round listens on BasePort+j.
	BasePort int `yaml:"base_port"`

	JobTimeout  Duration `yaml:"job_timeout"`
	GracePeriod Duration `yaml:"grace_period"`

	// Rounds below this index are consumed from the schedule but not executed.
	ResumeRound int `yaml:"resume_round"`

	Workload workload.Spec `yaml:"workload"`

	// Optional hostname -> human-readable alias mapping for result tables.
	AliasFile string `yaml:"alias_file"`

	// Background collector polling interval; 0 disables the background
	// collector (a final collection pass still runs after the schedule).
	CollectInterval Duration `yaml:"collect_interval"`

	Launch LaunchConfig `yaml:"launch"`

	// Metadata store for per-node pass/fail history.
	DBPath string `yaml:"db_path"`

	// Store rows are keyed by (node, test).
	TestName string `yaml:"test_name"`

	Logging logging.Config `yaml:"logging"`
}

// Load reads, defaults, and validates a YAML run configuration.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, &ConfigurationError{Path: filename, Reason: "unreadable config file", Err: err}
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigurationError{Path: filename, Reason: fmt.Sprintf("invalid YAML: %v", err), Err: err}
	}

	cfg.ApplyDefaults()

	if err := NewValidator().Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields with the run defaults.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "allpairs"
	}
	if c.RanksPerNode == 0 {
		c.RanksPerNode = 8
	}
	if c.LogRoot == "" {
		c.LogRoot = "logs"
	}
	if c.ResultsDir == "" {
		c.ResultsDir = filepath.Join(c.LogRoot, "results")
	}
	if c.BasePort == 0 {
		c.BasePort = 29500
	}
	if c.JobTimeout == 0 {
		c.JobTimeout = Duration(10 * time.Minute)
	}
	if c.GracePeriod == 0 {
		c.GracePeriod = Duration(30 * time.Second)
	}
	if c.Workload.Command == "" {
		c.Workload.Command = workload.DefaultCommand
	}
	if c.Launch.Mode == "" {
		c.Launch.Mode = LaunchLocal
	}
	if c.DBPath == "" {
		c.DBPath = "validation.db"
	}
	if c.TestName == "" {
		c.TestName = "allpair_bw"
	}
}
