package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Validator checks a run configuration for problems before anything is
// executed. All findings are reported together.
type Validator struct{}

// NewValidator creates a configuration validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate returns a ConfigurationError aggregating every problem found.
func (v *Validator) Validate(cfg *Config) error {
	var errs *multierror.Error

	if cfg.NodeFile == "" {
		errs = multierror.Append(errs, fmt.Errorf("node_file is required"))
	}
	if cfg.RanksPerNode < 1 {
		errs = multierror.Append(errs, fmt.Errorf("ranks_per_node must be at least 1, got %d", cfg.RanksPerNode))
	}
	if cfg.BasePort < 1 || cfg.BasePort > 65535 {
		errs = multierror.Append(errs, fmt.Errorf("base_port must be in [1,65535], got %d", cfg.BasePort))
	}
	if cfg.JobTimeout <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("job_timeout must be positive, got %v", time.Duration(cfg.JobTimeout)))
	}
	if cfg.GracePeriod <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("grace_period must be positive, got %v", time.Duration(cfg.GracePeriod)))
	}
	if cfg.ResumeRound < 0 {
		errs = multierror.Append(errs, fmt.Errorf("resume_round must not be negative, got %d", cfg.ResumeRound))
	}
	if cfg.CollectInterval < 0 {
		errs = multierror.Append(errs, fmt.Errorf("collect_interval must not be negative, got %v", time.Duration(cfg.CollectInterval)))
	}
	if cfg.Workload.Command == "" {
		errs = multierror.Append(errs, fmt.Errorf("workload command is required"))
	}

	switch cfg.Launch.Mode {
	case LaunchLocal:
	case LaunchSSH:
		if cfg.Launch.SSH == nil {
			errs = multierror.Append(errs, fmt.Errorf("launch.ssh settings are required for ssh mode"))
		} else {
			if cfg.Launch.SSH.User == "" {
				errs = multierror.Append(errs, fmt.Errorf("launch.ssh.user is required"))
			}
			if cfg.Launch.SSH.KeyPath == "" && cfg.Launch.SSH.Password == "" {
				errs = multierror.Append(errs, fmt.Errorf("launch.ssh needs key_path or password"))
			}
		}
	default:
		errs = multierror.Append(errs, fmt.Errorf("launch.mode must be %q or %q, got %q", LaunchLocal, LaunchSSH, cfg.Launch.Mode))
	}

	if err := errs.ErrorOrNil(); err != nil {
		return &ConfigurationError{Reason: err.Error(), Err: err}
	}
	return nil
}
