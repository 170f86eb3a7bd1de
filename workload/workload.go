// Package workload describes the external benchmark command contract.
//
// The benchmark is an arbitrary command. It reads the standard distributed
// environment (master address/port, world sizes), exits zero on success, and
// prints at least one "latency: <float> busbw: <float>" line to stdout or
// stderr. The system never interprets its output beyond those two labeled
// fields.
package workload

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultCommand runs the bundled all-pairs benchmark.
const DefaultCommand = "python3 npairs.py"

// Labeled fields the benchmark emits. BandwidthLabel doubles as the literal
// success marker used for checkpoint detection: a log containing it belongs
// to a job that completed a measurement.
const (
	LatencyLabel   = "latency:"
	BandwidthLabel = "busbw:"
)

// Environment variable names for the per-job contract.
const (
	EnvMasterAddr     = "MASTER_ADDR"
	EnvMasterPort     = "MASTER_PORT"
	EnvWorldSize      = "WORLD_SIZE"
	EnvLocalWorldSize = "LOCAL_WORLD_SIZE"
	EnvDebug          = "NCCL_DEBUG"
)

// Spec configures the benchmark invocation.
type Spec struct {
	// Command is the executable plus fixed arguments, shell-word separated.
	Command string `yaml:"command"`
	// Args are extra launch arguments appended to every job.
	Args []string `yaml:"args"`
	// Verbose turns on the workload's transport diagnostics.
	Verbose bool `yaml:"verbose"`
}

// Env returns the per-job environment. masterHost is the first node of the
// pair, port the job's allocated port, ranksPerNode the process count each
// node contributes.
func (s Spec) Env(masterHost string, port, ranksPerNode int) map[string]string {
	env := map[string]string{
		EnvMasterAddr:     masterHost,
		EnvMasterPort:     fmt.Sprintf("%d", port),
		EnvWorldSize:      fmt.Sprintf("%d", 2*ranksPerNode),
		EnvLocalWorldSize: fmt.Sprintf("%d", ranksPerNode),
	}
	if s.Verbose {
		env[EnvDebug] = "INFO"
	}
	return env
}

// Argv returns the command split into argv form with extra args appended.
func (s Spec) Argv() []string {
	argv := strings.Fields(s.Command)
	return append(argv, s.Args...)
}

// CommandLine renders the full invocation, environment included, for
// progress logging and for SSH launch where the environment must travel
// inside the command string.
func (s Spec) CommandLine(env map[string]string) string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s ", k, env[k])
	}
	b.WriteString(strings.Join(s.Argv(), " "))
	return b.String()
}
