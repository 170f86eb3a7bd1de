package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"allpairs/pairing"
	"allpairs/workload"
)

// Status is a job's lifecycle state. Terminal states are never mutated.
type Status string

const (
	StatusPending       Status = "pending"
	StatusRunning       Status = "running"
	StatusSucceeded     Status = "succeeded"
	StatusFailed        Status = "failed"
	StatusTimedOut      Status = "timed_out"
	StatusSkippedCached Status = "skipped_cached"
)

// Job is one benchmark process for one pair in one round. It exclusively
// owns its port and log file until it reaches a terminal state.
type Job struct {
	Round int          `json:"round"`
	Index int          `json:"job"`
	Pair  pairing.Pair `json:"pair"`
	HostA string       `json:"host_a"`
	HostB string       `json:"host_b"`

	Port    int    `json:"port"`
	LogPath string `json:"log_path"`

	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// JobLaunchError reports a pair that cannot be turned into a job. It is
// local: the pair is skipped with a warning and the round continues.
type JobLaunchError struct {
	Round  int
	Pair   pairing.Pair
	Reason string
}

func (e *JobLaunchError) Error() string {
	return fmt.Sprintf("round %d: cannot launch pair (%d,%d): %s", e.Round, e.Pair.A, e.Pair.B, e.Reason)
}

// LogPath returns the deterministic log location for a job. Logs live in a
// per-round subdirectory; the filename alone carries round index, job index,
// and both hostnames so the collector can recover them without any
// side-channel.
func LogPath(logRoot string, round, job int, hostA, hostB string) string {
	name := fmt.Sprintf("round%d_job%d_%s--%s.log", round, job, hostA, hostB)
	return filepath.Join(logRoot, fmt.Sprintf("round%d", round), name)
}

// hasSuccessMarker reports whether the log file exists and already contains
// the workload's bandwidth marker, i.e. the job completed on a previous run.
func hasSuccessMarker(logPath string) bool {
	data, err := os.ReadFile(logPath)
	if err != nil {
		return false
	}
	return strings.Contains(string(data), workload.BandwidthLabel)
}
