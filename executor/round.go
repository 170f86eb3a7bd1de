package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"allpairs/config"
	"allpairs/pairing"

	"go.uber.org/zap"
)

// RoundSummary is the outcome of one executed round.
type RoundSummary struct {
	Round     int      `json:"round"`
	TotalJobs int      `json:"total_jobs"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"` // failed + timed out
	Skipped   int      `json:"skipped_cached"`
	Resumed   bool     `json:"resumed,omitempty"` // consumed via resume offset, not executed
	LogPaths  []string `json:"log_paths"`
	Jobs      []*Job   `json:"jobs"`
}

// Completed reports whether every job in the round succeeded or was
// checkpoint-skipped.
func (s *RoundSummary) Completed() bool {
	return s.Failed == 0
}

// RoundExecutor dispatches and supervises the concurrent jobs of one round.
type RoundExecutor struct {
	cfg      *config.Config
	hosts    []string // node index -> hostname
	launcher Launcher
	log      *zap.SugaredLogger
}

// NewRoundExecutor creates an executor over the run's node list.
func NewRoundExecutor(cfg *config.Config, hosts []string, launcher Launcher, log *zap.SugaredLogger) *RoundExecutor {
	return &RoundExecutor{cfg: cfg, hosts: hosts, launcher: launcher, log: log}
}

// Execute runs every pair of the round and blocks until all launched jobs
// are terminal. A job's failure does not cancel its siblings; the error
// return is reserved for environmental problems (unusable log directory).
func (e *RoundExecutor) Execute(ctx context.Context, round pairing.Round) (*RoundSummary, error) {
	roundDir := filepath.Join(e.cfg.LogRoot, fmt.Sprintf("round%d", round.Index))
	if err := os.MkdirAll(roundDir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create round log directory %s: %w", roundDir, err)
	}

	summary := &RoundSummary{Round: round.Index}

	// Jobs are prepared in pair order so job indices, and therefore ports,
	// are stable for a given schedule.
	var jobs []*Job
	for k, pair := range round.Pairs {
		job, err := e.prepareJob(round.Index, k, pair)
		if err != nil {
			e.log.Warnf("skipping pair: %v", err)
			continue
		}
		jobs = append(jobs, job)
	}
	summary.Jobs = jobs
	summary.TotalJobs = len(jobs)

	var wg sync.WaitGroup
	for _, job := range jobs {
		if job.Status == StatusSkippedCached {
			e.log.Infof("round %d job %d: %s--%s already complete, skipping", job.Round, job.Index, job.HostA, job.HostB)
			continue
		}

		env := e.cfg.Workload.Env(job.HostA, job.Port, e.cfg.RanksPerNode)
		e.log.Infof("round %d job %d: pair (%d,%d) %s--%s port %d: %s",
			job.Round, job.Index, job.Pair.A, job.Pair.B, job.HostA, job.HostB, job.Port,
			e.cfg.Workload.CommandLine(env))

		job.Status = StatusRunning
		wg.Add(1)
		go func(job *Job) {
			defer wg.Done()
			outcome := e.launcher.Launch(ctx, job, e.cfg.Workload, env,
				time.Duration(e.cfg.JobTimeout), time.Duration(e.cfg.GracePeriod))
			switch {
			case outcome.TimedOut:
				job.Status = StatusTimedOut
			case outcome.Err != nil:
				job.Status = StatusFailed
			default:
				job.Status = StatusSucceeded
			}
			if outcome.Err != nil {
				job.Error = outcome.Err.Error()
			}
		}(job)
	}

	// Barrier: every launched job must be terminal before the round returns.
	wg.Wait()

	for _, job := range jobs {
		summary.LogPaths = append(summary.LogPaths, job.LogPath)
		switch job.Status {
		case StatusSucceeded:
			summary.Succeeded++
		case StatusSkippedCached:
			summary.Skipped++
		case StatusFailed, StatusTimedOut:
			summary.Failed++
			e.log.Warnf("round %d job %d (%s--%s): %s: %s", job.Round, job.Index, job.HostA, job.HostB, job.Status, job.Error)
		}
	}

	if summary.Completed() {
		e.log.Infof("round %d: all jobs completed", round.Index)
	} else {
		e.log.Warnf("round %d: one or more jobs failed/timed out", round.Index)
	}
	for _, path := range summary.LogPaths {
		e.log.Infof("round %d log: %s", round.Index, path)
	}

	return summary, nil
}

// prepareJob resolves hostnames, allocates the port, computes the log path,
// and applies the checkpoint check.
func (e *RoundExecutor) prepareJob(round, index int, pair pairing.Pair) (*Job, error) {
	if pair.A == pair.B {
		return nil, &JobLaunchError{Round: round, Pair: pair, Reason: "pair references a single node"}
	}
	if pair.A < 0 || pair.A >= len(e.hosts) || pair.B < 0 || pair.B >= len(e.hosts) {
		return nil, &JobLaunchError{Round: round, Pair: pair, Reason: fmt.Sprintf("node index out of range [0,%d)", len(e.hosts))}
	}

	job := &Job{
		Round:  round,
		Index:  index,
		Pair:   pair,
		HostA:  e.hosts[pair.A],
		HostB:  e.hosts[pair.B],
		Port:   e.cfg.BasePort + index,
		Status: StatusPending,
	}
	job.LogPath = LogPath(e.cfg.LogRoot, round, index, job.HostA, job.HostB)

	// Checkpoint: a log with the success marker means this job finished on
	// an earlier, interrupted run. Reruns stay idempotent.
	if hasSuccessMarker(job.LogPath) {
		job.Status = StatusSkippedCached
	}
	return job, nil
}
