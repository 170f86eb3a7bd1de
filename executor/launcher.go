package executor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"allpairs/ssh"
	"allpairs/workload"
)

// LaunchOutcome is the terminal result of one launched workload process.
type LaunchOutcome struct {
	TimedOut bool
	ExitCode int
	Err      error
}

// Launcher starts the workload process for a job and supervises it to a
// terminal state, honoring the per-job timeout and grace window.
type Launcher interface {
	Launch(ctx context.Context, job *Job, spec workload.Spec, env map[string]string, timeout, grace time.Duration) LaunchOutcome
}

// LocalLauncher runs the workload on this machine. The child gets its own
// process group so a timeout or operator abort terminates the full tree.
type LocalLauncher struct{}

// Launch truncates the job's log file, starts the process with stdout and
// stderr redirected into it, and waits. After the timeout the process group
// receives SIGTERM; if it is still alive after the grace window it is
// SIGKILLed. Cancelling ctx kills the group immediately.
func (l *LocalLauncher) Launch(ctx context.Context, job *Job, spec workload.Spec, env map[string]string, timeout, grace time.Duration) LaunchOutcome {
	logFile, err := os.Create(job.LogPath)
	if err != nil {
		return LaunchOutcome{Err: fmt.Errorf("cannot open log file %s: %w", job.LogPath, err)}
	}
	defer logFile.Close()

	argv := spec.Argv()
	if len(argv) == 0 {
		return LaunchOutcome{Err: fmt.Errorf("empty workload command")}
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return LaunchOutcome{Err: fmt.Errorf("failed to start workload: %w", err)}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return outcomeFromWait(err)

	case <-timer.C:
		// Graceful termination first, forced kill after the grace window.
		_ = signalGroup(cmd.Process.Pid, syscall.SIGTERM)
		select {
		case <-done:
		case <-time.After(grace):
			_ = signalGroup(cmd.Process.Pid, syscall.SIGKILL)
			<-done
		}
		return LaunchOutcome{TimedOut: true, ExitCode: -1, Err: fmt.Errorf("job exceeded %v timeout", timeout)}

	case <-ctx.Done():
		_ = signalGroup(cmd.Process.Pid, syscall.SIGKILL)
		<-done
		return LaunchOutcome{ExitCode: -1, Err: ctx.Err()}
	}
}

func outcomeFromWait(err error) LaunchOutcome {
	if err == nil {
		return LaunchOutcome{ExitCode: 0}
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return LaunchOutcome{ExitCode: exitErr.ExitCode(), Err: err}
	}
	return LaunchOutcome{ExitCode: -1, Err: err}
}

// SSHLauncher runs the workload on the pair's first host over an existing
// SSH connection pool. Output is captured remotely and written into the
// job's local log file once the command finishes.
type SSHLauncher struct {
	Clients map[string]*ssh.Client
}

func (l *SSHLauncher) Launch(ctx context.Context, job *Job, spec workload.Spec, env map[string]string, timeout, grace time.Duration) LaunchOutcome {
	client, ok := l.Clients[job.HostA]
	if !ok {
		return LaunchOutcome{Err: fmt.Errorf("no SSH connection for host %s", job.HostA)}
	}

	// The remote session has no separate grace window: closing the session
	// on timeout tears the remote command down.
	runCtx, cancel := context.WithTimeout(ctx, timeout+grace)
	defer cancel()

	result, err := client.Run(runCtx, spec.CommandLine(env))

	outcome := LaunchOutcome{ExitCode: -1, Err: err}
	if result != nil {
		if writeErr := os.WriteFile(job.LogPath, []byte(result.Output), 0o644); writeErr != nil && outcome.Err == nil {
			outcome.Err = fmt.Errorf("cannot write log file %s: %w", job.LogPath, writeErr)
		}
		if err == nil {
			outcome.ExitCode = result.ExitCode
			if result.ExitCode != 0 {
				outcome.Err = fmt.Errorf("workload exited with code %d", result.ExitCode)
			}
		}
	}
	if runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		outcome.TimedOut = true
		outcome.Err = fmt.Errorf("job exceeded %v timeout", timeout)
	}
	return outcome
}
