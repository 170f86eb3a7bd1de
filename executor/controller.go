package executor

import (
	"context"
	"fmt"
	"time"

	"allpairs/config"
	"allpairs/pairing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RecordFunc persists one node's outcome after the run. result is one of
// "pass", "fail", "incomplete".
type RecordFunc func(runID, node, result string) error

// RunReport aggregates every round summary of a run.
type RunReport struct {
	RunID     string          `json:"run_id"`
	Name      string          `json:"name"`
	Nodes     int             `json:"nodes"`
	Rounds    int             `json:"rounds"`
	Executed  int             `json:"rounds_executed"`
	Resumed   int             `json:"rounds_resumed"`
	Aborted   bool            `json:"aborted,omitempty"`
	StartTime time.Time       `json:"start_time"`
	EndTime   time.Time       `json:"end_time"`
	Summaries []*RoundSummary `json:"round_summaries"`
}

// Failed reports whether any executed round contained failed or timed-out
// jobs.
func (r *RunReport) Failed() bool {
	for _, s := range r.Summaries {
		if !s.Resumed && !s.Completed() {
			return true
		}
	}
	return false
}

// Controller owns the schedule for the run's lifetime and drives the round
// executor over it strictly in order.
type Controller struct {
	cfg    *config.Config
	nodes  []config.Node
	exec   *RoundExecutor
	record RecordFunc
	log    *zap.SugaredLogger
}

// NewController creates the run controller. record may be nil when no
// metadata store is configured.
func NewController(cfg *config.Config, nodes []config.Node, launcher Launcher, record RecordFunc, log *zap.SugaredLogger) *Controller {
	return &Controller{
		cfg:    cfg,
		nodes:  nodes,
		exec:   NewRoundExecutor(cfg, config.Hosts(nodes), launcher, log),
		record: record,
		log:    log,
	}
}

// Run generates the schedule and executes it round by round. Rounds below
// the resume offset are consumed but not executed, preserving port and index
// alignment with the earlier run. Job-level failures are advisory: every
// remaining round still runs. Cancelling ctx aborts between or within rounds
// after all running process trees are terminated.
func (c *Controller) Run(ctx context.Context) (*RunReport, error) {
	sched, err := pairing.Generate(len(c.nodes))
	if err != nil {
		return nil, fmt.Errorf("schedule generation failed: %w", err)
	}
	if len(sched.Rounds) == 0 {
		return nil, fmt.Errorf("schedule generation failed: empty schedule for %d nodes", len(c.nodes))
	}

	report := &RunReport{
		RunID:     uuid.NewString(),
		Name:      c.cfg.Name,
		Nodes:     len(c.nodes),
		Rounds:    len(sched.Rounds),
		StartTime: time.Now(),
	}
	c.log.Infof("run %s: %d nodes, %d rounds, %d pairs", report.RunID, len(c.nodes), len(sched.Rounds), sched.PairCount())
	if c.cfg.ResumeRound > 0 {
		c.log.Infof("resuming from round %d", c.cfg.ResumeRound)
	}

	for _, round := range sched.Rounds {
		if round.Index < c.cfg.ResumeRound {
			report.Resumed++
			report.Summaries = append(report.Summaries, &RoundSummary{Round: round.Index, Resumed: true})
			continue
		}
		if ctx.Err() != nil {
			c.log.Warnf("run aborted before round %d", round.Index)
			report.Aborted = true
			break
		}

		c.log.Infof("round %d/%d: %d pairs", round.Index+1, len(sched.Rounds), len(round.Pairs))
		summary, err := c.exec.Execute(ctx, round)
		if err != nil {
			return report, err
		}
		report.Summaries = append(report.Summaries, summary)
		report.Executed++

		if ctx.Err() != nil {
			report.Aborted = true
			break
		}
	}

	report.EndTime = time.Now()

	if c.record != nil && !report.Aborted {
		c.recordOutcomes(report)
	}
	return report, nil
}

// recordOutcomes persists one result row per node: pass when every job
// touching the node succeeded or was checkpoint-skipped, incomplete when any
// timed out, fail otherwise.
func (c *Controller) recordOutcomes(report *RunReport) {
	for _, node := range c.nodes {
		result := NodeOutcome(report, node.Index)
		if result == "" {
			continue // node never appeared in an executed round
		}
		if err := c.record(report.RunID, node.Host, result); err != nil {
			c.log.Warnf("failed to record result for %s: %v", node.Host, err)
		}
	}
}

// NodeOutcome folds a node's job statuses across all executed rounds into a
// store result. Returns "" if no executed job involved the node.
func NodeOutcome(report *RunReport, nodeIndex int) string {
	seen := false
	timedOut := false
	failed := false
	for _, summary := range report.Summaries {
		if summary.Resumed {
			continue
		}
		for _, job := range summary.Jobs {
			if job.Pair.A != nodeIndex && job.Pair.B != nodeIndex {
				continue
			}
			seen = true
			switch job.Status {
			case StatusTimedOut:
				timedOut = true
			case StatusFailed:
				failed = true
			}
		}
	}

	switch {
	case !seen:
		return ""
	case timedOut:
		return "incomplete"
	case failed:
		return "fail"
	default:
		return "pass"
	}
}
