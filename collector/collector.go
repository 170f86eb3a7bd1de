// Package collector turns job logs into per-round and aggregate result
// tables.
//
// The collector is driven purely by the filesystem: the log filename carries
// round index and both hostnames, the log text carries the metrics, and a
// persisted processed-set makes repeated scans idempotent. It is the only
// writer of its tables and processed-set, so no locking is needed.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"allpairs/workload"

	"go.uber.org/zap"
)

// logNamePattern recovers round index, job index, and both hostnames from a
// job log filename: round<R>_job<J>_<hostA>--<hostB>.log
var logNamePattern = regexp.MustCompile(`^round(\d+)_job(\d+)_(.+?)--(.+)\.log$`)

const (
	processedFile = "processed.json"
	// AggregateTable is the merged table's filename under the results dir.
	AggregateTable = "allpairs.csv"
)

// Collector scans a log tree and maintains the result tables.
type Collector struct {
	logRoot    string
	resultsDir string
	aliases    Aliases
	log        *zap.SugaredLogger

	processed map[string]bool
}

// New creates a collector over logRoot, writing tables into resultsDir and
// reloading any previously persisted processed-set.
func New(logRoot, resultsDir, aliasFile string, log *zap.SugaredLogger) (*Collector, error) {
	if err := os.MkdirAll(resultsDir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create results directory %s: %w", resultsDir, err)
	}

	aliases, err := LoadAliases(aliasFile)
	if err != nil {
		return nil, err
	}

	c := &Collector{
		logRoot:    logRoot,
		resultsDir: resultsDir,
		aliases:    aliases,
		log:        log,
		processed:  make(map[string]bool),
	}
	if err := c.loadProcessed(); err != nil {
		return nil, err
	}
	return c, nil
}

// Scan walks the log tree once and appends a row for every new measurable
// log. In final mode, logs without the success marker also get a row with
// zero-valued metrics - a failed job that produced a log is still reported.
// Returns the number of rows written.
func (c *Collector) Scan(final bool) (int, error) {
	rows := 0
	err := filepath.WalkDir(c.logRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// The results directory may live under the log root.
			if path == c.resultsDir {
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()
		m := logNamePattern.FindStringSubmatch(name)
		if m == nil || c.processed[name] {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			c.log.Warnf("cannot read log %s: %v", path, err)
			return nil
		}

		text := string(data)
		if !strings.Contains(text, workload.BandwidthLabel) && !final {
			// Job may still be running; leave it for a later poll.
			return nil
		}

		round, _ := strconv.Atoi(m[1])
		hostA, hostB := m[3], m[4]
		metrics := parseMetrics(text)

		row := Row{
			Round:        round,
			NodeA:        hostA,
			AliasA:       c.aliases.Lookup(hostA),
			NodeB:        hostB,
			AliasB:       c.aliases.Lookup(hostB),
			AvgLatency:   metrics.AvgLatency,
			AvgBandwidth: metrics.AvgBandwidth,
		}
		if err := appendRow(c.resultsDir, row); err != nil {
			return err
		}

		c.processed[name] = true
		rows++
		c.log.Debugf("collected %s: latency %.6f busbw %.6f (%d samples)", name, metrics.AvgLatency, metrics.AvgBandwidth, metrics.Samples)
		return nil
	})
	if err != nil {
		return rows, fmt.Errorf("log scan failed: %w", err)
	}

	if rows > 0 {
		if err := c.saveProcessed(); err != nil {
			return rows, err
		}
	}
	return rows, nil
}

// Aggregate merges the per-round tables into the aggregate table and
// returns its path.
func (c *Collector) Aggregate() (string, error) {
	return mergeTables(c.resultsDir, AggregateTable)
}

// Watch polls the log tree on the given interval until ctx is cancelled.
// Intended to run concurrently with the schedule controller; they share
// nothing but the log files.
func (c *Collector) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := c.Scan(false); err != nil {
				c.log.Warnf("collector poll failed: %v", err)
			} else if n > 0 {
				c.log.Infof("collector: %d new results", n)
			}
		}
	}
}

func (c *Collector) processedPath() string {
	return filepath.Join(c.resultsDir, processedFile)
}

func (c *Collector) loadProcessed() error {
	data, err := os.ReadFile(c.processedPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot read processed-set: %w", err)
	}

	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return fmt.Errorf("corrupt processed-set %s: %w", c.processedPath(), err)
	}
	for _, name := range names {
		c.processed[name] = true
	}
	return nil
}

func (c *Collector) saveProcessed() error {
	names := make([]string, 0, len(c.processed))
	for name := range c.processed {
		names = append(names, name)
	}
	sort.Strings(names)

	data, err := json.MarshalIndent(names, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.processedPath(), data, 0o644); err != nil {
		return fmt.Errorf("cannot persist processed-set: %w", err)
	}
	return nil
}
