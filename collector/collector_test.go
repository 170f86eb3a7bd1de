package collector

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeLog(t *testing.T, logRoot string, round int, name, content string) {
	t.Helper()
	dir := filepath.Join(logRoot, "round"+strconv.Itoa(round))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func newTestCollector(t *testing.T, logRoot, resultsDir, aliasFile string) *Collector {
	t.Helper()
	c, err := New(logRoot, resultsDir, aliasFile, zap.NewNop().Sugar())
	require.NoError(t, err)
	return c
}

func TestParseMetrics(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Metrics
	}{
		{
			"single sample",
			"latency: 1.5 busbw: 98.2\n",
			Metrics{AvgLatency: 1.5, AvgBandwidth: 98.2, Samples: 1},
		},
		{
			"multiple iterations averaged",
			"iter 0 latency: 1.0 busbw: 90.0\niter 1 latency: 3.0 busbw: 110.0\n",
			Metrics{AvgLatency: 2.0, AvgBandwidth: 100.0, Samples: 2},
		},
		{
			"noise around the labels",
			"NCCL INFO ring setup\nresult latency: 2.5 busbw: 80.0 done\n",
			Metrics{AvgLatency: 2.5, AvgBandwidth: 80.0, Samples: 1},
		},
		{
			"unparsable value ignored",
			"latency: oops busbw: 50.0\n",
			Metrics{AvgBandwidth: 50.0, Samples: 1},
		},
		{
			"empty log",
			"",
			Metrics{},
		},
		{
			"label at end of text",
			"crashed before printing busbw:",
			Metrics{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseMetrics(tt.text))
		})
	}
}

func TestLogNamePattern(t *testing.T) {
	m := logNamePattern.FindStringSubmatch("round2_job1_node-001--node-002.log")
	require.NotNil(t, m)
	assert.Equal(t, "2", m[1])
	assert.Equal(t, "1", m[2])
	assert.Equal(t, "node-001", m[3])
	assert.Equal(t, "node-002", m[4])

	for _, name := range []string{
		"round2_job1_node-001--node-002.log.tmp",
		"roundX_job1_a--b.log",
		"round2_job1_singlehost.log",
		"processed.json",
	} {
		assert.Nil(t, logNamePattern.FindStringSubmatch(name), name)
	}
}

func TestCollector_Scan(t *testing.T) {
	logRoot := t.TempDir()
	resultsDir := filepath.Join(logRoot, "results")

	writeLog(t, logRoot, 0, "round0_job0_n0--n3.log", "latency: 1.0 busbw: 90.0\n")
	writeLog(t, logRoot, 0, "round0_job1_n1--n2.log", "latency: 2.0 busbw: 80.0\n")
	writeLog(t, logRoot, 1, "round1_job0_n0--n1.log", "still running, no marker\n")
	writeLog(t, logRoot, 0, "notes.txt", "not a job log\n")

	c := newTestCollector(t, logRoot, resultsDir, "")

	n, err := c.Scan(false)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "only marked logs are collected")

	records := readCSV(t, filepath.Join(resultsDir, "round0.csv"))
	require.Len(t, records, 3)
	assert.Equal(t, tableHeader, records[0])
	assert.Equal(t, []string{"n0", "unknown", "n3", "unknown", "1.000000", "90.000000"}, records[1])
	assert.Equal(t, []string{"n1", "unknown", "n2", "unknown", "2.000000", "80.000000"}, records[2])

	assert.NoFileExists(t, filepath.Join(resultsDir, "round1.csv"))
}

func TestCollector_ScanIsIdempotent(t *testing.T) {
	logRoot := t.TempDir()
	resultsDir := filepath.Join(logRoot, "results")
	writeLog(t, logRoot, 0, "round0_job0_n0--n1.log", "latency: 1.0 busbw: 90.0\n")

	c := newTestCollector(t, logRoot, resultsDir, "")

	n, err := c.Scan(false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	first := readCSV(t, filepath.Join(resultsDir, "round0.csv"))

	// Same collector.
	n, err = c.Scan(false)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Fresh collector reloading the persisted processed-set.
	c2 := newTestCollector(t, logRoot, resultsDir, "")
	n, err = c2.Scan(false)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	assert.Equal(t, first, readCSV(t, filepath.Join(resultsDir, "round0.csv")))
}

func TestCollector_FinalScanIncludesFailedJobs(t *testing.T) {
	logRoot := t.TempDir()
	resultsDir := filepath.Join(logRoot, "results")
	writeLog(t, logRoot, 0, "round0_job0_n0--n1.log", "Traceback (most recent call last):\n  boom\n")

	c := newTestCollector(t, logRoot, resultsDir, "")

	n, err := c.Scan(false)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = c.Scan(true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	records := readCSV(t, filepath.Join(resultsDir, "round0.csv"))
	require.Len(t, records, 2)
	assert.Equal(t, []string{"n0", "unknown", "n1", "unknown", "0.000000", "0.000000"}, records[1])
}

func TestCollector_AppliesAliases(t *testing.T) {
	logRoot := t.TempDir()
	resultsDir := filepath.Join(logRoot, "results")
	aliasFile := filepath.Join(t.TempDir(), "aliases.yaml")
	require.NoError(t, os.WriteFile(aliasFile, []byte("n0: rack1-top\n"), 0o644))

	writeLog(t, logRoot, 0, "round0_job0_n0--n1.log", "latency: 1.0 busbw: 90.0\n")

	c := newTestCollector(t, logRoot, resultsDir, aliasFile)
	_, err := c.Scan(false)
	require.NoError(t, err)

	records := readCSV(t, filepath.Join(resultsDir, "round0.csv"))
	require.Len(t, records, 2)
	assert.Equal(t, "rack1-top", records[1][1])
	assert.Equal(t, UnknownAlias, records[1][3])
}

func TestCollector_Aggregate(t *testing.T) {
	logRoot := t.TempDir()
	resultsDir := filepath.Join(logRoot, "results")
	c := newTestCollector(t, logRoot, resultsDir, "")

	// Ten-plus rounds so lexicographic ordering would put round10 before
	// round2.
	for _, round := range []int{2, 10, 0} {
		require.NoError(t, appendRow(resultsDir, Row{
			Round: round,
			NodeA: "n0", AliasA: "unknown",
			NodeB: "n1", AliasB: "unknown",
			AvgLatency: float64(round), AvgBandwidth: 100,
		}))
	}

	path, err := c.Aggregate()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(resultsDir, AggregateTable), path)

	records := readCSV(t, path)
	require.Len(t, records, 4)
	assert.Equal(t, append([]string{"round"}, tableHeader...), records[0])
	assert.Equal(t, "0", records[1][0])
	assert.Equal(t, "2", records[2][0])
	assert.Equal(t, "10", records[3][0])

	// Re-merging rewrites rather than appends.
	_, err = c.Aggregate()
	require.NoError(t, err)
	assert.Equal(t, records, readCSV(t, path))
}

func TestCollector_WatchStopsOnCancel(t *testing.T) {
	logRoot := t.TempDir()
	c := newTestCollector(t, logRoot, filepath.Join(logRoot, "results"), "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Watch(ctx, time.Millisecond)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not return after cancel")
	}
}

func TestCollector_WatchHandsOffToFinalScan(t *testing.T) {
	logRoot := t.TempDir()
	resultsDir := filepath.Join(logRoot, "results")
	c := newTestCollector(t, logRoot, resultsDir, "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Watch(ctx, time.Millisecond)
	}()

	// Logs appear while the poller is live, as jobs finish.
	for i := 0; i < 8; i++ {
		name := fmt.Sprintf("round0_job%d_a%d--b%d.log", i, i, i)
		writeLog(t, logRoot, 0, name, "latency: 1.0 busbw: 90.0\n")
		time.Sleep(2 * time.Millisecond)
	}

	// The collector is single-writer: the poller must be stopped and drained
	// before the same instance runs the final pass.
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not return after cancel")
	}

	_, err := c.Scan(true)
	require.NoError(t, err)

	records := readCSV(t, filepath.Join(resultsDir, "round0.csv"))
	require.Len(t, records, 9, "header plus exactly one row per log")
	seen := map[string]bool{}
	for _, rec := range records[1:] {
		key := rec[0] + "--" + rec[2]
		assert.False(t, seen[key], "duplicate row for %s", key)
		seen[key] = true
	}
}

func TestLoadAliases(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		aliases, err := LoadAliases("")
		require.NoError(t, err)
		assert.Equal(t, UnknownAlias, aliases.Lookup("anything"))
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "aliases.yaml")
		require.NoError(t, os.WriteFile(path, []byte("node-001: gpu-a\nnode-002: gpu-b\n"), 0o644))

		aliases, err := LoadAliases(path)
		require.NoError(t, err)
		assert.Equal(t, "gpu-a", aliases.Lookup("node-001"))
		assert.Equal(t, UnknownAlias, aliases.Lookup("node-003"))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadAliases(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
}
