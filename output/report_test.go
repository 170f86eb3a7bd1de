package output

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"allpairs/executor"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *executor.RunReport {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return &executor.RunReport{
		RunID:     "7f6c0f68-2f6e-4a9e-9df3-1f6a2f1f0aaa",
		Name:      "cluster validation",
		Nodes:     4,
		Rounds:    3,
		Executed:  2,
		Resumed:   1,
		StartTime: start,
		EndTime:   start.Add(90 * time.Second),
		Summaries: []*executor.RoundSummary{
			{Round: 0, Resumed: true},
			{Round: 1, TotalJobs: 2, Succeeded: 2, LogPaths: []string{"logs/round1/round1_job0_n0--n2.log"}},
			{Round: 2, TotalJobs: 2, Succeeded: 1, Failed: 1},
		},
	}
}

func TestWrite_Text(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	require.NoError(t, NewFormatter(false).Write(&buf, sampleReport()))
	out := buf.String()

	assert.Contains(t, out, "=== cluster validation ===")
	assert.Contains(t, out, "Run ID:   7f6c0f68-2f6e-4a9e-9df3-1f6a2f1f0aaa")
	assert.Contains(t, out, "Nodes:    4")
	assert.Contains(t, out, "Rounds:   3 total, 2 executed, 1 resumed")
	assert.Contains(t, out, "Duration: 1m30s")
	assert.Contains(t, out, "round 0: resumed (not executed)")
	assert.Contains(t, out, "round 1: all jobs completed (2 jobs, 2 succeeded, 0 failed, 0 cached)")
	assert.Contains(t, out, "logs/round1/round1_job0_n0--n2.log")
	assert.Contains(t, out, "round 2: one or more jobs failed/timed out")
	assert.Contains(t, out, "Result: FAIL")
	assert.NotContains(t, out, "aborted")
}

func TestWrite_TextPass(t *testing.T) {
	color.NoColor = true

	report := sampleReport()
	report.Summaries[2].Failed = 0
	report.Summaries[2].Succeeded = 2

	var buf bytes.Buffer
	require.NoError(t, NewFormatter(false).Write(&buf, report))
	assert.Contains(t, buf.String(), "Result: PASS")
}

func TestWrite_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(true).Write(&buf, sampleReport()))

	var decoded executor.RunReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "cluster validation", decoded.Name)
	assert.Equal(t, 3, decoded.Rounds)
	require.Len(t, decoded.Summaries, 3)
	assert.True(t, decoded.Summaries[0].Resumed)
	assert.Equal(t, 1, decoded.Summaries[2].Failed)
}
