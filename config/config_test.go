package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeTempConfig(t, `
name: "cluster validation"
node_file: "nodes.txt"
ranks_per_node: 4
log_root: "/tmp/allpairs-logs"
base_port: 30000
job_timeout: 5m
grace_period: 15s
resume_round: 2
workload:
  command: "python3 npairs.py"
  args: ["--iterations", "7"]
  verbose: true
alias_file: "aliases.yaml"
collect_interval: 20s
db_path: "meta/validation.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "cluster validation", cfg.Name)
	assert.Equal(t, "nodes.txt", cfg.NodeFile)
	assert.Equal(t, 4, cfg.RanksPerNode)
	assert.Equal(t, "/tmp/allpairs-logs", cfg.LogRoot)
	assert.Equal(t, filepath.Join("/tmp/allpairs-logs", "results"), cfg.ResultsDir)
	assert.Equal(t, 30000, cfg.BasePort)
	assert.Equal(t, Duration(5*time.Minute), cfg.JobTimeout)
	assert.Equal(t, Duration(15*time.Second), cfg.GracePeriod)
	assert.Equal(t, 2, cfg.ResumeRound)
	assert.Equal(t, "python3 npairs.py", cfg.Workload.Command)
	assert.Equal(t, []string{"--iterations", "7"}, cfg.Workload.Args)
	assert.True(t, cfg.Workload.Verbose)
	assert.Equal(t, Duration(20*time.Second), cfg.CollectInterval)
	assert.Equal(t, "meta/validation.db", cfg.DBPath)
	assert.Equal(t, LaunchLocal, cfg.Launch.Mode)
	assert.Equal(t, "allpair_bw", cfg.TestName)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeTempConfig(t, `node_file: "nodes.txt"`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.RanksPerNode)
	assert.Equal(t, "logs", cfg.LogRoot)
	assert.Equal(t, 29500, cfg.BasePort)
	assert.Equal(t, Duration(10*time.Minute), cfg.JobTimeout)
	assert.Equal(t, Duration(30*time.Second), cfg.GracePeriod)
	assert.Equal(t, 0, cfg.ResumeRound)
	assert.NotEmpty(t, cfg.Workload.Command)
	assert.Equal(t, "validation.db", cfg.DBPath)
}

func TestLoad_SSHLaunch(t *testing.T) {
	path := writeTempConfig(t, `
node_file: "nodes.txt"
launch:
  mode: ssh
  ssh:
    user: bench
    key_path: ~/.ssh/id_ed25519
    connect_timeout: 5s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, LaunchSSH, cfg.Launch.Mode)
	require.NotNil(t, cfg.Launch.SSH)
	assert.Equal(t, "bench", cfg.Launch.SSH.User)
	assert.Equal(t, Duration(5*time.Second), cfg.Launch.SSH.ConnectTimeout)
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	var doc struct {
		D Duration `yaml:"d"`
	}

	tests := []struct {
		name string
		yaml string
		want Duration
	}{
		{"duration string", "d: 10m", Duration(10 * time.Minute)},
		{"compound string", "d: 1h30m", Duration(90 * time.Minute)},
		{"integer nanoseconds", "d: 1500000000", Duration(1500 * time.Millisecond)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc.D = 0
			require.NoError(t, yaml.Unmarshal([]byte(tt.yaml), &doc))
			assert.Equal(t, tt.want, doc.D)
		})
	}

	t.Run("invalid", func(t *testing.T) {
		err := yaml.Unmarshal([]byte("d: soonish"), &doc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid duration")
	})
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTempConfig(t, "node_file: [unclosed")
	_, err := Load(path)
	require.Error(t, err)
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}
