package workload

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpec_Env(t *testing.T) {
	spec := Spec{Command: DefaultCommand}
	env := spec.Env("node-03", 29502, 8)

	assert.Equal(t, "node-03", env[EnvMasterAddr])
	assert.Equal(t, "29502", env[EnvMasterPort])
	assert.Equal(t, "16", env[EnvWorldSize])
	assert.Equal(t, "8", env[EnvLocalWorldSize])
	assert.NotContains(t, env, EnvDebug)
}

func TestSpec_EnvVerbose(t *testing.T) {
	spec := Spec{Command: DefaultCommand, Verbose: true}
	env := spec.Env("node-00", 29500, 1)
	assert.Equal(t, "INFO", env[EnvDebug])
	assert.Equal(t, "2", env[EnvWorldSize])
}

func TestSpec_Argv(t *testing.T) {
	spec := Spec{
		Command: "python3 npairs.py",
		Args:    []string{"--iterations", "7"},
	}
	assert.Equal(t, []string{"python3", "npairs.py", "--iterations", "7"}, spec.Argv())
}

func TestSpec_CommandLine(t *testing.T) {
	spec := Spec{Command: "bench", Args: []string{"--fast"}}
	line := spec.CommandLine(map[string]string{
		EnvMasterPort: "29500",
		EnvMasterAddr: "host-a",
	})

	// Env assignments sorted, command last.
	assert.Equal(t, "MASTER_ADDR=host-a MASTER_PORT=29500 bench --fast", line)
}
