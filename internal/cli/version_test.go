package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runVersionCmd(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewVersionCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersion_Default(t *testing.T) {
	out, err := runVersionCmd(t, "text")
	require.NoError(t, err)
	assert.Contains(t, out, "version: 0.12.0")
	assert.Contains(t, out, "host cascades")
}

func TestVersion_LegacyHost(t *testing.T) {
	out, err := runVersionCmd(t, "json", "0.9.0")
	require.NoError(t, err)

	var resp struct {
		Data VersionInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "0.9.0", resp.Data.Version)
	assert.True(t, resp.Data.ItemizedRemoval)
}

func TestVersion_SnapshotLabel(t *testing.T) {
	out, err := runVersionCmd(t, "text", "0.10.0-SNAPSHOT")
	require.NoError(t, err)
	assert.Contains(t, out, "label: SNAPSHOT")
	assert.Contains(t, out, "host cascades")
}

func TestVersion_Compare(t *testing.T) {
	tests := []struct {
		a, b string
		want string
	}{
		{"0.9.0", "0.10.0", "0.9.0 < 0.10.0"},
		{"0.10.0", "0.10.0-SNAPSHOT", "0.10.0 > 0.10.0-SNAPSHOT"},
		{"0.10.0-SNAPSHOT", "0.10.0-alpha", "0.10.0-SNAPSHOT > 0.10.0-alpha"},
		{"1.2.3", "1.2.3", "1.2.3 = 1.2.3"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			out, err := runVersionCmd(t, "text", "compare", tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want+"\n", out)
		})
	}
}

func TestVersion_CompareJSON(t *testing.T) {
	out, err := runVersionCmd(t, "json", "compare", "0.9.0", "0.10.0")
	require.NoError(t, err)

	var resp struct {
		Data VersionComparison `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, -1, resp.Data.Result)
}

func TestVersion_Invalid(t *testing.T) {
	out, err := runVersionCmd(t, "text", "compare", "1.0", "1.0.0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Invalid version format: 1.0")
}
