package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the root command with args and returns its stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		cfgFile = ""
		initForce = false
		planOutput = "table"
		planUnit = 1
		resetSlices(planCmd)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

// resetSlices empties slice flags so the next Execute starts from scratch;
// pflag appends to a slice flag once it has been set.
func resetSlices(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		}
	})
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "pdcd dev")
}

func TestPlanTable(t *testing.T) {
	out, err := run(t, "plan", "--dims", "10,10", "--offset", "4,0", "--size", "1,10")
	require.NoError(t, err)

	assert.Contains(t, out, "contiguous")
	assert.Contains(t, out, "FILE OFFSET")
	assert.Contains(t, out, "40")
}

func TestPlanJSON(t *testing.T) {
	out, err := run(t, "plan", "--dims", "4,8", "--offset", "1,2", "--size", "2,3", "--unit", "2", "-o", "json")
	require.NoError(t, err)

	var view struct {
		Strategy string `json:"strategy"`
		Bytes    int64  `json:"bytes"`
		Extents  []struct {
			FileOffset int64
			BufOffset  int
			Length     int
		} `json:"extents"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &view))

	assert.Equal(t, "rows", view.Strategy)
	assert.Equal(t, int64(12), view.Bytes)
	require.Len(t, view.Extents, 2)
	assert.Equal(t, int64((1*8+2)*2), view.Extents[0].FileOffset)
	assert.Equal(t, int64((2*8+2)*2), view.Extents[1].FileOffset)
	assert.Equal(t, 6, view.Extents[1].BufOffset)
}

func TestPlanOutOfBounds(t *testing.T) {
	_, err := run(t, "plan", "--dims", "10", "--offset", "8", "--size", "4")
	assert.Error(t, err)
}

func TestInitAndShowConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pdc.yaml")

	out, err := run(t, "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)
	_, err = os.Stat(path)
	require.NoError(t, err)

	_, err = run(t, "init", "--config", path)
	assert.Error(t, err, "init must not overwrite without --force")

	out, err = run(t, "config", "show", "--config", path, "-o", "json")
	require.NoError(t, err)
	var cfg map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Contains(t, cfg, "Cache")

	out, err = run(t, "config", "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Validation: OK")
}

func TestConfigShowMissingFile(t *testing.T) {
	_, err := run(t, "config", "show", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdcd init --config")
}
