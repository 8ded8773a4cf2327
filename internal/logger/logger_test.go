package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test Helper Functions
// ============================================================================

// captureOutput redirects logger output to a buffer and restores the previous
// output, level and format on cleanup.
func captureOutput() (*bytes.Buffer, func()) {
	buf := new(bytes.Buffer)

	mu.Lock()
	originalOutput := output
	output = buf
	mu.Unlock()

	originalLevel := currentLevel.Load()
	originalFormat := currentFormat.Load()
	reconfigure()

	cleanup := func() {
		mu.Lock()
		output = originalOutput
		mu.Unlock()
		currentLevel.Store(originalLevel)
		currentFormat.Store(originalFormat)
		reconfigure()
	}

	return buf, cleanup
}

// ============================================================================
// Level Filtering Tests
// ============================================================================

func TestLevelFiltering(t *testing.T) {
	t.Run("DebugLevelShowsAllMessages", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("DEBUG")

		Debug("debug message")
		Info("info message")
		Warn("warn message")
		Error("error message")

		out := buf.String()
		assert.Contains(t, out, "level=DEBUG")
		assert.Contains(t, out, "level=INFO")
		assert.Contains(t, out, "level=WARN")
		assert.Contains(t, out, "level=ERROR")
	})

	t.Run("WarnLevelFiltersDebugAndInfo", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("WARN")

		Debug("debug message")
		Info("info message")
		Warn("warn message")
		Error("error message")

		out := buf.String()
		assert.NotContains(t, out, "debug message")
		assert.NotContains(t, out, "info message")
		assert.Contains(t, out, "warn message")
		assert.Contains(t, out, "error message")
	})

	t.Run("ErrorLevelShowsOnlyErrors", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("ERROR")

		Warn("warn message")
		Error("error message")

		out := buf.String()
		assert.NotContains(t, out, "warn message")
		assert.Contains(t, out, "error message")
	})
}

func TestSetLevel(t *testing.T) {
	t.Run("IsCaseInsensitive", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("debug")
		Debug("lower case works")
		assert.Contains(t, buf.String(), "lower case works")
	})

	t.Run("IgnoresInvalidValues", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("WARN")
		SetLevel("LOUD")
		Info("still filtered")
		assert.Empty(t, buf.String())
		assert.Equal(t, int32(LevelWarn), currentLevel.Load())
	})
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}

// ============================================================================
// Format Tests
// ============================================================================

func TestStructuredFields(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")
	SetFormat("text")
	Info("region cached", KeyObjectID, 7, KeyBytes, 4096)

	out := buf.String()
	assert.Contains(t, out, "msg=\"region cached\"")
	assert.Contains(t, out, "object_id=7")
	assert.Contains(t, out, "bytes=4096")
}

func TestJSONFormat(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")
	SetFormat("json")
	Info("flush complete", KeyRegions, 3)

	var record map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record))
	assert.Equal(t, "flush complete", record["msg"])
	assert.Equal(t, "INFO", record["level"])
	assert.EqualValues(t, 3, record[KeyRegions])
	assert.Contains(t, record, "time")
}

func TestFormatSwitching(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetFormat("json")
	SetFormat("xml")
	Info("still json")

	assert.True(t, strings.HasPrefix(buf.String(), "{"))
}

// ============================================================================
// Context Tests
// ============================================================================

func TestContextLogging(t *testing.T) {
	t.Run("LogContextInjectsFields", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("INFO")
		lc := NewLogContext("write_region").WithObject(12).WithTransfer(99).WithRank(3)
		ctx := WithContext(context.Background(), lc)

		InfoCtx(ctx, "write absorbed")

		out := buf.String()
		assert.Contains(t, out, "operation=write_region")
		assert.Contains(t, out, "object_id=12")
		assert.Contains(t, out, "transfer_id=99")
		assert.Contains(t, out, "server_rank=3")
		assert.Contains(t, out, "request_id="+lc.RequestID)
	})

	t.Run("UnknownRankOmitted", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		ctx := WithContext(context.Background(), NewLogContext("flush"))
		WarnCtx(ctx, "no rank")
		assert.NotContains(t, buf.String(), "server_rank")
	})

	t.Run("ContextWithoutLogContextHandled", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		ErrorCtx(context.Background(), "plain")
		assert.Contains(t, buf.String(), "plain")
	})
}

func TestLogContext(t *testing.T) {
	t.Run("CloneIsIndependent", func(t *testing.T) {
		lc := NewLogContext("read_region")
		clone := lc.WithObject(5)

		assert.Equal(t, uint64(0), lc.ObjectID)
		assert.Equal(t, uint64(5), clone.ObjectID)
		assert.Equal(t, lc.RequestID, clone.RequestID)
	})

	t.Run("CloneNil", func(t *testing.T) {
		var lc *LogContext
		assert.Nil(t, lc.Clone())
		assert.Nil(t, lc.WithTrace("a", "b"))
		assert.Zero(t, lc.DurationMs())
	})

	t.Run("DurationMs", func(t *testing.T) {
		lc := &LogContext{StartTime: time.Now().Add(-20 * time.Millisecond)}
		assert.GreaterOrEqual(t, lc.DurationMs(), 20.0)
	})
}

// ============================================================================
// Init and Concurrency
// ============================================================================

func TestInit(t *testing.T) {
	_, cleanup := captureOutput()
	defer cleanup()

	path := filepath.Join(t.TempDir(), "pdcd.log")
	require.NoError(t, Init(Config{Level: "DEBUG", Format: "text", Output: path}))
	Debug("to file")

	assert.Error(t, Init(Config{Output: filepath.Join(t.TempDir(), "missing", "x.log")}))
}

func TestConcurrentLogging(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	var mu sync.Mutex
	InitWithWriter(&lockedWriter{buf: buf, mu: &mu}, "INFO", "text")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			Info("concurrent", "worker", i)
			if i%4 == 0 {
				SetLevel("INFO")
			}
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 16, strings.Count(buf.String(), "msg=concurrent"))
}

type lockedWriter struct {
	buf *bytes.Buffer
	mu  *sync.Mutex
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}
