package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/b3factor/backend/pkg/config"
)

// lines decodes every JSON line written to buf
func lines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		out = append(out, entry)
	}
	return out
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.in))
		})
	}
}

func TestNewWithWriter_LevelFromConfig(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, &config.Config{Env: "test", LogLevel: "warn"})

	log.Debug("normalizing group")
	log.Info("statements normalized")
	log.Warn("depreciation missing")

	entries := lines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "warn", entries[0]["level"])
	assert.Equal(t, "test", entries[0]["env"])
	assert.Equal(t, "depreciation missing", entries[0]["message"])
}

func TestWarnOnce_DedupesPerKey(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf)

	assert.True(t, log.WarnOnce("missing_input:cdi", "cdi.csv not found"))
	assert.False(t, log.WarnOnce("missing_input:cdi", "cdi.csv not found"))
	assert.True(t, log.WarnOnce("missing_aggregate:dividends", "dividends empty"))

	entries := lines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "missing_input:cdi", entries[0]["warn_key"])
	assert.Equal(t, "missing_aggregate:dividends", entries[1]["warn_key"])
}

func TestWarnOnce_SharedAcrossDerivedLoggers(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf)

	s1 := log.WithComponent("s1_statements")
	s3 := log.WithComponent("s3_indicators").WithFields(map[string]interface{}{"ticker": "PETR4"})

	assert.True(t, s1.WarnOnce("missing_input:7.04.01", "depreciation missing"))
	assert.False(t, s3.WarnOnce("missing_input:7.04.01", "depreciation missing"))
	assert.False(t, log.WithError(errors.New("x")).WarnOnce("missing_input:7.04.01", "again"))

	entries := lines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "s1_statements", entries[0]["component"])
}

func TestWarnOnce_Concurrent(t *testing.T) {
	log := NewWithWriter(&bytes.Buffer{})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		emitted int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if log.WithComponent("worker").WarnOnce("ticker_failure", "ticker failed") {
				mu.Lock()
				emitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, emitted)
}

func TestForRun_TagsRunAndResetsRegistry(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter(&buf)
	require.True(t, base.WarnOnce("missing_input:cdi", "first run"))

	run := base.ForRun("run-42")
	assert.True(t, run.WarnOnce("missing_input:cdi", "second run"))
	assert.False(t, run.WithComponent("brain").WarnOnce("missing_input:cdi", "second run again"))

	entries := lines(t, &buf)
	require.Len(t, entries, 2)
	assert.Nil(t, entries[0]["run_id"])
	assert.Equal(t, "run-42", entries[1]["run_id"])
}

func TestWithFields_AndError(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf).ForRun("run-7").WithComponent("s4_premium")

	log.WithFields(map[string]interface{}{
		"strategy": "value",
		"floor":    1e6,
	}).WithError(errors.New("too few candidates")).Warn("Date skipped")
	log.Infof("Built %d premium series", 3)

	entries := lines(t, &buf)
	require.Len(t, entries, 2)

	assert.Equal(t, "run-7", entries[0]["run_id"])
	assert.Equal(t, "s4_premium", entries[0]["component"])
	assert.Equal(t, "value", entries[0]["strategy"])
	assert.Equal(t, 1e6, entries[0]["floor"])
	assert.Equal(t, "too few candidates", entries[0]["error"])

	assert.Equal(t, "Built 3 premium series", entries[1]["message"])
	assert.Nil(t, entries[1]["strategy"])
}

func TestNop_DiscardsButKeepsRegistry(t *testing.T) {
	log := Nop()
	assert.True(t, log.WarnOnce("k", "m"))
	assert.False(t, log.WarnOnce("k", "m"))
}
