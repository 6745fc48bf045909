package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_WritesStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelInfo})

	log.With(Component("ledger")).Info("award created",
		StudentID("athlete-1"),
		BadgeID("badge-1"),
		Progress(100),
		Err(errors.New("none")),
	)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "award created", entry["message"])
	assert.Equal(t, "ledger", entry["component"])
	assert.Equal(t, "athlete-1", entry["student_id"])
	assert.Equal(t, "badge-1", entry["badge_id"])
	assert.Equal(t, float64(100), entry["progress"])
	assert.Equal(t, "none", entry["error"])
	assert.Contains(t, entry, "timestamp")
}

func TestLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelWarn})

	log.Debug("hidden")
	log.Info("hidden")
	log.Warn("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 1)
	assert.Contains(t, lines[0], "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestContextPropagation(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelInfo})

	ctx := WithContext(context.Background(), log)
	FromContext(ctx).Info("from context")
	assert.Contains(t, buf.String(), "from context")

	assert.NotPanics(t, func() { FromContext(context.Background()).Info("dropped") })
}
