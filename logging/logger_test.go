package logging

import (
	"bytes"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewLoggerIsSingletonPerComponent(t *testing.T) {
	a := NewLogger("session")
	b := NewLogger("session")
	assert.Same(t, a, b, "same component should return the same entry")

	c := NewLogger("platform")
	assert.NotSame(t, a, c)
}

func TestTextFormatter(t *testing.T) {
	formatter := &TextFormatter{}
	logger := logrus.New()

	entry := logger.WithField("component", "tracker").WithField("runId", 42)
	entry.Time = time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	entry.Level = logrus.WarnLevel
	entry.Message = "run still in progress"

	out, err := formatter.Format(entry)
	assert.NoError(t, err)

	line := string(out)
	assert.Contains(t, line, "[WARN]")
	assert.Contains(t, line, "[tracker]")
	assert.Contains(t, line, "run still in progress")
	assert.Contains(t, line, "runId=42")
}

func TestSetLevel(t *testing.T) {
	entry := NewLogger("level-test")
	var buf bytes.Buffer
	entry.Logger.SetOutput(&buf)

	SetLevel(logrus.DebugLevel)
	assert.Equal(t, logrus.DebugLevel, entry.Logger.GetLevel())

	SetLevel(logrus.InfoLevel)
	assert.Equal(t, logrus.InfoLevel, entry.Logger.GetLevel())
}
