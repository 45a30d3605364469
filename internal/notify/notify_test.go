package notify

import (
	"bytes"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestRecorderAndMulti(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	m := Multi{a, b}

	Success(m, "saved")
	Error(m, "failed")

	assert.Len(t, a.All(), 2)
	assert.Equal(t, a.All(), b.All())
	last, ok := b.Last()
	assert.True(t, ok)
	assert.Equal(t, Notification{Level: LevelError, Message: "failed"}, last)

	a.Reset()
	_, ok = a.Last()
	assert.False(t, ok)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&log.TextFormatter{DisableTimestamp: true})

	n := NewLogNotifier(logger.WithField("component", "test"))
	Error(n, "coupon expired")
	Info(n, "payment cancelled")

	out := buf.String()
	assert.Contains(t, out, "level=error")
	assert.Contains(t, out, "coupon expired")
	assert.Contains(t, out, "level_hint=info")
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() { Info(Discard, "ignored") })
}
