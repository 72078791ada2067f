package mlog

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) (context.Context, *Logger) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	wg := &sync.WaitGroup{}
	l := NewLogger(wg)
	l.Start(ctx)
	return ctx, l
}

func TestLoggerSubscribe(t *testing.T) {
	_, l := newTestLogger(t)

	feed, cancel := l.Subscribe()
	defer cancel()

	go l.Info().Src("test").Service("svc1").Position(4).Msg("hello")

	entry := <-feed
	require.Equal(t, LevelInfo, entry.Level)
	require.Equal(t, "test", entry.Src)
	require.Equal(t, "svc1", entry.Service)
	require.Equal(t, int64(4), entry.Position)
	require.Equal(t, "hello", entry.Msg)
}

func TestLoggerMsgf(t *testing.T) {
	_, l := newTestLogger(t)

	feed, cancel := l.Subscribe()
	defer cancel()

	go l.Error().Msgf("code=%d", 42)

	entry := <-feed
	require.Equal(t, "code=42", entry.Msg)
}

func TestLoggerMultipleSubscribers(t *testing.T) {
	_, l := newTestLogger(t)

	feedA, cancelA := l.Subscribe()
	defer cancelA()
	feedB, cancelB := l.Subscribe()
	defer cancelB()

	go l.Debug().Msg("broadcast")

	a := <-feedA
	b := <-feedB
	require.Equal(t, "broadcast", a.Msg)
	require.Equal(t, "broadcast", b.Msg)
}

func TestLevelString(t *testing.T) {
	require.Equal(t, "ERROR", LevelError.String())
	require.Equal(t, "WARNING", LevelWarning.String())
	require.Equal(t, "INFO", LevelInfo.String())
	require.Equal(t, "DEBUG", LevelDebug.String())
}
