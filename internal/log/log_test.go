package log

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoggerFanOut(t *testing.T) {
	wg := &sync.WaitGroup{}
	l := NewLogger(wg)
	ctx, cancel := context.WithCancel(context.Background())
	l.Start(ctx)
	defer cancel()

	feed, unsub := l.Subscribe()
	defer unsub()

	l.Info().Src("test").Msgf("hello %d", 1)

	select {
	case e := <-feed:
		require.Equal(t, LevelInfo, e.Level)
		require.Equal(t, "test", e.Src)
		require.Equal(t, "hello 1", e.Msg)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for log entry")
	}
}
