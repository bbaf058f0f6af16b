package events

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/thibaultbee/streampack-go/internal/log"
)

func TestHandlerStreamsLoggedEntries(t *testing.T) {
	var wg sync.WaitGroup
	logger := log.NewLogger(&wg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger.Start(ctx)

	srv := httptest.NewServer(Handler(logger))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give Handler's goroutine time to reach logger.Subscribe before the
	// entry is published, since the hub drops entries for subscribers not
	// yet registered.
	go func() {
		time.Sleep(50 * time.Millisecond)
		logger.Warn().Src("sink").Msg("connection lost")
	}()

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var entry log.Entry
	require.NoError(t, json.Unmarshal(data, &entry))
	require.Equal(t, log.LevelWarning, entry.Level)
	require.Equal(t, "sink", entry.Src)
	require.Equal(t, "connection lost", entry.Msg)
}

func TestListenInvokesCallbackUntilCanceled(t *testing.T) {
	var wg sync.WaitGroup
	logger := log.NewLogger(&wg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger.Start(ctx)

	received := make(chan log.Entry, 1)
	stop := Listen(logger, func(e log.Entry) { received <- e })

	logger.Info().Src("pipeline").Msg("started")

	select {
	case e := <-received:
		require.Equal(t, "started", e.Msg)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for entry")
	}

	stop()
}
