// Package events streams the pipeline's logged notifications — sink
// warnings and connection loss, channel-overflow and dropped-frame
// warnings, resource-sampler failures — to subscribers; sink open/close
// and regulator or diagnostics ticks are not logged. It is grounded on the teacher's pkg/web/routes.go Logs
// handler: an http.Handler upgrades the connection with
// github.com/gorilla/websocket, subscribes to the logger's fan-out feed, and
// forwards each entry as a websocket.TextMessage. Here the forwarded entry
// is JSON-encoded rather than a plain string, and auth is left to whatever
// middleware the embedding application wraps Handler with (spec.md §9: no
// cyclic back-reference into an auth package).
package events

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/thibaultbee/streampack-go/internal/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler upgrades the request to a websocket and streams logger's entire
// pub-sub feed, JSON-encoded one entry per message, until the client
// disconnects or logger's feed is closed.
func Handler(logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer c.Close()

		feed, cancel := logger.Subscribe()
		defer cancel()

		for entry := range feed {
			b, err := json.Marshal(entry)
			if err != nil {
				continue
			}
			if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		}
	})
}

// Listen subscribes to logger's feed and invokes onEntry for every entry,
// for in-process consumers that want the feed without a websocket hop.
// Delivery stops when logger's feed is closed or when the returned function
// is called; that function cancels the subscription and waits for the
// delivery goroutine to exit.
func Listen(logger *log.Logger, onEntry func(log.Entry)) func() {
	feed, cancel := logger.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for entry := range feed {
			onEntry(entry)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
