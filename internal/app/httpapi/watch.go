package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The API sits behind the app's own frontends; origin policy is
	// enforced upstream.
	CheckOrigin: func(*http.Request) bool { return true },
}

const (
	watchWriteTimeout = 10 * time.Second
	watchPollInterval = time.Second
)

// watch streams the caller's presented observation rows over a websocket.
// A fresh snapshot is pushed immediately, then again on every store change.
// Stores without change notification fall back to polling.
func (h *handler) watch(w http.ResponseWriter, r *http.Request, caller string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Drain the read side so close frames are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var ticks <-chan struct{}
	if h.app.ChangeFeed != nil {
		ch, cancel := h.app.ChangeFeed.Watch()
		defer cancel()
		ticks = ch
	}

	poll := time.NewTicker(watchPollInterval)
	defer poll.Stop()

	push := func() bool {
		rows, err := h.app.Observations.Rows(r.Context(), caller)
		if err != nil {
			h.log.WithError(err).WithField("caller", caller).Warn("watch snapshot failed")
			return true
		}
		conn.SetWriteDeadline(time.Now().Add(watchWriteTimeout))
		return conn.WriteJSON(rows) == nil
	}

	if !push() {
		return
	}
	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ticks:
			if !push() {
				return
			}
		case <-poll.C:
			if ticks != nil {
				continue
			}
			if !push() {
				return
			}
		}
	}
}
