package relay

import (
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// WSHandler streams chart events as WebSocket text frames. Each connection
// first receives the frames returned by replay (current charts), then live
// events. Clients may filter nodes via ?nodes=id1,id2.
func WSHandler(broker *Broker, replay func() []Event) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		nodeFilter := parseNodeFilter(r)

		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			slog.Debug("relay ws upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)

		// writeMu keeps control replies and event frames from interleaving on conn.
		var writeMu sync.Mutex
		onControl := func(h ws.Header, r io.Reader) error {
			writeMu.Lock()
			defer writeMu.Unlock()
			return wsutil.ControlFrameHandler(conn, ws.StateServerSide)(h, r)
		}

		// The client never sends data we act on; reading detects close and answers pings.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			rd := &wsutil.Reader{Source: conn, State: ws.StateServerSide, OnIntermediate: onControl}
			for {
				hdr, err := rd.NextFrame()
				if err != nil {
					return
				}
				if hdr.OpCode.IsControl() {
					if err := onControl(hdr, rd); err != nil {
						return
					}
					continue
				}
				if err := rd.Discard(); err != nil {
					return
				}
			}
		}()

		send := func(evt Event) bool {
			if nodeFilter != nil && !nodeFilter[evt.NodeID] {
				return true
			}
			writeMu.Lock()
			err := wsutil.WriteServerText(conn, evt.Payload)
			writeMu.Unlock()
			if err != nil {
				slog.Debug("relay ws write failed", "subscriber", id, "error", err)
				return false
			}
			return true
		}

		if replay != nil {
			for _, evt := range replay() {
				if !send(evt) {
					return
				}
			}
		}

		for {
			select {
			case <-r.Context().Done():
				return
			case <-closed:
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if !send(evt) {
					return
				}
			}
		}
	}
}
