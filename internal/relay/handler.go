package relay

import (
	"fmt"
	"net/http"
	"strings"
)

// parseNodeFilter reads the optional ?nodes=a,b query parameter.
func parseNodeFilter(r *http.Request) map[string]bool {
	q := r.URL.Query().Get("nodes")
	if q == "" {
		return nil
	}
	filter := make(map[string]bool)
	for _, n := range strings.Split(q, ",") {
		if n = strings.TrimSpace(n); n != "" {
			filter[n] = true
		}
	}
	return filter
}

// SSEHandler streams chart events as server-sent events.
// Clients may filter nodes via ?nodes=id1,id2.
func SSEHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		nodeFilter := parseNodeFilter(r)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)

		for {
			select {
			case <-r.Context().Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if nodeFilter != nil && !nodeFilter[evt.NodeID] {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, evt.Payload)
				flusher.Flush()
			}
		}
	}
}
