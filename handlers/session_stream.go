package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"guestcharge/metrics"
	"guestcharge/services"
	"guestcharge/templates"
	"guestcharge/utils"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsPongWait     = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// attachStream validates the stream request and subscribes to the page's view.
// It writes the error response itself and returns ok=false when it cannot attach.
func (h *Handlers) attachStream(w http.ResponseWriter, r *http.Request) (<-chan services.ViewState, func(), templates.SessionActions, bool) {
	viewID := mux.Vars(r)["view"]
	token := r.URL.Query().Get(services.ParamToken)
	if err := services.InspectSessionToken(token, h.deps.Now()); err != nil {
		http.Error(w, services.UserMessage(err, "Invalid session link"), http.StatusBadRequest)
		return nil, nil, templates.SessionActions{}, false
	}

	_, updates, unsubscribe, err := h.deps.Views.Attach(viewID, token)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrTokenMismatch) {
			status = http.StatusForbidden
		}
		http.Error(w, err.Error(), status)
		return nil, nil, templates.SessionActions{}, false
	}

	_, _, actions := templates.SessionPaths(viewID, token)
	return updates, unsubscribe, actions, true
}

// SessionEvents streams rendered session updates as server-sent events.
func (h *Handlers) SessionEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	updates, unsubscribe, actions, ok := h.attachStream(w, r)
	if !ok {
		return
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	metrics.StreamClients.WithLabelValues(templates.TransportSSE).Inc()
	defer metrics.StreamClients.WithLabelValues(templates.TransportSSE).Dec()
	utils.Debug("sse", "Session stream connected", "view_id", mux.Vars(r)["view"])

	for {
		select {
		case <-r.Context().Done():
			utils.Debug("sse", "Session stream disconnected", "view_id", mux.Vars(r)["view"])
			return
		case state, open := <-updates:
			if !open {
				return
			}
			if err := writeEvent(r.Context(), w, templates.SessionUpdateEvent, templates.SessionContent(state, actions)); err != nil {
				utils.Warn("sse", "Error writing session update", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

// writeEvent renders c as one SSE event. Every line of the markup becomes its own
// data field so multi-line HTML survives the framing.
func writeEvent(ctx context.Context, w http.ResponseWriter, event string, c templ.Component) error {
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
		return err
	}
	for _, line := range strings.Split(buf.String(), "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", strings.TrimSuffix(line, "\r")); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(w, "\n")
	return err
}

// SessionSocket is the WebSocket variant of SessionEvents. Each message is an
// out-of-band swap of the session content.
func (h *Handlers) SessionSocket(w http.ResponseWriter, r *http.Request) {
	updates, unsubscribe, actions, ok := h.attachStream(w, r)
	if !ok {
		return
	}
	defer unsubscribe()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		utils.Error("ws", "WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	metrics.StreamClients.WithLabelValues(templates.TransportWS).Inc()
	defer metrics.StreamClients.WithLabelValues(templates.TransportWS).Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go readPump(conn, cancel)

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case state, open := <-updates:
			if !open {
				_ = writeWS(conn, websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			var buf bytes.Buffer
			if err := templates.SessionOOB(state, actions).Render(ctx, &buf); err != nil {
				utils.Error("ws", "Error rendering session update", "error", err)
				return
			}
			if err := writeWS(conn, websocket.TextMessage, buf.Bytes()); err != nil {
				utils.Debug("ws", "Session socket write failed", "error", err)
				return
			}
		case <-ticker.C:
			if err := writeWS(conn, websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages and cancels when the peer goes away.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeWS(conn *websocket.Conn, messageType int, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(messageType, data)
}
