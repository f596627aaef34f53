package simulator

import (
	"context"
	"encoding/json"
	"github.com/pkg/errors"
	"github.com/scanserver/scanner-client/pkg/push"
	"github.com/sirupsen/logrus"
	"net/http"
	"nhooyr.io/websocket"
	"sync"
	"time"
)

// Hub fans push envelopes out to every connected websocket.
type Hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{conns: map[*websocket.Conn]struct{}{}}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		logrus.Errorf("unable to accept websocket: %s", err.Error())
		return
	}
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
	logrus.Debugf("push subscriber connected from %s", r.RemoteAddr)

	// inbound frames are not part of the protocol; just wait for the close
	<-conn.CloseRead(context.Background()).Done()

	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	logrus.Debugf("push subscriber %s left", r.RemoteAddr)
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Hub) Broadcast(kind push.EventKind, payload interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "unable to marshal %s payload", kind)
	}
	now := time.Now()
	data, err := json.Marshal(&push.Envelope{Type: kind, Payload: payloadBytes, Time: &now})
	if err != nil {
		return errors.Wrapf(err, "unable to marshal envelope")
	}
	h.BroadcastRaw(data)
	return nil
}

// BroadcastRaw sends data as-is, which lets tests push malformed frames.
func (h *Hub) BroadcastRaw(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
			logrus.Warnf("unable to write to push subscriber: %s", err.Error())
		}
		cancel()
	}
}

// DropAll closes every subscriber connection, as a server restart would.
func (h *Hub) DropAll() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()
	for _, conn := range conns {
		if err := conn.Close(websocket.StatusGoingAway, "server going away"); err != nil {
			logrus.Debugf("unable to close push subscriber: %s", err.Error())
		}
	}
}
