// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package vklongpollreceiver

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	tailSendBuffer   = 256
	tailWriteTimeout = 10 * time.Second
	tailPingInterval = 30 * time.Second
)

// tailConn is one websocket subscriber of the live event tail.
type tailConn struct {
	id     string
	conn   *websocket.Conn
	types  map[string]bool
	logger *zap.Logger

	sendChan  chan []byte
	closeChan chan struct{}
	closeOnce sync.Once
}

func (c *tailConn) wants(eventType string) bool {
	return len(c.types) == 0 || c.types[eventType]
}

func (c *tailConn) send(data []byte) {
	select {
	case c.sendChan <- data:
	case <-c.closeChan:
	default:
		c.logger.Warn("Tail send channel full, dropping event", zap.String("conn_id", c.id))
	}
}

func (c *tailConn) close() {
	c.closeOnce.Do(func() {
		close(c.closeChan)
		_ = c.conn.Close()
	})
}

// tailHub fans delivered events out to websocket subscribers.
type tailHub struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]*tailConn
	wg    sync.WaitGroup
}

func newTailHub(logger *zap.Logger) *tailHub {
	return &tailHub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		conns: make(map[string]*tailConn),
	}
}

// handle upgrades the request and subscribes it. The optional "types" query
// parameter is a comma separated list of event types to receive.
func (h *tailHub) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade tail websocket",
			zap.Error(err),
			zap.String("remote_addr", r.RemoteAddr),
		)
		return
	}

	c := &tailConn{
		id:        uuid.NewString(),
		conn:      conn,
		types:     parseTypes(r.URL.Query().Get("types")),
		logger:    h.logger,
		sendChan:  make(chan []byte, tailSendBuffer),
		closeChan: make(chan struct{}),
	}

	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()

	h.logger.Debug("Tail subscriber connected",
		zap.String("conn_id", c.id),
		zap.String("remote_addr", r.RemoteAddr),
	)

	h.wg.Add(2)
	go h.readLoop(c)
	go h.writeLoop(c)
}

func parseTypes(raw string) map[string]bool {
	if raw == "" {
		return nil
	}
	types := make(map[string]bool)
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			types[t] = true
		}
	}
	return types
}

// readLoop only waits for the peer to go away.
func (h *tailHub) readLoop(c *tailConn) {
	defer h.wg.Done()
	defer h.remove(c)

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("Tail websocket read error",
					zap.String("conn_id", c.id),
					zap.Error(err),
				)
			}
			return
		}
	}
}

func (h *tailHub) writeLoop(c *tailConn) {
	defer h.wg.Done()

	ticker := time.NewTicker(tailPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closeChan:
			return

		case data := <-c.sendChan:
			_ = c.conn.SetWriteDeadline(time.Now().Add(tailWriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("Tail websocket write error",
					zap.String("conn_id", c.id),
					zap.Error(err),
				)
				c.close()
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(tailWriteTimeout)); err != nil {
				c.close()
				return
			}
		}
	}
}

func (h *tailHub) remove(c *tailConn) {
	h.mu.Lock()
	delete(h.conns, c.id)
	h.mu.Unlock()
	c.close()
	h.logger.Debug("Tail subscriber disconnected", zap.String("conn_id", c.id))
}

// publish sends ev to every interested subscriber without blocking.
func (h *tailHub) publish(ev vkEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.conns) == 0 {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Warn("Failed to encode tail event", zap.Error(err))
		return
	}
	for _, c := range h.conns {
		if c.wants(ev.Type) {
			c.send(data)
		}
	}
}

func (h *tailHub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// closeAll disconnects every subscriber and waits for their goroutines.
func (h *tailHub) closeAll() {
	h.mu.RLock()
	for _, c := range h.conns {
		c.close()
	}
	h.mu.RUnlock()
	h.wg.Wait()
}
