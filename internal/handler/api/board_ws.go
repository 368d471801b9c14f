package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"FinScan/internal/domain/models"
	xlogger "FinScan/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsSendBuffer = 8
)

// BoardFrame is the websocket message carrying a board.
type BoardFrame struct {
	ScanID string            `json:"scan_id"`
	TS     int64             `json:"ts"`
	Count  int               `json:"count"`
	Rows   []models.BoardRow `json:"near_trigger_board"`
}

func frameOf(b *models.Board) BoardFrame {
	rows := b.Rows
	if rows == nil {
		rows = []models.BoardRow{}
	}
	return BoardFrame{ScanID: b.ScanID, TS: b.Timestamp.Unix(), Count: len(rows), Rows: rows}
}

// CurrentBoard returns the latest board, or nil before the first scan.
type CurrentBoard func() *models.Board

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (cl *wsClient) close() {
	cl.once.Do(func() { close(cl.send) })
}

// BoardHub pushes every published board to connected websocket clients.
// Clients that cannot keep up are disconnected.
type BoardHub struct {
	log      *xlogger.Logger
	current  CurrentBoard
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
}

func NewBoardHub(log *xlogger.Logger, current CurrentBoard) *BoardHub {
	return &BoardHub{
		log:     log,
		current: current,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}
}

// Serve upgrades the request and registers the client.
func (h *BoardHub) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}

	cl := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}

	// Register and snapshot under one lock so a concurrent Publish is either
	// already reflected in current() or delivered after the snapshot.
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	h.clients[cl] = struct{}{}
	if h.current != nil {
		if b := h.current(); b != nil {
			if msg, err := json.Marshal(frameOf(b)); err == nil {
				cl.send <- msg
			}
		}
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Debug("board subscriber connected", xlogger.String("remote", c.RealIP()), xlogger.Int("subscribers", n))

	go h.writeLoop(cl)
	go h.readLoop(cl)
	return nil
}

// Publish implements the board sink.
func (h *BoardHub) Publish(_ context.Context, b *models.Board) error {
	if b == nil {
		return nil
	}
	msg, err := json.Marshal(frameOf(b))
	if err != nil {
		return fmt.Errorf("encode board frame: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errors.New("board hub closed")
	}
	for cl := range h.clients {
		select {
		case cl.send <- msg:
		default:
			delete(h.clients, cl)
			cl.close()
			h.log.Warn("board subscriber too slow, dropped")
		}
	}
	return nil
}

// Subscribers returns the number of connected clients.
func (h *BoardHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *BoardHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for cl := range h.clients {
		delete(h.clients, cl)
		cl.close()
	}
	return nil
}

func (h *BoardHub) remove(cl *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		cl.close()
	}
	h.mu.Unlock()
}

func (h *BoardHub) writeLoop(cl *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.remove(cl)
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(cl)
				return
			}
		}
	}
}

// readLoop discards client frames; it exits when the peer goes away.
func (h *BoardHub) readLoop(cl *wsClient) {
	defer h.remove(cl)
	cl.conn.SetReadLimit(512)
	_ = cl.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}
