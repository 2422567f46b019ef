package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yourusername/salvo/pkg/engine"
	"go.uber.org/zap"
)

// Volley pacing bounds.
const (
	DefaultVolleyDelay = 50 * time.Millisecond
	MaxVolleyDelay     = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins - configure properly in production
	},
}

// WSMessage is a generic WebSocket message.
type WSMessage struct {
	Type    string          `json:"type"`    // Message type: "new", "step", "volley", "ping"
	ID      string          `json:"id"`      // Request ID for correlating responses
	Payload json.RawMessage `json:"payload"` // Type-specific payload
}

// WSResponse is a generic WebSocket response.
type WSResponse struct {
	Type    string      `json:"type"`              // Response type: "result", "turn", "error", "pong"
	ID      string      `json:"id,omitempty"`      // Request ID
	Payload interface{} `json:"payload,omitempty"` // Response data
	Error   string      `json:"error,omitempty"`   // Error message if any
	Code    string      `json:"code,omitempty"`    // Error code if any
}

// errClientGone stops a volley whose peer has disconnected.
var errClientGone = errors.New("websocket client disconnected")

// WSClient represents a connected WebSocket client.
type WSClient struct {
	conn     *websocket.Conn
	handlers *Handlers
	sendChan chan WSResponse

	// done is closed once the connection is unusable, by whichever pump
	// notices first. Volleys select on it between shots.
	done     chan struct{}
	doneOnce sync.Once
	volleys  sync.WaitGroup
}

// WebSocket handles WebSocket connections for interactive volleys.
func (h *Handlers) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := &WSClient{
		conn:     conn,
		handlers: h,
		sendChan: make(chan WSResponse, 256),
		done:     make(chan struct{}),
	}
	go client.writePump()
	client.readPump()
}

func (c *WSClient) disconnect() {
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *WSClient) writePump() {
	defer c.conn.Close()
	for msg := range c.sendChan {
		if err := c.conn.WriteJSON(msg); err != nil {
			c.disconnect()
			// Keep draining so a running volley never blocks on send.
			for range c.sendChan {
			}
			return
		}
	}
}

// readPump dispatches messages until the peer goes away. Volleys run on
// their own goroutines so a close is noticed while they are in flight;
// sendChan is closed only after they have returned.
func (c *WSClient) readPump() {
	defer func() {
		c.disconnect()
		c.volleys.Wait()
		close(c.sendChan)
		c.conn.Close()
	}()
	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		c.handleMessage(msg)
	}
}

func (c *WSClient) handleMessage(msg WSMessage) {
	switch msg.Type {
	case "new":
		c.handleNew(msg)
	case "step":
		c.handleStep(msg)
	case "volley":
		c.volleys.Add(1)
		go func() {
			defer c.volleys.Done()
			c.handleVolley(msg)
		}()
	case "ping":
		c.sendChan <- WSResponse{Type: "pong", ID: msg.ID}
	default:
		c.sendChan <- WSResponse{Type: "error", ID: msg.ID, Error: "unknown message type", Code: "UNKNOWN_TYPE"}
	}
}

// send queues r unless the connection is already gone.
func (c *WSClient) send(r WSResponse) {
	select {
	case c.sendChan <- r:
	case <-c.done:
	}
}

func (c *WSClient) sendError(id string, err error) {
	_, code := errorStatus(err)
	c.send(WSResponse{Type: "error", ID: id, Error: err.Error(), Code: code})
}

func (c *WSClient) handleNew(msg WSMessage) {
	var req NewGameRequest
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			c.sendChan <- WSResponse{Type: "error", ID: msg.ID, Error: "invalid payload", Code: "INVALID_JSON"}
			return
		}
	}
	resp, err := c.handlers.createGame(req)
	if err != nil {
		c.sendError(msg.ID, err)
		return
	}
	c.sendChan <- WSResponse{Type: "result", ID: msg.ID, Payload: resp}
}

func (c *WSClient) handleStep(msg WSMessage) {
	var req GameRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		c.sendChan <- WSResponse{Type: "error", ID: msg.ID, Error: "invalid payload", Code: "INVALID_JSON"}
		return
	}
	resp, err := c.handlers.stepGame(req.GameID)
	if err != nil {
		c.sendError(msg.ID, err)
		return
	}
	c.sendChan <- WSResponse{Type: "result", ID: msg.ID, Payload: resp}
}

// handleVolley plays the game to the end, sending one "turn" per shot at
// the requested pace, then a "result" with the final game snapshot.
func (c *WSClient) handleVolley(msg WSMessage) {
	var req VolleyRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		c.send(WSResponse{Type: "error", ID: msg.ID, Error: "invalid payload", Code: "INVALID_JSON"})
		return
	}
	delay := DefaultVolleyDelay
	if req.DelayMs > 0 {
		delay = time.Duration(req.DelayMs) * time.Millisecond
	}
	if delay > MaxVolleyDelay {
		delay = MaxVolleyDelay
	}

	entry, err := c.handlers.games.Get(req.GameID)
	if err != nil {
		c.sendError(msg.ID, err)
		return
	}

	ticker := time.NewTicker(delay)
	defer ticker.Stop()

	var final GameResponse
	err = entry.With(func(g *engine.Game) error {
		if g.Done() {
			return engine.ErrGameOver
		}
		for !g.Done() {
			res, err := g.Step()
			if err != nil {
				return err
			}
			c.send(WSResponse{Type: "turn", ID: msg.ID, Payload: StepResponse{ID: entry.ID, StepResult: res}})
			if res.Done {
				break
			}
			select {
			case <-ticker.C:
			case <-c.done:
				return errClientGone
			}
		}
		final = gameToResponse(entry.ID, g)
		return nil
	})
	if errors.Is(err, errClientGone) {
		c.handlers.logger.Debug("volley abandoned", zap.String("game", entry.ID))
		return
	}
	if err != nil {
		c.sendError(msg.ID, err)
		return
	}
	c.send(WSResponse{Type: "result", ID: msg.ID, Payload: final})
}
