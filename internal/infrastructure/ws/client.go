package ws

import (
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// maxFrameBytes bounds inbound frames; the largest legal payload is a 1000
// character clipboard inside a small JSON envelope.
const maxFrameBytes = 8 << 10

// Client is one websocket connection. It starts unbound; a successful
// join-device binds it to a session code and records the secret key as its
// session affinity. Binding state is only touched from the read goroutine.
type Client struct {
	conn    *connWrapper
	Message chan *WSMessage
	ID      string

	code      string
	secretKey string
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		conn:    newConnWrapper(conn),
		Message: make(chan *WSMessage, 64), // buffered to avoid dead-locks on slow clients
		ID:      uuid.NewString(),
	}
}

func (c *Client) bound() bool {
	return c.code != ""
}

func (c *Client) bind(code, secretKey string) {
	c.code = code
	c.secretKey = secretKey
}

// ReadMessage consumes inbound frames and dispatches them to the core until
// the connection drops, then unregisters.
func (c *Client) ReadMessage(core *Core) {
	defer func() {
		core.Unregister() <- c
		_ = c.conn.Close()
	}()

	c.conn.conn.SetReadLimit(maxFrameBytes)

	for {
		_, raw, err := c.conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws read error (client %s): %v", c.ID, err)
			}
			break
		}

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.deliver(NewError("Invalid message"))
			continue
		}

		core.Dispatch(c, &msg)
	}
}

// WriteMessage drains the send buffer onto the socket.
func (c *Client) WriteMessage() {
	defer func() {
		_ = c.conn.Close()
	}()

	for msg := range c.Message {
		if err := c.conn.WriteJSON(msg); err != nil {
			log.Printf("ws write error (client %s): %v", c.ID, err)
			break
		}
	}
}

// deliver writes to this client only, dropping the frame if its buffer is
// full rather than blocking the read loop.
func (c *Client) deliver(msg *WSMessage) {
	select {
	case c.Message <- msg:
	default:
		log.Printf("client %s buffer full, dropping message", c.ID)
	}
}
