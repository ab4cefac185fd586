package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/devclip/clipsync/internal/domain"
	"github.com/devclip/clipsync/internal/service"
	"go.uber.org/zap"
)

const dispatchTimeout = 5 * time.Second

// Core serializes group membership changes and fan-out through a single
// event loop, so broadcast delivery order matches the order updates were
// accepted. All session mutations delegate to the SessionService.
type Core struct {
	groups     *GroupManager
	sessions   *service.SessionService
	unregister chan *Client
	broadcast  chan *groupBroadcast
	logger     *zap.SugaredLogger
}

type groupBroadcast struct {
	code string
	msg  *WSMessage
	// exclude skips one client; nil targets the whole group.
	exclude *Client
}

func NewCore(groups *GroupManager, sessions *service.SessionService, logger *zap.SugaredLogger) *Core {
	return &Core{
		groups:     groups,
		sessions:   sessions,
		unregister: make(chan *Client),
		broadcast:  make(chan *groupBroadcast, 256),
		logger:     logger,
	}
}

func (c *Core) Run() {
	for {
		select {
		case cl := <-c.unregister:
			if code, wasBound := c.groups.Remove(cl); wasBound {
				c.groups.BroadcastToGroup(code, NewDeviceDisconnected())
			}
			close(cl.Message)

		case b := <-c.broadcast:
			if b.exclude != nil {
				c.groups.BroadcastToOthers(b.code, b.exclude, b.msg)
			} else {
				c.groups.BroadcastToGroup(b.code, b.msg)
			}
		}
	}
}

func (c *Core) Unregister() chan<- *Client {
	return c.unregister
}

func (c *Core) Broadcast() chan<- *groupBroadcast {
	return c.broadcast
}

// Dispatch handles one inbound frame on the connection's read goroutine.
// Store and cipher calls happen here so a slow session never stalls the
// fan-out loop.
func (c *Core) Dispatch(cl *Client, msg *inboundMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	switch msg.Type {
	case JoinDevice:
		c.handleJoin(ctx, cl, msg.Data)
	case UpdateClipboard:
		c.handleUpdate(ctx, cl, msg.Data)
	case ClearClipboard:
		c.handleClear(ctx, cl)
	default:
		cl.deliver(NewError("Unsupported event"))
	}
}

func (c *Core) handleJoin(ctx context.Context, cl *Client, data json.RawMessage) {
	var payload JoinPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		cl.deliver(NewError("Invalid join payload"))
		return
	}

	session, err := c.sessions.Authorize(ctx, payload.DeviceCode, payload.EncryptionKey)
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidCode) && !errors.Is(err, domain.ErrUnauthorized) {
			c.logger.Errorw("join failed", "client", cl.ID, "error", err)
		}
		cl.deliver(NewError(joinErrorMessage(err)))
		return
	}

	previous := c.groups.Bind(cl, session.Code)
	cl.bind(session.Code, session.SecretKey)

	if previous != "" {
		c.broadcast <- &groupBroadcast{code: previous, msg: NewDeviceDisconnected()}
	}

	// Current clipboard goes to the joiner only; peers get a notice.
	cl.deliver(NewJoined(session.Code, c.sessions.CurrentText(session)))
	c.broadcast <- &groupBroadcast{code: session.Code, msg: NewDeviceConnected(), exclude: cl}

	c.logger.Infow("client joined device", "client", cl.ID, "code", session.Code)
}

func (c *Core) handleUpdate(ctx context.Context, cl *Client, data json.RawMessage) {
	if !cl.bound() {
		cl.deliver(NewError("Not connected to any device"))
		return
	}

	var payload UpdatePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		cl.deliver(NewError("Invalid update payload"))
		return
	}

	sanitized, ts, err := c.sessions.Update(ctx, cl.code, cl.secretKey, payload.Text)
	if err != nil {
		c.failMutation(cl, err, "Failed to update clipboard")
		return
	}

	c.broadcast <- &groupBroadcast{code: cl.code, msg: NewUpdated(sanitized, ts)}
}

func (c *Core) handleClear(ctx context.Context, cl *Client) {
	if !cl.bound() {
		cl.deliver(NewError("Not connected to any device"))
		return
	}

	ts, err := c.sessions.Clear(ctx, cl.code, cl.secretKey)
	if err != nil {
		c.failMutation(cl, err, "Failed to clear clipboard")
		return
	}

	c.broadcast <- &groupBroadcast{code: cl.code, msg: NewCleared(ts)}
}

// failMutation reports the error to the requester only. If the session
// expired underneath the binding, the client is evicted from its group so it
// has to re-join.
func (c *Core) failMutation(cl *Client, err error, msg string) {
	if errors.Is(err, domain.ErrUnauthorized) {
		c.groups.Remove(cl)
		cl.bind("", "")
		cl.deliver(NewError("Device not found or invalid key"))
		return
	}

	c.logger.Errorw("clipboard mutation failed", "client", cl.ID, "code", cl.code, "error", err)
	cl.deliver(NewError(msg))
}

func joinErrorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidCode):
		return "Invalid device code"
	case errors.Is(err, domain.ErrUnauthorized):
		return "Device not found or invalid key"
	default:
		return "Internal server error"
	}
}
