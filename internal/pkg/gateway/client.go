package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"invitegate/internal/model"
	"invitegate/internal/pkg/logger"
)

// Gateway opcodes.
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
	opHeartbeatAck   = 11
)

// Intent bits requested at identify time: guild lifecycle, member
// add/remove and invite create/delete notifications.
const (
	intentGuilds       = 1 << 0
	intentGuildMembers = 1 << 1
	intentGuildInvites = 1 << 6
	identifyIntents    = intentGuilds | intentGuildMembers | intentGuildInvites
)

const (
	dialTimeout       = 15 * time.Second
	maxBackoff        = time.Minute
	fallbackHeartbeat = 41250 * time.Millisecond
)

// payload is one gateway frame.
type payload struct {
	Op int             `json:"op"`
	T  string          `json:"t,omitempty"`
	S  *int64          `json:"s,omitempty"`
	D  json.RawMessage `json:"d,omitempty"`
}

// Dispatcher receives the decoded events of the session.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev model.Event)
}

// Client maintains a websocket session to the platform gateway: dial,
// identify with the bot token, answer the heartbeat protocol, and turn
// dispatch frames for the watched guild into normalized events. A failed
// session is re-established with capped backoff; frames for other
// guilds are ignored.
type Client struct {
	url        string
	token      string
	guildID    string
	dispatcher Dispatcher
	logger     *logger.Logger

	writeMu sync.Mutex
	seq     atomic.Int64
}

// NewClient creates a gateway client for one guild.
func NewClient(gatewayURL, token, guildID string, d Dispatcher, log *logger.Logger) *Client {
	return &Client{
		url:        gatewayURL,
		token:      token,
		guildID:    guildID,
		dispatcher: d,
		logger:     log,
	}
}

// Run keeps a gateway session alive until the context ends. Every
// session failure is logged and retried with doubling backoff up to a
// minute; a session that held for a while resets the backoff.
func (c *Client) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		start := time.Now()
		err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Since(start) > time.Minute {
			backoff = time.Second
		}

		c.logger.Warn("gateway session ended, reconnecting",
			zap.Error(err),
			zap.Duration("backoff", backoff),
		)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// session runs one dial-hello-identify-read cycle and returns why it
// ended.
func (c *Client) session(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.url+"/?v=10&encoding=json", nil)
	if err != nil {
		return fmt.Errorf("dialing gateway: %w", err)
	}
	defer conn.Close()

	sessionCtx, stop := context.WithCancel(ctx)
	defer stop()

	// Closing the connection is the only way to unblock a pending read.
	go func() {
		<-sessionCtx.Done()
		conn.Close()
	}()

	interval, err := c.awaitHello(conn)
	if err != nil {
		return err
	}
	if err := c.identify(conn); err != nil {
		return err
	}

	go c.heartbeatLoop(sessionCtx, conn, interval)

	return c.readLoop(sessionCtx, conn)
}

// awaitHello reads the HELLO frame and extracts the heartbeat cadence.
func (c *Client) awaitHello(conn *websocket.Conn) (time.Duration, error) {
	var p payload
	if err := conn.ReadJSON(&p); err != nil {
		return 0, fmt.Errorf("reading hello: %w", err)
	}
	if p.Op != opHello {
		return 0, fmt.Errorf("expected hello, got op %d", p.Op)
	}

	var hello struct {
		HeartbeatInterval int64 `json:"heartbeat_interval"`
	}
	if err := json.Unmarshal(p.D, &hello); err != nil {
		return 0, fmt.Errorf("decoding hello: %w", err)
	}

	interval := time.Duration(hello.HeartbeatInterval) * time.Millisecond
	if interval <= 0 {
		interval = fallbackHeartbeat
	}
	return interval, nil
}

func (c *Client) identify(conn *websocket.Conn) error {
	return c.send(conn, opIdentify, map[string]any{
		"token":   c.token,
		"intents": identifyIntents,
		"properties": map[string]string{
			"os":      "linux",
			"browser": "invitegate",
			"device":  "invitegate",
		},
	})
}

func (c *Client) heartbeatLoop(ctx context.Context, conn *websocket.Conn, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.sendHeartbeat(conn); err != nil {
				c.logger.Warn("heartbeat failed", zap.Error(err))
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// sendHeartbeat sends the last seen sequence number, null before the
// first dispatch frame.
func (c *Client) sendHeartbeat(conn *websocket.Conn) error {
	var d any
	if s := c.seq.Load(); s > 0 {
		d = s
	}
	return c.send(conn, opHeartbeat, d)
}

func (c *Client) send(conn *websocket.Conn, op int, d any) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encoding gateway payload: %w", err)
	}
	frame, err := json.Marshal(payload{Op: op, D: raw})
	if err != nil {
		return fmt.Errorf("encoding gateway frame: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return fmt.Errorf("gateway closed unexpectedly: %w", err)
			}
			return fmt.Errorf("reading gateway frame: %w", err)
		}

		var p payload
		if err := json.Unmarshal(data, &p); err != nil {
			c.logger.Warn("dropping malformed gateway frame", zap.Error(err))
			continue
		}

		switch p.Op {
		case opDispatch:
			if p.S != nil {
				c.seq.Store(*p.S)
			}
			c.handleDispatch(ctx, p)
		case opHeartbeat:
			// The gateway asked for an immediate beat.
			if err := c.sendHeartbeat(conn); err != nil {
				return fmt.Errorf("answering heartbeat request: %w", err)
			}
		case opHeartbeatAck:
			// Session healthy, nothing to do.
		case opReconnect:
			return errors.New("gateway requested reconnect")
		case opInvalidSession:
			return errors.New("gateway invalidated the session")
		}
	}
}

// handleDispatch turns a dispatch frame into a normalized event for the
// watched guild.
func (c *Client) handleDispatch(ctx context.Context, p payload) {
	switch p.T {
	case "READY":
		var ready struct {
			SessionID string     `json:"session_id"`
			User      model.User `json:"user"`
		}
		if err := json.Unmarshal(p.D, &ready); err == nil {
			c.logger.Info("gateway session ready",
				zap.String("session_id", ready.SessionID),
				zap.String("bot", ready.User.Username),
			)
		}

	case "GUILD_MEMBER_ADD", "GUILD_MEMBER_REMOVE":
		var member struct {
			GuildID string     `json:"guild_id"`
			User    model.User `json:"user"`
		}
		if err := json.Unmarshal(p.D, &member); err != nil {
			c.logger.Warn("dropping malformed member frame", zap.String("t", p.T), zap.Error(err))
			return
		}
		if member.GuildID != c.guildID {
			return
		}

		kind := model.EventMemberJoin
		if p.T == "GUILD_MEMBER_REMOVE" {
			kind = model.EventMemberLeave
		}
		c.dispatcher.Dispatch(ctx, model.Event{
			Type:    kind,
			GuildID: member.GuildID,
			User:    &member.User,
		})

	case "INVITE_CREATE":
		var inv struct {
			GuildID   string      `json:"guild_id"`
			Code      string      `json:"code"`
			Uses      int         `json:"uses"`
			MaxUses   int         `json:"max_uses"`
			Temporary bool        `json:"temporary"`
			CreatedAt time.Time   `json:"created_at"`
			Inviter   *model.User `json:"inviter"`
		}
		if err := json.Unmarshal(p.D, &inv); err != nil {
			c.logger.Warn("dropping malformed invite frame", zap.String("t", p.T), zap.Error(err))
			return
		}
		if inv.GuildID != c.guildID {
			return
		}

		c.dispatcher.Dispatch(ctx, model.Event{
			Type:    model.EventInviteCreate,
			GuildID: inv.GuildID,
			Invite: &model.Invite{
				Code:      inv.Code,
				Uses:      inv.Uses,
				MaxUses:   inv.MaxUses,
				Temporary: inv.Temporary,
				CreatedAt: inv.CreatedAt,
				Inviter:   inv.Inviter,
			},
		})

	case "INVITE_DELETE":
		var del struct {
			GuildID string `json:"guild_id"`
			Code    string `json:"code"`
		}
		if err := json.Unmarshal(p.D, &del); err != nil {
			c.logger.Warn("dropping malformed invite frame", zap.String("t", p.T), zap.Error(err))
			return
		}
		if del.GuildID != c.guildID {
			return
		}

		c.dispatcher.Dispatch(ctx, model.Event{
			Type:    model.EventInviteDelete,
			GuildID: del.GuildID,
			Invite:  &model.Invite{Code: del.Code},
		})
	}
}
