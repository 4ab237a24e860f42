package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/reoring/dynform"
	"github.com/reoring/dynform/internal/ctxlog"
)

// outboxSize bounds queued outgoing messages per connection.
const outboxSize = 64

// conn is one WebSocket connection driving one form session.
type conn struct {
	ws   *websocket.Conn
	form *dynform.Form
	out  chan ServerMessage
	done <-chan struct{}
}

// send queues msg for the writer. It gives up when the connection is gone.
func (c *conn) send(msg ServerMessage) {
	select {
	case c.out <- msg:
	case <-c.done:
	}
}

func (c *conn) reply(id string, data any) {
	c.send(ServerMessage{Type: "ok", RequestID: id, Data: data})
}

func (c *conn) fail(id, code string, err error) {
	c.send(ServerMessage{Type: "error", RequestID: id, Data: ErrorData{Code: code, Message: err.Error()}})
}

// writeLoop drains the outbox in order.
func (c *conn) writeLoop(ctx context.Context) {
	for {
		select {
		case msg := <-c.out:
			if err := wsjson.Write(ctx, c.ws, msg); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// serveSession upgrades to WebSocket, builds a form session from cfgs and
// runs the message loop. Every form event is forwarded as an "event"
// message; requests are answered with "ok" or "error" after the events
// they caused.
func (s *Server) serveSession(w http.ResponseWriter, r *http.Request, cfgs []dynform.FieldConfig) {
	log := ctxlog.FromContext(r.Context())
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.cfg.OriginPatterns})
	if err != nil {
		log.Warn("websocket accept", "error", err)
		return
	}
	defer ws.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	c := &conn{ws: ws, out: make(chan ServerMessage, outboxSize), done: ctx.Done()}

	opts := append([]dynform.Option{
		dynform.WithLogger(log),
		dynform.WithEventListener(func(ev dynform.Event) { c.send(ServerMessage{Type: "event", Data: ev}) }),
	}, s.cfg.Registry.Options()...)
	f, err := dynform.New(ctx, cfgs, opts...)
	if err != nil {
		_ = ws.Close(websocket.StatusInternalError, "form construction failed")
		return
	}
	c.form = f
	s.sessions.add(f)
	defer func() {
		s.sessions.remove(f.ID())
		cancel()
		_ = f.Close()
	}()
	log = log.With("session", f.ID())

	// the session message goes out before the queued form_ready event
	err = wsjson.Write(ctx, ws, ServerMessage{Type: "session", Data: SessionData{
		SessionID:    f.ID(),
		Form:         chi.URLParam(r, "name"),
		ConfigErrors: len(f.ConfigErrors()),
	}})
	if err != nil {
		return
	}
	go c.writeLoop(ctx)

	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, ws, &msg); err != nil {
			if st := websocket.CloseStatus(err); st != -1 {
				log.Debug("connection closed", "status", st)
			}
			return
		}
		s.handle(ctx, c, msg)
	}
}

func (s *Server) handle(ctx context.Context, c *conn, msg ClientMessage) {
	f := c.form
	switch msg.Type {
	case "ping":
		c.send(ServerMessage{Type: "pong", RequestID: msg.ID})
	case "set":
		var d SetData
		if decode(c, msg, &d) {
			c.result(msg.ID, f.SetValue(ctx, d.Path, d.Value))
		}
	case "patch":
		var d PatchData
		if decode(c, msg, &d) {
			c.result(msg.ID, f.Patch(ctx, d.Value))
		}
	case "append":
		var d SetData
		if decode(c, msg, &d) {
			c.result(msg.ID, f.Append(ctx, d.Path, d.Value))
		}
	case "remove":
		var d RemoveData
		if decode(c, msg, &d) {
			c.result(msg.ID, f.RemoveAt(ctx, d.Path, d.Index))
		}
	case "touch":
		var d PathData
		if decode(c, msg, &d) {
			c.result(msg.ID, f.MarkTouched(ctx, d.Path))
		}
	case "reset":
		var d ResetData
		if !decode(c, msg, &d) {
			return
		}
		cfgs := f.Configs()
		if d.Form != "" {
			var ok bool
			if cfgs, ok = s.cfg.Registry.Get(d.Form); !ok {
				c.fail(msg.ID, "unknown_form", fmt.Errorf("no form named %s", d.Form))
				return
			}
		}
		c.result(msg.ID, f.Reset(ctx, cfgs))
	case "load_options":
		// lookups may be slow; keep reading so a reset can cancel them
		go func() { c.result(msg.ID, f.LoadOptions(ctx)) }()
	case "get":
		var d PathData
		if !decode(c, msg, &d) {
			return
		}
		st, err := f.Get(d.Path)
		if err != nil {
			c.fail(msg.ID, "not_found", err)
			return
		}
		c.send(ServerMessage{Type: "state", RequestID: msg.ID, Data: st})
	case "snapshot":
		c.send(ServerMessage{Type: "snapshot", RequestID: msg.ID, Data: snapshot(f)})
	default:
		c.fail(msg.ID, "unknown_type", fmt.Errorf("unknown message type: %s", msg.Type))
	}
}

// result answers a mutation with ok or a coded error.
func (c *conn) result(id string, err error) {
	switch {
	case err == nil:
		c.reply(id, nil)
	case errors.Is(err, dynform.ErrNotFound):
		c.fail(id, "not_found", err)
	case errors.Is(err, dynform.ErrNotArray):
		c.fail(id, "not_array", err)
	case errors.Is(err, dynform.ErrReadonly):
		c.fail(id, "readonly", err)
	case errors.Is(err, dynform.ErrClosed):
		c.fail(id, "closed", err)
	default:
		c.fail(id, "failed", err)
	}
}

func decode(c *conn, msg ClientMessage, v any) bool {
	if len(msg.Data) == 0 {
		return true
	}
	if err := json.Unmarshal(msg.Data, v); err != nil {
		c.fail(msg.ID, "invalid_data", err)
		return false
	}
	return true
}
