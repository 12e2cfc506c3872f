package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"lyceum/runtime"
)

type Server struct {
	log        *slog.Logger
	engine     *runtime.Engine
	bufferSize int
	upgrader   websocket.Upgrader
}

func NewServer(log *slog.Logger, engine *runtime.Engine, connectionBufferSize int) *Server {
	return &Server{
		log:        log,
		engine:     engine,
		bufferSize: connectionBufferSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Single-instance service fronted by its own clients;
			// origin policy is delegated to the deployment.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler upgrades the HTTP request, binds the connection to an
// identity (token from the query string, anonymous fallback on any
// failure) and then pumps frames until the peer goes away.
func (s *Server) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wsConn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Warn("Upgrade failed", "remote", r.RemoteAddr, "err", err)
			return
		}

		conn := newConnection(s.log, wsConn, s.bufferSize)
		identity := s.engine.Connect(r.Context(), conn, r.URL.Query().Get("token"))
		s.log.Info("Connection established",
			"conn", conn.ID(), "user", identity.UserID,
			"authenticated", identity.IsAuthenticated())

		go conn.writePump()
		s.readLoop(conn)
	}
}

// readLoop pumps inbound frames into the engine. On any read error the
// connection is torn down and the engine is told to disconnect it.
func (s *Server) readLoop(c *Connection) {
	defer func() {
		s.engine.Disconnect(c.id)
		c.close()
		s.log.Info("Connection closed", "conn", c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("Unexpected close", "conn", c.id, "err", err)
			}
			return
		}

		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			s.log.Debug("Dropping unparseable frame", "conn", c.id, "err", err)
			continue
		}

		var ack runtime.AckFunc
		if f.Ack != "" {
			ackID := f.Ack
			ack = func(payload any) { c.ack(ackID, payload) }
		}
		s.engine.Dispatch(c.id, f.Event, f.Data, ack)
	}
}
