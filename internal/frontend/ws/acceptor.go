package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cardparty/relay/internal/config"
	"github.com/cardparty/relay/internal/game/participant"
)

// MessageHandler processes the lifecycle of a connected session.
// Implementations handle the message loop for a single client.
type MessageHandler interface {
	// OnConnect runs once after the session is registered.
	OnConnect(sess *participant.Session)
	// HandleMessage processes one inbound frame. A returned error
	// terminates the connection.
	HandleMessage(sess *participant.Session, raw []byte) error
	// OnDisconnect runs once after the connection is gone.
	OnDisconnect(token string)
}

// Acceptor upgrades HTTP requests to websocket sessions and runs the
// read loop for each.
type Acceptor struct {
	cfg      config.WebSocketConfig
	registry *participant.Registry
	handler  MessageHandler
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewAcceptor creates a websocket acceptor with the given configuration.
//
// Precondition: registry, handler, and logger must be non-nil.
// Postcondition: Returns an Acceptor ready to serve on an HTTP route.
func NewAcceptor(cfg config.WebSocketConfig, registry *participant.Registry, handler MessageHandler, logger *zap.Logger) *Acceptor {
	return &Acceptor{
		cfg:      cfg,
		registry: registry,
		handler:  handler,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The room code is the only admission control; the games
			// are join-by-link.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and runs the session until the client
// goes away or sends an unparseable frame.
func (a *Acceptor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	conn := NewConn(raw, a.cfg)
	sess := a.registry.Register(conn)
	start := time.Now()

	a.logger.Info("client connected",
		zap.String("remote_addr", conn.RemoteAddr()),
		zap.String("token", sess.Token()),
	)

	a.handler.OnConnect(sess)
	a.readLoop(sess, conn)

	conn.Close()
	a.handler.OnDisconnect(sess.Token())

	a.logger.Info("session ended",
		zap.String("token", sess.Token()),
		zap.Duration("duration", time.Since(start)),
	)
}

// readLoop pumps inbound frames into the handler until the connection
// dies.
func (a *Acceptor) readLoop(sess *participant.Session, conn *Conn) {
	for {
		payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				a.logger.Debug("read failed",
					zap.String("token", sess.Token()),
					zap.Error(err),
				)
			}
			return
		}

		if err := a.handler.HandleMessage(sess, payload); err != nil {
			a.logger.Warn("dropping connection on bad frame",
				zap.String("token", sess.Token()),
				zap.Error(err),
			)
			return
		}
	}
}
