package participant

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Transport is the write side of one client connection. Implementations
// must preserve FIFO order per connection and be safe for concurrent use.
type Transport interface {
	// Send enqueues a payload for delivery. Implementations report an
	// error when the connection is closed or the outbound queue is full.
	Send(payload []byte) error
	// Open reports whether the connection can still accept sends.
	Open() bool
	// Close tears the connection down. Must be idempotent.
	Close()
}

// Session pairs a participant with its live transport.
type Session struct {
	Participant *Participant
	transport   Transport
}

// Token returns the session's connection token.
func (s *Session) Token() string {
	return s.Participant.Token
}

// Reachable reports whether the session's transport can still accept
// sends.
func (s *Session) Reachable() bool {
	return s.transport.Open()
}

// Registry maps connection tokens to live sessions.
// All methods are safe for concurrent use.
//
// Removing a session never touches rooms; room cleanup is the
// dispatcher's responsibility.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	startingBalance int
	logger          *zap.Logger
}

// NewRegistry creates an empty Registry.
//
// Precondition: logger must be non-nil.
func NewRegistry(startingBalance int, logger *zap.Logger) *Registry {
	return &Registry{
		sessions:        make(map[string]*Session),
		startingBalance: startingBalance,
		logger:          logger,
	}
}

// Register mints a token for the given transport and creates a session
// with the default profile.
//
// Precondition: transport must be non-nil.
// Postcondition: Returns a session whose token is unique among live sessions.
func (r *Registry) Register(transport Transport) *Session {
	token := uuid.NewString()
	sess := &Session{
		Participant: NewParticipant(token, r.startingBalance),
		transport:   transport,
	}

	r.mu.Lock()
	r.sessions[token] = sess
	total := len(r.sessions)
	r.mu.Unlock()

	r.logger.Info("connection registered",
		zap.String("token", token),
		zap.Int("connections", total),
	)
	return sess
}

// Lookup returns the session for the given token.
//
// Postcondition: Returns (session, true) if found, or (nil, false) otherwise.
func (r *Registry) Lookup(token string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[token]
	return sess, ok
}

// Get returns the participant for the given token.
//
// Postcondition: Returns (participant, true) if found, or (nil, false) otherwise.
func (r *Registry) Get(token string) (*Participant, bool) {
	sess, ok := r.Lookup(token)
	if !ok {
		return nil, false
	}
	return sess.Participant, true
}

// UpdateProfile sets the nickname and avatar for the given token.
// Unknown tokens are a no-op.
func (r *Registry) UpdateProfile(token, nickname, avatar string) {
	if p, ok := r.Get(token); ok {
		p.SetProfile(nickname, avatar)
	}
}

// Remove deletes the session for the given token. Unknown tokens are a
// no-op, which makes disconnect cleanup idempotent.
func (r *Registry) Remove(token string) {
	r.mu.Lock()
	_, existed := r.sessions[token]
	delete(r.sessions, token)
	total := len(r.sessions)
	r.mu.Unlock()

	if existed {
		r.logger.Info("connection removed",
			zap.String("token", token),
			zap.Int("connections", total),
		)
	}
}

// Send delivers a payload to the given token's transport. Absent tokens
// and closed transports are skipped silently; delivery is best-effort
// at-most-once.
func (r *Registry) Send(token string, payload []byte) {
	sess, ok := r.Lookup(token)
	if !ok || !sess.transport.Open() {
		return
	}
	if err := sess.transport.Send(payload); err != nil {
		r.logger.Debug("dropping send to closed connection",
			zap.String("token", token),
			zap.Error(err),
		)
	}
}

// CloseAll tears down every live transport. Shutdown calls this so
// each websocket read loop unblocks and runs its own disconnect
// cleanup; sessions are not removed here.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.mu.RUnlock()

	for _, sess := range sessions {
		sess.transport.Close()
	}
	r.logger.Info("all connections closed",
		zap.Int("connections", len(sessions)),
	)
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
