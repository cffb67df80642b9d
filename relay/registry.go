package relay

import (
	"errors"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/stegrelay/envelope"
	"github.com/opd-ai/stegrelay/transport"
)

var (
	// ErrNameTaken indicates a registration for a name already in use.
	ErrNameTaken = errors.New("name already registered")
	// ErrRegistryFull indicates MaxUsers participants are registered.
	ErrRegistryFull = errors.New("relay is full")
)

// session is one registered participant and its link.
type session struct {
	user envelope.User
	conn *transport.Conn
}

// send marshals env and writes it to the participant.
func (s *session) send(env *envelope.Envelope) error {
	data, err := envelope.Marshal(env)
	if err != nil {
		return err
	}
	return s.conn.WritePacket(&transport.Packet{PacketType: transport.PacketEnvelope, Data: data})
}

// registry tracks registered participants by name.
type registry struct {
	mu       sync.RWMutex
	sessions map[string]*session
	limit    int
}

func newRegistry(limit int) *registry {
	return &registry{
		sessions: make(map[string]*session),
		limit:    limit,
	}
}

func (r *registry) add(s *session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.user.Name]; exists {
		return ErrNameTaken
	}
	if len(r.sessions) >= r.limit {
		return ErrRegistryFull
	}
	r.sessions[s.user.Name] = s
	return nil
}

// remove deletes name only if it still belongs to s.
func (r *registry) remove(s *session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.sessions[s.user.Name]; ok && current == s {
		delete(r.sessions, s.user.Name)
		return true
	}
	return false
}

func (r *registry) get(name string) (*session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[name]
	return s, ok
}

// users returns the registered participants sorted by name.
func (r *registry) users() []envelope.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]envelope.User, 0, len(r.sessions))
	for _, s := range r.sessions {
		users = append(users, s.user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users
}

// others returns every session except skip.
func (r *registry) others(skip *session) []*session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if s != skip {
			out = append(out, s)
		}
	}
	return out
}

// broadcast sends env to every session except skip. Delivery failures are
// logged; the failing link's own reader unregisters it.
func (r *registry) broadcast(env *envelope.Envelope, skip *session) int {
	delivered := 0
	for _, s := range r.others(skip) {
		if err := s.send(env); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "broadcast",
				"kind":     env.Kind.String(),
				"to":       s.user.Name,
				"error":    err.Error(),
			}).Warn("Failed to deliver envelope")
			continue
		}
		delivered++
	}
	return delivered
}
