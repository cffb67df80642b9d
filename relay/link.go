package relay

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/stegrelay/envelope"
	"github.com/opd-ai/stegrelay/transport"
)

// link is the per-connection request state.
type link struct {
	server  *Server
	conn    *transport.Conn
	session *session
}

// handle processes one envelope and reports whether to keep reading.
func (l *link) handle(env *envelope.Envelope) bool {
	switch env.Kind {
	case envelope.KindRegister:
		l.register(env)
	case envelope.KindFetch:
		l.reply(&envelope.Envelope{Kind: envelope.KindUserList, Users: l.server.registry.users()})
	case envelope.KindPublic:
		l.forwardPublic(env)
	case envelope.KindDirect:
		l.forwardDirect(env)
	case envelope.KindBye:
		l.leave()
		return false
	default:
		l.reject(ReasonUnexpected)
	}
	return true
}

func (l *link) register(env *envelope.Envelope) {
	if l.session != nil {
		l.reject(ReasonAlreadyJoined)
		return
	}

	if linkKey, ok := l.conn.RemoteKey(); ok && linkKey != env.Self.BoxKey {
		l.reject(ReasonKeyMismatch)
		return
	}

	s := &session{user: *env.Self, conn: l.conn}
	if err := l.server.registry.add(s); err != nil {
		reason := ReasonFull
		if errors.Is(err, ErrNameTaken) {
			reason = ReasonNameTaken
		}
		l.reject(reason)
		return
	}
	l.session = s

	logrus.WithFields(logrus.Fields{
		"function":    "register",
		"name":        s.user.Name,
		"remote_addr": l.conn.RemoteAddr().String(),
	}).Info("User registered")

	l.broadcastUsers()
}

// leave unregisters the link's participant, if any, and tells the others.
func (l *link) leave() {
	if l.session == nil {
		return
	}
	s := l.session
	l.session = nil

	if l.server.registry.remove(s) {
		logrus.WithFields(logrus.Fields{
			"function": "leave",
			"name":     s.user.Name,
		}).Info("User left")
		l.broadcastUsers()
	}
}

// broadcastUsers sends the current participant list to everyone.
func (l *link) broadcastUsers() {
	list := &envelope.Envelope{Kind: envelope.KindUserList, Users: l.server.registry.users()}
	l.server.registry.broadcast(list, nil)
}

// authorize checks that env comes from this link's participant and carries
// their signature.
func (l *link) authorize(env *envelope.Envelope) bool {
	if l.session == nil {
		l.reject(ReasonNotRegistered)
		return false
	}
	if env.Sender != l.session.user.Name {
		l.reject(ReasonSenderMismatch)
		return false
	}
	if err := env.Verify(l.session.user.SignKey); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "authorize",
			"sender":   env.Sender,
			"error":    err.Error(),
		}).Warn("Rejecting envelope with invalid signature")
		l.reject(ReasonBadSignature)
		return false
	}
	return true
}

func (l *link) forwardPublic(env *envelope.Envelope) {
	if !l.authorize(env) {
		return
	}

	delivered := l.server.registry.broadcast(env, l.session)

	logrus.WithFields(logrus.Fields{
		"function":  "forwardPublic",
		"sender":    env.Sender,
		"delivered": delivered,
		"carrier":   len(env.Carrier),
	}).Debug("Forwarded public message")
}

func (l *link) forwardDirect(env *envelope.Envelope) {
	if !l.authorize(env) {
		return
	}

	receiver, ok := l.server.registry.get(env.Receiver)
	if !ok {
		l.reject(ReasonUnknownReceiver)
		return
	}
	if err := receiver.send(env); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "forwardDirect",
			"sender":   env.Sender,
			"receiver": env.Receiver,
			"error":    err.Error(),
		}).Warn("Failed to deliver direct message")
		return
	}

	logrus.WithFields(logrus.Fields{
		"function": "forwardDirect",
		"sender":   env.Sender,
		"receiver": env.Receiver,
	}).Debug("Forwarded direct message")
}

func (l *link) reply(env *envelope.Envelope) {
	data, err := envelope.Marshal(env)
	if err == nil {
		err = l.conn.WritePacket(&transport.Packet{PacketType: transport.PacketEnvelope, Data: data})
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "reply",
			"kind":     env.Kind.String(),
			"error":    err.Error(),
		}).Debug("Failed to reply")
	}
}

func (l *link) reject(reason string) {
	l.reply(&envelope.Envelope{Kind: envelope.KindError, Reason: reason})
}
