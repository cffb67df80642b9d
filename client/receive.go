package client

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/stegrelay/envelope"
	"github.com/opd-ai/stegrelay/transport"
)

// readLoop dispatches relay envelopes until the link closes.
func (c *Client) readLoop() {
	defer close(c.done)

	for {
		packet, err := c.conn.ReadPacket()
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "readLoop",
				"name":     c.name,
				"error":    err.Error(),
			}).Debug("Relay link closed")
			return
		}
		if packet.PacketType != transport.PacketEnvelope {
			continue
		}

		env, err := envelope.Unmarshal(packet.Data)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "readLoop",
				"error":    err.Error(),
			}).Warn("Dropping malformed envelope from relay")
			continue
		}
		c.dispatch(env)
	}
}

func (c *Client) dispatch(env *envelope.Envelope) {
	switch env.Kind {
	case envelope.KindUserList:
		c.updateUsers(env.Users)
	case envelope.KindError:
		if registerRejections[env.Reason] {
			err := fmt.Errorf("%w: %s", ErrRejected, env.Reason)
			if c.resolve(listResult{err: err}) > 0 {
				return
			}
		}
		logrus.WithFields(logrus.Fields{
			"function": "dispatch",
			"reason":   env.Reason,
		}).Warn("Relay reported an error")
	case envelope.KindPublic, envelope.KindDirect:
		c.reveal(env)
	default:
		logrus.WithFields(logrus.Fields{
			"function": "dispatch",
			"kind":     env.Kind.String(),
		}).Debug("Ignoring envelope")
	}
}

func (c *Client) updateUsers(users []envelope.User) {
	c.mu.Lock()
	c.users = make(map[string]envelope.User, len(users))
	for _, u := range users {
		c.users[u.Name] = u
	}
	handler := c.onUsers
	c.mu.Unlock()

	c.resolve(listResult{users: users})
	if handler != nil {
		handler(users)
	}
}

func (c *Client) reveal(env *envelope.Envelope) {
	c.mu.Lock()
	sender, known := c.users[env.Sender]
	handler := c.onMessage
	c.mu.Unlock()

	if !known {
		logrus.WithFields(logrus.Fields{
			"function": "reveal",
			"sender":   env.Sender,
		}).Warn("Dropping message from unknown sender")
		return
	}

	msg, err := c.opener.Open(env, sender)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "reveal",
			"sender":   env.Sender,
			"kind":     env.Kind.String(),
			"error":    err.Error(),
		}).Warn("Failed to reveal message")
		return
	}

	if handler != nil {
		handler(msg)
	}
}
