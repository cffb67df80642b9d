// Package client connects a participant to a stegrelay server.
//
// A Client hides every outgoing chat message in a copy of its cover image
// and reveals every incoming one, so the relay and the network only ever
// carry PNG images. Public messages are signed; direct messages are also
// encrypted to the receiver's box key.
//
//	c, err := client.Dial(ctx, opts)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	c.OnMessage(func(m *envelope.Message) {
//	    fmt.Printf("%s: %s\n", m.From, m.Text)
//	})
//	if err := c.Register(ctx); err != nil {
//	    return err
//	}
//	err = c.SendPublic("hello")
package client
