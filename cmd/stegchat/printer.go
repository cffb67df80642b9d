package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/opd-ai/stegrelay/envelope"
)

// printer serializes output from the input loop and the receive goroutine.
type printer struct {
	mu  sync.Mutex
	out io.Writer
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out}
}

func (p *printer) linef(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format+"\n", args...)
}

func (p *printer) message(m *envelope.Message) {
	stamp := m.Sent.Format("15:04:05")
	if m.Direct {
		p.linef("%s [%s -> you] %s", stamp, m.From, m.Text)
		return
	}
	p.linef("%s [%s] %s", stamp, m.From, m.Text)
}
