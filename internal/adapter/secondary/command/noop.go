package command

import (
	"sync"
	"time"

	"pavolctl/internal/domain"
)

// NoopChannel implements domain.CommandChannel without any network I/O.
// It records every command, which makes it useful for --dry-run and tests.
type NoopChannel struct {
	OnStateChange func(domain.StateChange)

	mu    sync.Mutex
	state domain.StateChange
	sent  []string
}

// NewNoopChannel creates an idle no-op channel.
func NewNoopChannel() *NoopChannel {
	return &NoopChannel{state: domain.StateChange{State: domain.StateIdle, At: time.Now()}}
}

// Connect becomes ready immediately.
func (n *NoopChannel) Connect(ep domain.Endpoint) {
	n.set(domain.StateChange{State: domain.StateConnecting, At: time.Now()})
	n.set(domain.StateChange{State: domain.StateReady, At: time.Now()})
}

// Send records the command.
func (n *NoopChannel) Send(command string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, command)
}

func (n *NoopChannel) State() domain.StateChange {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

func (n *NoopChannel) Close() error {
	n.set(domain.StateChange{State: domain.StateCancelled, At: time.Now()})
	return nil
}

// Sent returns a copy of the recorded commands.
func (n *NoopChannel) Sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.sent...)
}

func (n *NoopChannel) set(sc domain.StateChange) {
	n.mu.Lock()
	n.state = sc
	hook := n.OnStateChange
	n.mu.Unlock()
	if hook != nil {
		hook(sc)
	}
}
