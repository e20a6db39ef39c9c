package command

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"pavolctl/internal/domain"
)

const (
	defaultOutboxSize   = 64
	defaultWriteTimeout = 5 * time.Second
)

// Dialer opens the TCP connection. *net.Dialer and SOCKS5 dialers satisfy it.
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// Options configures a TCPChannel. Zero values select defaults.
type Options struct {
	Dialer        Dialer
	Logger        *slog.Logger
	OnStateChange func(domain.StateChange)
	OnSendError   func(error)
	OutboxSize    int
	WriteTimeout  time.Duration
}

// TCPChannel implements domain.CommandChannel over the server's CLI protocol port.
//
// Commands sent while the connection is still being established are queued and
// written in order once it is ready. If the attempt fails or is cancelled, every
// queued command is reported through OnSendError.
type TCPChannel struct {
	dialer       Dialer
	logger       *slog.Logger
	onState      func(domain.StateChange)
	onSendError  func(error)
	outboxSize   int
	writeTimeout time.Duration

	mu      sync.Mutex
	state   domain.StateChange
	session *session
}

// session is one connection attempt and, if it succeeds, its lifetime.
type session struct {
	addr    string
	cancel  context.CancelFunc
	outbox  chan string
	done    chan struct{}
	ready   bool
	closing bool
}

// NewTCPChannel creates an idle channel.
func NewTCPChannel(opts Options) *TCPChannel {
	c := &TCPChannel{
		dialer:       opts.Dialer,
		logger:       opts.Logger,
		onState:      opts.OnStateChange,
		onSendError:  opts.OnSendError,
		outboxSize:   opts.OutboxSize,
		writeTimeout: opts.WriteTimeout,
		state:        domain.StateChange{State: domain.StateIdle, At: time.Now()},
	}
	if c.dialer == nil {
		c.dialer = &net.Dialer{Timeout: defaultWriteTimeout}
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.outboxSize <= 0 {
		c.outboxSize = defaultOutboxSize
	}
	if c.writeTimeout <= 0 {
		c.writeTimeout = defaultWriteTimeout
	}
	return c
}

// Connect starts establishing a connection to ep and returns immediately.
// A previous connection, if any, is torn down first.
func (c *TCPChannel) Connect(ep domain.Endpoint) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		addr:   ep.Addr(),
		cancel: cancel,
		outbox: make(chan string, c.outboxSize),
		done:   make(chan struct{}),
	}

	c.mu.Lock()
	old := c.session
	if old != nil && !old.closing {
		old.closing = true
		close(old.outbox)
	}
	c.session = s
	c.mu.Unlock()

	if old != nil {
		old.cancel()
		<-old.done
	}

	c.transition(s, domain.StateConnecting, nil)

	if err := ep.Validate(); err != nil {
		go func() {
			defer close(s.done)
			c.transition(s, domain.StateFailed, &domain.ConnectionError{Addr: s.addr, Err: err})
			c.dropPending(s)
		}()
		return
	}
	go c.run(ctx, s)
}

// Send queues command for writing with a trailing newline. It never blocks.
func (c *TCPChannel) Send(command string) {
	var err error

	c.mu.Lock()
	s := c.session
	switch {
	case s == nil:
		err = domain.ErrNotConnected
	case s.closing:
		err = domain.ErrChannelClosed
	default:
		select {
		case s.outbox <- command:
		default:
			err = domain.ErrOutboxFull
		}
	}
	c.mu.Unlock()

	if err != nil {
		go c.reportSendError(command, err)
	}
}

// State returns the most recent transition.
func (c *TCPChannel) State() domain.StateChange {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close writes commands still queued on a ready connection, then releases it.
// An attempt that is still dialing is cancelled.
func (c *TCPChannel) Close() error {
	c.mu.Lock()
	s := c.session
	if s == nil || s.closing {
		c.mu.Unlock()
		return nil
	}
	s.closing = true
	close(s.outbox)
	ready := s.ready
	c.mu.Unlock()

	if !ready {
		s.cancel()
	}
	<-s.done
	s.cancel()
	return nil
}

func (c *TCPChannel) run(ctx context.Context, s *session) {
	defer close(s.done)

	conn, err := c.dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		if ctx.Err() != nil {
			c.transition(s, domain.StateCancelled, nil)
		} else {
			c.transition(s, domain.StateFailed, &domain.ConnectionError{Addr: s.addr, Err: err})
		}
		c.dropPending(s)
		return
	}
	defer conn.Close()

	c.mu.Lock()
	s.ready = true
	c.mu.Unlock()
	c.transition(s, domain.StateReady, nil)

	// The server echoes prompts and replies; drain them so it never stalls on a full buffer.
	readErr := make(chan error, 1)
	go func() {
		_, err := io.Copy(io.Discard, conn)
		if err == nil {
			err = io.EOF
		}
		readErr <- err
	}()

	for {
		select {
		case <-ctx.Done():
			conn.Close()
			<-readErr
			c.transition(s, domain.StateCancelled, nil)
			c.dropPending(s)
			return

		case err := <-readErr:
			c.transition(s, domain.StateFailed, &domain.ConnectionError{Addr: s.addr, Err: err})
			c.dropPending(s)
			return

		case cmd, ok := <-s.outbox:
			if !ok {
				conn.Close()
				<-readErr
				c.transition(s, domain.StateCancelled, nil)
				return
			}
			if err := c.write(conn, cmd); err != nil {
				c.reportSendError(cmd, err)
				conn.Close()
				<-readErr
				c.transition(s, domain.StateFailed, &domain.ConnectionError{Addr: s.addr, Err: err})
				c.dropPending(s)
				return
			}
		}
	}
}

func (c *TCPChannel) write(conn net.Conn, cmd string) error {
	if err := conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	if _, err := io.WriteString(conn, cmd+"\n"); err != nil {
		return err
	}
	c.logger.Debug("command sent", "addr", conn.RemoteAddr().String(), "command", cmd)
	return nil
}

// dropPending reports every queued command as not delivered.
// Call it after s is detached so no further command can be queued.
func (c *TCPChannel) dropPending(s *session) {
	for {
		select {
		case cmd, ok := <-s.outbox:
			if !ok {
				return
			}
			c.reportSendError(cmd, domain.ErrChannelClosed)
		default:
			return
		}
	}
}

// transition records and publishes a state change unless s has been replaced.
func (c *TCPChannel) transition(s *session, state domain.ConnState, err error) {
	c.mu.Lock()
	if c.session != s {
		c.mu.Unlock()
		return
	}
	sc := domain.StateChange{State: state, Err: err, At: time.Now()}
	c.state = sc
	if state.Terminal() {
		c.session = nil
	}
	c.mu.Unlock()

	switch state {
	case domain.StateFailed:
		c.logger.Warn("command channel failed", "addr", s.addr, "error", err)
	default:
		c.logger.Debug("command channel state", "addr", s.addr, "state", state.String())
	}
	if c.onState != nil {
		c.onState(sc)
	}
}

func (c *TCPChannel) reportSendError(cmd string, err error) {
	serr := &domain.SendError{Command: cmd, Err: err}
	c.logger.Warn("command not sent", "command", cmd, "error", err)
	if c.onSendError != nil {
		c.onSendError(serr)
	}
}
