package network

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/cbodonnell/worldgate/pkg/log"
	"github.com/cbodonnell/worldgate/pkg/messages"
	"github.com/cbodonnell/worldgate/pkg/metrics"
	"github.com/cbodonnell/worldgate/pkg/protocol"
	"github.com/cbodonnell/worldgate/pkg/staticdata"
	"golang.org/x/time/rate"
)

const (
	DefaultOutboxSize   = 256
	DefaultWriteTimeout = 5 * time.Second
	DefaultIdleTimeout  = 120 * time.Second
	DefaultPingInterval = 30 * time.Second
	DefaultPongTimeout  = 30 * time.Second
	DefaultAuthTimeout  = 5 * time.Second
	DefaultRecordRate   = 200
	DefaultRecordBurst  = 400

	readBufferSize = 16 * 1024
)

var (
	ErrProtocolViolation = errors.New("protocol violation")
	ErrSlowConsumer      = errors.New("outbox full")
	ErrConnectionClosed  = errors.New("connection closed")
	ErrAuthTimeout       = errors.New("not authenticated in time")
	ErrPongTimeout       = errors.New("ping not answered in time")
)

// Connection is the actor for one client socket. It owns the session cipher
// and the connection state. Inbound records are checked against the state
// and forwarded to the global world or the attached local world.
type Connection struct {
	id     messages.ConnectionID
	conn   net.Conn
	global messages.GlobalSender
	tables *staticdata.Tables
	logger *log.Logger
	opts   ConnectionOptions

	events chan messages.ConnectionEvent
	done   chan struct{}

	reasonLock sync.Mutex
	reason     error
	cancel     context.CancelFunc
	closeOnce  sync.Once

	// owned by the actor goroutine
	cipher       *protocol.SessionCipher
	state        ConnectionState
	limiter      *rate.Limiter
	nextSeq      uint32
	loginPending bool
	opened       bool
	world        messages.LocalWorldHandle
	entityID     messages.EntityID
	// pingSent is when the oldest unanswered ping went out, zero when every
	// ping was answered.
	pingSent     time.Time
}

var _ messages.ConnectionHandle = (*Connection)(nil)

type ConnectionOptions struct {
	Handshake       protocol.HandshakeOptions
	OutboxSize      int
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	PingInterval    time.Duration
	PongTimeout     time.Duration
	AuthTimeout     time.Duration
	RecordRate      float64
	RecordBurst     int
	MaxRecordLength int
}

func (o ConnectionOptions) withDefaults() ConnectionOptions {
	if o.OutboxSize <= 0 {
		o.OutboxSize = DefaultOutboxSize
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	if o.PingInterval <= 0 {
		o.PingInterval = DefaultPingInterval
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = DefaultPongTimeout
	}
	if o.AuthTimeout <= 0 {
		o.AuthTimeout = DefaultAuthTimeout
	}
	if o.RecordRate <= 0 {
		o.RecordRate = DefaultRecordRate
	}
	if o.RecordBurst <= 0 {
		o.RecordBurst = DefaultRecordBurst
	}
	return o
}

type NewConnectionOptions struct {
	ID      messages.ConnectionID
	Conn    net.Conn
	Global  messages.GlobalSender
	Tables  *staticdata.Tables
	Options ConnectionOptions
}

func NewConnection(opts NewConnectionOptions) *Connection {
	o := opts.Options.withDefaults()
	return &Connection{
		id:      opts.ID,
		conn:    opts.Conn,
		global:  opts.Global,
		tables:  opts.Tables,
		logger:  log.Default().With("connection_id", opts.ID),
		opts:    o,
		events:  make(chan messages.ConnectionEvent, o.OutboxSize),
		done:    make(chan struct{}),
		state:   StateConnecting,
		limiter: rate.NewLimiter(rate.Limit(o.RecordRate), o.RecordBurst),
		nextSeq: 1,
	}
}

func (c *Connection) ID() messages.ConnectionID {
	return c.id
}

// Send queues an event for the connection. It never blocks: when the outbox
// is full the client is not keeping up and the connection is closed.
func (c *Connection) Send(event messages.ConnectionEvent) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.events <- event:
		return true
	default:
		c.fail(ErrSlowConsumer)
		return false
	}
}

// Done is closed once the connection is closed.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Reason returns why the connection closed, or nil while it is open.
func (c *Connection) Reason() error {
	c.reasonLock.Lock()
	defer c.reasonLock.Unlock()
	return c.reason
}

// fail records the first close reason and stops the actor.
func (c *Connection) fail(err error) {
	c.reasonLock.Lock()
	if c.reason == nil {
		c.reason = err
	}
	cancel := c.cancel
	c.reasonLock.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run performs the handshake and then serves the connection until it closes.
func (c *Connection) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.reasonLock.Lock()
	c.cancel = cancel
	failed := c.reason != nil
	c.reasonLock.Unlock()
	defer cancel()
	defer c.close()

	if failed {
		return
	}

	session, err := protocol.ServerHandshake(ctx, c.conn, c.opts.Handshake)
	if err != nil {
		c.fail(fmt.Errorf("failed to complete handshake: %w", err))
		return
	}
	c.cipher = protocol.NewSessionCipher(session, protocol.Options{
		MaxRecordLength: c.opts.MaxRecordLength,
		ValidOpcode:     c.tables.KnownOpcode,
	})

	if err := c.global.Send(ctx, messages.ConnectionOpened{Connection: c}); err != nil {
		c.fail(fmt.Errorf("failed to register connection: %w", err))
		return
	}
	c.opened = true
	c.setState(StateAuthenticating)

	reads := make(chan []byte)
	go c.readLoop(ctx, reads)

	ping := time.NewTicker(c.opts.PingInterval)
	defer ping.Stop()
	auth := time.NewTimer(c.opts.AuthTimeout)
	defer auth.Stop()

	for {
		select {
		case <-ctx.Done():
			c.fail(ctx.Err())
			return
		case data := <-reads:
			if err := c.receive(ctx, data); err != nil {
				c.fail(err)
				return
			}
		case event := <-c.events:
			if err := c.handleEvent(event); err != nil {
				c.fail(err)
				return
			}
		case <-auth.C:
			if c.state == StateAuthenticating {
				c.fail(ErrAuthTimeout)
				return
			}
		case <-ping.C:
			if err := c.ping(); err != nil {
				c.fail(err)
				return
			}
		}
	}
}

// ping sends S_PING and fails once a ping stayed unanswered for the pong
// timeout.
func (c *Connection) ping() error {
	now := time.Now()
	if c.pingSent.IsZero() {
		c.pingSent = now
	} else if now.Sub(c.pingSent) >= c.opts.PongTimeout {
		return ErrPongTimeout
	}
	return c.writePacket(messages.SPing{})
}

func (c *Connection) readLoop(ctx context.Context, reads chan<- []byte) {
	buf := make([]byte, readBufferSize)
	for {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.opts.IdleTimeout)); err != nil {
			c.fail(fmt.Errorf("failed to set read deadline: %w", err))
			return
		}
		n, err := c.conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case reads <- data:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = ErrConnectionClosed
			}
			c.fail(fmt.Errorf("failed to read from connection: %w", err))
			return
		}
	}
}

func (c *Connection) receive(ctx context.Context, data []byte) error {
	records, err := c.cipher.Open(data)
	if err != nil {
		return fmt.Errorf("failed to open records: %w", err)
	}
	for _, record := range records {
		if !c.limiter.Allow() {
			return fmt.Errorf("%w: record rate exceeded", ErrProtocolViolation)
		}
		if err := c.dispatch(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

func (c *Connection) dispatch(ctx context.Context, record protocol.Record) error {
	name, ok := c.tables.NameFor(record.Opcode)
	if !ok {
		return fmt.Errorf("%w: %d", protocol.ErrUnknownOpcode, record.Opcode)
	}
	metrics.PacketsReceived.WithLabelValues(name).Inc()

	payload := record.Payload
	if c.tables.RequiresIntegrityCheck(name) {
		if len(payload) < 4 {
			return fmt.Errorf("%w: %s without sequence number", ErrProtocolViolation, name)
		}
		seq := binary.LittleEndian.Uint32(payload)
		if seq != c.nextSeq {
			return fmt.Errorf("%w: %s sequence %d, expected %d", ErrProtocolViolation, name, seq, c.nextSeq)
		}
		c.nextSeq++
		payload = payload[4:]
	}

	r, ok := routes[name]
	if !ok {
		c.logger.Debug("Ignoring %s", name)
		return nil
	}
	if !r.allowed(c.state) {
		return fmt.Errorf("%w: %s not allowed in state %s", ErrProtocolViolation, name, c.state)
	}

	packet, err := messages.DeserializePacket(name, payload)
	if err != nil {
		return fmt.Errorf("%w: failed to decode %s: %v", ErrProtocolViolation, name, err)
	}
	return r.handle(ctx, c, packet)
}

func (c *Connection) handleEvent(event messages.ConnectionEvent) error {
	switch e := event.(type) {
	case messages.SendPacket:
		return c.writePacket(e.Packet)
	case messages.LoginAccepted:
		c.loginPending = false
		c.setState(StateLoggedIn)
		list := messages.SGetUserList{Users: make([]messages.UserSummary, 0, len(e.Users))}
		for _, u := range e.Users {
			list.Users = append(list.Users, messages.NewUserSummary(u))
		}
		if err := c.writePacket(messages.SLoginArbiter{Success: true}); err != nil {
			return err
		}
		return c.writePacket(list)
	case messages.LoginRejected:
		c.loginPending = false
		if err := c.writePacket(messages.SLoginArbiter{Success: false, Status: 1}); err != nil {
			return err
		}
		return c.writeSystemMessage(messages.ErrorCodeLoginFailed)
	case messages.SelectUserRejected:
		if e.Revert && c.state == StateCharacterSelected {
			c.setState(StateLoggedIn)
		}
		return c.writeSystemMessage(e.Code)
	case messages.AttachLocalWorld:
		c.world = e.World
		c.entityID = e.EntityID
		c.setState(StateSpawning)
		return nil
	case messages.SpawnConfirmed:
		if c.state != StateSpawning {
			c.logger.Warn("Spawn confirmed in state %s", c.state)
			return nil
		}
		c.setState(StateInWorld)
		return c.writePacket(e.Packet)
	case messages.SpawnReverted:
		c.detach()
		return c.writeSystemMessage(e.Code)
	case messages.ReturnedToLobby:
		c.detach()
		return c.writePacket(messages.SReturnToLobby{})
	case messages.Disconnect:
		return fmt.Errorf("%w: %v", ErrProtocolViolation, e.Reason)
	default:
		c.logger.Warn("Unhandled connection event %T", event)
		return nil
	}
}

func (c *Connection) detach() {
	c.world = nil
	c.entityID = 0
	c.setState(StateLoggedIn)
}

func (c *Connection) setState(state ConnectionState) {
	if c.state == state {
		return
	}
	c.logger.Trace("State %s -> %s", c.state, state)
	c.state = state
}

func (c *Connection) writeSystemMessage(code messages.ErrorCode) error {
	id, ok := c.tables.SystemMessageID(code.SystemMessage())
	if !ok {
		id, _ = c.tables.SystemMessageID("SMT_UNDEFINED")
	}
	return c.writePacket(messages.SSystemMessage{MessageID: id})
}

func (c *Connection) writePacket(packet messages.Packet) error {
	opcode, ok := c.tables.OpcodeFor(packet.Name())
	if !ok {
		return fmt.Errorf("no opcode for %s", packet.Name())
	}
	payload, err := messages.SerializePacket(packet)
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", packet.Name(), err)
	}
	raw, err := c.cipher.Seal(protocol.Record{Opcode: opcode, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to seal %s: %w", packet.Name(), err)
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if _, err := c.conn.Write(raw); err != nil {
		return fmt.Errorf("failed to write %s: %w", packet.Name(), err)
	}
	metrics.PacketsSent.WithLabelValues(packet.Name()).Inc()
	return nil
}

// close runs once when the actor exits. Queued packets are flushed best
// effort before the socket is closed.
func (c *Connection) close() {
	c.closeOnce.Do(func() {
		c.setState(StateClosing)
		reason := c.Reason()

		if c.cipher != nil && !errors.Is(reason, ErrSlowConsumer) {
			c.flush()
		}
		close(c.done)

		if err := c.conn.Close(); err != nil {
			c.logger.Debug("Failed to close socket: %v", err)
		}

		// The global world must learn about every close or the account
		// stays spawned. The send only gives up when the world has stopped.
		if c.opened {
			if err := c.global.Send(context.Background(), messages.ConnectionClosed{ConnectionID: c.id}); err != nil {
				c.logger.Error("Failed to report closed connection: %v", err)
			}
		}
		c.setState(StateClosed)

		metrics.ConnectionsClosed.WithLabelValues(closeLabel(reason)).Inc()
		c.logger.Info("Connection closed: %v", reason)
	})
}

func (c *Connection) flush() {
	for {
		select {
		case event := <-c.events:
			p, ok := event.(messages.SendPacket)
			if !ok {
				continue
			}
			if err := c.writePacket(p.Packet); err != nil {
				return
			}
		default:
			return
		}
	}
}

func closeLabel(reason error) string {
	switch {
	case errors.Is(reason, ErrConnectionClosed):
		return "client"
	case errors.Is(reason, ErrSlowConsumer):
		return "slow_consumer"
	case errors.Is(reason, ErrProtocolViolation):
		return "protocol_violation"
	case errors.Is(reason, protocol.ErrBadFrame),
		errors.Is(reason, protocol.ErrRecordTooLarge),
		errors.Is(reason, protocol.ErrUnknownOpcode):
		return "cipher"
	case errors.Is(reason, context.Canceled):
		return "shutdown"
	default:
		return "error"
	}
}
