package client

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/cbodonnell/worldgate/pkg/log"
	"github.com/cbodonnell/worldgate/pkg/messages"
	"github.com/cbodonnell/worldgate/pkg/protocol"
	"github.com/cbodonnell/worldgate/pkg/staticdata"
)

const readBufferSize = 16 * 1024

// Client speaks the game protocol from the client side. One goroutine may
// send while another receives.
type Client struct {
	conn   net.Conn
	cipher *protocol.SessionCipher
	tables *staticdata.Tables
	seq    uint32
	queued []messages.Packet
	buf    []byte
}

// Dial connects to a server and completes the key exchange.
func Dial(ctx context.Context, addr string, tables *staticdata.Tables) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	c, err := New(ctx, conn, tables)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// New completes the key exchange on an open connection.
func New(ctx context.Context, conn net.Conn, tables *staticdata.Tables) (*Client, error) {
	session, err := protocol.ClientHandshake(ctx, conn, protocol.HandshakeOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to complete handshake: %w", err)
	}
	return &Client{
		conn:   conn,
		cipher: protocol.NewSessionCipher(session, protocol.Options{ValidOpcode: tables.KnownOpcode}),
		tables: tables,
		buf:    make([]byte, readBufferSize),
	}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Send writes a packet. Packets that need an integrity sequence number get
// the next one.
func (c *Client) Send(packet messages.Packet) error {
	payload, err := messages.SerializePacket(packet)
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", packet.Name(), err)
	}
	if c.tables.RequiresIntegrityCheck(packet.Name()) {
		c.seq++
		payload = append(binary.LittleEndian.AppendUint32(nil, c.seq), payload...)
	}
	return c.SendRaw(packet.Name(), payload)
}

// SendRaw writes a record with an already encoded payload.
func (c *Client) SendRaw(name string, payload []byte) error {
	opcode, ok := c.tables.OpcodeFor(name)
	if !ok {
		return fmt.Errorf("no opcode for %s", name)
	}
	raw, err := c.cipher.Seal(protocol.Record{Opcode: opcode, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to seal %s: %w", name, err)
	}
	if _, err := c.conn.Write(raw); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// Receive returns the next packet from the server, waiting at most timeout.
func (c *Client) Receive(timeout time.Duration) (messages.Packet, error) {
	deadline := time.Now().Add(timeout)
	for len(c.queued) == 0 {
		if err := c.conn.SetReadDeadline(deadline); err != nil {
			return nil, fmt.Errorf("failed to set read deadline: %w", err)
		}
		n, err := c.conn.Read(c.buf)
		if n > 0 {
			if err := c.open(c.buf[:n]); err != nil {
				return nil, err
			}
		}
		if err != nil && len(c.queued) == 0 {
			return nil, fmt.Errorf("failed to read from server: %w", err)
		}
	}
	p := c.queued[0]
	c.queued = c.queued[1:]
	return p, nil
}

// Expect returns the next packet named name, skipping pings.
func (c *Client) Expect(name string, timeout time.Duration) (messages.Packet, error) {
	for {
		p, err := c.Receive(timeout)
		if err != nil {
			return nil, err
		}
		switch p.Name() {
		case name:
			return p, nil
		case "S_PING":
			continue
		default:
			return nil, fmt.Errorf("expected %s, got %s", name, p.Name())
		}
	}
}

func (c *Client) open(data []byte) error {
	records, err := c.cipher.Open(data)
	if err != nil {
		return fmt.Errorf("failed to open records: %w", err)
	}
	for _, record := range records {
		name, _ := c.tables.NameFor(record.Opcode)
		if !messages.Registered(name) {
			log.Debug("Skipping unsupported packet %s", name)
			continue
		}
		p, err := messages.DeserializePacket(name, record.Payload)
		if err != nil {
			return fmt.Errorf("failed to decode %s: %w", name, err)
		}
		c.queued = append(c.queued, p)
	}
	return nil
}
