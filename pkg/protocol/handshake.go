package protocol

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/cbodonnell/worldgate/pkg/crypt"
)

// DefaultHandshakeTimeout bounds every step of the key exchange.
const DefaultHandshakeTimeout = 5 * time.Second

var Magic = []byte{0x01, 0x00, 0x00, 0x00}

var ErrBadMagic = errors.New("unexpected handshake magic")

type HandshakeOptions struct {
	Timeout time.Duration
	// Rand supplies the local keys. Defaults to crypto/rand.
	Rand io.Reader
}

func (o HandshakeOptions) withDefaults() HandshakeOptions {
	if o.Timeout <= 0 {
		o.Timeout = DefaultHandshakeTimeout
	}
	if o.Rand == nil {
		o.Rand = rand.Reader
	}
	return o
}

// ServerHandshake runs the server side of the key exchange:
// magic, client key 1, server key 1, client key 2, server key 2.
func ServerHandshake(ctx context.Context, conn net.Conn, options HandshakeOptions) (*crypt.Session, error) {
	options = options.withDefaults()
	h := &handshake{ctx: ctx, conn: conn, timeout: options.Timeout}
	defer conn.SetDeadline(time.Time{})

	var clientKeys, serverKeys [2][]byte
	for i := range serverKeys {
		serverKeys[i] = make([]byte, crypt.KeySize)
		if _, err := io.ReadFull(options.Rand, serverKeys[i]); err != nil {
			return nil, fmt.Errorf("failed to generate server key: %w", err)
		}
	}

	if err := h.write(Magic); err != nil {
		return nil, fmt.Errorf("failed to write magic: %w", err)
	}
	for i := 0; i < 2; i++ {
		key, err := h.read(crypt.KeySize)
		if err != nil {
			return nil, fmt.Errorf("failed to read client key %d: %w", i+1, err)
		}
		clientKeys[i] = key
		if err := h.write(serverKeys[i]); err != nil {
			return nil, fmt.Errorf("failed to write server key %d: %w", i+1, err)
		}
	}

	return crypt.NewSession(clientKeys, serverKeys, crypt.RoleServer)
}

// ClientHandshake runs the client side of the key exchange.
func ClientHandshake(ctx context.Context, conn net.Conn, options HandshakeOptions) (*crypt.Session, error) {
	options = options.withDefaults()
	h := &handshake{ctx: ctx, conn: conn, timeout: options.Timeout}
	defer conn.SetDeadline(time.Time{})

	var clientKeys, serverKeys [2][]byte
	for i := range clientKeys {
		clientKeys[i] = make([]byte, crypt.KeySize)
		if _, err := io.ReadFull(options.Rand, clientKeys[i]); err != nil {
			return nil, fmt.Errorf("failed to generate client key: %w", err)
		}
	}

	magic, err := h.read(len(Magic))
	if err != nil {
		return nil, fmt.Errorf("failed to read magic: %w", err)
	}
	if !bytes.Equal(magic, Magic) {
		return nil, ErrBadMagic
	}
	for i := 0; i < 2; i++ {
		if err := h.write(clientKeys[i]); err != nil {
			return nil, fmt.Errorf("failed to write client key %d: %w", i+1, err)
		}
		key, err := h.read(crypt.KeySize)
		if err != nil {
			return nil, fmt.Errorf("failed to read server key %d: %w", i+1, err)
		}
		serverKeys[i] = key
	}

	return crypt.NewSession(clientKeys, serverKeys, crypt.RoleClient)
}

type handshake struct {
	ctx     context.Context
	conn    net.Conn
	timeout time.Duration
}

func (h *handshake) deadline() time.Time {
	deadline := time.Now().Add(h.timeout)
	if d, ok := h.ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return deadline
}

func (h *handshake) read(n int) ([]byte, error) {
	if err := h.ctx.Err(); err != nil {
		return nil, err
	}
	if err := h.conn.SetReadDeadline(h.deadline()); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(h.conn, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (h *handshake) write(b []byte) error {
	if err := h.ctx.Err(); err != nil {
		return err
	}
	if err := h.conn.SetWriteDeadline(h.deadline()); err != nil {
		return err
	}
	_, err := h.conn.Write(b)
	return err
}
