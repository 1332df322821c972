package crypt

import (
	"crypto/cipher"
	"fmt"
)

// Role selects which derived stream a Session uses for each direction.
type Role int

const (
	RoleServer Role = iota
	RoleClient
)

// Session holds the two keystreams of one connection. The client to server
// stream is seeded first and its first 128 bytes are spent deriving the
// server to client key, so both peers must build the session from the same
// four handshake keys.
type Session struct {
	inbound  cipher.Stream
	outbound cipher.Stream
}

// NewSession derives the stream pair from both client keys and both server keys.
func NewSession(clientKeys, serverKeys [2][]byte, role Role) (*Session, error) {
	for i := 0; i < 2; i++ {
		if len(clientKeys[i]) != KeySize || len(serverKeys[i]) != KeySize {
			return nil, ErrInvalidKeySize
		}
	}

	tmp := shiftKey(serverKeys[0], 67, true)
	tmp = xorKey(tmp, clientKeys[0])
	decryptKey := xorKey(shiftKey(clientKeys[1], 29, false), tmp)

	clientStream, err := NewPike(decryptKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create client stream: %w", err)
	}

	encryptKey := shiftKey(serverKeys[1], 41, true)
	clientStream.XORKeyStream(encryptKey, encryptKey)

	serverStream, err := NewPike(encryptKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create server stream: %w", err)
	}

	switch role {
	case RoleServer:
		return &Session{inbound: clientStream, outbound: serverStream}, nil
	case RoleClient:
		return &Session{inbound: serverStream, outbound: clientStream}, nil
	default:
		return nil, fmt.Errorf("unknown session role %d", role)
	}
}

// Decrypt transforms data read from the peer in place.
func (s *Session) Decrypt(data []byte) {
	s.inbound.XORKeyStream(data, data)
}

// Encrypt transforms data about to be written to the peer in place.
func (s *Session) Encrypt(data []byte) {
	s.outbound.XORKeyStream(data, data)
}

// shiftKey rotates a key by n bytes, towards higher indexes when right is set.
func shiftKey(src []byte, n int, right bool) []byte {
	dst := make([]byte, KeySize)
	for i := 0; i < KeySize; i++ {
		if right {
			dst[(i+n)%KeySize] = src[i]
		} else {
			dst[i] = src[(i+n)%KeySize]
		}
	}
	return dst
}

func xorKey(a, b []byte) []byte {
	dst := make([]byte, KeySize)
	for i := range dst {
		dst[i] = a[i] ^ b[i]
	}
	return dst
}
