package protocol

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"testing"
	"time"

	"github.com/cbodonnell/worldgate/pkg/crypt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionPair(t *testing.T) (server, client *crypt.Session) {
	t.Helper()
	clientKeys := [2][]byte{bytes.Repeat([]byte{0x42}, crypt.KeySize), bytes.Repeat([]byte{0x17}, crypt.KeySize)}
	serverKeys := [2][]byte{bytes.Repeat([]byte{0x99}, crypt.KeySize), bytes.Repeat([]byte{0x05}, crypt.KeySize)}

	server, err := crypt.NewSession(clientKeys, serverKeys, crypt.RoleServer)
	require.NoError(t, err)
	client, err = crypt.NewSession(clientKeys, serverKeys, crypt.RoleClient)
	require.NoError(t, err)
	return server, client
}

func validOpcodes(opcodes ...uint16) func(uint16) bool {
	return func(opcode uint16) bool {
		for _, o := range opcodes {
			if o == opcode {
				return true
			}
		}
		return false
	}
}

func TestSessionCipher_RoundTrip(t *testing.T) {
	want := []Record{
		{Opcode: 1, Payload: []byte("first")},
		{Opcode: 2, Payload: nil},
		{Opcode: 3, Payload: bytes.Repeat([]byte{0xaa}, 300)},
	}
	streamLen := 0
	for _, r := range want {
		streamLen += HeaderSize + len(r.Payload)
	}

	tests := []struct {
		name   string
		chunks []int
	}{
		{name: "whole stream", chunks: []int{streamLen}},
		{name: "split header", chunks: []int{2, 3, streamLen - 5}},
		{name: "odd chunks", chunks: []int{7, 1, 1, 100, streamLen - 109}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			serverSession, clientSession := newSessionPair(t)
			server := NewSessionCipher(serverSession, Options{ValidOpcode: validOpcodes(1, 2, 3)})
			client := NewSessionCipher(clientSession, Options{})

			var stream []byte
			for _, r := range want {
				b, err := client.Seal(r)
				require.NoError(t, err)
				stream = append(stream, b...)
			}

			var got []Record
			offset := 0
			for _, n := range tt.chunks {
				records, err := server.Open(stream[offset : offset+n])
				require.NoError(t, err)
				got = append(got, records...)
				offset += n
			}

			require.Len(t, got, len(want))
			for i := range want {
				assert.Equal(t, want[i].Opcode, got[i].Opcode)
				assert.Equal(t, len(want[i].Payload), len(got[i].Payload))
				if len(want[i].Payload) > 0 {
					assert.Equal(t, want[i].Payload, got[i].Payload)
				}
			}
		})
	}
}

func TestSessionCipher_ServerToClient(t *testing.T) {
	serverSession, clientSession := newSessionPair(t)
	server := NewSessionCipher(serverSession, Options{})
	client := NewSessionCipher(clientSession, Options{ValidOpcode: validOpcodes(7)})

	b, err := server.Seal(Record{Opcode: 7, Payload: []byte("hello")})
	require.NoError(t, err)

	records, err := client.Open(b)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []byte("hello"), records[0].Payload)
}

func TestSessionCipher_OutOfOrderIsFatal(t *testing.T) {
	serverSession, clientSession := newSessionPair(t)
	server := NewSessionCipher(serverSession, Options{MaxRecordLength: 512, ValidOpcode: validOpcodes(1, 2)})
	client := NewSessionCipher(clientSession, Options{})

	first, err := client.Seal(Record{Opcode: 1, Payload: []byte("first record")})
	require.NoError(t, err)
	second, err := client.Seal(Record{Opcode: 2, Payload: []byte("second record")})
	require.NoError(t, err)

	_, err = server.Open(second)
	require.Error(t, err)
	assert.Equal(t, err, server.Err())

	// A failed cipher never recovers.
	_, err = server.Open(first)
	assert.Equal(t, server.Err(), err)
}

func TestSessionCipher_SealTooLarge(t *testing.T) {
	_, clientSession := newSessionPair(t)
	client := NewSessionCipher(clientSession, Options{})

	_, err := client.Seal(Record{Opcode: 1, Payload: make([]byte, MaxRecordLength)})
	assert.ErrorIs(t, err, ErrRecordTooLarge)
}

func TestHandshake(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	type result struct {
		session *crypt.Session
		err     error
	}
	serverResult := make(chan result, 1)
	go func() {
		s, err := ServerHandshake(context.Background(), serverConn, HandshakeOptions{Timeout: time.Second})
		serverResult <- result{s, err}
	}()

	clientSession, err := ClientHandshake(context.Background(), clientConn, HandshakeOptions{Timeout: time.Second})
	require.NoError(t, err)
	res := <-serverResult
	require.NoError(t, res.err)

	client := NewSessionCipher(clientSession, Options{})
	server := NewSessionCipher(res.session, Options{ValidOpcode: validOpcodes(100)})

	b, err := client.Seal(Record{Opcode: 100, Payload: []byte("after handshake")})
	require.NoError(t, err)
	records, err := server.Open(b)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []byte("after handshake"), records[0].Payload)
}

func TestServerHandshake_Timeout(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	// Read the magic and then go silent.
	go func() {
		b := make([]byte, len(Magic))
		_, _ = io.ReadFull(clientConn, b)
	}()

	_, err := ServerHandshake(context.Background(), serverConn, HandshakeOptions{Timeout: 50 * time.Millisecond})
	assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
}

func TestClientHandshake_BadMagic(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	go func() {
		_, _ = serverConn.Write([]byte{0x02, 0x00, 0x00, 0x00})
	}()

	_, err := ClientHandshake(context.Background(), clientConn, HandshakeOptions{Timeout: time.Second})
	assert.ErrorIs(t, err, ErrBadMagic)
}
