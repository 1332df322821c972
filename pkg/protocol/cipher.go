package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cbodonnell/worldgate/pkg/crypt"
)

const (
	// HeaderSize is the u16 length plus the u16 opcode. The length counts the header.
	HeaderSize = 4
	// MaxRecordLength is the largest length a header can carry.
	MaxRecordLength = 0xFFFF
)

var (
	ErrBadFrame       = errors.New("record length shorter than its header")
	ErrRecordTooLarge = errors.New("record exceeds maximum length")
	ErrUnknownOpcode  = errors.New("unknown opcode")
)

// Record is one framed message in plaintext.
type Record struct {
	Opcode  uint16
	Payload []byte
}

type Options struct {
	// MaxRecordLength bounds inbound records. Zero means MaxRecordLength.
	MaxRecordLength int
	// ValidOpcode reports whether an inbound opcode is part of the protocol.
	// A header naming anything else means the keystreams have drifted.
	ValidOpcode func(opcode uint16) bool
}

// SessionCipher frames records on top of a crypt.Session. Every inbound byte
// is decrypted as soon as it arrives so the keystream position always equals
// the number of bytes received. Once Open fails the cipher stays failed.
type SessionCipher struct {
	session         *crypt.Session
	maxRecordLength int
	validOpcode     func(uint16) bool

	pending []byte
	err     error
}

func NewSessionCipher(session *crypt.Session, options Options) *SessionCipher {
	maxLength := options.MaxRecordLength
	if maxLength <= 0 || maxLength > MaxRecordLength {
		maxLength = MaxRecordLength
	}
	return &SessionCipher{
		session:         session,
		maxRecordLength: maxLength,
		validOpcode:     options.ValidOpcode,
	}
}

// Open decrypts raw and returns every record completed by it, in order.
// Bytes of an incomplete trailing record are kept for the next call.
func (c *SessionCipher) Open(raw []byte) ([]Record, error) {
	if c.err != nil {
		return nil, c.err
	}

	start := len(c.pending)
	c.pending = append(c.pending, raw...)
	c.session.Decrypt(c.pending[start:])

	var records []Record
	for len(c.pending) >= HeaderSize {
		length := int(binary.LittleEndian.Uint16(c.pending[0:2]))
		opcode := binary.LittleEndian.Uint16(c.pending[2:4])

		if length < HeaderSize {
			return nil, c.fail(fmt.Errorf("%w: length %d", ErrBadFrame, length))
		}
		if length > c.maxRecordLength {
			return nil, c.fail(fmt.Errorf("%w: length %d", ErrRecordTooLarge, length))
		}
		if c.validOpcode != nil && !c.validOpcode(opcode) {
			return nil, c.fail(fmt.Errorf("%w: %d", ErrUnknownOpcode, opcode))
		}
		if len(c.pending) < length {
			break
		}

		payload := make([]byte, length-HeaderSize)
		copy(payload, c.pending[HeaderSize:length])
		records = append(records, Record{Opcode: opcode, Payload: payload})
		c.pending = c.pending[length:]
	}

	if len(c.pending) == 0 {
		c.pending = nil
	}

	return records, nil
}

// Seal frames and encrypts an outbound record.
func (c *SessionCipher) Seal(record Record) ([]byte, error) {
	length := HeaderSize + len(record.Payload)
	if length > MaxRecordLength {
		return nil, fmt.Errorf("%w: length %d", ErrRecordTooLarge, length)
	}

	b := make([]byte, length)
	binary.LittleEndian.PutUint16(b[0:2], uint16(length))
	binary.LittleEndian.PutUint16(b[2:4], record.Opcode)
	copy(b[HeaderSize:], record.Payload)
	c.session.Encrypt(b)

	return b, nil
}

// Err returns the error that failed the cipher, if any.
func (c *SessionCipher) Err() error {
	return c.err
}

func (c *SessionCipher) fail(err error) error {
	c.err = err
	c.pending = nil
	return err
}
