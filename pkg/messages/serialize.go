package messages

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	ErrUnknownPacket = errors.New("no codec for packet")
	ErrShortPayload  = errors.New("payload too short")
	ErrTrailingBytes = errors.New("payload has trailing bytes")
	ErrFieldTooLong  = errors.New("field too long")
)

// Packet is a message body on the wire. The opcode is resolved from Name
// through the opcode table.
type Packet interface {
	Name() string
	Encode(w *Writer)
}

type decodablePacket interface {
	Packet
	Decode(r *Reader)
}

var registry = map[string]func() decodablePacket{}

func register(factory func() decodablePacket) {
	registry[factory().Name()] = factory
}

// Registered reports whether a packet name has a codec.
func Registered(name string) bool {
	_, ok := registry[name]
	return ok
}

// SerializePacket encodes the body of p.
func SerializePacket(p Packet) ([]byte, error) {
	w := NewWriter()
	p.Encode(w)
	if err := w.Err(); err != nil {
		return nil, fmt.Errorf("failed to serialize %s: %w", p.Name(), err)
	}
	return w.Bytes(), nil
}

// DeserializePacket decodes payload into a new packet of the given name.
// The result is always a pointer, e.g. *CSelectUser.
func DeserializePacket(name string, payload []byte) (Packet, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPacket, name)
	}

	p := factory()
	r := NewReader(payload)
	p.Decode(r)
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("failed to deserialize %s: %w", name, err)
	}
	if r.Remaining() != 0 {
		return nil, fmt.Errorf("failed to deserialize %s: %w", name, ErrTrailingBytes)
	}

	return p, nil
}

// Writer appends little-endian fields. Strings and blobs carry a u16 length.
type Writer struct {
	buf []byte
	err error
}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) Err() error {
	return w.err
}

func (w *Writer) U8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) Bool(v bool) {
	if v {
		w.U8(1)
	} else {
		w.U8(0)
	}
}

func (w *Writer) U16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

func (w *Writer) I16(v int16) {
	w.U16(uint16(v))
}

func (w *Writer) U32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *Writer) I32(v int32) {
	w.U32(uint32(v))
}

func (w *Writer) U64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

func (w *Writer) F32(v float32) {
	w.U32(math.Float32bits(v))
}

// Count writes a u16 element count.
func (w *Writer) Count(n int) {
	if n > math.MaxUint16 {
		w.err = ErrFieldTooLong
		return
	}
	w.U16(uint16(n))
}

func (w *Writer) Blob(v []byte) {
	w.Count(len(v))
	w.buf = append(w.buf, v...)
}

func (w *Writer) String(v string) {
	w.Blob([]byte(v))
}

// Reader consumes little-endian fields. After the first error every read
// returns the zero value and Err reports the error.
type Reader struct {
	data []byte
	off  int
	err  error
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

func (r *Reader) read(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.Remaining() < n {
		r.err = ErrShortPayload
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *Reader) U8() uint8 {
	b := r.read(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) Bool() bool {
	return r.U8() != 0
}

func (r *Reader) U16() uint16 {
	b := r.read(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *Reader) I16() int16 {
	return int16(r.U16())
}

func (r *Reader) U32() uint32 {
	b := r.read(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *Reader) I32() int32 {
	return int32(r.U32())
}

func (r *Reader) U64() uint64 {
	b := r.read(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *Reader) F32() float32 {
	return math.Float32frombits(r.U32())
}

func (r *Reader) Count() int {
	return int(r.U16())
}

func (r *Reader) Blob() []byte {
	n := r.Count()
	b := r.read(n)
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func (r *Reader) String() string {
	return string(r.Blob())
}
