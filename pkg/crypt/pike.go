package crypt

import (
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"math/bits"
)

// KeySize is the length of every handshake key and of a Pike key.
const KeySize = 128

const expandedKeySize = 680

var ErrInvalidKeySize = errors.New("crypt: key must be 128 bytes")

type keyGenerator struct {
	size   int
	pos1   int
	pos2   int
	carry  bool
	sum    uint32
	buffer []uint32
}

func newKeyGenerator(size, pos2 int) keyGenerator {
	return keyGenerator{
		size:   size,
		pos2:   pos2,
		buffer: make([]uint32, size),
	}
}

// Pike is the session stream cipher of the game protocol: three additive
// lagged Fibonacci generators combined with majority clocking. The keystream
// position carries across calls, so splitting data into chunks of any size
// yields the same output.
type Pike struct {
	generators     [3]keyGenerator
	lastCryptor    uint32
	lastCryptorLen int
}

var _ cipher.Stream = (*Pike)(nil)

// NewPike expands key into the generator state.
func NewPike(key []byte) (*Pike, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}

	p := &Pike{
		generators: [3]keyGenerator{
			newKeyGenerator(55, 31),
			newKeyGenerator(57, 50),
			newKeyGenerator(58, 39),
		},
	}

	expanded := make([]byte, expandedKeySize)
	expanded[0] = 128
	for i := 1; i < expandedKeySize; i++ {
		expanded[i] = key[i%KeySize]
	}
	for i := 0; i < expandedKeySize; i += 20 {
		d := newDigest()
		d.write(expanded)
		for j, w := range d.words() {
			binary.LittleEndian.PutUint32(expanded[i+j*4:], w)
		}
	}

	offsets := [3]int{0, 220, 448}
	for g := range p.generators {
		gen := &p.generators[g]
		for i := 0; i < gen.size; i++ {
			gen.buffer[i] = binary.LittleEndian.Uint32(expanded[offsets[g]+i*4:])
		}
	}

	return p, nil
}

// XORKeyStream implements cipher.Stream. dst and src may overlap entirely.
func (p *Pike) XORKeyStream(dst, src []byte) {
	if len(dst) < len(src) {
		panic("crypt: output smaller than input")
	}
	data := dst[:len(src)]
	copy(data, src)
	p.apply(data)
}

func (p *Pike) apply(data []byte) {
	size := len(data)

	// Spend what is left of the previous word first.
	prelude := p.lastCryptorLen
	if size < prelude {
		prelude = size
	}
	for i := 0; i < prelude; i++ {
		shift := 8 * (4 - p.lastCryptorLen + i)
		data[i] ^= byte(p.lastCryptor >> shift)
	}
	p.lastCryptorLen -= prelude

	i := prelude
	for ; i+4 <= size; i += 4 {
		p.clock()
		for g := range p.generators {
			sum := p.generators[g].sum
			data[i] ^= byte(sum)
			data[i+1] ^= byte(sum >> 8)
			data[i+2] ^= byte(sum >> 16)
			data[i+3] ^= byte(sum >> 24)
		}
	}

	postlude := (size - prelude) & 3
	if postlude != 0 {
		p.clock()
		p.lastCryptor = 0
		for g := range p.generators {
			p.lastCryptor ^= p.generators[g].sum
		}
		for j := 0; j < postlude; j++ {
			data[size-postlude+j] ^= byte(p.lastCryptor >> (8 * j))
		}
		p.lastCryptorLen = 4 - postlude
	}
}

func (p *Pike) clock() {
	g := &p.generators
	keyClock := g[0].carry && g[1].carry || g[2].carry && (g[0].carry || g[1].carry)
	for i := range g {
		k := &g[i]
		if k.carry != keyClock {
			continue
		}
		sum, carry := bits.Add32(k.buffer[k.pos1], k.buffer[k.pos2], 0)
		k.sum = sum
		k.carry = carry != 0
		k.pos1 = (k.pos1 + 1) % k.size
		k.pos2 = (k.pos2 + 1) % k.size
	}
}
