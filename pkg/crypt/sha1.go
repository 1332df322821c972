package crypt

import (
	"encoding/binary"
	"math/bits"
)

var (
	sha1Init = [5]uint32{0x67452301, 0xefcdab89, 0x98badcfe, 0x10325476, 0xc3d2e1f0}
	sha1K    = [4]uint32{0x5a827999, 0x6ed9eba1, 0x8f1bbcdc, 0xca62c1d6}
)

// digest is the SHA-1 variant the game client uses for key expansion. It
// differs from SHA-1 only in the message schedule, which skips the one bit
// left rotation.
type digest struct {
	h      [5]uint32
	block  [64]byte
	n      int
	length uint64
}

func newDigest() *digest {
	return &digest{h: sha1Init}
}

func (d *digest) write(p []byte) {
	for _, b := range p {
		d.block[d.n] = b
		d.n++
		d.length += 8
		if d.n == len(d.block) {
			d.processBlock()
		}
	}
}

// words pads the message and returns the five state words.
func (d *digest) words() [5]uint32 {
	length := d.length
	d.block[d.n] = 0x80
	d.n++
	if d.n > 56 {
		for d.n < 64 {
			d.block[d.n] = 0
			d.n++
		}
		d.processBlock()
	}
	for d.n < 56 {
		d.block[d.n] = 0
		d.n++
	}
	binary.BigEndian.PutUint64(d.block[56:], length)
	d.processBlock()
	return d.h
}

func (d *digest) processBlock() {
	var w [80]uint32
	for i := 0; i < 16; i++ {
		w[i] = binary.BigEndian.Uint32(d.block[i*4:])
	}
	for i := 16; i < 80; i++ {
		w[i] = w[i-3] ^ w[i-8] ^ w[i-14] ^ w[i-16]
	}

	a, b, c, dd, e := d.h[0], d.h[1], d.h[2], d.h[3], d.h[4]
	for i := 0; i < 80; i++ {
		var f, k uint32
		switch {
		case i < 20:
			f, k = (b&c)|(^b&dd), sha1K[0]
		case i < 40:
			f, k = b^c^dd, sha1K[1]
		case i < 60:
			f, k = (b&c)|(b&dd)|(c&dd), sha1K[2]
		default:
			f, k = b^c^dd, sha1K[3]
		}
		temp := bits.RotateLeft32(a, 5) + e + w[i] + f + k
		e = dd
		dd = c
		c = bits.RotateLeft32(b, 30)
		b = a
		a = temp
	}

	d.h[0] += a
	d.h[1] += b
	d.h[2] += c
	d.h[3] += dd
	d.h[4] += e
	d.n = 0
}

// Sum returns the variant digest of data with each state word in little endian order.
func Sum(data []byte) [20]byte {
	d := newDigest()
	d.write(data)
	var out [20]byte
	for i, w := range d.words() {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}
