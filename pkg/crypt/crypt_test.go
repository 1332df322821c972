package crypt

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSum(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: "19ea6cf956ddd18a4a08ac1710c6923defc00877"},
		{name: "hello world", input: "hello world", want: "c382ce9f95c18748a2b3403b85183e88a6a84f0c"},
		{name: "hello, world", input: "hello, world", want: "cd4df1db2c067776df20233f305e1c8bb9101d94"},
		{name: "Hello, World", input: "Hello, World", want: "8a3e3ab2ba039d638aa171b17a1a477b06d19b53"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum := Sum([]byte(tt.input))
			assert.Equal(t, tt.want, hex.EncodeToString(sum[:]))
		})
	}
}

func newTestPike(t *testing.T) *Pike {
	t.Helper()
	p, err := NewPike(bytes.Repeat([]byte{0x12}, KeySize))
	require.NoError(t, err)
	return p
}

func TestPike_KnownStreams(t *testing.T) {
	tests := []struct {
		name   string
		inputs [][]byte
		want   []string
	}{
		{
			name:   "zeros",
			inputs: [][]byte{bytes.Repeat([]byte{0x00}, 32)},
			want:   []string{"d58c55765f2c68ffd7cb9e68c71c66db137b43c6a800e3b57d478c880a0ca3c3"},
		},
		{
			name:   "ones",
			inputs: [][]byte{bytes.Repeat([]byte{0xff}, 32)},
			want:   []string{"2a73aa89a0d397002834619738e39924ec84bc3957ff1c4a82b87377f5f35c3c"},
		},
		{
			name: "sequence",
			inputs: [][]byte{
				bytes.Repeat([]byte{0xce}, 32),
				bytes.Repeat([]byte{0x00}, 32),
				bytes.Repeat([]byte{0xff}, 32),
			},
			want: []string{
				"1b429bb891e2a631190550a609d2a815ddb58d0866ce2d7bb3894246c4c26d0d",
				"1eb1321c0cb111044a7264336dc9521c8c18bbe6b5af4ee227cce206990d60ef",
				"fe07bb243a80a783caf91a7907978534efff975bd080ff39b1f3df04bd24f02d",
			},
		},
		{
			name:   "four bytes",
			inputs: [][]byte{bytes.Repeat([]byte{0x11}, 4)},
			want:   []string{"c49d4467"},
		},
		{
			name:   "two byte steps",
			inputs: [][]byte{{0x11, 0x11}, {0x11, 0x11}},
			want:   []string{"c49d", "4467"},
		},
		{
			name:   "one byte steps",
			inputs: [][]byte{{0x11}, {0x11}, {0x11}, {0x11}},
			want:   []string{"c4", "9d", "44", "67"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPike(t)
			for i, input := range tt.inputs {
				out := make([]byte, len(input))
				p.XORKeyStream(out, input)
				assert.Equal(t, tt.want[i], hex.EncodeToString(out))
			}
		})
	}
}

func TestPike_ChunkingIsTransparent(t *testing.T) {
	data := make([]byte, 203)
	for i := range data {
		data[i] = byte(i * 7)
	}

	whole := make([]byte, len(data))
	newTestPike(t).XORKeyStream(whole, data)

	chunked := append([]byte(nil), data...)
	p := newTestPike(t)
	offset := 0
	for _, n := range []int{1, 3, 4, 5, 2, 64, 7, 117} {
		p.XORKeyStream(chunked[offset:offset+n], chunked[offset:offset+n])
		offset += n
	}
	assert.Equal(t, whole, chunked)
}

func TestNewPike_InvalidKey(t *testing.T) {
	_, err := NewPike(make([]byte, 16))
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func testKeys() ([2][]byte, [2][]byte) {
	clientKeys := [2][]byte{bytes.Repeat([]byte{0x01}, KeySize), make([]byte, KeySize)}
	serverKeys := [2][]byte{make([]byte, KeySize), bytes.Repeat([]byte{0xab}, KeySize)}
	for i := 0; i < KeySize; i++ {
		clientKeys[1][i] = byte(i)
		serverKeys[0][i] = byte(255 - i)
	}
	return clientKeys, serverKeys
}

func TestSession_BothDirections(t *testing.T) {
	clientKeys, serverKeys := testKeys()

	server, err := NewSession(clientKeys, serverKeys, RoleServer)
	require.NoError(t, err)
	client, err := NewSession(clientKeys, serverKeys, RoleClient)
	require.NoError(t, err)

	for _, msg := range []string{"C_LOGIN_ARBITER", "x", "a longer message that spans several words"} {
		data := []byte(msg)
		client.Encrypt(data)
		assert.NotEqual(t, msg, string(data))
		server.Decrypt(data)
		assert.Equal(t, msg, string(data))

		data = []byte(msg)
		server.Encrypt(data)
		client.Decrypt(data)
		assert.Equal(t, msg, string(data))
	}
}

func TestNewSession_InvalidKeys(t *testing.T) {
	clientKeys, serverKeys := testKeys()
	clientKeys[0] = clientKeys[0][:10]
	_, err := NewSession(clientKeys, serverKeys, RoleServer)
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestPassword(t *testing.T) {
	params := PasswordParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

	encoded, err := HashPassword([]byte("hunter2"), params)
	require.NoError(t, err)
	assert.Contains(t, encoded, "$argon2id$v=19$m=1024,t=1,p=1$")

	ok, err := VerifyPassword([]byte("hunter2"), encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword([]byte("hunter3"), encoded)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = VerifyPassword([]byte("hunter2"), "$bcrypt$nope")
	assert.ErrorIs(t, err, ErrInvalidHash)
}
