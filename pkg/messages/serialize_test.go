package messages

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeserializePacket(t *testing.T) {
	tests := []struct {
		name    string
		packet  string
		payload []byte
		want    Packet
		wantErr error
	}{
		{
			name:    "select user",
			packet:  "C_SELECT_USER",
			payload: []byte{0x2a, 0x00, 0x00, 0x00},
			want:    &CSelectUser{UserID: 42},
		},
		{
			name:    "login arbiter",
			packet:  "C_LOGIN_ARBITER",
			payload: []byte{0x02, 0x00, 'a', 'b', 0x03, 0x00, 0x01, 0x02, 0x03},
			want:    &CLoginArbiter{AccountName: "ab", Ticket: []byte{0x01, 0x02, 0x03}},
		},
		{
			name:    "empty body",
			packet:  "C_LOAD_TOPO_FIN",
			payload: nil,
			want:    &CLoadTopoFin{},
		},
		{
			name:    "short payload",
			packet:  "C_SELECT_USER",
			payload: []byte{0x2a, 0x00},
			wantErr: ErrShortPayload,
		},
		{
			name:    "string longer than payload",
			packet:  "C_LOGIN_ARBITER",
			payload: []byte{0x10, 0x00, 'a'},
			wantErr: ErrShortPayload,
		},
		{
			name:    "trailing bytes",
			packet:  "C_PONG",
			payload: []byte{0x00},
			wantErr: ErrTrailingBytes,
		},
		{
			name:    "unknown packet",
			packet:  "C_DANCE",
			wantErr: ErrUnknownPacket,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeserializePacket(tt.packet, tt.payload)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSerializePacket_UserList(t *testing.T) {
	list := SGetUserList{Users: []UserSummary{
		{ID: 1, Name: "Elin", Level: 65, Race: 4, Gender: 1, Class: 3, ZoneID: 5, Alive: true},
		{ID: 2, Name: "Popori", Level: 1, ZoneID: 7},
	}}

	b, err := SerializePacket(list)
	require.NoError(t, err)

	got, err := DeserializePacket(list.Name(), b)
	require.NoError(t, err)
	assert.Equal(t, &list, got)
}

func TestSerializePacket_FieldTooLong(t *testing.T) {
	_, err := SerializePacket(SSystemMessage{Args: []string{strings.Repeat("x", 70000)}})
	assert.ErrorIs(t, err, ErrFieldTooLong)
}

func TestErrorCode_SystemMessage(t *testing.T) {
	assert.Equal(t, "SMT_ALREADY_SPAWNED", ErrorCodeAlreadySpawned.SystemMessage())
	assert.Equal(t, "SMT_SPAWN_TIMEOUT_RETRY", ErrorCodeTicketTimeout.SystemMessage())
	assert.Equal(t, "SMT_UNDEFINED", ErrorCode(99).SystemMessage())
}

func TestSerializePacket_UserNames(t *testing.T) {
	packets := []Packet{
		SLogin{EntityID: 100, UserID: 1, UserName: "Elin", Level: 60, Class: 3, Alive: true},
		SSpawnUser{EntityID: 101, UserID: 2, UserName: "Popori", X: 16000, Y: 1000, Z: 5, Rotation: 90, Alive: true},
	}
	for _, p := range packets {
		t.Run(p.Name(), func(t *testing.T) {
			b, err := SerializePacket(p)
			require.NoError(t, err)

			got, err := DeserializePacket(p.Name(), b)
			require.NoError(t, err)
			switch want := p.(type) {
			case SLogin:
				assert.Equal(t, &want, got)
			case SSpawnUser:
				assert.Equal(t, &want, got)
			}
		})
	}
}
