package messages

import (
	"github.com/cbodonnell/worldgate/pkg/repositories/models"
)

func init() {
	register(func() decodablePacket { return &CLoginArbiter{} })
	register(func() decodablePacket { return &SLoginArbiter{} })
	register(func() decodablePacket { return &CGetUserList{} })
	register(func() decodablePacket { return &SGetUserList{} })
	register(func() decodablePacket { return &CSelectUser{} })
	register(func() decodablePacket { return &SLogin{} })
	register(func() decodablePacket { return &SInven{} })
	register(func() decodablePacket { return &SQuestInfo{} })
	register(func() decodablePacket { return &SFriendList{} })
	register(func() decodablePacket { return &SLoadTopo{} })
	register(func() decodablePacket { return &SLoadHint{} })
	register(func() decodablePacket { return &CLoadTopoFin{} })
	register(func() decodablePacket { return &SSpawnMe{} })
	register(func() decodablePacket { return &SSpawnUser{} })
	register(func() decodablePacket { return &SDespawnUser{} })
	register(func() decodablePacket { return &SPing{} })
	register(func() decodablePacket { return &CPong{} })
	register(func() decodablePacket { return &CReturnToLobby{} })
	register(func() decodablePacket { return &SReturnToLobby{} })
	register(func() decodablePacket { return &SSystemMessage{} })
	register(func() decodablePacket { return &CPlayerLocation{} })
}

type CLoginArbiter struct {
	AccountName string
	Ticket      []byte
}

func (CLoginArbiter) Name() string { return "C_LOGIN_ARBITER" }

func (p CLoginArbiter) Encode(w *Writer) {
	w.String(p.AccountName)
	w.Blob(p.Ticket)
}

func (p *CLoginArbiter) Decode(r *Reader) {
	p.AccountName = r.String()
	p.Ticket = r.Blob()
}

type SLoginArbiter struct {
	Success bool
	Status  uint32
}

func (SLoginArbiter) Name() string { return "S_LOGIN_ARBITER" }

func (p SLoginArbiter) Encode(w *Writer) {
	w.Bool(p.Success)
	w.U32(p.Status)
}

func (p *SLoginArbiter) Decode(r *Reader) {
	p.Success = r.Bool()
	p.Status = r.U32()
}

type CGetUserList struct{}

func (CGetUserList) Name() string      { return "C_GET_USER_LIST" }
func (CGetUserList) Encode(w *Writer)  {}
func (*CGetUserList) Decode(r *Reader) {}

type UserSummary struct {
	ID     int32
	Name   string
	Level  int32
	Race   int32
	Gender int32
	Class  int32
	ZoneID int32
	Alive  bool
}

func NewUserSummary(user *models.User) UserSummary {
	return UserSummary{
		ID:     user.ID,
		Name:   user.Name,
		Level:  user.Level,
		Race:   user.Race,
		Gender: user.Gender,
		Class:  user.Class,
		ZoneID: user.Location.ZoneID,
		Alive:  user.Alive,
	}
}

type SGetUserList struct {
	Users []UserSummary
}

func (SGetUserList) Name() string { return "S_GET_USER_LIST" }

func (p SGetUserList) Encode(w *Writer) {
	w.Count(len(p.Users))
	for _, u := range p.Users {
		w.I32(u.ID)
		w.String(u.Name)
		w.I32(u.Level)
		w.I32(u.Race)
		w.I32(u.Gender)
		w.I32(u.Class)
		w.I32(u.ZoneID)
		w.Bool(u.Alive)
	}
}

func (p *SGetUserList) Decode(r *Reader) {
	n := r.Count()
	p.Users = make([]UserSummary, 0, n)
	for i := 0; i < n && r.Err() == nil; i++ {
		p.Users = append(p.Users, UserSummary{
			ID:     r.I32(),
			Name:   r.String(),
			Level:  r.I32(),
			Race:   r.I32(),
			Gender: r.I32(),
			Class:  r.I32(),
			ZoneID: r.I32(),
			Alive:  r.Bool(),
		})
	}
}

type CSelectUser struct {
	UserID int32
}

func (CSelectUser) Name() string { return "C_SELECT_USER" }

func (p CSelectUser) Encode(w *Writer) {
	w.I32(p.UserID)
}

func (p *CSelectUser) Decode(r *Reader) {
	p.UserID = r.I32()
}

type SLogin struct {
	EntityID EntityID
	UserID   int32
	UserName string
	Level    int32
	Race     int32
	Gender   int32
	Class    int32
	Alive    bool
}

func (SLogin) Name() string { return "S_LOGIN" }

func (p SLogin) Encode(w *Writer) {
	w.U64(uint64(p.EntityID))
	w.I32(p.UserID)
	w.String(p.UserName)
	w.I32(p.Level)
	w.I32(p.Race)
	w.I32(p.Gender)
	w.I32(p.Class)
	w.Bool(p.Alive)
}

func (p *SLogin) Decode(r *Reader) {
	p.EntityID = EntityID(r.U64())
	p.UserID = r.I32()
	p.UserName = r.String()
	p.Level = r.I32()
	p.Race = r.I32()
	p.Gender = r.I32()
	p.Class = r.I32()
	p.Alive = r.Bool()
}

type SInven struct {
	Items []models.InventoryItem
}

func (SInven) Name() string { return "S_INVEN" }

func (p SInven) Encode(w *Writer) {
	w.Count(len(p.Items))
	for _, item := range p.Items {
		w.I32(item.Slot)
		w.I32(item.ItemID)
		w.I32(item.Amount)
	}
}

func (p *SInven) Decode(r *Reader) {
	n := r.Count()
	p.Items = make([]models.InventoryItem, 0, n)
	for i := 0; i < n && r.Err() == nil; i++ {
		p.Items = append(p.Items, models.InventoryItem{
			Slot:   r.I32(),
			ItemID: r.I32(),
			Amount: r.I32(),
		})
	}
}

type SQuestInfo struct {
	Quests []int32
}

func (SQuestInfo) Name() string { return "S_QUEST_INFO" }

func (p SQuestInfo) Encode(w *Writer) {
	w.Count(len(p.Quests))
	for _, q := range p.Quests {
		w.I32(q)
	}
}

func (p *SQuestInfo) Decode(r *Reader) {
	n := r.Count()
	p.Quests = make([]int32, 0, n)
	for i := 0; i < n && r.Err() == nil; i++ {
		p.Quests = append(p.Quests, r.I32())
	}
}

type SFriendList struct {
	Friends []string
}

func (SFriendList) Name() string { return "S_FRIEND_LIST" }

func (p SFriendList) Encode(w *Writer) {
	w.Count(len(p.Friends))
	for _, f := range p.Friends {
		w.String(f)
	}
}

func (p *SFriendList) Decode(r *Reader) {
	n := r.Count()
	p.Friends = make([]string, 0, n)
	for i := 0; i < n && r.Err() == nil; i++ {
		p.Friends = append(p.Friends, r.String())
	}
}

type SLoadTopo struct {
	ZoneID int32
	X      float32
	Y      float32
	Z      float32
}

func (SLoadTopo) Name() string { return "S_LOAD_TOPO" }

func (p SLoadTopo) Encode(w *Writer) {
	w.I32(p.ZoneID)
	w.F32(p.X)
	w.F32(p.Y)
	w.F32(p.Z)
}

func (p *SLoadTopo) Decode(r *Reader) {
	p.ZoneID = r.I32()
	p.X = r.F32()
	p.Y = r.F32()
	p.Z = r.F32()
}

type SLoadHint struct{}

func (SLoadHint) Name() string      { return "S_LOAD_HINT" }
func (SLoadHint) Encode(w *Writer)  {}
func (*SLoadHint) Decode(r *Reader) {}

type CLoadTopoFin struct{}

func (CLoadTopoFin) Name() string      { return "C_LOAD_TOPO_FIN" }
func (CLoadTopoFin) Encode(w *Writer)  {}
func (*CLoadTopoFin) Decode(r *Reader) {}

type SSpawnMe struct {
	EntityID EntityID
	X        float32
	Y        float32
	Z        float32
	Rotation int16
	Alive    bool
}

func (SSpawnMe) Name() string { return "S_SPAWN_ME" }

func (p SSpawnMe) Encode(w *Writer) {
	w.U64(uint64(p.EntityID))
	w.F32(p.X)
	w.F32(p.Y)
	w.F32(p.Z)
	w.I16(p.Rotation)
	w.Bool(p.Alive)
}

func (p *SSpawnMe) Decode(r *Reader) {
	p.EntityID = EntityID(r.U64())
	p.X = r.F32()
	p.Y = r.F32()
	p.Z = r.F32()
	p.Rotation = r.I16()
	p.Alive = r.Bool()
}

type SSpawnUser struct {
	EntityID EntityID
	UserID   int32
	UserName string
	X        float32
	Y        float32
	Z        float32
	Rotation int16
	Alive    bool
}

func (SSpawnUser) Name() string { return "S_SPAWN_USER" }

func (p SSpawnUser) Encode(w *Writer) {
	w.U64(uint64(p.EntityID))
	w.I32(p.UserID)
	w.String(p.UserName)
	w.F32(p.X)
	w.F32(p.Y)
	w.F32(p.Z)
	w.I16(p.Rotation)
	w.Bool(p.Alive)
}

func (p *SSpawnUser) Decode(r *Reader) {
	p.EntityID = EntityID(r.U64())
	p.UserID = r.I32()
	p.UserName = r.String()
	p.X = r.F32()
	p.Y = r.F32()
	p.Z = r.F32()
	p.Rotation = r.I16()
	p.Alive = r.Bool()
}

type SDespawnUser struct {
	EntityID EntityID
}

func (SDespawnUser) Name() string { return "S_DESPAWN_USER" }

func (p SDespawnUser) Encode(w *Writer) {
	w.U64(uint64(p.EntityID))
}

func (p *SDespawnUser) Decode(r *Reader) {
	p.EntityID = EntityID(r.U64())
}

type SPing struct{}

func (SPing) Name() string      { return "S_PING" }
func (SPing) Encode(w *Writer)  {}
func (*SPing) Decode(r *Reader) {}

type CPong struct{}

func (CPong) Name() string      { return "C_PONG" }
func (CPong) Encode(w *Writer)  {}
func (*CPong) Decode(r *Reader) {}

type CReturnToLobby struct{}

func (CReturnToLobby) Name() string      { return "C_RETURN_TO_LOBBY" }
func (CReturnToLobby) Encode(w *Writer)  {}
func (*CReturnToLobby) Decode(r *Reader) {}

type SReturnToLobby struct{}

func (SReturnToLobby) Name() string      { return "S_RETURN_TO_LOBBY" }
func (SReturnToLobby) Encode(w *Writer)  {}
func (*SReturnToLobby) Decode(r *Reader) {}

// SSystemMessage carries an index into the system message catalog.
type SSystemMessage struct {
	MessageID uint16
	Args      []string
}

func (SSystemMessage) Name() string { return "S_SYSTEM_MESSAGE" }

func (p SSystemMessage) Encode(w *Writer) {
	w.U16(p.MessageID)
	w.Count(len(p.Args))
	for _, a := range p.Args {
		w.String(a)
	}
}

func (p *SSystemMessage) Decode(r *Reader) {
	p.MessageID = r.U16()
	n := r.Count()
	p.Args = make([]string, 0, n)
	for i := 0; i < n && r.Err() == nil; i++ {
		p.Args = append(p.Args, r.String())
	}
}

// CPlayerLocation reports the client's position and its current velocity in
// units per second.
type CPlayerLocation struct {
	X        float32
	Y        float32
	Z        float32
	Rotation int16
	VX       float32
	VY       float32
}

func (CPlayerLocation) Name() string { return "C_PLAYER_LOCATION" }

func (p CPlayerLocation) Encode(w *Writer) {
	w.F32(p.X)
	w.F32(p.Y)
	w.F32(p.Z)
	w.I16(p.Rotation)
	w.F32(p.VX)
	w.F32(p.VY)
}

func (p *CPlayerLocation) Decode(r *Reader) {
	p.X = r.F32()
	p.Y = r.F32()
	p.Z = r.F32()
	p.Rotation = r.I16()
	p.VX = r.F32()
	p.VY = r.F32()
}
