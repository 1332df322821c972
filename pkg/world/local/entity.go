package local

import (
	"math"

	"github.com/cbodonnell/worldgate/pkg/kinematic"
	"github.com/cbodonnell/worldgate/pkg/messages"
	"github.com/cbodonnell/worldgate/pkg/repositories/models"
	"github.com/cbodonnell/worldgate/pkg/staticdata"
	"github.com/google/uuid"
	"github.com/solarlune/resolv"
)

const tagUser = "user"

type entity struct {
	id           messages.EntityID
	ticket       uuid.UUID
	connectionID messages.ConnectionID
	user         models.User

	x, y, z  float32
	rotation int16
	vx, vy   float32
	alive    bool

	ready  bool
	active bool

	// object is only set while the entity is active.
	object  *resolv.Object
	visible map[messages.EntityID]struct{}
}

func newEntity(id messages.EntityID, ticket uuid.UUID, connectionID messages.ConnectionID, user models.User, zone staticdata.Zone) *entity {
	e := &entity{
		id:           id,
		ticket:       ticket,
		connectionID: connectionID,
		user:         user,
		alive:        user.Alive,
		visible:      make(map[messages.EntityID]struct{}),
	}

	loc := user.Location
	p := zone.Place(loc.ZoneID, staticdata.Point{X: loc.X, Y: loc.Y, Z: loc.Z, Rotation: loc.Rotation})
	e.x, e.y, e.z, e.rotation = p.X, p.Y, p.Z, p.Rotation

	return e
}

func (e *entity) location(zoneID int32) models.Location {
	return models.Location{
		ZoneID:   zoneID,
		X:        e.x,
		Y:        e.y,
		Z:        e.z,
		Rotation: e.rotation,
	}
}

// integrate moves the entity by its velocity and keeps it inside the zone.
func (e *entity) integrate(dt float64, bounds staticdata.Bounds) {
	if e.vx == 0 && e.vy == 0 {
		return
	}
	x := kinematic.Step(float64(e.x), float64(e.vx), dt, bounds.X, bounds.X+bounds.Width-1)
	y := kinematic.Step(float64(e.y), float64(e.vy), dt, bounds.Y, bounds.Y+bounds.Height-1)
	e.x, e.y = float32(x), float32(y)
}

// sees reports whether other is within the visibility square of e.
func (e *entity) sees(other *entity, visibilityRange float64) bool {
	dx := math.Abs(float64(e.x - other.x))
	dy := math.Abs(float64(e.y - other.y))
	return dx <= visibilityRange && dy <= visibilityRange
}

func (e *entity) spawnMe() messages.SSpawnMe {
	return messages.SSpawnMe{
		EntityID: e.id,
		X:        e.x,
		Y:        e.y,
		Z:        e.z,
		Rotation: e.rotation,
		Alive:    e.alive,
	}
}

func (e *entity) spawnUser() messages.SSpawnUser {
	return messages.SSpawnUser{
		EntityID: e.id,
		UserID:   e.user.ID,
		UserName: e.user.Name,
		X:        e.x,
		Y:        e.y,
		Z:        e.z,
		Rotation: e.rotation,
		Alive:    e.alive,
	}
}
