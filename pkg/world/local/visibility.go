package local

import (
	"math"

	"github.com/cbodonnell/worldgate/pkg/staticdata"
	"github.com/solarlune/resolv"
)

// visibilitySpace indexes active entities by their visibility square. The
// space's cells are one visibility range wide, so the objects sharing cells
// with an entity are a superset of the entities it can see.
type visibilitySpace struct {
	space  *resolv.Space
	bounds staticdata.Bounds
	rng    float64
}

func newVisibilitySpace(zone staticdata.Zone) *visibilitySpace {
	cell := int(math.Ceil(zone.VisibilityRange))
	return &visibilitySpace{
		space:  resolv.NewSpace(int(math.Ceil(zone.Bounds.Width)), int(math.Ceil(zone.Bounds.Height)), cell, cell),
		bounds: zone.Bounds,
		rng:    zone.VisibilityRange,
	}
}

func (v *visibilitySpace) position(e *entity) (float64, float64) {
	return float64(e.x) - v.bounds.X - v.rng, float64(e.y) - v.bounds.Y - v.rng
}

func (v *visibilitySpace) add(e *entity) {
	x, y := v.position(e)
	obj := resolv.NewObject(x, y, 2*v.rng, 2*v.rng, tagUser)
	obj.Data = e
	v.space.Add(obj)
	e.object = obj
}

func (v *visibilitySpace) remove(e *entity) {
	if e.object == nil {
		return
	}
	v.space.Remove(e.object)
	e.object = nil
}

func (v *visibilitySpace) move(e *entity) {
	if e.object == nil {
		return
	}
	e.object.Position.X, e.object.Position.Y = v.position(e)
	e.object.Update()
}

// visibleFrom returns the active entities e can see.
func (v *visibilitySpace) visibleFrom(e *entity) []*entity {
	if e.object == nil {
		return nil
	}
	collision := e.object.Check(0, 0, tagUser)
	if collision == nil {
		return nil
	}

	var visible []*entity
	for _, obj := range collision.Objects {
		other, ok := obj.Data.(*entity)
		if !ok || other == e || !other.active {
			continue
		}
		if e.sees(other, v.rng) {
			visible = append(visible, other)
		}
	}
	return visible
}
