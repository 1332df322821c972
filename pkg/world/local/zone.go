package local

import (
	"context"
	"fmt"

	"github.com/cbodonnell/worldgate/pkg/staticdata"
)

// ZoneLoader provides the zone a local world simulates.
type ZoneLoader interface {
	LoadZone(ctx context.Context, zoneID int32) (staticdata.Zone, error)
}

// StaticZoneLoader serves zones from the static data tables.
type StaticZoneLoader struct {
	Tables *staticdata.Tables
}

func (l StaticZoneLoader) LoadZone(ctx context.Context, zoneID int32) (staticdata.Zone, error) {
	zone, ok := l.Tables.Zone(zoneID)
	if !ok {
		return staticdata.Zone{}, fmt.Errorf("unknown zone %d", zoneID)
	}
	return zone, nil
}
