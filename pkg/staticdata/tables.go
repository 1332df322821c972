package staticdata

import (
	"embed"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	OpcodeFile        = "opcode.yaml"
	IntegrityFile     = "integrity.yaml"
	SystemMessageFile = "sysmsg.yaml"
	ZoneFile          = "zones.yaml"
)

//go:embed defaults/*.yaml
var defaults embed.FS

// Point is a position in a zone. Rotation uses the client's 16 bit angle units.
type Point struct {
	X        float32 `yaml:"x"`
	Y        float32 `yaml:"y"`
	Z        float32 `yaml:"z"`
	Rotation int16   `yaml:"rotation"`
}

// Bounds is the horizontal rectangle a zone covers.
type Bounds struct {
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

func (b Bounds) Contains(x, y float64) bool {
	return x >= b.X && x < b.X+b.Width && y >= b.Y && y < b.Y+b.Height
}

type Zone struct {
	ID              int32   `yaml:"id"`
	Name            string  `yaml:"name"`
	Bounds          Bounds  `yaml:"bounds"`
	Spawn           Point   `yaml:"spawn"`
	VisibilityRange float64 `yaml:"visibility_range"`
}

// Place returns p when it is a position inside this zone and the zone's spawn
// point otherwise.
func (z Zone) Place(zoneID int32, p Point) Point {
	if zoneID == z.ID && z.Bounds.Contains(float64(p.X), float64(p.Y)) {
		return p
	}
	return z.Spawn
}

// Source is the raw content of the data files.
type Source struct {
	Opcodes        map[string]uint16
	Integrity      []string
	SystemMessages []string
	Zones          []Zone
}

// Tables holds the immutable lookup tables shared by every actor. Nothing
// mutates a Tables after New returns, so it is safe for concurrent use.
type Tables struct {
	opcodes      map[string]uint16
	names        map[uint16]string
	integrity    map[string]struct{}
	catalog      []string
	catalogIndex map[string]uint16
	zones        map[int32]Zone
}

// New validates src and builds the forward and reverse lookups.
func New(src Source) (*Tables, error) {
	t := &Tables{
		opcodes:      make(map[string]uint16, len(src.Opcodes)),
		names:        make(map[uint16]string, len(src.Opcodes)),
		integrity:    make(map[string]struct{}, len(src.Integrity)),
		catalog:      append([]string(nil), src.SystemMessages...),
		catalogIndex: make(map[string]uint16, len(src.SystemMessages)),
		zones:        make(map[int32]Zone, len(src.Zones)),
	}

	for name, opcode := range src.Opcodes {
		if other, ok := t.names[opcode]; ok {
			return nil, fmt.Errorf("opcode %d is mapped to both %s and %s", opcode, other, name)
		}
		t.opcodes[name] = opcode
		t.names[opcode] = name
	}

	for _, name := range src.Integrity {
		if _, ok := t.opcodes[name]; !ok {
			return nil, fmt.Errorf("integrity entry %s has no opcode", name)
		}
		t.integrity[name] = struct{}{}
	}

	if len(src.SystemMessages) > 1<<16 {
		return nil, fmt.Errorf("system message catalog has %d entries", len(src.SystemMessages))
	}
	for i, name := range src.SystemMessages {
		if _, ok := t.catalogIndex[name]; ok {
			return nil, fmt.Errorf("duplicate system message %s", name)
		}
		t.catalogIndex[name] = uint16(i)
	}

	for _, zone := range src.Zones {
		if _, ok := t.zones[zone.ID]; ok {
			return nil, fmt.Errorf("duplicate zone %d", zone.ID)
		}
		if zone.Bounds.Width <= 0 || zone.Bounds.Height <= 0 {
			return nil, fmt.Errorf("zone %d has empty bounds", zone.ID)
		}
		if zone.VisibilityRange <= 0 {
			return nil, fmt.Errorf("zone %d has no visibility range", zone.ID)
		}
		t.zones[zone.ID] = zone
	}

	return t, nil
}

// Load reads the data files from dir.
func Load(dir string) (*Tables, error) {
	return LoadFS(os.DirFS(dir))
}

// Default returns the tables compiled into the binary.
func Default() (*Tables, error) {
	sub, err := fs.Sub(defaults, "defaults")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded data: %w", err)
	}
	return LoadFS(sub)
}

func LoadFS(fsys fs.FS) (*Tables, error) {
	src := Source{}
	files := []struct {
		name string
		out  interface{}
	}{
		{OpcodeFile, &src.Opcodes},
		{IntegrityFile, &src.Integrity},
		{SystemMessageFile, &src.SystemMessages},
		{ZoneFile, &src.Zones},
	}
	for _, f := range files {
		b, err := fs.ReadFile(fsys, f.name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.name, err)
		}
		if err := yaml.Unmarshal(b, f.out); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f.name, err)
		}
	}
	return New(src)
}

func (t *Tables) OpcodeFor(name string) (uint16, bool) {
	opcode, ok := t.opcodes[name]
	return opcode, ok
}

func (t *Tables) NameFor(opcode uint16) (string, bool) {
	name, ok := t.names[opcode]
	return name, ok
}

// KnownOpcode reports whether opcode appears in the opcode table.
func (t *Tables) KnownOpcode(opcode uint16) bool {
	_, ok := t.names[opcode]
	return ok
}

func (t *Tables) RequiresIntegrityCheck(name string) bool {
	_, ok := t.integrity[name]
	return ok
}

// MessageCatalog returns a copy of the system message catalog in id order.
func (t *Tables) MessageCatalog() []string {
	return append([]string(nil), t.catalog...)
}

// SystemMessageID returns the catalog index of a system message.
func (t *Tables) SystemMessageID(name string) (uint16, bool) {
	id, ok := t.catalogIndex[name]
	return id, ok
}

func (t *Tables) Zone(id int32) (Zone, bool) {
	zone, ok := t.zones[id]
	return zone, ok
}
