// Package poi holds the data model shared by the index, the ranker and the
// dataset loader.
package poi

import (
	"fmt"
	"math"
	"strconv"

	gojson "github.com/goccy/go-json"
	"github.com/vmihailenco/msgpack/v5"
)

// ID identifies a POI. Datasets may use numeric identifiers; they are kept in
// their decimal string form.
type ID string

// UnmarshalJSON accepts both strings and numbers.
func (id *ID) UnmarshalJSON(data []byte) error {
	var v any
	if err := gojson.Unmarshal(data, &v); err != nil {
		return err
	}
	s, err := idFromAny(v)
	if err != nil {
		return err
	}
	*id = s
	return nil
}

// DecodeMsgpack accepts both strings and integers.
func (id *ID) DecodeMsgpack(dec *msgpack.Decoder) error {
	v, err := dec.DecodeInterface()
	if err != nil {
		return err
	}
	s, err := idFromAny(v)
	if err != nil {
		return err
	}
	*id = s
	return nil
}

// EncodeMsgpack writes the id as a plain string.
func (id ID) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeString(string(id))
}

func idFromAny(v any) (ID, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return ID(x), nil
	case float64:
		if x != math.Trunc(x) {
			return "", fmt.Errorf("poi: non-integer id %v", x)
		}
		return ID(strconv.FormatFloat(x, 'f', -1, 64)), nil
	case int8:
		return ID(strconv.FormatInt(int64(x), 10)), nil
	case int16:
		return ID(strconv.FormatInt(int64(x), 10)), nil
	case int32:
		return ID(strconv.FormatInt(int64(x), 10)), nil
	case int64:
		return ID(strconv.FormatInt(x, 10)), nil
	case uint8:
		return ID(strconv.FormatUint(uint64(x), 10)), nil
	case uint16:
		return ID(strconv.FormatUint(uint64(x), 10)), nil
	case uint32:
		return ID(strconv.FormatUint(uint64(x), 10)), nil
	case uint64:
		return ID(strconv.FormatUint(x, 10)), nil
	default:
		return "", fmt.Errorf("poi: unsupported id type %T", v)
	}
}

// Coord is a latitude/longitude pair in degrees. On the wire it is a two
// element array, [lat, lon].
type Coord struct {
	_msgpack struct{} `msgpack:",as_array"`

	Lat float64
	Lon float64
}

// At is shorthand for a Coord literal.
func At(lat, lon float64) Coord {
	return Coord{Lat: lat, Lon: lon}
}

// MarshalJSON writes [lat, lon].
func (c Coord) MarshalJSON() ([]byte, error) {
	return gojson.Marshal([2]float64{c.Lat, c.Lon})
}

// UnmarshalJSON reads [lat, lon].
func (c *Coord) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := gojson.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("poi: coordinate needs 2 values, got %d", len(pair))
	}
	c.Lat, c.Lon = pair[0], pair[1]
	return nil
}

func (c Coord) String() string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lon, 'f', -1, 64)
}

// POI is a named, geolocated entity. A POI can carry several names (e.g. in
// different languages) and several coordinates (e.g. entrances).
type POI struct {
	ID     ID       `json:"id" msgpack:"id"`
	Names  []string `json:"names" msgpack:"names"`
	Coords []Coord  `json:"coords" msgpack:"coords"`
}

// Validate reports a *MalformedError when p cannot be indexed.
func (p *POI) Validate() error {
	switch {
	case p.ID == "":
		return &MalformedError{Reason: "missing id"}
	case len(p.Names) == 0:
		return &MalformedError{ID: p.ID, Reason: "no names"}
	case len(p.Coords) == 0:
		return &MalformedError{ID: p.ID, Reason: "no coordinates"}
	}
	return nil
}

// Result is a single search hit.
type Result struct {
	ID ID
	// DistanceKm is the smallest distance from the reference point to any
	// of the POI's coordinates.
	DistanceKm float64
	// Coord is the coordinate that produced DistanceKm.
	Coord Coord
	Title string
}

// Meters is the presentation form of the distance.
func (r Result) Meters() int {
	return int(math.Round(r.DistanceKm * 1000))
}
