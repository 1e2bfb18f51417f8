package poi

import (
	"errors"
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestDecodeJSON(t *testing.T) {
	data := []byte(`{"id": 17, "names": ["Кафе Пушкін"], "coords": [[50.45, 30.52], [50.46, 30.53]]}`)

	var p POI
	require.NoError(t, gojson.Unmarshal(data, &p))
	assert.Equal(t, ID("17"), p.ID)
	assert.Equal(t, []string{"Кафе Пушкін"}, p.Names)
	require.Len(t, p.Coords, 2)
	assert.Equal(t, At(50.46, 30.53), p.Coords[1])
}

func TestDecodeJSONBadCoord(t *testing.T) {
	var p POI
	err := gojson.Unmarshal([]byte(`{"id": "x", "names": ["a"], "coords": [[1, 2, 3]]}`), &p)
	assert.Error(t, err)
}

func TestDecodeJSONFractionalID(t *testing.T) {
	var p POI
	err := gojson.Unmarshal([]byte(`{"id": 1.5, "names": ["a"], "coords": [[1, 2]]}`), &p)
	assert.Error(t, err)
}

func TestCoordJSONIsArray(t *testing.T) {
	b, err := gojson.Marshal(At(1.5, -2))
	require.NoError(t, err)
	assert.JSONEq(t, `[1.5, -2]`, string(b))
}

func TestMsgpackIntegerID(t *testing.T) {
	raw, err := msgpack.Marshal(map[string]any{
		"id":     uint32(99),
		"names":  []string{"park"},
		"coords": [][]float64{{1, 2}},
	})
	require.NoError(t, err)

	var p POI
	require.NoError(t, msgpack.Unmarshal(raw, &p))
	assert.Equal(t, ID("99"), p.ID)
	assert.Equal(t, []Coord{At(1, 2)}, p.Coords)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		poi         POI
		reason      string
		description string
	}{
		{POI{Names: []string{"a"}, Coords: []Coord{At(0, 0)}}, "missing id", "No id"},
		{POI{ID: "a", Coords: []Coord{At(0, 0)}}, "no names", "No names"},
		{POI{ID: "a", Names: []string{"a"}}, "no coordinates", "No coordinates"},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			err := tc.poi.Validate()
			var malformed *MalformedError
			require.True(t, errors.As(err, &malformed))
			assert.Equal(t, tc.reason, malformed.Reason)
		})
	}

	ok := POI{ID: "a", Names: []string{"a"}, Coords: []Coord{At(0, 0)}}
	assert.NoError(t, ok.Validate())
}

func TestResultMeters(t *testing.T) {
	assert.Equal(t, 1235, Result{DistanceKm: 1.2345}.Meters())
	assert.Equal(t, 0, Result{DistanceKm: 0.0004}.Meters())
}
