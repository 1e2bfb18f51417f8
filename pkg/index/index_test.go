package index

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bastiangx/poiserve/internal/logger"
	"github.com/bastiangx/poiserve/pkg/poi"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIndex(t *testing.T, pois ...poi.POI) *Index {
	t.Helper()
	ix := New(WithLogger(logger.Discard()))
	require.Empty(t, ix.Build(pois))
	return ix
}

func ids(results []poi.Result) []poi.ID {
	out := make([]poi.ID, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}

var kyiv = []poi.POI{
	{ID: "p1", Names: []string{"Кафе Пушкін"}, Coords: []poi.Coord{poi.At(50.45, 30.52)}},
	{ID: "p2", Names: []string{"Парк Шевченка", "Shevchenko Park"}, Coords: []poi.Coord{poi.At(50.442, 30.513)}},
	{ID: "p3", Names: []string{"Central Park"}, Coords: []poi.Coord{poi.At(50.40, 30.60)}},
	{ID: "p4", Names: []string{"Пушкінський парк"}, Coords: []poi.Coord{poi.At(50.46, 30.45), poi.At(50.451, 30.521)}},
	{ID: "p5", Names: []string{"Кафе Львівські пляцки"}, Coords: []poi.Coord{poi.At(50.447, 30.52)}},
}

func TestSearchEndToEnd(t *testing.T) {
	ix := newIndex(t, poi.POI{
		ID:     "p1",
		Names:  []string{"Кафе Пушкін"},
		Coords: []poi.Coord{poi.At(50.45, 30.52)},
	})

	results := ix.Search("пушкін", 50.45, 30.52)
	require.Len(t, results, 1)
	assert.Equal(t, poi.ID("p1"), results[0].ID)
	assert.Equal(t, 0, results[0].Meters())
	assert.Equal(t, "Кафе Пушкін", results[0].Title)
	assert.Equal(t, poi.At(50.45, 30.52), results[0].Coord)
}

func TestSearch(t *testing.T) {
	ix := newIndex(t, kyiv...)

	testCases := []struct {
		query       string
		expected    []poi.ID
		description string
	}{
		{"кафе", []poi.ID{"p1", "p5"}, "Single word, two matches"},
		{"пушк", []poi.ID{"p1", "p4"}, "Prefix over two different words, nearest first"},
		{"парк", []poi.ID{"p4", "p2", "p3"}, "Cyrillic query matches Latin names"},
		{"park", []poi.ID{"p4", "p2", "p3"}, "Latin query matches Cyrillic names"},
		{"кафе пушкін", []poi.ID{"p1"}, "Every word must match"},
		{"пушкін кафе", []poi.ID{"p1"}, "Word order does not matter"},
		{"КАФЕ", []poi.ID{"p1", "p5"}, "Case insensitive"},
		{"кафе  пушкін", []poi.ID{"p1"}, "Double space"},
		{"кафе zoo", []poi.ID{}, "No POI has both words"},
		{"zoo", []poi.ID{}, "Unknown word"},
		{"", []poi.ID{}, "Empty query"},
		{"   ", []poi.ID{}, "Whitespace query"},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.expected, ids(ix.Search(tc.query, 50.45, 30.52)))
		})
	}
}

func TestSearchIntersection(t *testing.T) {
	ix := newIndex(t, kyiv...)

	both := ids(ix.Search("кафе пушк", 50.45, 30.52))
	first := ids(ix.Search("кафе", 50.45, 30.52))
	second := ids(ix.Search("пушк", 50.45, 30.52))

	for _, id := range both {
		assert.Contains(t, first, id)
		assert.Contains(t, second, id)
	}
	for _, id := range first {
		if containsID(second, id) {
			assert.Contains(t, both, id)
		}
	}
}

func containsID(list []poi.ID, id poi.ID) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func TestSearchUsesNearestCoordinate(t *testing.T) {
	ix := newIndex(t, kyiv...)

	results := ix.Search("пушкінський", 50.4511, 30.5211)
	require.Len(t, results, 1)
	assert.Equal(t, poi.At(50.451, 30.521), results[0].Coord)
	assert.Less(t, results[0].Meters(), 50)
}

func TestSearchTitle(t *testing.T) {
	ix := newIndex(t, kyiv...)

	results := ix.Search("shevchenko", 50.45, 30.52)
	require.Len(t, results, 1)
	assert.Equal(t, "Shevchenko Park", results[0].Title)

	results = ix.Search("шевченка", 50.45, 30.52)
	require.Len(t, results, 1)
	assert.Equal(t, "Парк Шевченка", results[0].Title)
}

func TestSearchBound(t *testing.T) {
	pois := make([]poi.POI, 100)
	for i := range pois {
		pois[i] = poi.POI{
			ID:     poi.ID(fmt.Sprintf("c%03d", i)),
			Names:  []string{"Coffee"},
			Coords: []poi.Coord{poi.At(0, float64(i)*0.001)},
		}
	}
	ix := newIndex(t, pois...)

	results := ix.Search("coffee", 0, 0)
	require.Len(t, results, 50)
	assert.Equal(t, poi.ID("c000"), results[0].ID)
	assert.Equal(t, poi.ID("c049"), results[49].ID)

	small := New(WithLogger(logger.Discard()), WithMaxResults(3))
	small.Build(pois)
	assert.Len(t, small.Search("coffee", 0, 0), 3)
}

func TestBuildSkipsMalformed(t *testing.T) {
	ix := New(WithLogger(logger.Discard()))
	warnings := ix.Build([]poi.POI{
		{ID: "ok", Names: []string{"Park"}, Coords: []poi.Coord{poi.At(0, 0)}},
		{Names: []string{"Park"}, Coords: []poi.Coord{poi.At(0, 0)}},
		{ID: "nonames", Coords: []poi.Coord{poi.At(0, 0)}},
		{ID: "nocoords", Names: []string{"Park"}},
		{ID: "ok", Names: []string{"Other"}, Coords: []poi.Coord{poi.At(0, 0)}},
	})

	require.Len(t, warnings, 4)
	var malformed *poi.MalformedError
	assert.True(t, errors.As(warnings[0], &malformed))
	assert.True(t, errors.As(warnings[1], &malformed))
	assert.Equal(t, poi.ID("nonames"), malformed.ID)
	var dup *DuplicateError
	require.True(t, errors.As(warnings[3], &dup))
	assert.Equal(t, poi.ID("ok"), dup.ID)

	assert.Equal(t, 1, ix.Len())
	assert.Equal(t, []poi.ID{"ok"}, ids(ix.Search("park", 0, 0)))
	assert.Empty(t, ix.Search("other", 0, 0))
	assert.Equal(t, 4, ix.Stats()["skipped"])
}

func TestBuildReplacesContents(t *testing.T) {
	ix := newIndex(t, kyiv...)
	require.NotEmpty(t, ix.Search("кафе", 0, 0))

	require.Empty(t, ix.Build([]poi.POI{
		{ID: "z", Names: []string{"Zoo"}, Coords: []poi.Coord{poi.At(0, 0)}},
	}))
	assert.Empty(t, ix.Search("кафе", 0, 0))
	assert.Equal(t, []poi.ID{"z"}, ids(ix.Search("zoo", 0, 0)))
	_, ok := ix.Get("p1")
	assert.False(t, ok)
}

func TestBuildMap(t *testing.T) {
	ix := New(WithLogger(logger.Discard()))
	warnings := ix.BuildMap(map[string]poi.POI{
		"b": {ID: "b", Names: []string{"Bakery"}, Coords: []poi.Coord{poi.At(0, 0)}},
		"a": {Names: []string{"Bank"}, Coords: []poi.Coord{poi.At(0, 0)}},
	})
	assert.Empty(t, warnings)

	p, ok := ix.Get("a")
	require.True(t, ok)
	assert.Equal(t, []string{"Bank"}, p.Names)
	assert.Equal(t, []poi.ID{"a", "b"}, ids(ix.Search("ba", 0, 0)))
}

func TestBuildMapKeyMismatch(t *testing.T) {
	var buf bytes.Buffer
	ix := New(WithLogger(logger.NewWithConfig(&buf, "index", log.WarnLevel, false, false, log.TextFormatter)))
	warnings := ix.BuildMap(map[string]poi.POI{
		"k1": {ID: "x1", Names: []string{"Bakery"}, Coords: []poi.Coord{poi.At(0, 0)}},
		"k2": {ID: "k2", Names: []string{"Bank"}, Coords: []poi.Coord{poi.At(0, 0)}},
	})
	assert.Empty(t, warnings)

	_, ok := ix.Get("x1")
	assert.True(t, ok, "record id wins over its key")
	_, ok = ix.Get("k1")
	assert.False(t, ok)

	out := buf.String()
	assert.Contains(t, out, "key=k1")
	assert.Contains(t, out, "id=x1")
	assert.NotContains(t, out, "k2")
}

func TestWords(t *testing.T) {
	ix := newIndex(t, kyiv...)

	testCases := []struct {
		prefix      string
		limit       int
		expected    []WordCount
		description string
	}{
		{"Пар", 0, []WordCount{{"park", 3}}, "Cyrillic prefix is normalized"},
		{"пушк", 0, []WordCount{{"pushkin", 1}, {"pushkinskii", 1}}, "Byte order"},
		{"пушк", 1, []WordCount{{"pushkin", 1}}, "Limit"},
		{"zzz", 0, nil, "No words"},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.expected, ix.Words(tc.prefix, tc.limit))
		})
	}

	assert.Len(t, ix.Words("  ", 0), ix.Stats()["words"], "blank prefix lists every word")
}

func TestLookup(t *testing.T) {
	ix := newIndex(t, kyiv...)

	assert.Equal(t, []poi.ID{"p1", "p4"}, ix.Lookup("Пушк"))
	assert.Nil(t, ix.Lookup(""))
	assert.Nil(t, ix.Lookup("  "))
	assert.Empty(t, ix.Lookup("zzz"))
}

func TestNameWordsDistinct(t *testing.T) {
	words := nameWords([]string{"Парк Шевченка", "Park", "ПАРК  шевченка"})
	assert.Equal(t, []string{"park", "shevchenka"}, words)
}

func TestIntersect(t *testing.T) {
	a := roaring.BitmapOf(1, 2, 3)
	b := roaring.BitmapOf(2, 3, 4)
	c := roaring.BitmapOf(3, 9)

	assert.True(t, Intersect(nil).IsEmpty())
	assert.Equal(t, []uint32{1, 2, 3}, Intersect([]*roaring.Bitmap{a}).ToArray())
	assert.Equal(t, []uint32{2, 3}, Intersect([]*roaring.Bitmap{a, b}).ToArray())
	assert.Equal(t, []uint32{3}, Intersect([]*roaring.Bitmap{a, b, c}).ToArray())
	assert.Equal(t, []uint32{1, 2, 3}, a.ToArray(), "inputs are left alone")
}

func TestCacheDoesNotLeakBetweenQueries(t *testing.T) {
	ix := newIndex(t, kyiv...)

	// The cached "кафе" set must survive being intersected with "пушкін".
	require.Len(t, ix.Search("кафе пушкін", 0, 0), 1)
	assert.Len(t, ix.Search("кафе", 0, 0), 2)
	assert.Greater(t, ix.Stats()["cacheEntries"], 0)

	uncached := New(WithLogger(logger.Discard()), WithCacheSize(0))
	uncached.Build(kyiv)
	assert.Len(t, uncached.Search("кафе", 0, 0), 2)
	_, ok := uncached.Stats()["cacheEntries"]
	assert.False(t, ok)
}

func TestSearchBeforeBuild(t *testing.T) {
	ix := New(WithLogger(logger.Discard()))
	assert.Empty(t, ix.Search("park", 0, 0))
	assert.Equal(t, 0, ix.Stats()["pois"])
}
