// Package rank orders matched POIs by distance to a reference point and picks
// the display name that best fits the query.
package rank

import (
	"math"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bastiangx/poiserve/internal/utils"
	"github.com/bastiangx/poiserve/pkg/poi"
	"github.com/bastiangx/poiserve/pkg/translit"
)

// DefaultLimit is the number of results kept after sorting.
const DefaultLimit = 50

// Source resolves an ordinal to its POI. It returns nil for unknown
// ordinals, which are skipped.
type Source func(ord uint32) *poi.POI

// Nearest returns the coordinate of p closest to (lat, lon) and its distance.
// On equal distances the earlier coordinate wins.
func Nearest(p *poi.POI, lat, lon float64) (poi.Coord, float64) {
	best := math.Inf(1)
	var found poi.Coord
	for _, c := range p.Coords {
		d := DistanceKm(c.Lat, c.Lon, lat, lon)
		if d < best {
			best = d
			found = c
		}
	}
	return found, best
}

// Rank computes the distance of every POI in ords and returns at most limit
// results, nearest first. Equal distances are ordered by ID. A limit <= 0
// keeps everything.
func Rank(ords *roaring.Bitmap, lat, lon float64, src Source, limit int) []poi.Result {
	results := make([]poi.Result, 0, ords.GetCardinality())

	it := ords.Iterator()
	for it.HasNext() {
		p := src(it.Next())
		if p == nil || len(p.Coords) == 0 {
			continue
		}
		coord, dist := Nearest(p, lat, lon)
		results = append(results, poi.Result{
			ID:         p.ID,
			DistanceKm: dist,
			Coord:      coord,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].DistanceKm != results[j].DistanceKm {
			return results[i].DistanceKm < results[j].DistanceKm
		}
		return results[i].ID < results[j].ID
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// Coverage counts how many of reqs occur in normalizedText.
func Coverage(normalizedText string, reqs []string) int {
	score := 0
	for _, req := range reqs {
		if strings.Contains(normalizedText, req) {
			score++
		}
	}
	return score
}

// BestTitle picks the name that contains the most distinct query words. The first
// name wins ties, including the case where nothing matches.
func BestTitle(names []string, query string) string {
	if len(names) == 0 {
		return ""
	}
	reqs := utils.Distinct(translit.Words(query))

	best, bestScore := 0, Coverage(translit.Normalize(names[0]), reqs)
	for i := 1; i < len(names); i++ {
		if score := Coverage(translit.Normalize(names[i]), reqs); score > bestScore {
			best, bestScore = i, score
		}
	}
	return names[best]
}
