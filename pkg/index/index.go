// Package index builds the searchable POI index and runs free-text queries
// against it.
//
// Every name of every POI is split into words, normalized and inserted into a
// prefix trie. A query matches a POI when each query word is a prefix of at
// least one of the POI's words. Matches are ranked by distance to the caller's
// position and labelled with the name that best covers the query.
//
// An Index is built once and then only read. It does no locking of its own:
// build a fresh Index for new data and swap it in.
package index

import (
	"fmt"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bastiangx/poiserve/internal/logger"
	"github.com/bastiangx/poiserve/internal/utils"
	"github.com/bastiangx/poiserve/pkg/poi"
	"github.com/bastiangx/poiserve/pkg/rank"
	"github.com/bastiangx/poiserve/pkg/translit"
	"github.com/bastiangx/poiserve/pkg/trie"
	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of prefix lookups kept per index.
const DefaultCacheSize = 1024

// DuplicateError is returned by Build when two POIs share an id. The first
// one is kept.
type DuplicateError struct {
	ID poi.ID
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate poi id %q", e.ID)
}

// Index answers prefix queries over POI names.
type Index struct {
	pois       []poi.POI
	byID       map[poi.ID]uint32
	trie       *trie.Trie
	cache      *lru.Cache[string, *roaring.Bitmap]
	cacheSize  int
	maxResults int
	skipped    int
	log        *log.Logger
}

// Option configures an Index.
type Option func(*Index)

// WithMaxResults bounds the number of results per search.
func WithMaxResults(n int) Option {
	return func(ix *Index) {
		ix.maxResults = n
	}
}

// WithCacheSize sets the prefix lookup cache size. Zero disables the cache.
func WithCacheSize(n int) Option {
	return func(ix *Index) {
		ix.cacheSize = n
	}
}

// WithLogger replaces the default "index" logger.
func WithLogger(l *log.Logger) Option {
	return func(ix *Index) {
		ix.log = l
	}
}

// New returns an empty index. Searching it yields no results until Build is
// called.
func New(opts ...Option) *Index {
	ix := &Index{
		byID:       make(map[poi.ID]uint32),
		trie:       trie.New(),
		cacheSize:  DefaultCacheSize,
		maxResults: rank.DefaultLimit,
	}
	for _, opt := range opts {
		opt(ix)
	}
	if ix.log == nil {
		ix.log = logger.New("index")
	}
	return ix
}

// Build replaces the contents of the index with pois. Entries that cannot be
// indexed are skipped and reported; the returned slice is empty when every
// entry was accepted.
func (ix *Index) Build(pois []poi.POI) []error {
	var warnings []error

	ix.pois = make([]poi.POI, 0, len(pois))
	ix.byID = make(map[poi.ID]uint32, len(pois))
	ix.trie = trie.New()
	ix.resetCache()

	for i := range pois {
		p := pois[i]
		if err := p.Validate(); err != nil {
			warnings = append(warnings, err)
			continue
		}
		if _, dup := ix.byID[p.ID]; dup {
			warnings = append(warnings, &DuplicateError{ID: p.ID})
			continue
		}

		ord := uint32(len(ix.pois))
		ix.pois = append(ix.pois, p)
		ix.byID[p.ID] = ord

		for _, word := range nameWords(p.Names) {
			ix.trie.Insert(word, ord)
		}
	}

	ix.skipped = len(warnings)
	for _, w := range warnings {
		ix.log.Warn("Skipped poi", "err", w)
	}
	ix.log.Debugf("Indexed %d pois, %d words, skipped %d", len(ix.pois), ix.trie.Len(), ix.skipped)
	return warnings
}

// BuildMap indexes a loader's id -> record mapping. Records are processed in
// key order; a record without an id takes its key. A record whose id differs
// from its key is indexed under the id and logged.
func (ix *Index) BuildMap(m map[string]poi.POI) []error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pois := make([]poi.POI, 0, len(m))
	for _, k := range keys {
		p := m[k]
		switch {
		case p.ID == "":
			p.ID = poi.ID(k)
		case string(p.ID) != k:
			ix.log.Warn("Poi id differs from its key", "key", k, "id", p.ID)
		}
		pois = append(pois, p)
	}
	return ix.Build(pois)
}

// nameWords returns the distinct normalized words of all names.
func nameWords(names []string) []string {
	var words []string
	for _, name := range names {
		words = append(words, translit.Words(name)...)
	}
	return utils.Distinct(words)
}

// Search returns the POIs matching every word of query, nearest to
// (lat, lon) first. Blank queries and queries without matches return an
// empty slice.
func (ix *Index) Search(query string, lat, lon float64) []poi.Result {
	if strings.TrimSpace(query) == "" {
		return []poi.Result{}
	}
	reqs := translit.Words(query)
	if len(reqs) == 0 {
		return []poi.Result{}
	}

	matched := ix.filter(reqs)
	if matched.IsEmpty() {
		return []poi.Result{}
	}

	results := rank.Rank(matched, lat, lon, ix.poiAt, ix.maxResults)
	for i := range results {
		ord := ix.byID[results[i].ID]
		results[i].Title = rank.BestTitle(ix.pois[ord].Names, query)
	}
	return results
}

// filter intersects the prefix sets of all words.
func (ix *Index) filter(reqs []string) *roaring.Bitmap {
	sets := make([]*roaring.Bitmap, 0, len(reqs))
	for _, req := range reqs {
		sets = append(sets, ix.lookup(req))
	}
	return Intersect(sets)
}

// Intersect returns the ordinals present in every set. No sets means no
// ordinals. The inputs are not modified.
func Intersect(sets []*roaring.Bitmap) *roaring.Bitmap {
	if len(sets) == 0 {
		return roaring.New()
	}
	out := sets[0].Clone()
	for _, s := range sets[1:] {
		out.And(s)
		if out.IsEmpty() {
			break
		}
	}
	return out
}

// lookup is a cached trie prefix lookup. Cached bitmaps are shared and must
// not be modified.
func (ix *Index) lookup(word string) *roaring.Bitmap {
	if ix.cache == nil {
		return ix.trie.LookupPrefix(word)
	}
	if ids, ok := ix.cache.Get(word); ok {
		return ids
	}
	ids := ix.trie.LookupPrefix(word)
	ix.cache.Add(word, ids)
	return ids
}

func (ix *Index) resetCache() {
	ix.cache = nil
	if ix.cacheSize <= 0 {
		return
	}
	c, err := lru.New[string, *roaring.Bitmap](ix.cacheSize)
	if err != nil {
		ix.log.Errorf("Failed to create prefix cache: %v", err)
		return
	}
	ix.cache = c
}

func (ix *Index) poiAt(ord uint32) *poi.POI {
	if int(ord) >= len(ix.pois) {
		return nil
	}
	return &ix.pois[ord]
}

// Lookup returns the ids of every POI with an indexed word starting with the
// normalized form of word. A blank word matches nothing.
func (ix *Index) Lookup(word string) []poi.ID {
	norm := translit.Normalize(strings.TrimSpace(word))
	if norm == "" {
		return nil
	}
	ords := ix.lookup(norm)
	ids := make([]poi.ID, 0, ords.GetCardinality())
	it := ords.Iterator()
	for it.HasNext() {
		ids = append(ids, ix.pois[it.Next()].ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// WordCount is an indexed word and the number of POIs carrying it.
type WordCount struct {
	Word string
	POIs int
}

// Words lists the indexed words starting with the normalized form of prefix,
// in byte order. A blank prefix lists every word. limit <= 0 means no limit.
func (ix *Index) Words(prefix string, limit int) []WordCount {
	var words []WordCount
	ix.trie.Walk(translit.Normalize(strings.TrimSpace(prefix)), func(word string, ords *roaring.Bitmap) {
		if limit > 0 && len(words) >= limit {
			return
		}
		words = append(words, WordCount{Word: word, POIs: int(ords.GetCardinality())})
	})
	return words
}

// Get returns the POI with the given id.
func (ix *Index) Get(id poi.ID) (poi.POI, bool) {
	ord, ok := ix.byID[id]
	if !ok {
		return poi.POI{}, false
	}
	return ix.pois[ord], true
}

// Len returns the number of indexed POIs.
func (ix *Index) Len() int {
	return len(ix.pois)
}

// Stats returns counters about the loaded data.
func (ix *Index) Stats() map[string]int {
	stats := map[string]int{
		"pois":    len(ix.pois),
		"words":   ix.trie.Len(),
		"skipped": ix.skipped,
	}
	if ix.cache != nil {
		stats["cacheEntries"] = ix.cache.Len()
	}
	return stats
}
