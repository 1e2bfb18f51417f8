// Package trie maps normalized words to the set of POIs that carry them and
// answers prefix queries over those words.
//
// Words are stored in a Patricia trie; each stored word holds a roaring
// bitmap of POI ordinals. A prefix lookup is the union of the bitmaps of
// every word under that prefix.
package trie

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/charmbracelet/log"
	"github.com/tchap/go-patricia/v2/patricia"
)

// Trie is not safe for concurrent mutation. Once built it can be read from
// many goroutines.
type Trie struct {
	root  *patricia.Trie
	words int
}

// New returns an empty trie.
func New() *Trie {
	return &Trie{root: patricia.NewTrie()}
}

// Insert adds ord to the set stored at word. Inserting the same pair twice is
// a no-op. Empty words are ignored.
func (t *Trie) Insert(word string, ord uint32) {
	if word == "" {
		return
	}
	key := patricia.Prefix(word)
	if item := t.root.Get(key); item != nil {
		item.(*roaring.Bitmap).Add(ord)
		return
	}
	t.root.Insert(key, roaring.BitmapOf(ord))
	t.words++
}

// LookupPrefix returns the ordinals of every word that starts with word.
// The returned bitmap is owned by the caller.
//
// An empty word is the prefix of everything and yields every ordinal ever
// inserted; callers searching on user input must filter empty words first.
func (t *Trie) LookupPrefix(word string) *roaring.Bitmap {
	var sets []*roaring.Bitmap
	collect := func(_ patricia.Prefix, item patricia.Item) error {
		sets = append(sets, item.(*roaring.Bitmap))
		return nil
	}

	var err error
	if word == "" {
		err = t.root.Visit(collect)
	} else {
		err = t.root.VisitSubtree(patricia.Prefix(word), collect)
	}
	if err != nil {
		log.Errorf("Error visiting trie subtree: %v", err)
		return roaring.New()
	}

	switch len(sets) {
	case 0:
		return roaring.New()
	case 1:
		return sets[0].Clone()
	default:
		return roaring.FastOr(sets...)
	}
}

// Len returns the number of distinct words.
func (t *Trie) Len() int {
	return t.words
}

// Walk calls fn for each stored word starting with prefix, in byte order.
// An empty prefix visits every word. fn must not modify the bitmap.
func (t *Trie) Walk(prefix string, fn func(word string, ords *roaring.Bitmap)) {
	visit := func(p patricia.Prefix, item patricia.Item) error {
		fn(string(p), item.(*roaring.Bitmap))
		return nil
	}
	if prefix == "" {
		_ = t.root.Visit(visit)
		return
	}
	_ = t.root.VisitSubtree(patricia.Prefix(prefix), visit)
}
