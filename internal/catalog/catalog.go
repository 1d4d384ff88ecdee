// Package catalog holds the immutable in-memory game catalog and its name lookup.
package catalog

import (
	"fmt"
	"strings"
)

// Item is one catalog entry. Embedding has the catalog's fixed dimension.
type Item struct {
	ID             int64
	DisplayName    string
	NormalizedName string
	Embedding      []float32
	ReferenceText  string
}

// Catalog is an ordered, read-only set of items addressable by normalized name.
// It is safe for concurrent use once built.
type Catalog struct {
	items      []Item
	byName     map[string]int
	dims       int
	duplicates []string
}

// Normalize lowercases s, trims it and collapses internal whitespace runs to a single space.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// New builds a catalog from items in the given order. NormalizedName is recomputed from
// DisplayName. When two items share a normalized name the first one wins; the shadowed
// names are reported by Duplicates.
func New(items []Item) (*Catalog, error) {
	c := &Catalog{
		items:  make([]Item, len(items)),
		byName: make(map[string]int, len(items)),
	}
	for i, it := range items {
		if len(it.Embedding) == 0 {
			return nil, fmt.Errorf("item %d (%q) has no embedding", i, it.DisplayName)
		}
		if c.dims == 0 {
			c.dims = len(it.Embedding)
		} else if len(it.Embedding) != c.dims {
			return nil, fmt.Errorf("item %d (%q) embedding dimension %d, expected %d", i, it.DisplayName, len(it.Embedding), c.dims)
		}
		it.NormalizedName = Normalize(it.DisplayName)
		c.items[i] = it
		if _, exists := c.byName[it.NormalizedName]; exists {
			c.duplicates = append(c.duplicates, it.NormalizedName)
			continue
		}
		c.byName[it.NormalizedName] = i
	}
	return c, nil
}

// Len returns the number of items.
func (c *Catalog) Len() int { return len(c.items) }

// Dimensions returns the embedding dimension shared by all items (0 for an empty catalog).
func (c *Catalog) Dimensions() int { return c.dims }

// Duplicates returns the normalized names that appeared more than once, one entry per
// shadowed row.
func (c *Catalog) Duplicates() []string {
	out := make([]string, len(c.duplicates))
	copy(out, c.duplicates)
	return out
}

// At returns the item at position i, which is also its label in the catalog vector index.
func (c *Catalog) At(i int) (Item, bool) {
	if i < 0 || i >= len(c.items) {
		return Item{}, false
	}
	return c.items[i], true
}

// Resolve looks up an already normalized name.
func (c *Catalog) Resolve(normalizedName string) (Item, bool) {
	i, ok := c.byName[normalizedName]
	if !ok {
		return Item{}, false
	}
	return c.items[i], true
}

// Lookup normalizes title and resolves it.
func (c *Catalog) Lookup(title string) (Item, bool) {
	return c.Resolve(Normalize(title))
}

// Search returns up to maxResults display names whose normalized name contains the
// normalized fragment, in catalog order.
func (c *Catalog) Search(fragment string, maxResults int) []string {
	needle := Normalize(fragment)
	if needle == "" || maxResults <= 0 {
		return []string{}
	}
	out := make([]string, 0, maxResults)
	for _, it := range c.items {
		if strings.Contains(it.NormalizedName, needle) {
			out = append(out, it.DisplayName)
			if len(out) == maxResults {
				break
			}
		}
	}
	return out
}

// Embeddings returns the item embeddings in catalog order. The slices are shared with
// the catalog and must not be modified.
func (c *Catalog) Embeddings() [][]float32 {
	out := make([][]float32, len(c.items))
	for i := range c.items {
		out[i] = c.items[i].Embedding
	}
	return out
}

// Items calls fn for every item in catalog order until fn returns false.
func (c *Catalog) Items(fn func(i int, it Item) bool) {
	for i, it := range c.items {
		if !fn(i, it) {
			return
		}
	}
}
