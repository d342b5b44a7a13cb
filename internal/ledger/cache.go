package ledger

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// suggestCutoff is the largest edit distance still offered as a suggestion.
const suggestCutoff = 3

// Cache is the connection-scoped in-memory map of methods and tags. It is
// populated in full at open and only ever appended to, after the insert's
// surrounding transaction has committed. It is not synchronized: the ledger
// is single-threaded by design.
type Cache struct {
	methods map[int64]TxMethod
	tags    map[int64]Tag
}

func newCache() *Cache {
	return &Cache{methods: map[int64]TxMethod{}, tags: map[int64]Tag{}}
}

// PutMethod appends a committed method row.
func (c *Cache) PutMethod(m TxMethod) { c.methods[m.ID] = m }

// PutTag appends a committed tag row.
func (c *Cache) PutTag(t Tag) { c.tags[t.ID] = t }

// MethodID resolves an exact method name.
func (c *Cache) MethodID(name string) (int64, bool) {
	for id, m := range c.methods {
		if m.Name == name {
			return id, true
		}
	}
	return 0, false
}

// Method returns a method row by id.
func (c *Cache) Method(id int64) (TxMethod, bool) {
	m, ok := c.methods[id]
	return m, ok
}

// TagID resolves a tag name case-insensitively; stored names keep their
// original case.
func (c *Cache) TagID(name string) (int64, bool) {
	for id, t := range c.tags {
		if strings.EqualFold(t.Name, name) {
			return id, true
		}
	}
	return 0, false
}

// Tag returns a tag row by id.
func (c *Cache) Tag(id int64) (Tag, bool) {
	t, ok := c.tags[id]
	return t, ok
}

// Methods returns all methods in display-position order.
func (c *Cache) Methods() []TxMethod {
	out := make([]TxMethod, 0, len(c.methods))
	for _, m := range c.methods {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// SuggestMethod returns the known method name closest to the given text, or
// "" when nothing is close enough to be useful.
func (c *Cache) SuggestMethod(name string) string {
	best := ""
	bestDist := suggestCutoff + 1
	for _, m := range c.methods {
		d := levenshtein.ComputeDistance(strings.ToLower(name), strings.ToLower(m.Name))
		if d < bestDist {
			best, bestDist = m.Name, d
		}
	}
	return best
}

// SuggestTag is SuggestMethod for tag names.
func (c *Cache) SuggestTag(name string) string {
	best := ""
	bestDist := suggestCutoff + 1
	for _, t := range c.tags {
		d := levenshtein.ComputeDistance(strings.ToLower(name), strings.ToLower(t.Name))
		if d < bestDist {
			best, bestDist = t.Name, d
		}
	}
	return best
}
