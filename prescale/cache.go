// Package prescale keeps per-luminosity-section prescale tables fed from
// text records, and serves them to modules and remote clients.
//
// A record is a line of whitespace-separated tokens:
//
//	LS (PATH MODULE VALUE)+
//
// All entries of one record belong to the generation of luminosity section
// LS. Only a handful of recent generations is kept.
package prescale

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync"
)

const (
	// maxGenerations is the number of generations above which old ones
	// become eligible for eviction.
	maxGenerations = 5

	// maxTouch is the age after which a generation is evicted, once there
	// are more than maxGenerations of them.
	maxTouch = 5
)

type Entry struct {
	Path   string
	Module string
	Value  uint32
}

type generation struct {
	ls      uint32
	touch   int
	entries []Entry
}

type Counters struct {
	Updates     int
	BadRecords  int
	BadDecimals int
	Gets        int
	GetMisses   int
}

func (c Counters) String() string {
	return fmt.Sprintf("updates: %d bad records: %d bad decimals: %d gets: %d misses: %d", c.Updates, c.BadRecords, c.BadDecimals, c.Gets, c.GetMisses)
}

// Cache is safe for concurrent use. Every operation takes the same lock.
type Cache struct {
	mu       sync.Mutex
	gens     []*generation
	lastSeen uint32
	counters Counters
}

func NewCache() *Cache {
	return &Cache{}
}

// Add ingests one record. Malformed parts of the record are counted and
// skipped; the well-formed triples are still stored.
func (c *Cache) Add(line string) {
	tokens := strings.Fields(line)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.counters.Updates++
	if len(tokens) < 4 || len(tokens)%3 != 1 {
		c.counters.BadRecords++
	}
	if len(tokens) == 0 {
		return
	}

	ls, ok := c.parseNumber(tokens[0])
	if !ok {
		for i := 3; i < len(tokens); i += 3 {
			c.parseNumber(tokens[i])
		}
		return
	}
	c.lastSeen = ls

	var gen *generation
	for i := 1; i+2 < len(tokens); i += 3 {
		v, ok := c.parseNumber(tokens[i+2])
		if !ok {
			continue
		}
		if gen == nil {
			gen = c.generation_locked(ls)
		}
		gen.entries = append(gen.entries, Entry{Path: tokens[i], Module: tokens[i+1], Value: v})
	}
}

func (c *Cache) parseNumber(s string) (uint32, bool) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		c.counters.BadDecimals++
		return 0, false
	}
	return uint32(v), true
}

func (c *Cache) generation_locked(ls uint32) *generation {
	for _, g := range c.gens {
		if g.ls == ls {
			return g
		}
	}
	gen := &generation{ls: ls}
	c.gens = append(c.gens, gen)
	for _, g := range c.gens {
		g.touch++
	}
	if len(c.gens) > maxGenerations {
		c.gens = slices.DeleteFunc(c.gens, func(g *generation) bool {
			return g.touch > maxTouch
		})
	}
	return gen
}

// Get returns the value of the first entry for module in the generation of
// ls. When there is no such entry it returns the last luminosity section
// seen by Add.
func (c *Cache) Get(ls uint32, module string) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counters.Gets++
	for _, g := range c.gens {
		if g.ls != ls {
			continue
		}
		for _, e := range g.entries {
			if e.Module == module {
				return e.Value
			}
		}
		break
	}
	c.counters.GetMisses++
	return c.lastSeen
}

// Size returns the number of live generations.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.gens)
}

func (c *Cache) Counters() Counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters
}

// Show writes every generation and its entries to w.
func (c *Cache) Show(w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var buf strings.Builder
	fmt.Fprintf(&buf, "last seen: %d\n", c.lastSeen)
	for _, g := range c.gens {
		fmt.Fprintf(&buf, " member %d", g.ls)
		for _, e := range g.entries {
			fmt.Fprintf(&buf, " p %s m %s v %d", e.Path, e.Module, e.Value)
		}
		buf.WriteByte('\n')
	}
	fmt.Fprintf(&buf, "%v\n", c.counters)
	_, err := io.WriteString(w, buf.String())
	return err
}
